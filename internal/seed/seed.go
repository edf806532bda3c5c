// Package seed は初回起動時のチャンネルとサンプル番組を投入する。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/repository"
)

// InitialChannels は初期チャンネル。
func InitialChannels() []*model.Channel {
	return []*model.Channel{
		{ID: "CH1", Name: "WXYZ-TV (CH 7)"},
		{ID: "CH2", Name: "KROQ (CH 13)"},
		{ID: "CH3", Name: "RETRO-TV (CH 3)"},
	}
}

// SamplePrograms はサンプル番組。IDは呼び出しごとに生成する。
func SamplePrograms() []*model.Program {
	p := func(ch, title string, typ model.ProgramType, start string, dur int, url string, status model.ProgramStatus) *model.Program {
		return &model.Program{
			ID:        uuid.NewString(),
			ChannelID: ch,
			Title:     title,
			Type:      typ,
			StartTime: start,
			Duration:  dur,
			URL:       url,
			Status:    status,
		}
	}
	return []*model.Program{
		p("CH1", "MORNING NEWS BROADCAST", model.ProgramTypeNews, "06:00", 60, "", model.ProgramStatusCompleted),
		p("CH1", "CARTOON BLOCK - TOM & JERRY", model.ProgramTypeContent, "07:00", 30, "https://youtube.com/watch?v=sample1", model.ProgramStatusCompleted),
		p("CH1", "COMMERCIAL BREAK - COCA COLA", model.ProgramTypeAd, "07:30", 2, "", model.ProgramStatusCompleted),
		p("CH1", "SITCOM - FRIENDS S01E01", model.ProgramTypeContent, "07:32", 28, "https://youtube.com/watch?v=sample2", model.ProgramStatusPlaying),
		p("CH2", "MUSIC VIDEOS 80s", model.ProgramTypeContent, "06:00", 120, "https://youtube.com/watch?v=music1", model.ProgramStatusPlaying),
		p("CH3", "INFOMERCIAL", model.ProgramTypeAd, "06:00", 180, "https://youtube.com/watch?v=info1", model.ProgramStatusPlaying),
	}
}

// Result は投入結果。
type Result struct {
	Channels int
	Programs int
}

// Run はチャンネルが1件もない場合に初期チャンネルを投入する。
// 番組も1件もない場合（新規作成時）はサンプル番組も投入する。
// 旧形式から移行したデータのように番組だけが存在する場合は番組を追加しない。
func Run(ctx context.Context, channelRepo repository.ChannelRepository, programRepo repository.ProgramRepository, logger *slog.Logger) (Result, error) {
	var res Result

	count, err := channelRepo.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("チャンネル数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		return res, nil
	}

	now := time.Now()
	for _, ch := range InitialChannels() {
		ch.CreatedAt, ch.UpdatedAt = now, now
		if err := channelRepo.Create(ctx, ch); err != nil {
			return res, fmt.Errorf("初期チャンネル %s の作成に失敗しました: %w", ch.ID, err)
		}
		res.Channels++
	}

	programs, err := programRepo.List(ctx)
	if err != nil {
		return res, fmt.Errorf("番組一覧の取得に失敗しました: %w", err)
	}
	if len(programs) == 0 {
		for _, p := range SamplePrograms() {
			p.CreatedAt, p.UpdatedAt = now, now
			if err := programRepo.Create(ctx, p); err != nil {
				return res, fmt.Errorf("サンプル番組の作成に失敗しました: %w", err)
			}
			res.Programs++
		}
	}

	logger.Info("初期データを投入しました",
		slog.Int("channels", res.Channels),
		slog.Int("programs", res.Programs),
	)
	return res, nil
}
