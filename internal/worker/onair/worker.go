// Package onair は番組の放送状態を時刻に合わせて更新するバックグラウンド処理を提供する。
package onair

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/stationman/internal/cache"
	"github.com/hitoshi/stationman/internal/metrics"
	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/repository"
	"github.com/hitoshi/stationman/internal/schedule"
)

// Stats は1サイクルで更新した番組数。
type Stats struct {
	Playing   int
	Completed int
	Failed    int
}

// Worker は一定間隔で番組の放送状態を更新する。
//
//   - 放送時間帯に入った番組（playing/error以外）はplayingにする
//   - 放送時間帯を過ぎたplayingの番組はcompletedにする
//   - errorの番組は変更しない
//
// 番組表は毎日繰り返されるため、completedの番組も翌日の放送時間帯には再びplayingになる。
type Worker struct {
	programRepo    repository.ProgramRepository
	locker         cache.Locker
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewWorker(
	programRepo repository.ProgramRepository,
	locker cache.Locker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Worker {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Worker{
		programRepo:    programRepo,
		locker:         locker,
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Start はintervalごとに放送状態を更新する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("放送状態ワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	w.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("放送状態ワーカーを停止しました")
			return
		case <-ticker.C:
			w.runAndLog(ctx)
		}
	}
}

func (w *Worker) runAndLog(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("放送状態の更新に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Transition は現在時刻における番組の次の放送状態を返す。変更不要の場合はok=falseを返す。
func Transition(p *model.Program, now time.Time) (model.ProgramStatus, bool) {
	if p.Status == model.ProgramStatusError {
		return "", false
	}
	airing := schedule.IsAiring(p, now)
	switch {
	case airing && p.Status != model.ProgramStatusPlaying:
		return model.ProgramStatusPlaying, true
	case !airing && p.Status == model.ProgramStatusPlaying:
		return model.ProgramStatusCompleted, true
	}
	return "", false
}

// RunOnce は全番組の放送状態を1回更新する。
// チャンネルごとに並列で処理し、更新は番組表のロック下で行う。
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	unlock, err := w.locker.Lock(ctx, cache.ScheduleKey)
	if err != nil {
		return stats, fmt.Errorf("番組表のロックを取得できませんでした: %w", err)
	}
	defer unlock()

	programs, err := w.programRepo.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("番組一覧の取得に失敗しました: %w", err)
	}

	now := w.now()
	byChannel := make(map[string][]*model.Program)
	for _, p := range programs {
		byChannel[p.ChannelID] = append(byChannel[p.ChannelID], p)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, w.maxConcurrency)

	for channelID, list := range byChannel {
		wg.Add(1)
		sem <- struct{}{}

		go func(channelID string, list []*model.Program) {
			defer wg.Done()
			defer func() { <-sem }()

			for _, p := range list {
				next, ok := Transition(p, now)
				if !ok {
					continue
				}
				err := w.programRepo.UpdateStatus(ctx, p.ID, next)

				mu.Lock()
				switch {
				case err != nil:
					stats.Failed++
				case next == model.ProgramStatusPlaying:
					stats.Playing++
				default:
					stats.Completed++
				}
				mu.Unlock()

				if err != nil {
					w.logger.Error("放送状態の更新に失敗しました",
						slog.String("program_id", p.ID),
						slog.String("channel_id", channelID),
						slog.String("error", err.Error()),
					)
				}
			}
		}(channelID, list)
	}

	wg.Wait()

	if stats.Playing > 0 {
		w.metrics.RecordStatusTransitions(string(model.ProgramStatusPlaying), stats.Playing)
	}
	if stats.Completed > 0 {
		w.metrics.RecordStatusTransitions(string(model.ProgramStatusCompleted), stats.Completed)
	}

	w.logger.Info("放送状態を更新しました",
		slog.Int("channel_count", len(byChannel)),
		slog.Int("playing", stats.Playing),
		slog.Int("completed", stats.Completed),
		slog.Int("failed", stats.Failed),
	)
	return stats, nil
}
