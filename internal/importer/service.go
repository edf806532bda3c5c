// Package importer はRSS/Atomフィードのエントリーをチャンネルの番組として取り込む機能を提供する。
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/stationman/internal/metrics"
	"github.com/hitoshi/stationman/internal/model"
	"github.com/hitoshi/stationman/internal/program"
	"github.com/hitoshi/stationman/internal/repository"
	"github.com/hitoshi/stationman/internal/schedule"
)

const (
	// DefaultLimit は1回の取り込みで作成する番組数の既定値。
	DefaultLimit = 20
	// MaxLimit は1回の取り込みで作成する番組数の上限。
	MaxLimit = 100
	// DefaultDuration は再生時間が不明なエントリーの既定の長さ（分）。
	DefaultDuration = 30
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// ProgramCreator は番組を登録するインターフェース。
type ProgramCreator interface {
	Create(ctx context.Context, in program.Input, shift bool) (*model.Program, error)
}

// ChannelResolver はチャンネルの存在を確認するインターフェース。
type ChannelResolver interface {
	ResolveDefault(ctx context.Context, channelID string) (string, error)
}

// DurationResolver は動画URLから再生時間（分）を取得するインターフェース。
type DurationResolver interface {
	Supports(rawURL string) bool
	LookupMinutes(ctx context.Context, rawURL string) (int, bool)
}

// Request はフィード取り込みの条件。
type Request struct {
	ChannelID string
	FeedURL   string
	// StartTime は最初の番組の開始時刻。空の場合はチャンネルの最後の番組の終了時刻。
	StartTime string
	// DefaultDuration は再生時間が不明なエントリーの長さ（分）。0以下なら既定値。
	DefaultDuration int
	// Limit は取り込むエントリー数の上限。0以下なら既定値。
	Limit int
}

// Result はフィード取り込みの結果。
type Result struct {
	FeedTitle string
	Programs  []*model.Program
	Skipped   int
}

// Service はフィード取り込みのサービス層。
type Service struct {
	programs    ProgramCreator
	programRepo repository.ProgramRepository
	channels    ChannelResolver
	durations   DurationResolver
	ssrfGuard   SSRFValidator
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	programs ProgramCreator,
	programRepo repository.ProgramRepository,
	channels ChannelResolver,
	durations DurationResolver,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		programs:    programs,
		programRepo: programRepo,
		channels:    channels,
		durations:   durations,
		ssrfGuard:   ssrfGuard,
		metrics:     collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Import はフィードを取得し、各エントリーを連続した番組としてチャンネルに登録する。
// 番組はStartTimeから順に隙間なく並べる。既存の番組はシフトしない。
func (s *Service) Import(ctx context.Context, req Request) (*Result, error) {
	channelID, err := s.channels.ResolveDefault(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	defaultDuration := req.DefaultDuration
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}

	start := req.StartTime
	if start == "" {
		if start, err = s.channelEnd(ctx, channelID); err != nil {
			return nil, err
		}
	} else if !schedule.ValidClock(start) {
		return nil, model.NewInvalidTimeFormatError(start)
	}

	feed, err := s.fetchFeed(ctx, req.FeedURL)
	if err != nil {
		return nil, err
	}

	result := &Result{FeedTitle: feed.Title, Programs: []*model.Program{}}
	for _, item := range feed.Items {
		if len(result.Programs) >= limit {
			break
		}
		if item == nil || strings.TrimSpace(item.Title) == "" {
			result.Skipped++
			continue
		}

		link := itemLink(item)
		duration := s.itemDuration(ctx, item, link, defaultDuration)

		p, err := s.programs.Create(ctx, program.Input{
			ChannelID: channelID,
			Title:     item.Title,
			Type:      model.ProgramTypeContent,
			StartTime: start,
			Duration:  duration,
			URL:       link,
		}, false)
		if err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) && apiErr.Category == "validation" {
				s.logger.Warn("フィードのエントリーをスキップしました",
					slog.String("title", item.Title),
					slog.String("reason", apiErr.Code),
				)
				result.Skipped++
				continue
			}
			return nil, err
		}
		result.Programs = append(result.Programs, p)

		if start, err = schedule.AddMinutes(start, float64(duration)); err != nil {
			return nil, fmt.Errorf("次の開始時刻の計算に失敗しました: %w", err)
		}
	}

	s.metrics.RecordProgramsImported(len(result.Programs))
	s.logger.Info("フィードを取り込みました",
		slog.String("channel_id", channelID),
		slog.String("feed_url", req.FeedURL),
		slog.Int("imported", len(result.Programs)),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// channelEnd はチャンネルの最後の番組（開始時刻の文字列順）の終了時刻を返す。
// 番組がない場合は "00:00" を返す。
func (s *Service) channelEnd(ctx context.Context, channelID string) (string, error) {
	programs, err := s.programRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("番組一覧の取得に失敗しました: %w", err)
	}
	timeline := schedule.ChannelTimeline(programs, channelID)
	if len(timeline) == 0 {
		return "00:00", nil
	}
	end, err := schedule.EndTime(timeline[len(timeline)-1])
	if err != nil {
		return "", model.NewInvalidTimeFormatError(timeline[len(timeline)-1].StartTime)
	}
	return end, nil
}

// fetchFeed はフィードを取得して解析する。
// HTMLページが返された場合はheadのalternateリンクからフィードを1回だけ辿る。
func (s *Service) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, contentType, err := s.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	if !isFeedResponse(contentType, body) && isHTMLResponse(contentType) {
		link, ok := selectFeedLink(discoverFeedLinks(body, feedURL), feedURL)
		if !ok {
			return nil, model.NewFeedNotDetectedError(feedURL)
		}
		s.logger.Info("HTMLからフィードを検出しました",
			slog.String("page_url", feedURL),
			slog.String("feed_url", link.URL),
		)
		if body, _, err = s.fetch(ctx, link.URL); err != nil {
			return nil, err
		}
		feedURL = link.URL
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		s.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError()
	}
	return feed, nil
}

// fetch はSSRF検証済みのクライアントでURLを取得し、ボディとContent-Typeを返す。
func (s *Service) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, "", model.NewSSRFBlockedError()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", model.NewInvalidURLError(err.Error())
	}
	httpReq.Header.Set("User-Agent", "stationman/1.0")
	httpReq.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	client := s.ssrfGuard.NewSafeClient(s.timeout)
	resp, err := client.Do(httpReq)
	if err != nil {
		s.logger.Error("フィードの取得に失敗しました",
			slog.String("feed_url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewFetchFailedError("接続できませんでした")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, "", model.NewFetchFailedError("レスポンスを読み込めませんでした")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// itemDuration はエントリーの長さ（分）を決める。
// 動画URLの再生時間、iTunesのduration、既定値の順に使用する。
func (s *Service) itemDuration(ctx context.Context, item *gofeed.Item, link string, fallback int) int {
	if link != "" && s.durations != nil && s.durations.Supports(link) {
		if minutes, ok := s.durations.LookupMinutes(ctx, link); ok {
			return minutes
		}
	}
	if item.ITunesExt != nil {
		if seconds, ok := ParseClockDuration(item.ITunesExt.Duration); ok {
			return (seconds + 59) / 60
		}
	}
	return fallback
}

// itemLink はエントリーの再生URLを返す。動画・音声のenclosureを優先する。
func itemLink(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "video/") || strings.HasPrefix(enc.Type, "audio/") {
			return enc.URL
		}
	}
	return item.Link
}

// ParseClockDuration は "HH:MM:SS"、"MM:SS"、秒数のいずれかの形式を秒に変換する。
func ParseClockDuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
