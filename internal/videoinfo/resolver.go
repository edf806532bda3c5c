// Package videoinfo は動画ページから再生時間（秒）を取得する機能を提供する。
//
// 対応するのはYouTubeの動画ページのみで、取得に失敗した場合も
// 呼び出し側には「不明」として扱える結果を返す。
package videoinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/stationman/internal/metrics"
)

// ErrUnsupportedURL は再生時間の取得に対応していないURLを表す。
var ErrUnsupportedURL = errors.New("unsupported video url")

// DefaultHosts は再生時間の取得に対応するホスト。
var DefaultHosts = []string{"youtube.com", "youtu.be"}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// DurationCache は動画IDごとの再生時間キャッシュ。
type DurationCache interface {
	// Get はキャッシュ済みの再生時間を返す。未キャッシュの場合はok=falseを返す。
	Get(ctx context.Context, videoID string) (seconds int, ok bool, err error)
	Set(ctx context.Context, videoID string, seconds int, ttl time.Duration) error
}

// Config はResolverの設定。
type Config struct {
	Timeout  time.Duration
	MaxSize  int64
	CacheTTL time.Duration
	// Hosts は対応ホスト。サブドメイン（www.youtube.com等）も対象になる。
	Hosts []string
}

// Resolver は動画URLから再生時間を取得する。
type Resolver struct {
	guard   SSRFValidator
	client  *http.Client
	cache   DurationCache
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	cfg     Config
}

// NewResolver はResolverの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュを使用しない。
func NewResolver(guard SSRFValidator, cache DurationCache, collector metrics.MetricsCollector, logger *slog.Logger, cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 5 * 1024 * 1024
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = DefaultHosts
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Resolver{
		guard:   guard,
		client:  guard.NewSafeClient(cfg.Timeout),
		cache:   cache,
		metrics: collector,
		logger:  logger,
		cfg:     cfg,
	}
}

// Supports はURLが再生時間の取得対象かを返す。
func (r *Resolver) Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range r.cfg.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Lookup は動画ページを取得し、再生時間（秒）を返す。
// 再生時間が見つからなかった場合はok=false、err=nilを返す。
// 対応外のURLの場合はErrUnsupportedURLを返す。
func (r *Resolver) Lookup(ctx context.Context, rawURL string) (int, bool, error) {
	if !r.Supports(rawURL) {
		r.metrics.RecordVideoLookup(metrics.LookupResultUnsupport)
		return 0, false, ErrUnsupportedURL
	}

	videoID := VideoID(rawURL)
	if videoID != "" && r.cache != nil {
		seconds, ok, err := r.cache.Get(ctx, videoID)
		if err != nil {
			r.logger.Warn("再生時間キャッシュの取得に失敗しました",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			r.metrics.RecordVideoLookup(metrics.LookupResultCacheHit)
			return seconds, true, nil
		}
	}

	if err := r.guard.ValidateURL(rawURL); err != nil {
		r.metrics.RecordVideoLookup(metrics.LookupResultFailure)
		return 0, false, err
	}

	body, err := r.fetch(ctx, rawURL)
	if err != nil {
		r.metrics.RecordVideoLookup(metrics.LookupResultFailure)
		return 0, false, err
	}

	seconds, ok := ExtractDuration(body)
	if !ok {
		r.metrics.RecordVideoLookup(metrics.LookupResultNotFound)
		return 0, false, nil
	}
	r.metrics.RecordVideoLookup(metrics.LookupResultHit)

	if videoID != "" && r.cache != nil {
		if err := r.cache.Set(ctx, videoID, seconds, r.cfg.CacheTTL); err != nil {
			r.logger.Warn("再生時間キャッシュの保存に失敗しました",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
		}
	}
	return seconds, true, nil
}

// LookupMinutes は再生時間を分単位（切り上げ）で返す。
func (r *Resolver) LookupMinutes(ctx context.Context, rawURL string) (int, bool) {
	seconds, ok, err := r.Lookup(ctx, rawURL)
	if err != nil || !ok {
		return 0, false
	}
	return (seconds + 59) / 60, true
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stationman/1.0)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("動画ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("動画ページの取得に失敗しました: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み込みに失敗しました: %w", err)
	}
	return body, nil
}

// VideoID はYouTubeのURLから動画IDを抽出する。抽出できない場合は空文字列を返す。
func VideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	path := strings.Trim(u.Path, "/")

	if host == "youtu.be" {
		id, _, _ := strings.Cut(path, "/")
		return validVideoID(id)
	}
	if v := u.Query().Get("v"); v != "" {
		return validVideoID(v)
	}
	for _, prefix := range []string{"shorts/", "embed/", "live/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			id, _, _ := strings.Cut(rest, "/")
			return validVideoID(id)
		}
	}
	return ""
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

func validVideoID(id string) string {
	if videoIDPattern.MatchString(id) {
		return id
	}
	return ""
}

// parseSeconds は10進の秒数文字列を解析する。
func parseSeconds(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
