package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stationman/internal/metrics"
	"github.com/hitoshi/stationman/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	TrustProxy        bool
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	HealthChecker HealthChecker

	ChannelService   ChannelServiceInterface
	ProgramService   ProgramServiceInterface
	ImportService    ImportServiceInterface
	VideoInfoService VideoInfoLookup
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.TrustProxy))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	channelHandler := NewChannelHandler(deps.ChannelService)
	programHandler := NewProgramHandler(deps.ProgramService)
	importHandler := NewImportHandler(deps.ImportService)
	videoHandler := NewVideoInfoHandler(deps.VideoInfoService, logger)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// チャンネル管理
		r.Route("/api/channels", func(r chi.Router) {
			r.Get("/", channelHandler.ListChannels)
			r.Post("/", channelHandler.CreateChannel)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", channelHandler.UpdateChannel)
				r.Delete("/", channelHandler.DeleteChannel)
				r.Get("/on-air", programHandler.OnAir)
				r.With(lookupLimit(deps.RateLimiter)).Post("/import", importHandler.ImportFeed)
			})
		})

		// 番組表
		r.Route("/api/programs", func(r chi.Router) {
			r.Get("/", programHandler.ListPrograms)
			r.Post("/", programHandler.CreateProgram)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", programHandler.GetProgram)
				r.Put("/", programHandler.UpdateProgram)
				r.Delete("/", programHandler.DeleteProgram)
				r.Put("/status", programHandler.UpdateStatus)
			})
		})

		// 動画情報（外部アクセスを伴うため専用レート制限を追加）
		r.With(lookupLimit(deps.RateLimiter)).Post("/api/video-info", videoHandler.GetVideoInfo)
	})

	return r
}

// lookupLimit は外部アクセスAPI用のレート制限ミドルウェアを返す。rlがnilの場合は何もしない。
func lookupLimit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.LookupMiddleware()
}
