package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/stationman/internal/cache"
	"github.com/hitoshi/stationman/internal/channel"
	"github.com/hitoshi/stationman/internal/config"
	"github.com/hitoshi/stationman/internal/database"
	"github.com/hitoshi/stationman/internal/handler"
	"github.com/hitoshi/stationman/internal/importer"
	"github.com/hitoshi/stationman/internal/logger"
	"github.com/hitoshi/stationman/internal/metrics"
	"github.com/hitoshi/stationman/internal/middleware"
	"github.com/hitoshi/stationman/internal/program"
	"github.com/hitoshi/stationman/internal/repository"
	"github.com/hitoshi/stationman/internal/security"
	"github.com/hitoshi/stationman/internal/seed"
	"github.com/hitoshi/stationman/internal/videoinfo"
	"github.com/hitoshi/stationman/internal/worker/onair"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3001"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
	)

	// SIGINTまたはSIGTERMでキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// components は各サブコマンドが共有する依存関係。
type components struct {
	channelRepo repository.ChannelRepository
	programRepo repository.ProgramRepository
	pinger      repository.Pinger

	locker   cache.Locker
	redis    *cache.Redis
	registry *prometheus.Registry
	metrics  *metrics.Collector

	channels *channel.Service
	programs *program.Service

	closers []func() error
}

// Close は開いたリソースを逆順に閉じる。
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Warn("failed to close resource", slog.String("error", err.Error()))
		}
	}
}

// newComponents は設定に従ってストア、ロック、サービスを構築する。
func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}

	// 1. 永続化ストア
	if err := c.openStore(cfg); err != nil {
		c.Close()
		return nil, err
	}

	// 2. Redis（任意）。設定されていれば分散ロックを使う
	if cfg.RedisURL != "" {
		r, err := cache.New(cfg.RedisURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open redis: %w", err)
		}
		c.closers = append(c.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		c.redis = r
		c.locker = cache.NewRedisLocker(r, cfg.LockTTL)
	} else {
		c.locker = cache.NewLocalLocker()
	}

	// 3. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.metrics = metrics.NewCollector(c.registry)

	// 4. ドメインサービス
	sanitizer := security.NewTextSanitizer()
	c.channels = channel.NewService(c.channelRepo, c.programRepo, sanitizer, c.locker, slog.Default())
	c.programs = program.NewService(c.programRepo, c.channels, sanitizer, c.locker, c.metrics, slog.Default())

	return c, nil
}

// openStore はSTORE_DRIVERに応じたリポジトリを開く。
func (c *components) openStore(cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := openDatabase(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, db.Close)
		c.channelRepo = repository.NewPostgresChannelRepo(db)
		c.programRepo = repository.NewPostgresProgramRepo(db)
		c.pinger = db
	default:
		store, err := repository.OpenJSONStore(cfg.DataFile)
		if err != nil {
			return fmt.Errorf("failed to open data file: %w", err)
		}
		slog.Info("json store opened", slog.String("path", cfg.DataFile))
		c.channelRepo = store.Channels()
		c.programRepo = store.Programs()
		c.pinger = store
	}
	return nil
}

func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// newRouter はAPIサーバーのルーターを構築する。
func newRouter(c *components, cfg *config.Config) (http.Handler, func()) {
	ssrfGuard := security.NewSSRFGuard()

	var durationCache videoinfo.DurationCache
	if c.redis != nil {
		durationCache = videoinfo.NewRedisCache(c.redis)
	}
	resolver := videoinfo.NewResolver(ssrfGuard, durationCache, c.metrics, slog.Default(), videoinfo.Config{
		Timeout:  cfg.FetchTimeout,
		MaxSize:  cfg.VideoInfoMaxSize,
		CacheTTL: cfg.VideoInfoCacheTTL,
	})
	importService := importer.NewService(
		c.programs, c.programRepo, c.channels, resolver, ssrfGuard,
		c.metrics, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = perMinute(cfg.RateLimitGeneral)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLookup > 0 {
		rateLimiterCfg.LookupRate = perMinute(cfg.RateLimitLookup)
		rateLimiterCfg.LookupBurst = cfg.RateLimitLookup
	}
	rateLimiterCfg.TrustProxy = cfg.TrustProxy
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxy:        cfg.TrustProxy,
		RateLimiter:       rateLimiter,
		Metrics:           c.metrics,
		Gatherer:          c.registry,
		HealthChecker:     c.pinger,
		ChannelService:    c.channels,
		ProgramService:    c.programs,
		ImportService:     importService,
		VideoInfoService:  resolver,
	})
	return router, rateLimiter.Stop
}

// newWorker は放送状態ワーカーを構築する。
func newWorker(c *components, cfg *config.Config) *onair.Worker {
	return onair.NewWorker(c.programRepo, c.locker, c.metrics, slog.Default(), cfg.WorkerMaxConcurrent)
}

// runServe はAPIサーバーモードで起動する。
// JSONストアの場合はファイルを単一プロセスで扱うため、放送状態ワーカーも同じプロセスで動かす。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.SeedOnStart {
		if _, err := seed.Run(ctx, c.channelRepo, c.programRepo, slog.Default()); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
	}

	router, stopRateLimiter := newRouter(c, cfg)
	defer stopRateLimiter()

	if cfg.StoreDriver == config.StoreDriverJSON {
		go newWorker(c, cfg).Start(ctx, cfg.OnAirInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 放送状態ワーカーをコンテキストがキャンセルされるまで実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	slog.Info("worker starting",
		slog.Duration("onair_interval", cfg.OnAirInterval),
		slog.Int("max_concurrent", cfg.WorkerMaxConcurrent),
	)

	newWorker(c, cfg).Start(ctx, cfg.OnAirInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// JSONストアではスキーマがないため何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		slog.Info("migrations skipped", slog.String("store_driver", cfg.StoreDriver))
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed は初期チャンネルとサンプル番組を投入する。
// 既にデータがある場合は何もしない。
func runSeed(ctx context.Context, cfg *config.Config) error {
	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := seed.Run(ctx, c.channelRepo, c.programRepo, slog.Default())
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	slog.Info("seed completed",
		slog.Int("channels", res.Channels),
		slog.Int("programs", res.Programs),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// perMinute はreq/minをrate.Limit（req/sec）に変換する。
func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
