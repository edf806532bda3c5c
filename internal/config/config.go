package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 永続化ストアの種類
const (
	StoreDriverJSON     = "json"
	StoreDriverPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string
	DataFile    string
	DatabaseURL string
	SeedOnStart bool

	// Redis（未設定の場合はプロセス内ロックとキャッシュなしで動作する）
	RedisURL string
	LockTTL  time.Duration

	// Fetch（フィード取り込み・動画情報取得の外部アクセス）
	FetchTimeout      time.Duration
	FetchMaxSize      int64
	VideoInfoMaxSize  int64
	VideoInfoCacheTTL time.Duration

	// Worker
	OnAirInterval       time.Duration
	WorkerMaxConcurrent int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLookup  int
	TrustProxy       bool

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// CONFIG_FILEが設定されている場合はYAMLファイルの値を既定値として使い、環境変数で上書きする。
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		f, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		src.file = f.values()
	}

	cfg := &Config{}

	cfg.StoreDriver = strings.ToLower(src.string("STORE_DRIVER", StoreDriverJSON))
	cfg.DataFile = src.string("DATA_FILE", "db.json")
	cfg.DatabaseURL = src.string("DATABASE_URL", "")
	cfg.SeedOnStart = src.bool("SEED_ON_START", true)

	switch cfg.StoreDriver {
	case StoreDriverJSON:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, StoreDriverJSON, StoreDriverPostgres)
	}

	cfg.RedisURL = src.string("REDIS_URL", "")
	cfg.LockTTL = src.duration("LOCK_TTL", 30*time.Second)
	cfg.FetchTimeout = src.duration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = src.int64("FETCH_MAX_SIZE", 5242880)
	cfg.VideoInfoMaxSize = src.int64("VIDEO_INFO_MAX_SIZE", 5242880)
	cfg.VideoInfoCacheTTL = src.duration("VIDEO_INFO_CACHE_TTL", 24*time.Hour)
	cfg.OnAirInterval = src.duration("ONAIR_INTERVAL", 1*time.Minute)
	cfg.WorkerMaxConcurrent = src.int("WORKER_MAX_CONCURRENT", 4)
	cfg.RateLimitGeneral = src.int("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLookup = src.int("RATE_LIMIT_LOOKUP", 10)
	cfg.TrustProxy = src.bool("TRUST_PROXY", false)
	cfg.ServerPort = src.string("SERVER_PORT", "3001")
	cfg.CORSAllowedOrigin = src.string("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = strings.ToLower(src.string("LOG_LEVEL", "info"))

	return cfg, nil
}

// source は環境変数、設定ファイル、既定値の順に値を解決する。
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) string(key, defaultVal string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) int(key string, defaultVal int) int {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) int64(key string, defaultVal int64) int64 {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) bool(key string, defaultVal bool) bool {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s source) duration(key string, defaultVal time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
