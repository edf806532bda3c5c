package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig はCONFIG_FILEで指定するYAML設定ファイルの内容。
// 数値や真偽値もそのまま書ける（文字列として読み込み、環境変数と同じ規則で解釈する）。
type fileConfig struct {
	StoreDriver         string `yaml:"store_driver"`
	DataFile            string `yaml:"data_file"`
	DatabaseURL         string `yaml:"database_url"`
	SeedOnStart         string `yaml:"seed_on_start"`
	RedisURL            string `yaml:"redis_url"`
	LockTTL             string `yaml:"lock_ttl"`
	FetchTimeout        string `yaml:"fetch_timeout"`
	FetchMaxSize        string `yaml:"fetch_max_size"`
	VideoInfoMaxSize    string `yaml:"video_info_max_size"`
	VideoInfoCacheTTL   string `yaml:"video_info_cache_ttl"`
	OnAirInterval       string `yaml:"onair_interval"`
	WorkerMaxConcurrent string `yaml:"worker_max_concurrent"`
	RateLimitGeneral    string `yaml:"rate_limit_general"`
	RateLimitLookup     string `yaml:"rate_limit_lookup"`
	TrustProxy          string `yaml:"trust_proxy"`
	ServerPort          string `yaml:"server_port"`
	CORSAllowedOrigin   string `yaml:"cors_allowed_origin"`
	LogLevel            string `yaml:"log_level"`
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// values は環境変数名をキーにした設定値を返す。
func (f *fileConfig) values() map[string]string {
	return map[string]string{
		"STORE_DRIVER":          f.StoreDriver,
		"DATA_FILE":             f.DataFile,
		"DATABASE_URL":          f.DatabaseURL,
		"SEED_ON_START":         f.SeedOnStart,
		"REDIS_URL":             f.RedisURL,
		"LOCK_TTL":              f.LockTTL,
		"FETCH_TIMEOUT":         f.FetchTimeout,
		"FETCH_MAX_SIZE":        f.FetchMaxSize,
		"VIDEO_INFO_MAX_SIZE":   f.VideoInfoMaxSize,
		"VIDEO_INFO_CACHE_TTL":  f.VideoInfoCacheTTL,
		"ONAIR_INTERVAL":        f.OnAirInterval,
		"WORKER_MAX_CONCURRENT": f.WorkerMaxConcurrent,
		"RATE_LIMIT_GENERAL":    f.RateLimitGeneral,
		"RATE_LIMIT_LOOKUP":     f.RateLimitLookup,
		"TRUST_PROXY":           f.TrustProxy,
		"SERVER_PORT":           f.ServerPort,
		"CORS_ALLOWED_ORIGIN":   f.CORSAllowedOrigin,
		"LOG_LEVEL":             f.LogLevel,
	}
}
