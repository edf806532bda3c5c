// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordShift(operation string, moved int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordVideoLookup(result string)
	RecordProgramsImported(count int)
	RecordStatusTransitions(status string, count int)
}

// 動画長取得の結果ラベル。
const (
	LookupResultHit       = "hit"
	LookupResultCacheHit  = "cache_hit"
	LookupResultNotFound  = "not_found"
	LookupResultFailure   = "failure"
	LookupResultUnsupport = "unsupported"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	shifts            *prometheus.CounterVec
	programsMoved     prometheus.Counter
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	videoLookups      *prometheus.CounterVec
	programsImported  prometheus.Counter
	statusTransitions *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		shifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationman_schedule_shifts_total",
			Help: "操作種別ごとのスケジュールシフト実行回数",
		}, []string{"operation"}),
		programsMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stationman_programs_moved_total",
			Help: "シフトにより開始時刻が変更された番組の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stationman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		videoLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationman_video_lookups_total",
			Help: "結果別の動画長取得回数",
		}, []string{"result"}),
		programsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stationman_programs_imported_total",
			Help: "フィードから取り込まれた番組の合計数",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationman_status_transitions_total",
			Help: "放送状態ワーカーによる遷移先状態別の更新数",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.shifts,
		c.programsMoved,
		c.httpStatus,
		c.requestLatency,
		c.videoLookups,
		c.programsImported,
		c.statusTransitions,
	)

	return c
}

// RecordShift はスケジュールシフトの実行と移動した番組数を記録する。
func (c *Collector) RecordShift(operation string, moved int) {
	c.shifts.WithLabelValues(operation).Inc()
	c.programsMoved.Add(float64(moved))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordVideoLookup は動画長取得の結果を記録する。
func (c *Collector) RecordVideoLookup(result string) {
	c.videoLookups.WithLabelValues(result).Inc()
}

// RecordProgramsImported は取り込まれた番組数を記録する。
func (c *Collector) RecordProgramsImported(count int) {
	c.programsImported.Add(float64(count))
}

// RecordStatusTransitions は放送状態の遷移数を記録する。
func (c *Collector) RecordStatusTransitions(status string, count int) {
	c.statusTransitions.WithLabelValues(status).Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
// メトリクスを使用しない構成やテストで利用する。
type Nop struct{}

func (Nop) RecordShift(string, int)             {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRequestLatency(time.Duration)  {}
func (Nop) RecordVideoLookup(string)            {}
func (Nop) RecordProgramsImported(int)          {}
func (Nop) RecordStatusTransitions(string, int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
