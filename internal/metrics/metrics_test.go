package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は名前でメトリクスファミリーを探す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValues はラベル値ごとのカウンタ値を返す。
func labelValues(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return out
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordShift_CountsOperationsAndMovedPrograms はシフト回数と移動番組数が記録されることを検証する。
func TestRecordShift_CountsOperationsAndMovedPrograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordShift("insert", 3)
	c.RecordShift("insert", 0)
	c.RecordShift("delete", 2)

	shifts := labelValues(findMetricFamily(t, reg, "stationman_schedule_shifts_total"))
	if shifts["insert"] != 2 {
		t.Errorf("shifts{operation=insert} = %v, want 2", shifts["insert"])
	}
	if shifts["delete"] != 1 {
		t.Errorf("shifts{operation=delete} = %v, want 1", shifts["delete"])
	}

	moved := findMetricFamily(t, reg, "stationman_programs_moved_total")
	if v := moved.GetMetric()[0].GetCounter().GetValue(); v != 5 {
		t.Errorf("programs_moved_total = %v, want 5", v)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	got := labelValues(findMetricFamily(t, reg, "stationman_http_status_total"))
	if len(got) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(got))
	}
	if got["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", got["200"])
	}
	if got["404"] != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", got["404"])
	}
}

// TestRecordRequestLatency_ObservesHistogram はリクエスト処理時間がヒストグラムに記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(100 * time.Millisecond)
	c.RecordRequestLatency(2 * time.Second)

	h := findMetricFamily(t, reg, "stationman_http_request_duration_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

func TestRecordVideoLookup_ByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVideoLookup(LookupResultHit)
	c.RecordVideoLookup(LookupResultCacheHit)
	c.RecordVideoLookup(LookupResultCacheHit)

	got := labelValues(findMetricFamily(t, reg, "stationman_video_lookups_total"))
	if got[LookupResultHit] != 1 || got[LookupResultCacheHit] != 2 {
		t.Errorf("video_lookups_total = %v", got)
	}
}

func TestRecordProgramsImportedAndTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProgramsImported(4)
	c.RecordProgramsImported(1)
	c.RecordStatusTransitions("playing", 2)
	c.RecordStatusTransitions("completed", 1)

	imported := findMetricFamily(t, reg, "stationman_programs_imported_total")
	if v := imported.GetMetric()[0].GetCounter().GetValue(); v != 5 {
		t.Errorf("programs_imported_total = %v, want 5", v)
	}
	transitions := labelValues(findMetricFamily(t, reg, "stationman_status_transitions_total"))
	if transitions["playing"] != 2 || transitions["completed"] != 1 {
		t.Errorf("status_transitions_total = %v", transitions)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordShift("update", 1)
	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(500 * time.Millisecond)
	c.RecordVideoLookup(LookupResultFailure)
	c.RecordProgramsImported(3)
	c.RecordStatusTransitions("playing", 1)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"stationman_schedule_shifts_total",
		"stationman_programs_moved_total",
		"stationman_http_status_total",
		"stationman_http_request_duration_seconds",
		"stationman_video_lookups_total",
		"stationman_programs_imported_total",
		"stationman_status_transitions_total",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorとNopがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
	var _ MetricsCollector = Nop{}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordProgramsImported(1)
	c2.RecordProgramsImported(2)

	v1 := findMetricFamily(t, reg1, "stationman_programs_imported_total").GetMetric()[0].GetCounter().GetValue()
	v2 := findMetricFamily(t, reg2, "stationman_programs_imported_total").GetMetric()[0].GetCounter().GetValue()
	if v1 != 1 {
		t.Errorf("reg1 programs_imported = %v, want 1", v1)
	}
	if v2 != 2 {
		t.Errorf("reg2 programs_imported = %v, want 2", v2)
	}
}
