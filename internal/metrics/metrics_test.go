package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はGather結果から指定メトリクスのカウンタ値を取り出す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labelValue string) (float64, bool) {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue == "" || (len(m.GetLabel()) > 0 && m.GetLabel()[0].GetValue() == labelValue) {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if val, ok := counterValue(t, reg, "photoshare_http_status_total", "200"); !ok || val != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
	}
	if val, ok := counterValue(t, reg, "photoshare_http_status_total", "404"); !ok || val != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
	}
}

// TestRecordHTTPLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordHTTPLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPLatency(100 * time.Millisecond)
	c.RecordHTTPLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "photoshare_http_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("photoshare_http_latency_seconds metric not found")
	}
}

// TestRecordAuthFailure_IncrementsCounter は認証失敗カウンタが理由別に増加することを検証する。
func TestRecordAuthFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthFailure("invalid_token")
	c.RecordAuthFailure("invalid_token")
	c.RecordAuthFailure("revoked")

	if val, ok := counterValue(t, reg, "photoshare_auth_failures_total", "invalid_token"); !ok || val != 2 {
		t.Errorf("auth_failures_total{reason=invalid_token} = %v, want 2", val)
	}
	if val, ok := counterValue(t, reg, "photoshare_auth_failures_total", "revoked"); !ok || val != 1 {
		t.Errorf("auth_failures_total{reason=revoked} = %v, want 1", val)
	}
}

// TestRecordCacheHitMiss_IncrementsCounters はキャッシュのヒット/ミスが種別ごとに記録されることを検証する。
func TestRecordCacheHitMiss_IncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit("user")
	c.RecordCacheHit("user")
	c.RecordCacheMiss("user")
	c.RecordCacheMiss("image")

	if val, ok := counterValue(t, reg, "photoshare_cache_hits_total", "user"); !ok || val != 2 {
		t.Errorf("cache_hits_total{kind=user} = %v, want 2", val)
	}
	if val, ok := counterValue(t, reg, "photoshare_cache_misses_total", "user"); !ok || val != 1 {
		t.Errorf("cache_misses_total{kind=user} = %v, want 1", val)
	}
	if val, ok := counterValue(t, reg, "photoshare_cache_misses_total", "image"); !ok || val != 1 {
		t.Errorf("cache_misses_total{kind=image} = %v, want 1", val)
	}
}

// TestRecordUpload_IncrementsCounter はアップロードカウンタが種別ごとに増加することを検証する。
func TestRecordUpload_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpload("image")
	c.RecordUpload("avatar")
	c.RecordUpload("image")

	if val, ok := counterValue(t, reg, "photoshare_uploads_total", "image"); !ok || val != 2 {
		t.Errorf("uploads_total{kind=image} = %v, want 2", val)
	}
	if val, ok := counterValue(t, reg, "photoshare_uploads_total", "avatar"); !ok || val != 1 {
		t.Errorf("uploads_total{kind=avatar} = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordHTTPStatus(200)
	c.RecordHTTPLatency(500 * time.Millisecond)
	c.RecordAuthFailure("invalid_token")
	c.RecordCacheHit("user")
	c.RecordUpload("image")

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

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"photoshare_http_status_total",
		"photoshare_http_latency_seconds",
		"photoshare_auth_failures_total",
		"photoshare_cache_hits_total",
		"photoshare_uploads_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordUpload("image")
	c2.RecordUpload("image")
	c2.RecordUpload("image")

	val1, _ := counterValue(t, reg1, "photoshare_uploads_total", "image")
	val2, _ := counterValue(t, reg2, "photoshare_uploads_total", "image")

	if val1 != 1 {
		t.Errorf("reg1 uploads = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 uploads = %v, want 2", val2)
	}
}
