package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordTokenCheck("valid")
	m.RecordTokenRefresh(true)
	m.RecordTokenRefresh(false)
	m.RecordTableResolution("binding")
	m.RecordSyncOutcome("synced")
	m.RecordSelfHealRetry()
	m.RecordReportFetch("success")
	m.RecordRequestLatency("/health", "GET", "200", 0.01)
	m.RecordHTTPRequest("/health", "GET", "200")
	m.IncHTTPRequestsInFlight()
	m.DecHTTPRequestsInFlight()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, name := range []string{"test_token_refreshes_total", "test_sync_outcomes_total", "test_sync_self_heal_retries_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected metrics output to contain %s", name)
		}
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
	if got := counterValue(families, "test_token_refreshes_total", "result", "failure"); got != 1 {
		t.Fatalf("expected one failed refresh, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordTokenCheck("valid")
	m.RecordTokenRefresh(true)
	m.RecordTableResolution("created")
	m.RecordSyncOutcome("failed")
	m.RecordSelfHealRetry()
	m.RecordReportFetch("no_data")
	m.RecordHTTPRequest("/", "GET", "200")
	m.IncHTTPRequestsInFlight()
}

func counterValue(families []*dto.MetricFamily, name, key, value string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.Metric {
			for _, label := range metric.Label {
				if label.GetName() == key && label.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
