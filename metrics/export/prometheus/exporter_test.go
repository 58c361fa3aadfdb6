package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/docgate"
)

type fakeSource struct {
	snapshot docgate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() docgate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyBeforeAnyTraffic(t *testing.T) {
	exp := New(fakeSource{snapshot: docgate.NewMetrics().Snapshot()})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: docgate.MetricsSnapshot{
			Counters: map[docgate.MetricID]uint64{
				docgate.MetricLoginSuccess: 7,
				docgate.MetricIPBlocked:    3,
			},
			Histograms: map[docgate.MetricID][]uint64{
				docgate.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"docgate_login_success_total 7",
		"docgate_ip_blocked_total 3",
		"docgate_rate_limit_hit_total 0",
		"docgate_authenticate_latency_seconds_bucket{le=\"0.005\"} 1",
		"docgate_authenticate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"docgate_activity_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderReadsLiveMetrics(t *testing.T) {
	m := docgate.NewMetrics()
	m.Inc(docgate.MetricRateLimitHit)
	m.Inc(docgate.MetricRateLimitHit)

	out := New(fakeSource{snapshot: m.Snapshot()}).Render()
	if !strings.Contains(out, "docgate_rate_limit_hit_total 2") {
		t.Fatalf("expected rate limit counter, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: docgate.MetricsSnapshot{
			Counters: map[docgate.MetricID]uint64{docgate.MetricAdmitted: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docgate_admitted_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: docgate.MetricsSnapshot{
			Counters: map[docgate.MetricID]uint64{
				docgate.MetricLoginSuccess:       1000,
				docgate.MetricLoginFailure:       40,
				docgate.MetricSessionCreated:     800,
				docgate.MetricSessionInvalidated: 20,
				docgate.MetricCreditConsumed:     300,
			},
			Histograms: map[docgate.MetricID][]uint64{
				docgate.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
