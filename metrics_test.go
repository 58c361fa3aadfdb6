package docgate

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricAdmitted)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricAdmitted); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics()
	m.Observe(MetricAuthenticateLatency, 3*time.Millisecond)
	m.Observe(MetricAuthenticateLatency, 40*time.Millisecond)
	m.Observe(MetricAuthenticateLatency, 2*time.Second)
	m.Observe(MetricAdmitted, time.Second)

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricAdmitted)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)
	if m.Value(MetricAdmitted) != 0 {
		t.Fatalf("expected zero from nil metrics")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}

func TestRejectionMetric(t *testing.T) {
	id, ok := rejectionMetric(fmt.Errorf("wrap: %w", ErrSessionInvalid))
	if !ok || id != MetricRejectedSession {
		t.Fatalf("expected MetricRejectedSession, got %v/%v", id, ok)
	}
	if _, ok := rejectionMetric(errors.New("other")); ok {
		t.Fatalf("expected no metric for unrelated error")
	}
}
