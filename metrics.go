package docgate

import (
	"errors"
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricAdmitted MetricID = iota
	MetricRejectedNoToken
	MetricRejectedToken
	MetricRejectedSession
	MetricRejectedUser
	MetricRejectedUnverified
	MetricRejectedLocked
	MetricRejectedRole
	MetricRejectedCredits
	MetricIPBlocked
	MetricSuspiciousTrip
	MetricBurstTrip
	MetricRateLimitHit
	// MetricFailOpen counts abuse checks that admitted a request because the
	// counter store failed.
	MetricFailOpen
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginLocked
	MetricTwoFactorRequired
	MetricTwoFactorSuccess
	MetricTwoFactorFailure
	MetricBackupCodeUsed
	MetricSessionCreated
	MetricSessionInvalidated
	MetricSessionTouchFailed
	MetricRegistration
	MetricPasswordReset
	MetricCreditReset
	MetricCreditConsumed
	MetricDocumentScanned
	MetricAnalysisFailed
	MetricAuthenticateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil *Metrics ignores every call.
type Metrics struct {
	counters   [metricIDCount]paddedCounter
	histograms [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricAuthenticateLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || id != MetricAuthenticateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	if m == nil {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	buckets := make([]uint64, histBucketCount)
	for i := 0; i < histBucketCount; i++ {
		buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
	}
	s.Histograms[MetricAuthenticateLatency] = buckets

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

// rejectionMetric maps an authentication or gate error to its counter.
func rejectionMetric(err error) (MetricID, bool) {
	switch {
	case errors.Is(err, ErrNoToken):
		return MetricRejectedNoToken, true
	case errors.Is(err, ErrTokenInvalid):
		return MetricRejectedToken, true
	case errors.Is(err, ErrSessionInvalid):
		return MetricRejectedSession, true
	case errors.Is(err, ErrUserNotFound):
		return MetricRejectedUser, true
	case errors.Is(err, ErrAccountUnverified):
		return MetricRejectedUnverified, true
	case errors.Is(err, ErrAccountLocked):
		return MetricRejectedLocked, true
	case errors.Is(err, ErrForbidden):
		return MetricRejectedRole, true
	case errors.Is(err, ErrInsufficientCredits):
		return MetricRejectedCredits, true
	}
	return 0, false
}
