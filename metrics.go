package consolelogin

import (
	"sync/atomic"
	"time"
)

// MetricID identifies an in-process counter.
type MetricID uint16

const (
	// MetricIdentifySuccess counts identify calls that moved the flow forward.
	MetricIdentifySuccess MetricID = iota
	// MetricIdentifyFailure counts identify calls that failed at the transport or server.
	MetricIdentifyFailure
	// MetricIdentifyNotFound counts identifiers with no matching account.
	MetricIdentifyNotFound
	// MetricOTPDispatchDegraded counts identify responses with otpSent=false.
	MetricOTPDispatchDegraded
	// MetricOTPResend counts explicit resend requests.
	MetricOTPResend
	// MetricLoginSuccess counts successful password or PIN logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected password or PIN logins.
	MetricLoginFailure
	// MetricSetupRequired counts logins that still required a password to be created.
	MetricSetupRequired
	// MetricOTPVerifySuccess counts accepted one-time codes.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts rejected one-time codes.
	MetricOTPVerifyFailure
	// MetricSetupSuccess counts completed password setups.
	MetricSetupSuccess
	// MetricSetupFailure counts setup-password calls rejected by the server.
	MetricSetupFailure
	// MetricSetupRejected counts setups blocked by local validation.
	MetricSetupRejected
	// MetricFlowSuccess counts flows that reached the success step.
	MetricFlowSuccess
	// MetricCountryFetch counts successful catalog fetches.
	MetricCountryFetch
	// MetricCountryFetchFailure counts failed catalog fetches.
	MetricCountryFetchFailure
	// MetricRequestInFlightRejected counts submits rejected by the loading guard.
	MetricRequestInFlightRejected
	// MetricAuthLatency is the latency histogram of auth calls.
	MetricAuthLatency
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

// Metrics holds lock-free counters and one latency histogram.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a metrics set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only MetricAuthLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricAuthLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthLatency].buckets[i])
		}
		s.Histograms[MetricAuthLatency] = buckets
	}

	return s
}

// bucket bounds: 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, +Inf
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
