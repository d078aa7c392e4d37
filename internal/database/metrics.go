package database

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrlokans/chronicle/internal/config"
)

// bucketBounds are the upper bounds (exclusive, milliseconds) of the
// wait and usage histograms. The last bucket is open-ended.
var bucketBounds = []int64{1, 5, 10, 50, 100, 500, 1000}

// numBuckets is len(bucketBounds) plus the open-ended overflow bucket.
const numBuckets = 8

// Metrics tracks pool health. Scalar counters and the max-duration
// gauges are lock-free atomics; histograms and the time series are
// guarded by a mutex.
type Metrics struct {
	created      atomic.Int64
	closed       atomic.Int64
	active       atomic.Int64
	idle         atomic.Int64
	acquisitions atomic.Int64
	releases     atomic.Int64
	timeouts     atomic.Int64
	errors       atomic.Int64

	totalWaitNs  atomic.Int64
	maxWaitNs    atomic.Int64
	totalUsageNs atomic.Int64
	maxUsageNs   atomic.Int64

	mu             sync.Mutex
	waitHist       [numBuckets]uint64
	usageHist      [numBuckets]uint64
	samples        []Sample
	lastSample     time.Time
	sampleInterval time.Duration
	sampleCapacity int
}

// Sample is one point of the pool's activity time series.
type Sample struct {
	At           time.Time `json:"at"`
	Active       int64     `json:"active"`
	Idle         int64     `json:"idle"`
	Acquisitions int64     `json:"acquisitions"`
}

// Snapshot is a read-only projection of the live metrics state.
type Snapshot struct {
	Created      int64 `json:"created"`
	Closed       int64 `json:"closed"`
	Active       int64 `json:"active"`
	Idle         int64 `json:"idle"`
	Acquisitions int64 `json:"acquisitions"`
	Releases     int64 `json:"releases"`
	Timeouts     int64 `json:"timeouts"`
	Errors       int64 `json:"errors"`

	AvgWaitMs  float64 `json:"avg_wait_ms"`
	MaxWaitMs  float64 `json:"max_wait_ms"`
	AvgUsageMs float64 `json:"avg_usage_ms"`
	MaxUsageMs float64 `json:"max_usage_ms"`

	WaitHistogram  [numBuckets]uint64 `json:"wait_histogram"`
	UsageHistogram [numBuckets]uint64 `json:"usage_histogram"`

	Samples []Sample `json:"samples"`
}

func newMetrics(cfg config.Metrics) *Metrics {
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = time.Minute
	}
	capacity := cfg.SampleCapacity
	if capacity <= 0 {
		capacity = 60
	}
	return &Metrics{
		sampleInterval: interval,
		sampleCapacity: capacity,
	}
}

// RecordTimeout counts a failed acquisition that hit the configured
// timeout. Pool state is unchanged; the failure is made visible here.
func (m *Metrics) RecordTimeout() {
	m.timeouts.Add(1)
}

// RecordError counts a connection-level failure.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

func (m *Metrics) recordCreated() {
	m.created.Add(1)
}

func (m *Metrics) recordClosed() {
	m.closed.Add(1)
}

func (m *Metrics) recordAcquire(wait time.Duration) {
	m.acquisitions.Add(1)
	m.active.Add(1)
	decrementToZero(&m.idle)
	m.totalWaitNs.Add(wait.Nanoseconds())
	updateMax(&m.maxWaitNs, wait.Nanoseconds())

	m.mu.Lock()
	m.waitHist[bucketIndex(wait)]++
	m.maybeSampleLocked()
	m.mu.Unlock()
}

func (m *Metrics) recordRelease(usage time.Duration) {
	m.releases.Add(1)
	m.active.Add(-1)
	m.idle.Add(1)
	m.totalUsageNs.Add(usage.Nanoseconds())
	updateMax(&m.maxUsageNs, usage.Nanoseconds())

	m.mu.Lock()
	m.usageHist[bucketIndex(usage)]++
	m.mu.Unlock()
}

// updateMax raises the gauge to at least v with a compare-and-swap
// retry loop, so concurrent writers never lose a larger value.
func updateMax(gauge *atomic.Int64, v int64) {
	for {
		cur := gauge.Load()
		if v <= cur {
			return
		}
		if gauge.CompareAndSwap(cur, v) {
			return
		}
	}
}

// decrementToZero lowers the gauge by one but never below zero. The
// compare-and-swap loop keeps concurrent decrements from racing a
// load-then-add past the floor.
func decrementToZero(gauge *atomic.Int64) {
	for {
		cur := gauge.Load()
		if cur <= 0 {
			return
		}
		if gauge.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return numBuckets - 1
}

// maybeSampleLocked appends at most one time-series sample per
// interval, evicting the oldest once the ring is full. Caller holds mu.
func (m *Metrics) maybeSampleLocked() {
	now := time.Now()
	if !m.lastSample.IsZero() && now.Sub(m.lastSample) < m.sampleInterval {
		return
	}
	m.lastSample = now
	m.samples = append(m.samples, Sample{
		At:           now,
		Active:       m.active.Load(),
		Idle:         m.idle.Load(),
		Acquisitions: m.acquisitions.Load(),
	})
	if len(m.samples) > m.sampleCapacity {
		m.samples = m.samples[len(m.samples)-m.sampleCapacity:]
	}
}

// Snapshot copies the live state into a read-only value. Callers never
// mutate metrics through a snapshot.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Created:      m.created.Load(),
		Closed:       m.closed.Load(),
		Active:       m.active.Load(),
		Idle:         m.idle.Load(),
		Acquisitions: m.acquisitions.Load(),
		Releases:     m.releases.Load(),
		Timeouts:     m.timeouts.Load(),
		Errors:       m.errors.Load(),
		MaxWaitMs:    float64(m.maxWaitNs.Load()) / float64(time.Millisecond),
		MaxUsageMs:   float64(m.maxUsageNs.Load()) / float64(time.Millisecond),
	}
	if s.Acquisitions > 0 {
		s.AvgWaitMs = float64(m.totalWaitNs.Load()) / float64(s.Acquisitions) / float64(time.Millisecond)
	}
	// Usage averages over completed releases only; a handle still held
	// has no usage duration yet.
	if s.Releases > 0 {
		s.AvgUsageMs = float64(m.totalUsageNs.Load()) / float64(s.Releases) / float64(time.Millisecond)
	}

	m.mu.Lock()
	s.WaitHistogram = m.waitHist
	s.UsageHistogram = m.usageHist
	s.Samples = append([]Sample(nil), m.samples...)
	m.mu.Unlock()

	return s
}
