// Package metrics implements the in-memory observability collector (spec
// §3.1, §4.11): counters, a bounded response-time window, a recent-error
// ring, and append-only time series. It holds everything in memory and
// creates no OpenTelemetry instruments.
package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	maxResponseTimes = 10_000
	maxRecentErrors  = 100
)

// Counters holds the flat request/pool/cache/retry counters from spec §3.1.
type Counters struct {
	RequestsTotal, RequestsSuccess, RequestsError int64

	BrowserCreated, BrowserReused, BrowserRecycled, BrowserErrors int64

	CacheHits, CacheMisses, CacheStores int64

	RetryAttempts, RetrySuccesses, RetryFailures int64
	CircuitBreakerRejections                     int64
}

// ErrorRecord is one entry in the recent-errors ring.
type ErrorRecord struct {
	Type      string
	Endpoint  string
	Details   string
	Timestamp time.Time
}

// TimeSeriesPoint is one (timestamp, value) sample.
type TimeSeriesPoint struct {
	Timestamp time.Time
	Value     float64
}

// AlertThresholds configures when RegisterAlertHandler fires (spec §4.11,
// made tunable per the original implementation's monitoring endpoint rather
// than hardcoded).
type AlertThresholds struct {
	ErrorRate    float64 // fraction, e.g. 0.05 for 5%
	P95LatencyMs float64
	MemoryUsage  float64 // fraction
	PoolUsage    float64 // fraction
}

// DefaultAlertThresholds matches the spec's hardcoded defaults.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{ErrorRate: 0.05, P95LatencyMs: 5000, MemoryUsage: 0.90, PoolUsage: 0.90}
}

// Alert describes a single threshold breach.
type Alert struct {
	Kind    string
	Value   float64
	Limit   float64
	At      time.Time
}

// AlertHandler is called whenever Collector detects a threshold breach.
type AlertHandler func(Alert)

// Collector aggregates everything in spec §3.1's Metrics entity.
type Collector struct {
	mu sync.Mutex

	counters Counters

	responseTimes []float64// ring buffer, oldest overwritten
	rtHead        int
	rtFull        bool

	errorsByType     map[string]int64
	errorsByEndpoint map[string]int64
	recentErrors     []ErrorRecord // ring, oldest evicted from front

	series map[string][]TimeSeriesPoint // key = metricType + "|" + name

	poolSnapshot map[string]any
	cacheSnapshot map[string]any

	thresholds AlertThresholds
	handlers   []AlertHandler

	now func() time.Time
}

// New creates an empty Collector.
func New(thresholds AlertThresholds) *Collector {
	return &Collector{
		errorsByType:     make(map[string]int64),
		errorsByEndpoint: make(map[string]int64),
		series:           make(map[string][]TimeSeriesPoint),
		responseTimes:    make([]float64, maxResponseTimes),
		thresholds:       thresholds,
		now:              time.Now,
	}
}

// RecordRequest records one completed request and evaluates alert thresholds.
func (c *Collector) RecordRequest(endpoint string, statusCode int, durationMs float64) {
	c.mu.Lock()
	c.counters.RequestsTotal++
	if statusCode >= 200 && statusCode < 400 {
		c.counters.RequestsSuccess++
	} else {
		c.counters.RequestsError++
	}
	c.pushResponseTime(durationMs)
	errRate := c.errorRateLocked()
	p95 := c.percentileLocked(0.95)
	c.mu.Unlock()

	c.maybeAlert("error_rate", errRate, c.thresholds.ErrorRate)
	c.maybeAlert("p95_latency_ms", p95, c.thresholds.P95LatencyMs)
}

func (c *Collector) pushResponseTime(v float64) {
	c.responseTimes[c.rtHead] = v
	c.rtHead = (c.rtHead + 1) % maxResponseTimes
	if c.rtHead == 0 {
		c.rtFull = true
	}
}

func (c *Collector) snapshotResponseTimesLocked() []float64 {
	if !c.rtFull {
		return append([]float64(nil), c.responseTimes[:c.rtHead]...)
	}
	out := make([]float64, 0, maxResponseTimes)
	out = append(out, c.responseTimes[c.rtHead:]...)
	out = append(out, c.responseTimes[:c.rtHead]...)
	return out
}

func (c *Collector) percentileLocked(p float64) float64 {
	vals := c.snapshotResponseTimesLocked()
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func (c *Collector) errorRateLocked() float64 {
	if c.counters.RequestsTotal == 0 {
		return 0
	}
	return float64(c.counters.RequestsError) / float64(c.counters.RequestsTotal)
}

// RecordError records a typed, endpoint-scoped error plus a detail string
// into the recent-errors ring.
func (c *Collector) RecordError(errType, endpoint, details string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByType[errType]++
	c.errorsByEndpoint[endpoint]++
	c.recentErrors = append(c.recentErrors, ErrorRecord{Type: errType, Endpoint: endpoint, Details: details, Timestamp: c.now()})
	if len(c.recentErrors) > maxRecentErrors {
		c.recentErrors = c.recentErrors[len(c.recentErrors)-maxRecentErrors:]
	}
}

// IncrBrowserCreated/Reused/Recycled/Error, IncrCacheHit/Miss/Store and
// IncrRetryAttempt/Success/Failure/CircuitRejection are thin counters used by
// the pool/cache/retry packages.
func (c *Collector) IncrBrowserCreated()        { c.mu.Lock(); c.counters.BrowserCreated++; c.mu.Unlock() }
func (c *Collector) IncrBrowserReused()         { c.mu.Lock(); c.counters.BrowserReused++; c.mu.Unlock() }
func (c *Collector) IncrBrowserRecycled()       { c.mu.Lock(); c.counters.BrowserRecycled++; c.mu.Unlock() }
func (c *Collector) IncrBrowserError()          { c.mu.Lock(); c.counters.BrowserErrors++; c.mu.Unlock() }
func (c *Collector) IncrCacheHit()              { c.mu.Lock(); c.counters.CacheHits++; c.mu.Unlock() }
func (c *Collector) IncrCacheMiss()             { c.mu.Lock(); c.counters.CacheMisses++; c.mu.Unlock() }
func (c *Collector) IncrCacheStore()            { c.mu.Lock(); c.counters.CacheStores++; c.mu.Unlock() }
func (c *Collector) IncrRetryAttempt()          { c.mu.Lock(); c.counters.RetryAttempts++; c.mu.Unlock() }
func (c *Collector) IncrRetrySuccess()          { c.mu.Lock(); c.counters.RetrySuccesses++; c.mu.Unlock() }
func (c *Collector) IncrRetryFailure()          { c.mu.Lock(); c.counters.RetryFailures++; c.mu.Unlock() }
func (c *Collector) IncrCircuitBreakerRejected() {
	c.mu.Lock()
	c.counters.CircuitBreakerRejections++
	c.mu.Unlock()
}

// UpdatePoolStats/UpdateCacheStats store the latest snapshot maps reported by
// the browser pool / caches, surfaced verbatim via GetMetrics.
func (c *Collector) UpdatePoolStats(snapshot map[string]any) {
	c.mu.Lock()
	c.poolSnapshot = snapshot
	usage, hasUsage := snapshot["utilization"].(float64)
	c.mu.Unlock()

	if hasUsage {
		c.maybeAlert("pool_usage", usage, c.thresholds.PoolUsage)
	}
}

func (c *Collector) UpdateCacheStats(snapshot map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheSnapshot = snapshot
}

// RecordMemoryUsage lets the caller feed a process memory fraction in for
// alert evaluation (the collector doesn't sample memory itself).
func (c *Collector) RecordMemoryUsage(fraction float64) {
	c.maybeAlert("memory_usage", fraction, c.thresholds.MemoryUsage)
}

// AppendTimeSeries appends one point to the (metricType,name) series.
func (c *Collector) AppendTimeSeries(metricType, name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := metricType + "|" + name
	c.series[key] = append(c.series[key], TimeSeriesPoint{Timestamp: c.now(), Value: value})
	// Coarse, unbounded growth is explicitly out of scope per spec §4.11;
	// prune anything older than 24h to keep memory bounded in long-lived processes.
	cutoff := c.now().Add(-24 * time.Hour)
	pruned := c.series[key][:0]
	for _, p := range c.series[key] {
		if p.Timestamp.After(cutoff) {
			pruned = append(pruned, p)
		}
	}
	c.series[key] = pruned
}

// GetTimeSeries returns the points for (metricType,name) within [start,end].
func (c *Collector) GetTimeSeries(metricType, name string, start, end time.Time) []TimeSeriesPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := metricType + "|" + name
	var out []TimeSeriesPoint
	for _, p := range c.series[key] {
		if !p.Timestamp.Before(start) && !p.Timestamp.After(end) {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot is the full point-in-time metrics payload returned by GetMetrics.
type Snapshot struct {
	Counters         Counters
	P50, P95, P99    float64
	ErrorsByType     map[string]int64
	ErrorsByEndpoint map[string]int64
	RecentErrors     []ErrorRecord
	PoolStats        map[string]any
	CacheStats       map[string]any
}

// GetMetrics returns a consistent snapshot of every tracked metric.
func (c *Collector) GetMetrics() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Counters:         c.counters,
		P50:              c.percentileLocked(0.50),
		P95:              c.percentileLocked(0.95),
		P99:              c.percentileLocked(0.99),
		ErrorsByType:     copyMap(c.errorsByType),
		ErrorsByEndpoint: copyMap(c.errorsByEndpoint),
		RecentErrors:     append([]ErrorRecord(nil), c.recentErrors...),
		PoolStats:        c.poolSnapshot,
		CacheStats:       c.cacheSnapshot,
	}
}

func copyMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RegisterAlertHandler subscribes fn to every future threshold breach.
func (c *Collector) RegisterAlertHandler(fn AlertHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

func (c *Collector) maybeAlert(kind string, value, limit float64) {
	if value <= limit {
		return
	}
	c.mu.Lock()
	handlers := append([]AlertHandler(nil), c.handlers...)
	c.mu.Unlock()

	alert := Alert{Kind: kind, Value: value, Limit: limit, At: c.now()}
	for _, h := range handlers {
		h(alert)
	}
}
