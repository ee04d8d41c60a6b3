package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/torosent/trafficgen/internal/dnsinject"
	"github.com/torosent/trafficgen/internal/navigator"
	"github.com/torosent/trafficgen/internal/worker"
)

// Collector aggregates worker events in a thread-safe manner. It implements
// worker.Reporter.
type Collector struct {
	mu    sync.Mutex
	start time.Time

	loads       *bucket
	navigations int64
	refreshes   int64
	targets     map[string]*bucket

	dns        *bucket
	dnsServers map[string]*bucket

	acquired        int64
	acquireFailures int64
	released        int64
	acquireLatency  *bucket

	errorsByType  map[string]int64
	failureCodes  map[string]map[string]int
	history       []DataPoint
	lastSnapTotal int64
	lastSnapAt    time.Time
}

// LatencyStats summarises one stream of timed actions.
type LatencyStats struct {
	Total       int64         `json:"total"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P90Latency  time.Duration `json:"-"`
	P95Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
}

// SessionStats counts browser session lifecycle events.
type SessionStats struct {
	Acquired        int64        `json:"acquired"`
	AcquireFailures int64        `json:"acquire_failures"`
	Released        int64        `json:"released"`
	Active          int64        `json:"active"`
	Startup         LatencyStats `json:"startup"`
}

// Stats represents aggregated metrics. The embedded LatencyStats cover page
// loads, navigations and refreshes together.
type Stats struct {
	LatencyStats
	Navigations int64                   `json:"navigations"`
	Refreshes   int64                   `json:"refreshes"`
	Duration    time.Duration           `json:"-"`
	DurationMs  float64                 `json:"duration_ms"`
	PagesPerSec float64                 `json:"pages_per_sec"`
	Targets     map[string]LatencyStats `json:"targets,omitempty"`
	DNS         LatencyStats            `json:"dns"`
	DNSServers  map[string]LatencyStats `json:"dns_servers,omitempty"`
	Sessions    SessionStats            `json:"sessions"`
	Errors      map[string]int          `json:"errors,omitempty"`
	// StatusBuckets maps event kind to failure code to count.
	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty"`
}

// DataPoint is one sample of the time series kept for charts.
type DataPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalLoads     int64     `json:"total_loads"`
	Failures       int64     `json:"failures"`
	PagesPerSec    float64   `json:"pages_per_sec"`
	P50LatencyMs   float64   `json:"p50_latency_ms"`
	P95LatencyMs   float64   `json:"p95_latency_ms"`
	P99LatencyMs   float64   `json:"p99_latency_ms"`
	DNSQueries     int64     `json:"dns_queries"`
	ActiveSessions int64     `json:"active_sessions"`
}

// Totals are the headline counters the pool copies into its report.
type Totals struct {
	PageLoads        int64
	PageLoadFailures int64
	DNSQueries       int64
	DNSFailures      int64
}

func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		start:          now,
		lastSnapAt:     now,
		loads:          newBucket(),
		targets:        make(map[string]*bucket),
		dns:            newBucket(),
		dnsServers:     make(map[string]*bucket),
		acquireLatency: newBucket(),
		errorsByType:   make(map[string]int64),
		failureCodes:   make(map[string]map[string]int),
	}
}

// Start resets the clock used for rates and history.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.lastSnapAt = c.start
}

// Report records one worker event. Actions cut short by the end of the run
// are not counted.
func (c *Collector) Report(e worker.Event) {
	if e.Stopped {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case worker.EventAcquire:
		if e.Err != nil {
			c.acquireFailures++
		} else {
			c.acquired++
		}
		c.acquireLatency.record(e.Latency, e.Err)
	case worker.EventRelease:
		c.released++
	case worker.EventNavigate, worker.EventRefresh:
		if e.Kind == worker.EventNavigate {
			c.navigations++
		} else {
			c.refreshes++
		}
		c.loads.record(e.Latency, e.Err)
		target := c.targets[e.Target]
		if target == nil {
			target = newBucket()
			c.targets[e.Target] = target
		}
		target.record(e.Latency, e.Err)
	case worker.EventDNS:
		c.dns.record(e.Latency, e.Err)
		if e.Server != "" {
			server := c.dnsServers[e.Server]
			if server == nil {
				server = newBucket()
				c.dnsServers[e.Server] = server
			}
			server.record(e.Latency, e.Err)
		}
	}

	if e.Err != nil {
		c.errorsByType[errorType(e.Err)]++
		codes := c.failureCodes[string(e.Kind)]
		if codes == nil {
			codes = make(map[string]int)
			c.failureCodes[string(e.Kind)] = codes
		}
		codes[FailureCode(e.Err)]++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		LatencyStats: c.loads.stats(),
		Navigations:  c.navigations,
		Refreshes:    c.refreshes,
		Duration:     elapsed,
		DurationMs:   toMs(elapsed),
		DNS:          c.dns.stats(),
		Sessions: SessionStats{
			Acquired:        c.acquired,
			AcquireFailures: c.acquireFailures,
			Released:        c.released,
			Active:          c.acquired - c.released,
			Startup:         c.acquireLatency.stats(),
		},
	}
	if elapsed > 0 && stats.Total > 0 {
		stats.PagesPerSec = float64(stats.Total) / elapsed.Seconds()
	}

	if len(c.targets) > 0 {
		stats.Targets = make(map[string]LatencyStats, len(c.targets))
		for name, b := range c.targets {
			stats.Targets[name] = b.stats()
		}
	}
	if len(c.dnsServers) > 0 {
		stats.DNSServers = make(map[string]LatencyStats, len(c.dnsServers))
		for name, b := range c.dnsServers {
			stats.DNSServers[name] = b.stats()
		}
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.failureCodes) > 0 {
		stats.StatusBuckets = make(map[string]map[string]int, len(c.failureCodes))
		for kind, codes := range c.failureCodes {
			copied := make(map[string]int, len(codes))
			for code, n := range codes {
				copied[code] = n
			}
			stats.StatusBuckets[kind] = copied
		}
	}

	return stats
}

// Totals returns the headline counters.
func (c *Collector) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Totals{
		PageLoads:        c.loads.total(),
		PageLoadFailures: c.loads.failures,
		DNSQueries:       c.dns.total(),
		DNSFailures:      c.dns.failures,
	}
}

// Snapshot appends a point to the history. Call it periodically.
func (c *Collector) Snapshot() DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	total := c.loads.total()
	point := DataPoint{
		Timestamp:      now,
		TotalLoads:     total,
		Failures:       c.loads.failures,
		P50LatencyMs:   toMs(c.loads.quantile(50)),
		P95LatencyMs:   toMs(c.loads.quantile(95)),
		P99LatencyMs:   toMs(c.loads.quantile(99)),
		DNSQueries:     c.dns.total(),
		ActiveSessions: c.acquired - c.released,
	}
	if window := now.Sub(c.lastSnapAt); window > 0 {
		point.PagesPerSec = float64(total-c.lastSnapTotal) / window.Seconds()
	}
	c.lastSnapTotal = total
	c.lastSnapAt = now
	c.history = append(c.history, point)
	return point
}

// History returns a copy of the recorded time series.
func (c *Collector) History() []DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DataPoint(nil), c.history...)
}

// GetErrorBreakdown returns a map of error types to their counts.
func (c *Collector) GetErrorBreakdown() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int)
	for k, v := range c.errorsByType {
		result[k] = int(v)
	}
	return result
}

// FailureCode classifies err for the status buckets: the HTTP status for
// error responses, "timeout" for deadlines, "resolution" for failed lookups.
func FailureCode(err error) string {
	var status *navigator.StatusError
	var resErr *dnsinject.ResolutionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &status):
		return strconv.Itoa(status.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &resErr):
		return "resolution"
	default:
		return "error"
	}
}

// errorType names the cause below the navigation and acquire wrappers so
// that breakdowns are more specific than "NavigationError".
func errorType(err error) string {
	var navErr *navigator.NavigationError
	if errors.As(err, &navErr) && navErr.Err != nil {
		err = navErr.Err
	}
	typeName := fmt.Sprintf("%T", err)
	if len(typeName) > 40 {
		typeName = typeName[len(typeName)-40:]
	}
	return typeName
}
