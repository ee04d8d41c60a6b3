package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/trafficgen/internal/metrics"
)

// ProgressReporter displays real-time progress updates and samples the
// collector's history on every tick.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			point := p.collector.Snapshot()
			fmt.Fprint(p.writer, progressLine(time.Since(p.start), point))
		case <-p.done:
			return
		}
	}
}

func progressLine(elapsed time.Duration, point metrics.DataPoint) string {
	return fmt.Sprintf("\r[%s] Browsers: %d | Page loads: %d | Failures: %d | Pages/s: %.2f | P95: %.0fms | DNS: %d",
		elapsed.Truncate(time.Second),
		point.ActiveSessions,
		point.TotalLoads,
		point.Failures,
		point.PagesPerSec,
		point.P95LatencyMs,
		point.DNSQueries,
	)
}
