package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Track latencies from 1µs up to 5 minutes with 3 significant figures.
const (
	lowestLatencyUs  = 1
	highestLatencyUs = 300_000_000
)

// bucket aggregates one stream of timed actions. Callers hold the
// collector lock.
type bucket struct {
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
}

func newBucket() *bucket {
	return &bucket{hist: hdrhistogram.New(lowestLatencyUs, highestLatencyUs, 3)}
}

func (b *bucket) record(latency time.Duration, err error) {
	if latency > 0 {
		us := latency.Microseconds()
		if us < b.hist.LowestTrackableValue() {
			us = b.hist.LowestTrackableValue()
		}
		if us > b.hist.HighestTrackableValue() {
			us = b.hist.HighestTrackableValue()
		}
		_ = b.hist.RecordValue(us)
	}
	b.sumLatency += latency

	if b.minLatency == 0 || latency < b.minLatency {
		b.minLatency = latency
	}
	if latency > b.maxLatency {
		b.maxLatency = latency
	}

	if err == nil {
		b.successes++
	} else {
		b.failures++
	}
}

func (b *bucket) total() int64 { return b.successes + b.failures }

func (b *bucket) quantile(q float64) time.Duration {
	if b.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(b.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (b *bucket) stats() LatencyStats {
	s := LatencyStats{
		Total:      b.total(),
		Successes:  b.successes,
		Failures:   b.failures,
		MinLatency: b.minLatency,
		MaxLatency: b.maxLatency,
		P50Latency: b.quantile(50),
		P90Latency: b.quantile(90),
		P95Latency: b.quantile(95),
		P99Latency: b.quantile(99),
	}
	if s.Total > 0 {
		s.MeanLatency = time.Duration(int64(b.sumLatency) / s.Total)
	}
	s.MinLatencyMs = toMs(s.MinLatency)
	s.MaxLatencyMs = toMs(s.MaxLatency)
	s.MeanLatencyMs = toMs(s.MeanLatency)
	s.P50LatencyMs = toMs(s.P50Latency)
	s.P90LatencyMs = toMs(s.P90Latency)
	s.P95LatencyMs = toMs(s.P95Latency)
	s.P99LatencyMs = toMs(s.P99Latency)
	return s
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
