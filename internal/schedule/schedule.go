// Package schedule computes when a simulated user acts next.
//
// A [Scheduler] turns a nominal refresh rate and a jitter bound into the next
// sleep interval, never sleeping less than [MinInterval] and never pushing a
// positive jitter past a finite deadline. Unbounded runs use a rolling
// [Deadline] that is pushed forward by refresh+jitter+[RollingSlack] whenever
// the worker would otherwise stop.
package schedule

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
)

const (
	// MinInterval is the shortest sleep a worker is ever asked to take.
	MinInterval = time.Second
	// RollingSlack is added on top of refresh+jitter when a rolling deadline advances.
	RollingSlack = 5 * time.Second
)

// RandSource is the subset of *rand.Rand the scheduler draws from.
type RandSource interface {
	Intn(n int) int
	Int63n(n int64) int64
}

// NewRand returns a RandSource seeded with seed.
func NewRand(seed int64) RandSource {
	return rand.New(rand.NewSource(seed))
}

// Deadline is a worker's stop threshold.
type Deadline struct {
	At      time.Time
	Rolling bool // duration=0: At is advanced instead of ending the run
}

// NewDeadline builds the deadline for a run starting at start. A zero duration
// yields a rolling deadline already one extension ahead of start.
func NewDeadline(start time.Time, duration, refresh, jitter time.Duration) Deadline {
	if duration <= 0 {
		return Deadline{At: start.Add(extension(refresh, jitter)), Rolling: true}
	}
	return Deadline{At: start.Add(duration)}
}

// Allows reports whether another iteration may start at now.
func (d Deadline) Allows(now time.Time, refresh time.Duration) bool {
	return now.Add(refresh).Before(d.At)
}

// Extend advances a rolling deadline until an iteration at now is allowed again.
// Each step moves the deadline by exactly refresh+jitter+RollingSlack. Finite
// deadlines are returned unchanged.
func (d Deadline) Extend(now time.Time, refresh, jitter time.Duration) Deadline {
	if !d.Rolling {
		return d
	}
	step := extension(refresh, jitter)
	for !d.Allows(now, refresh) {
		d.At = d.At.Add(step)
	}
	return d
}

func extension(refresh, jitter time.Duration) time.Duration {
	return refresh + jitter + RollingSlack
}

// Scheduler draws jittered intervals. It is not safe for concurrent use; each
// worker owns one.
type Scheduler struct {
	rnd    RandSource
	logger *zap.Logger
}

// New creates a Scheduler. A nil logger discards debug output.
func New(rnd RandSource, logger *zap.Logger) *Scheduler {
	if rnd == nil {
		rnd = NewRand(time.Now().UnixNano())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{rnd: rnd, logger: logger}
}

// Next returns how long to wait before the next action and the deadline to use
// from then on.
func (s *Scheduler) Next(refresh, jitter time.Duration, now time.Time, deadline Deadline) (time.Duration, Deadline) {
	nextJitter := s.drawJitter(jitter)
	plusMinus := s.rnd.Intn(101)

	var wait time.Duration
	if plusMinus < 50 {
		wait = refresh - nextJitter
		if wait < MinInterval {
			s.logger.Debug("jitter would drop interval below minimum, clamping",
				zap.Duration("interval", wait), zap.Duration("min", MinInterval))
			wait = MinInterval
		}
	} else {
		if !deadline.Rolling && now.Add(refresh+nextJitter).After(deadline.At) {
			s.logger.Debug("refresh plus jitter would exceed the stop time, truncating jitter",
				zap.Duration("jitter", nextJitter))
			nextJitter = deadline.At.Sub(now) - refresh
		}
		wait = refresh + nextJitter
		if wait < MinInterval {
			wait = MinInterval
		}
	}

	deadline = deadline.Extend(now.Add(wait), refresh, jitter)
	s.logger.Debug("next refresh scheduled", zap.Duration("wait", wait))
	return wait, deadline
}

func (s *Scheduler) drawJitter(jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return 0
	}
	ms := int64(jitter / time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return time.Duration(s.rnd.Int63n(ms+1)) * time.Millisecond
}
