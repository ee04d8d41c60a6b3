// Package worker runs a single simulated user: acquire a browser session,
// load pages at jittered intervals, interleave DNS lookups, release.
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/config"
	"github.com/torosent/trafficgen/internal/dnsinject"
	"github.com/torosent/trafficgen/internal/navigator"
	"github.com/torosent/trafficgen/internal/schedule"
	"github.com/torosent/trafficgen/internal/tracing"
)

// Phase is a worker's lifecycle stage.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseRunning
	PhaseStopping
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Settings is the run-wide, read-only input every worker shares.
type Settings struct {
	URLs         []string
	Resolvers    []string
	RefreshRate  time.Duration
	Jitter       time.Duration
	Duration     time.Duration // 0 runs until cancelled
	DNSFrequency int
	VisitMode    config.VisitMode
}

// SettingsFromConfig extracts worker settings from a validated config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		URLs:         cfg.Targets(),
		Resolvers:    cfg.Resolvers,
		RefreshRate:  cfg.RefreshRate,
		Jitter:       cfg.Jitter,
		Duration:     cfg.Duration,
		DNSFrequency: cfg.DNSFrequency,
		VisitMode:    cfg.VisitMode,
	}
}

// Worker is one simulated user. A Worker is used by a single goroutine.
type Worker struct {
	id        int
	settings  Settings
	nav       navigator.Navigator
	selector  Selector
	injector  *dnsinject.Injector
	scheduler *schedule.Scheduler
	clock     schedule.Clock
	reporter  Reporter
	logger    *zap.Logger
	onPhase   func(id int, p Phase)
	phase     atomic.Int32
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) Phase() Phase { return Phase(w.phase.Load()) }

func (w *Worker) setPhase(p Phase) {
	w.phase.Store(int32(p))
	if w.onPhase != nil {
		w.onPhase(w.id, p)
	}
}

// Run drives the worker until its deadline passes or ctx is cancelled. The
// session is released exactly once on every path after a successful acquire.
func (w *Worker) Run(ctx context.Context) (err error) {
	w.setPhase(PhaseStarting)
	ctx = tracing.WithWorker(ctx, w.id)

	started := w.clock.Now()
	session, err := w.nav.Acquire(ctx)
	w.reporter.Report(Event{
		Worker:  w.id,
		Kind:    EventAcquire,
		Latency: w.clock.Now().Sub(started),
		Err:     err,
		At:      started,
		Stopped: err != nil && ctx.Err() != nil,
	})
	if err != nil {
		w.logger.Error("could not start browser", zap.Error(err))
		w.setPhase(PhaseTerminated)
		return &AcquireError{Worker: w.id, Err: err}
	}

	logger := w.logger.With(zap.String("session", session.ID()))
	defer func() {
		w.setPhase(PhaseStopping)
		releasedAt := w.clock.Now()
		relErr := session.Release()
		w.reporter.Report(Event{
			Worker:  w.id,
			Session: session.ID(),
			Kind:    EventRelease,
			Latency: w.clock.Now().Sub(releasedAt),
			Err:     relErr,
			At:      releasedAt,
		})
		if relErr != nil {
			logger.Warn("browser did not shut down cleanly", zap.Error(relErr))
		}
		w.setPhase(PhaseTerminated)
		logger.Debug("worker finished")
	}()

	w.setPhase(PhaseRunning)
	refresh, jitter := w.settings.RefreshRate, w.settings.Jitter
	// Browser startup does not count against the run duration.
	deadline := schedule.NewDeadline(w.clock.Now(), w.settings.Duration, refresh, jitter)
	var current string

	for ctx.Err() == nil && deadline.Allows(w.clock.Now(), refresh) {
		target := w.selector.Next()
		current = w.visit(ctx, session, logger, target, current)
		if ctx.Err() != nil {
			break
		}

		if lookup, issued := w.injector.MaybeQuery(ctx, w.settings.DNSFrequency, w.settings.URLs); issued {
			w.reporter.Report(Event{
				Worker:  w.id,
				Session: session.ID(),
				Kind:    EventDNS,
				Target:  lookup.Host,
				Server:  lookup.Server,
				Latency: lookup.Latency,
				Err:     lookup.Err,
				At:      w.clock.Now(),
				Stopped: lookup.Err != nil && ctx.Err() != nil,
			})
		}

		var wait time.Duration
		wait, deadline = w.scheduler.Next(refresh, jitter, w.clock.Now(), deadline)
		logger.Debug("sleeping", zap.Duration("wait", wait), zap.Time("deadline", deadline.At))
		if err := w.clock.Sleep(ctx, wait); err != nil {
			break
		}
	}
	return nil
}

// visit loads target and returns the URL now loaded in the session. In
// round-robin mode a target that is already loaded is refreshed in place.
func (w *Worker) visit(ctx context.Context, session navigator.Session, logger *zap.Logger, target, current string) string {
	kind := EventNavigate
	started := w.clock.Now()
	var err error
	if w.settings.VisitMode == config.VisitModeRoundRobin && target == current {
		kind = EventRefresh
		err = session.Refresh(ctx)
	} else {
		err = session.Navigate(ctx, target)
	}
	w.reporter.Report(Event{
		Worker:  w.id,
		Session: session.ID(),
		Kind:    kind,
		Target:  target,
		Latency: w.clock.Now().Sub(started),
		Err:     err,
		At:      started,
		Stopped: err != nil && ctx.Err() != nil,
	})

	switch {
	case err == nil:
		logger.Info("page loaded", zap.String("action", string(kind)), zap.String("url", target))
		return target
	case ctx.Err() != nil:
		return current
	default:
		logger.Warn("page load failed", zap.String("action", string(kind)), zap.String("url", target), zap.Error(err))
		if kind == EventRefresh {
			return current
		}
		return ""
	}
}
