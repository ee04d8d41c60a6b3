package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/worker"
)

// Counts are action totals gathered while the pool ran.
type Counts struct {
	Navigations        int64
	NavigationFailures int64
	DNSQueries         int64
	DNSFailures        int64
}

// Report captures execution summary.
type Report struct {
	Launched      int
	StartFailures int // workers that could not acquire a navigator
	Errors        int // workers that returned any other error
	Counts
	Elapsed time.Duration
	// GraceExpired is set when workers were still running after the grace
	// window and had to be cancelled.
	GraceExpired bool
	// Interrupted is set when the caller's context ended the run.
	Interrupted bool
	// Abandoned counts workers that had not returned when the shutdown
	// timeout elapsed.
	Abandoned int
}

// Pool runs a fixed number of workers and joins them.
type Pool struct {
	opt     Options
	arrival arrivalController
}

func New(opt Options) *Pool {
	opt.normalize()
	return &Pool{opt: opt, arrival: newArrivalController(opt)}
}

// Run launches the workers and returns when all of them finished, the caller's
// context ended, or the grace window elapsed. In the last two cases the
// remaining workers are cancelled and given ShutdownTimeout to release their
// sessions.
func (p *Pool) Run(ctx context.Context) Report {
	start := time.Now()
	var rep Report

	if p.opt.DisableThreading {
		rep = p.runInline(ctx)
	} else {
		rep = p.runConcurrent(ctx)
	}

	rep.Elapsed = time.Since(start)
	if p.opt.Counts != nil {
		rep.Counts = p.opt.Counts()
	}
	return rep
}

func (p *Pool) runInline(ctx context.Context) Report {
	rep := Report{Launched: 1}
	runCtx := ctx
	if p.opt.Grace > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opt.Grace)
		defer cancel()
	}
	p.opt.Logger.Info("running single worker in the foreground")
	p.classify(runCtx, &rep, p.opt.Worker.Run(runCtx, 0))
	switch {
	case ctx.Err() != nil:
		rep.Interrupted = true
	case runCtx.Err() != nil:
		rep.GraceExpired = true
	}
	return rep
}

func (p *Pool) runConcurrent(ctx context.Context) Report {
	var rep Report
	var startFailures, errs, running atomic.Int64

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < p.opt.Workers; i++ {
		if p.arrival != nil {
			if err := p.arrival.Wait(workerCtx); err != nil {
				break
			}
		}
		wg.Add(1)
		running.Add(1)
		rep.Launched++
		go func(id int) {
			defer wg.Done()
			defer running.Add(-1)
			var r Report
			p.classify(workerCtx, &r, p.opt.Worker.Run(workerCtx, id))
			startFailures.Add(int64(r.StartFailures))
			errs.Add(int64(r.Errors))
		}(i)
	}
	p.opt.Logger.Info("workers launched", zap.Int("workers", rep.Launched))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var grace <-chan time.Time
	if p.opt.Grace > 0 {
		timer := time.NewTimer(p.opt.Grace)
		defer timer.Stop()
		grace = timer.C
	}

	select {
	case <-done:
	case <-ctx.Done():
		rep.Interrupted = true
		p.opt.Logger.Info("run interrupted, stopping workers")
	case <-grace:
		rep.GraceExpired = true
		p.opt.Logger.Warn("grace window elapsed, cancelling remaining workers", zap.Duration("grace", p.opt.Grace))
	}

	if rep.Interrupted || rep.GraceExpired {
		cancel()
		shutdown := time.NewTimer(p.opt.ShutdownTimeout)
		defer shutdown.Stop()
		select {
		case <-done:
		case <-shutdown.C:
			// workers still blocked in a navigator call are left behind
			rep.Abandoned = int(running.Load())
			p.opt.Logger.Error("workers did not stop in time",
				zap.Int("abandoned", rep.Abandoned),
				zap.Duration("timeout", p.opt.ShutdownTimeout))
		}
	}

	rep.StartFailures = int(startFailures.Load())
	rep.Errors = int(errs.Load())
	return rep
}

// classify counts a worker's result. Errors caused by the run stopping are
// not failures.
func (p *Pool) classify(ctx context.Context, rep *Report, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}
	var acqErr *worker.AcquireError
	if errors.As(err, &acqErr) {
		rep.StartFailures++
		return
	}
	rep.Errors++
	p.opt.Logger.Warn("worker failed", zap.Error(err))
}
