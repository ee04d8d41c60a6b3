// Package runner launches and joins the pool of simulated users.
//
// A [Pool] starts Options.Workers copies of a [Worker], optionally paced by a
// spawn rate using a uniform or Poisson arrival model, and waits for them to
// finish. When Options.Grace is set the pool cancels workers that are still
// running once the grace window has elapsed after the last launch, then waits
// up to Options.ShutdownTimeout for them to release their sessions.
//
//	pool := runner.New(runner.Options{
//		Workers: 10,
//		Grace:   80 * time.Second,
//		Worker:  factory,
//	})
//	report := pool.Run(ctx)
//
// With DisableThreading set exactly one worker runs in the caller's
// goroutine.
package runner
