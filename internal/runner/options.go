package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Worker runs one simulated user until it finishes or ctx is cancelled.
type Worker interface {
	Run(ctx context.Context, id int) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, id int) error

func (f WorkerFunc) Run(ctx context.Context, id int) error { return f(ctx, id) }

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// DefaultShutdownTimeout bounds how long Run waits for cancelled workers.
const DefaultShutdownTimeout = 30 * time.Second

// Options configure the Pool.
type Options struct {
	Workers          int           // number of simulated users
	DisableThreading bool          // run exactly one worker in the caller's goroutine
	Grace            time.Duration // how long to wait for workers before cancelling them (0 means until ctx ends)
	ShutdownTimeout  time.Duration // how long to wait for workers after cancelling them
	SpawnRate        float64       // workers started per second (0 means all at once)
	ArrivalModel     ArrivalModel  // spacing of worker starts when SpawnRate > 0
	Worker           Worker        // worker executor (required)
	Logger           *zap.Logger
	// Counts reports action totals for the final Report; optional.
	Counts         func() Counts
	LimiterFactory func(rps float64) *rate.Limiter // optional injection for tests
	RandomSeed     int64
	PoissonSampler func() float64
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.DisableThreading {
		o.Workers = 1
	}
	if o.Grace < 0 {
		o.Grace = 0
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.SpawnRate < 0 {
		o.SpawnRate = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one so starts are evenly spaced.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
