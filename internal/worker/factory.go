package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/dnsinject"
	"github.com/torosent/trafficgen/internal/navigator"
	"github.com/torosent/trafficgen/internal/schedule"
)

// seedStride separates per-worker seeds derived from one base seed.
const seedStride = 7919

// Factory builds workers that share a navigator, resolver and reporter but
// own their random source and scheduler.
type Factory struct {
	Settings  Settings
	Navigator navigator.Navigator
	Resolver  dnsinject.Resolver
	Clock     schedule.Clock
	Reporter  Reporter
	Logger    *zap.Logger
	// Seed makes runs reproducible; 0 derives the base seed from the clock.
	Seed    int64
	OnPhase func(id int, p Phase)

	seedOnce sync.Once
	base     int64
}

func (f *Factory) baseSeed() int64 {
	f.seedOnce.Do(func() {
		f.base = f.Seed
		if f.base == 0 {
			f.base = time.Now().UnixNano()
		}
	})
	return f.base
}

// New builds worker id with its own seeded random source.
func (f *Factory) New(id int) *Worker {
	return f.build(id, schedule.NewRand(f.baseSeed()+int64(id)*seedStride))
}

func (f *Factory) build(id int, rnd schedule.RandSource) *Worker {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int("worker", id))

	clock := f.Clock
	if clock == nil {
		clock = schedule.RealClock{}
	}
	reporter := f.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	resolver := f.Resolver
	if resolver == nil {
		resolver = dnsinject.NewNetResolver(0)
	}

	return &Worker{
		id:        id,
		settings:  f.Settings,
		nav:       f.Navigator,
		selector:  NewSelector(f.Settings.VisitMode, f.Settings.URLs, rnd),
		injector:  dnsinject.New(f.Settings.Resolvers, resolver, rnd, logger),
		scheduler: schedule.New(rnd, logger),
		clock:     clock,
		reporter:  reporter,
		logger:    logger,
		onPhase:   f.OnPhase,
	}
}

// Run builds and runs worker id. It satisfies runner.Worker.
func (f *Factory) Run(ctx context.Context, id int) error {
	return f.New(id).Run(ctx)
}
