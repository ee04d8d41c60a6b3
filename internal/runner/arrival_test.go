package runner

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPoissonArrivalNextDelayUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }, rate: 200}
	delay := ctrl.nextDelay()
	expected := time.Second / 200
	if delay != expected {
		t.Fatalf("expected delay %s, got %s", expected, delay)
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }, rate: 0.000001}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestNewArrivalControllerSelection(t *testing.T) {
	opt := Options{}
	opt.normalize()
	if ctrl := newArrivalController(opt); ctrl != nil {
		t.Fatalf("zero spawn rate should not pace, got %T", ctrl)
	}

	opt.SpawnRate = 5
	if _, ok := newArrivalController(opt).(*uniformArrival); !ok {
		t.Fatal("uniform model should use a rate limiter")
	}

	opt.ArrivalModel = ArrivalModelPoisson
	if _, ok := newArrivalController(opt).(*poissonArrival); !ok {
		t.Fatal("poisson model should sample delays")
	}
}

func TestUniformArrivalSpacesStarts(t *testing.T) {
	ctrl := &uniformArrival{limiter: rate.NewLimiter(rate.Limit(50), 1)}
	start := time.Now()
	for i := 0; i < 6; i++ {
		if err := ctrl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// first start is immediate, the other five are 20ms apart
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("6 starts at 50/s took %v, want >= 80ms", elapsed)
	}
}
