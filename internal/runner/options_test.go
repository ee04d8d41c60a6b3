package runner

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		validate func(*testing.T, Options)
	}{
		{
			name:  "defaults",
			input: Options{},
			validate: func(t *testing.T, o Options) {
				if o.Workers != 1 {
					t.Errorf("Workers = %d, want 1", o.Workers)
				}
				if o.ArrivalModel != ArrivalModelUniform {
					t.Errorf("ArrivalModel = %q, want %q", o.ArrivalModel, ArrivalModelUniform)
				}
				if o.ShutdownTimeout != DefaultShutdownTimeout {
					t.Errorf("ShutdownTimeout = %v, want %v", o.ShutdownTimeout, DefaultShutdownTimeout)
				}
				if o.RandomSeed == 0 {
					t.Error("RandomSeed should be non-zero")
				}
				if o.LimiterFactory == nil {
					t.Error("LimiterFactory should not be nil")
				}
				if o.Logger == nil {
					t.Error("Logger should not be nil")
				}
			},
		},
		{
			name: "negative values corrected",
			input: Options{
				Workers:   -5,
				Grace:     -time.Second,
				SpawnRate: -1,
			},
			validate: func(t *testing.T, o Options) {
				if o.Workers != 1 {
					t.Errorf("Workers = %d, want 1", o.Workers)
				}
				if o.Grace != 0 {
					t.Errorf("Grace = %v, want 0", o.Grace)
				}
				if o.SpawnRate != 0 {
					t.Errorf("SpawnRate = %v, want 0", o.SpawnRate)
				}
			},
		},
		{
			name:  "disable threading forces one worker",
			input: Options{Workers: 10, DisableThreading: true},
			validate: func(t *testing.T, o Options) {
				if o.Workers != 1 {
					t.Errorf("Workers = %d, want 1", o.Workers)
				}
			},
		},
		{
			name:  "preserves valid values",
			input: Options{Workers: 10, SpawnRate: 2.5, ArrivalModel: ArrivalModelPoisson, RandomSeed: 42},
			validate: func(t *testing.T, o Options) {
				if o.Workers != 10 {
					t.Errorf("Workers = %d, want 10", o.Workers)
				}
				if o.ArrivalModel != ArrivalModelPoisson {
					t.Errorf("ArrivalModel = %q, want poisson", o.ArrivalModel)
				}
				if o.RandomSeed != 42 {
					t.Errorf("RandomSeed = %d, want 42", o.RandomSeed)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()
			tt.validate(t, opts)
		})
	}
}

func TestDefaultLimiterFactory(t *testing.T) {
	opts := Options{}
	opts.normalize()

	if lim := opts.LimiterFactory(0); lim.Limit() != rate.Inf {
		t.Errorf("LimiterFactory(0).Limit() = %v, want Inf", lim.Limit())
	}
	lim := opts.LimiterFactory(4)
	if lim.Limit() != rate.Limit(4) {
		t.Errorf("Limit() = %v, want 4", lim.Limit())
	}
	if lim.Burst() != 1 {
		t.Errorf("Burst() = %d, want 1", lim.Burst())
	}
}
