package schedule

import (
	"context"
	"testing"
	"time"
)

// scriptedRand replays fixed draws: jitters feed Int63n, coins feed Intn.
type scriptedRand struct {
	jitters []int64
	coins   []int
}

func (s *scriptedRand) Int63n(n int64) int64 {
	v := s.jitters[0]
	s.jitters = s.jitters[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *scriptedRand) Intn(n int) int {
	v := s.coins[0]
	s.coins = s.coins[1:]
	return v
}

func TestNextNegativeBranchClampsToMinimum(t *testing.T) {
	rnd := &scriptedRand{jitters: []int64{10_000}, coins: []int{10}}
	s := New(rnd, nil)
	now := time.Unix(0, 0)
	wait, _ := s.Next(5*time.Second, 10*time.Second, now, Deadline{At: now.Add(time.Minute)})
	if wait != MinInterval {
		t.Fatalf("wait = %s, want %s", wait, MinInterval)
	}
}

func TestNextNegativeBranchSubtractsJitter(t *testing.T) {
	rnd := &scriptedRand{jitters: []int64{3_000}, coins: []int{49}}
	s := New(rnd, nil)
	now := time.Unix(0, 0)
	wait, _ := s.Next(20*time.Second, 10*time.Second, now, Deadline{At: now.Add(time.Minute)})
	if wait != 17*time.Second {
		t.Fatalf("wait = %s, want 17s", wait)
	}
}

func TestNextPositiveBranchAddsJitter(t *testing.T) {
	rnd := &scriptedRand{jitters: []int64{4_000}, coins: []int{50}}
	s := New(rnd, nil)
	now := time.Unix(0, 0)
	wait, _ := s.Next(20*time.Second, 10*time.Second, now, Deadline{At: now.Add(time.Minute)})
	if wait != 24*time.Second {
		t.Fatalf("wait = %s, want 24s", wait)
	}
}

func TestNextPositiveBranchTruncatesAtDeadline(t *testing.T) {
	rnd := &scriptedRand{jitters: []int64{10_000}, coins: []int{100}}
	s := New(rnd, nil)
	now := time.Unix(0, 0)
	deadline := Deadline{At: now.Add(25 * time.Second)}
	wait, got := s.Next(20*time.Second, 10*time.Second, now, deadline)
	if wait != 25*time.Second {
		t.Fatalf("wait = %s, want 25s", wait)
	}
	if !now.Add(wait).Equal(deadline.At) {
		t.Fatalf("now+wait = %s, want deadline %s", now.Add(wait), deadline.At)
	}
	if !got.At.Equal(deadline.At) {
		t.Fatalf("finite deadline moved to %s", got.At)
	}
}

func TestNextZeroJitterIsExact(t *testing.T) {
	s := New(NewRand(42), nil)
	now := time.Unix(0, 0)
	deadline := Deadline{At: now.Add(time.Hour)}
	for i := 0; i < 500; i++ {
		wait, _ := s.Next(7*time.Second, 0, now, deadline)
		if wait != 7*time.Second {
			t.Fatalf("iteration %d: wait = %s, want 7s", i, wait)
		}
	}
}

func TestNextIntervalProperties(t *testing.T) {
	tests := []struct {
		refresh time.Duration
		jitter  time.Duration
		window  time.Duration
	}{
		{1 * time.Second, 0, time.Minute},
		{1 * time.Second, 5 * time.Second, time.Minute},
		{5 * time.Second, 5 * time.Second, 30 * time.Second},
		{20 * time.Second, 10 * time.Second, 60 * time.Second},
		{3 * time.Second, 30 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		s := New(NewRand(7), nil)
		now := time.Unix(1000, 0)
		deadline := Deadline{At: now.Add(tt.window)}
		for i := 0; i < 1000; i++ {
			wait, _ := s.Next(tt.refresh, tt.jitter, now, deadline)
			if wait < MinInterval {
				t.Fatalf("refresh=%s jitter=%s: wait %s below minimum", tt.refresh, tt.jitter, wait)
			}
			if wait > tt.refresh && now.Add(wait).After(deadline.At) {
				t.Fatalf("refresh=%s jitter=%s: positive wait %s overshoots deadline", tt.refresh, tt.jitter, wait)
			}
			if wait > tt.refresh+tt.jitter {
				t.Fatalf("refresh=%s jitter=%s: wait %s exceeds refresh+jitter", tt.refresh, tt.jitter, wait)
			}
		}
	}
}

func TestRollingDeadlineAdvancesByFixedStep(t *testing.T) {
	start := time.Unix(0, 0)
	refresh := 5 * time.Second
	d := NewDeadline(start, 0, refresh, 0)
	if !d.Rolling {
		t.Fatal("expected rolling deadline for zero duration")
	}
	step := refresh + RollingSlack

	s := New(NewRand(1), nil)
	now := start
	prev := d.At
	extensions := 0
	for i := 0; i < 100; i++ {
		if !d.Allows(now, refresh) {
			t.Fatalf("iteration %d: rolling deadline stopped the run", i)
		}
		var wait time.Duration
		wait, d = s.Next(refresh, 0, now, d)
		if d.At.Before(prev) {
			t.Fatalf("deadline moved backwards: %s -> %s", prev, d.At)
		}
		if diff := d.At.Sub(prev); diff%step != 0 {
			t.Fatalf("deadline advanced by %s, not a multiple of %s", diff, step)
		}
		if d.At.After(prev) {
			extensions++
		}
		prev = d.At
		now = now.Add(wait)
	}
	if extensions == 0 {
		t.Fatal("expected the rolling deadline to advance")
	}
}

func TestFiniteDeadlineDoesNotExtend(t *testing.T) {
	start := time.Unix(0, 0)
	d := NewDeadline(start, 60*time.Second, 20*time.Second, 10*time.Second)
	if d.Rolling {
		t.Fatal("finite duration produced rolling deadline")
	}
	late := start.Add(59 * time.Second)
	if got := d.Extend(late, 20*time.Second, 10*time.Second); !got.At.Equal(d.At) {
		t.Fatalf("Extend moved finite deadline to %s", got.At)
	}
	if d.Allows(late, 20*time.Second) {
		t.Fatal("Allows should reject an iteration that cannot finish before the deadline")
	}
}

func TestRealClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := (RealClock{}).Sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled sleep blocked")
	}
}
