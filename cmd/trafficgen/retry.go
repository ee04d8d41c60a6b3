package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/torosent/trafficgen/internal/navigator"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newRetryPolicy(retries int) navigator.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return navigator.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: navigator.RetryableError,
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			delay := baseRetryDelay << (attempt - 1)
			if delay <= 0 || delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			return delay + source.jitter(delay/2)
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
