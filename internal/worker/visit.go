package worker

import (
	"github.com/torosent/trafficgen/internal/config"
	"github.com/torosent/trafficgen/internal/schedule"
)

// Selector picks the next URL a worker visits.
type Selector interface {
	Next() string
}

// NewSelector returns the selector for mode. Unknown modes fall back to random.
func NewSelector(mode config.VisitMode, urls []string, rnd schedule.RandSource) Selector {
	if mode == config.VisitModeRoundRobin {
		return &roundRobin{urls: urls}
	}
	return &randomSelector{urls: urls, rnd: rnd}
}

type randomSelector struct {
	urls []string
	rnd  schedule.RandSource
}

func (r *randomSelector) Next() string {
	if len(r.urls) == 1 {
		return r.urls[0]
	}
	return r.urls[r.rnd.Intn(len(r.urls))]
}

// roundRobin walks the list in order and wraps with modulo.
type roundRobin struct {
	urls   []string
	cursor int
}

func (r *roundRobin) Next() string {
	u := r.urls[r.cursor%len(r.urls)]
	r.cursor = (r.cursor + 1) % len(r.urls)
	return u
}
