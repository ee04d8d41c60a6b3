package worker

import (
	"fmt"
	"time"
)

// EventKind classifies what a worker did.
type EventKind string

const (
	EventAcquire  EventKind = "acquire"
	EventNavigate EventKind = "navigate"
	EventRefresh  EventKind = "refresh"
	EventDNS      EventKind = "dns"
	EventRelease  EventKind = "release"
)

// Event is emitted for every action a worker performs.
type Event struct {
	Worker  int
	Session string
	Kind    EventKind
	Target  string
	// Server is the resolver used for EventDNS.
	Server  string
	Latency time.Duration
	Err     error
	At      time.Time
	// Stopped marks a failed action that was cut short because the run was
	// ending (cancellation or the grace window), not because the site failed.
	Stopped bool
}

// Reporter receives worker events. Implementations must be safe for
// concurrent use; every worker shares one.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Reporters fans events out to several reporters in order.
type Reporters []Reporter

func (rs Reporters) Report(e Event) {
	for _, r := range rs {
		if r != nil {
			r.Report(e)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// AcquireError is returned when a worker cannot obtain its browser session.
// Only that worker stops; siblings are unaffected.
type AcquireError struct {
	Worker int
	Err    error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("worker %d: acquire navigator: %v", e.Worker, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }
