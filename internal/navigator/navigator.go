// Package navigator drives page loads for simulated users.
//
// A [Navigator] hands out [Session] values, one per worker. Sessions are
// owned by a single goroutine and must be released exactly once. Two
// backends exist: [Chrome] runs a real browser through the DevTools
// protocol, [HTTP] emulates a page load with plain requests. Middleware
// ([WithRetry], [WithTracing], [WithLaunchLimit]) wraps either backend.
package navigator

import (
	"context"
	"errors"
	"fmt"
)

// Action names a session operation.
type Action string

const (
	ActionAcquire  Action = "acquire"
	ActionNavigate Action = "navigate"
	ActionRefresh  Action = "refresh"
)

// Navigator creates browser sessions.
type Navigator interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is one simulated user's browser.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	// Refresh reloads the page currently loaded in the session.
	Refresh(ctx context.Context) error
	Release() error
}

// ErrNoPage is returned by Refresh before any page has been loaded.
var ErrNoPage = errors.New("no page loaded")

// ErrReleased is returned when a released session is used.
var ErrReleased = errors.New("session released")

// NavigationError describes a failed page load.
type NavigationError struct {
	Action Action
	URL    string
	Err    error
}

func (e *NavigationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Action, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// StatusError represents a page answered with an HTTP error status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func wrap(action Action, url string, err error) error {
	if err == nil {
		return nil
	}
	var navErr *NavigationError
	if errors.As(err, &navErr) {
		return err
	}
	return &NavigationError{Action: action, URL: url, Err: err}
}
