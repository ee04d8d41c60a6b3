package navigator

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// WithLaunchLimit caps how many sessions are being acquired at once. Browser
// start-up is CPU heavy; running sessions are not limited.
func WithLaunchLimit(nav Navigator, limit int) Navigator {
	if limit <= 0 {
		return nav
	}
	return &limitedNavigator{inner: nav, sem: semaphore.NewWeighted(int64(limit))}
}

type limitedNavigator struct {
	inner Navigator
	sem   *semaphore.Weighted
}

func (l *limitedNavigator) Acquire(ctx context.Context) (Session, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.Acquire(ctx)
}
