package navigator

import (
	"context"
	"sync"
)

type fakeSession struct {
	mu        sync.Mutex
	id        string
	errs      []error
	navigates []string
	refreshes int
	releases  int
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) next() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigates = append(f.navigates, url)
	return f.next()
}

func (f *fakeSession) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.next()
}

func (f *fakeSession) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

type fakeNavigator struct {
	session *fakeSession
	err     error
	acquire func(ctx context.Context)
}

func (f *fakeNavigator) Acquire(ctx context.Context) (Session, error) {
	if f.acquire != nil {
		f.acquire(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}
