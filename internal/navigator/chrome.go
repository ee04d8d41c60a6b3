package navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChromeOptions configures the chrome backend.
type ChromeOptions struct {
	Headless     bool
	UserAgent    string
	DisableCache bool
	// Timeout bounds a single navigation or reload; 0 means no limit.
	Timeout time.Duration
	// ExecPath overrides the browser binary chromedp looks up.
	ExecPath string
	Logger   *zap.Logger
}

// Chrome launches one browser process per session.
type Chrome struct {
	opts ChromeOptions
}

func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Chrome{opts: opts}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	if c.opts.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if c.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.opts.UserAgent))
	}
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	return opts
}

// Acquire starts a browser. The browser outlives ctx; only Release stops it.
func (c *Chrome) Acquire(ctx context.Context) (Session, error) {
	parent := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, c.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		id:      uuid.NewString(),
		ctx:     browserCtx,
		timeout: c.opts.Timeout,
		logger:  c.opts.Logger,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	startup := []chromedp.Action{network.Enable()}
	if c.opts.DisableCache {
		startup = append(startup, network.SetCacheDisabled(true))
	}

	// The first Run starts the browser process, which lives as long as the
	// context it runs on. Launch limits cancel the session instead.
	stopOnCancel := context.AfterFunc(ctx, s.cancel)
	var launchTimer *time.Timer
	if c.opts.Timeout > 0 {
		launchTimer = time.AfterFunc(c.opts.Timeout, s.cancel)
	}
	err := chromedp.Run(s.ctx, startup...)
	cancelled := !stopOnCancel()
	timedOut := launchTimer != nil && !launchTimer.Stop()
	switch {
	case cancelled:
		s.cancel()
		return nil, fmt.Errorf("launch browser: %w", context.Cause(ctx))
	case timedOut:
		s.cancel()
		return nil, fmt.Errorf("launch browser: %w", context.DeadlineExceeded)
	case err != nil:
		s.cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s.logger.Debug("browser launched", zap.String("session", s.id), zap.Bool("headless", c.opts.Headless))
	return s, nil
}

type chromeSession struct {
	id      string
	ctx     context.Context
	cancel  func()
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	current  string
	released bool
	once     sync.Once
}

func (s *chromeSession) ID() string { return s.id }

// actionContext derives a context from the browser context that also ends
// when ctx does or the per-action timeout fires.
func (s *chromeSession) actionContext(ctx context.Context) (context.Context, func()) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if s.isReleased() {
		return wrap(ActionNavigate, url, ErrReleased)
	}
	runCtx, done := s.actionContext(ctx)
	defer done()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return wrap(ActionNavigate, url, err)
	}
	s.mu.Lock()
	s.current = url
	s.mu.Unlock()
	return nil
}

func (s *chromeSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == "" {
		return wrap(ActionRefresh, "", ErrNoPage)
	}
	if s.isReleased() {
		return wrap(ActionRefresh, current, ErrReleased)
	}

	runCtx, done := s.actionContext(ctx)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Reload()); err != nil {
		return wrap(ActionRefresh, current, err)
	}
	return nil
}

func (s *chromeSession) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release closes the browser. Calls after the first are no-ops.
func (s *chromeSession) Release() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()

		closeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		err = chromedp.Cancel(closeCtx)
		s.cancel()
		if err != nil {
			s.logger.Debug("browser did not close cleanly", zap.String("session", s.id), zap.Error(err))
		}
	})
	return err
}
