package navigator

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/trafficgen/internal/httpclient"
	"github.com/torosent/trafficgen/internal/tracing"
)

const defaultAssetConcurrency = 6

// HTTPOptions configures the http backend.
type HTTPOptions struct {
	Timeout     time.Duration
	UserAgent   string
	FetchAssets bool
	// AssetConcurrency bounds parallel sub-resource fetches per page.
	AssetConcurrency int
	// Propagate injects W3C trace context into every request.
	Propagate bool
	Logger    *zap.Logger
	// NewClient overrides the client constructor.
	NewClient func(timeout time.Duration) *http.Client
}

// HTTP emulates page loads without a browser: the document is fetched,
// decoded and, optionally, its images, scripts and stylesheets are fetched.
type HTTP struct {
	opts HTTPOptions
}

func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.AssetConcurrency <= 0 {
		opts.AssetConcurrency = defaultAssetConcurrency
	}
	if opts.NewClient == nil {
		opts.NewClient = httpclient.NewClient
	}
	return &HTTP{opts: opts}
}

func (h *HTTP) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpSession{
		id:     uuid.NewString(),
		client: h.opts.NewClient(h.opts.Timeout),
		opts:   h.opts,
	}, nil
}

type httpSession struct {
	id     string
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	current  string
	released bool
	once     sync.Once
}

func (s *httpSession) ID() string { return s.id }

func (s *httpSession) Navigate(ctx context.Context, target string) error {
	if s.isReleased() {
		return wrap(ActionNavigate, target, ErrReleased)
	}
	if err := s.load(ctx, target, false); err != nil {
		return wrap(ActionNavigate, target, err)
	}
	s.mu.Lock()
	s.current = target
	s.mu.Unlock()
	return nil
}

func (s *httpSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == "" {
		return wrap(ActionRefresh, "", ErrNoPage)
	}
	if s.isReleased() {
		return wrap(ActionRefresh, current, ErrReleased)
	}
	return wrap(ActionRefresh, current, s.load(ctx, current, true))
}

func (s *httpSession) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *httpSession) Release() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
		s.client.CloseIdleConnections()
	})
	return nil
}

func (s *httpSession) newRequest(ctx context.Context, target, accept string, reload bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}
	if reload {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
	if s.opts.Propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	return req, nil
}

func (s *httpSession) load(ctx context.Context, target string, reload bool) error {
	req, err := s.newRequest(ctx, target, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", reload)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = httpclient.DrainBody(resp)
		return &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	if !s.opts.FetchAssets || !isHTML(resp.Header.Get("Content-Type")) {
		_, err := httpclient.DrainBody(resp)
		return err
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	s.fetchAssets(ctx, resp.Request.URL, body, reload)
	return nil
}

// fetchAssets loads page sub-resources. Asset failures are logged and do not
// fail the page load, matching how a browser renders a page with broken images.
func (s *httpSession) fetchAssets(ctx context.Context, base *url.URL, body []byte, reload bool) {
	assets := httpclient.ExtractAssets(base, body)
	if len(assets) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.AssetConcurrency)
	for _, asset := range assets {
		g.Go(func() error {
			if err := s.fetchAsset(gctx, asset, base.String(), reload); err != nil {
				s.opts.Logger.Debug("asset fetch failed",
					zap.String("session", s.id),
					zap.String("asset", asset),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *httpSession) fetchAsset(ctx context.Context, asset, referer string, reload bool) error {
	req, err := s.newRequest(ctx, asset, "*/*", reload)
	if err != nil {
		return err
	}
	req.Header.Set("Referer", referer)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode, URL: asset}
	}
	_, err = httpclient.DrainBody(resp)
	return err
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
