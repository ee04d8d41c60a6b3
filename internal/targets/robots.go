package targets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBytes = 512 * 1024

// RobotsFilter drops URLs the target site's robots.txt disallows for the
// configured user agent. Sites whose robots.txt cannot be fetched are allowed.
type RobotsFilter struct {
	Client    *http.Client
	UserAgent string
	Logger    *zap.Logger
}

// Filter returns the allowed subset of urls, preserving order.
func (f RobotsFilter) Filter(ctx context.Context, urls []string) ([]string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	agent := f.UserAgent
	if agent == "" {
		agent = "*"
	}

	groups := map[string]*robotstxt.Group{}
	allowed := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", raw, err)
		}
		origin := u.Scheme + "://" + u.Host
		group, ok := groups[origin]
		if !ok {
			group = fetchGroup(ctx, client, origin, agent, logger)
			groups[origin] = group
		}
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		if group != nil && !group.Test(path) {
			logger.Info("robots.txt disallows target, skipping", zap.String("url", raw))
			continue
		}
		allowed = append(allowed, raw)
	}
	if len(allowed) == 0 {
		return nil, ErrNoTargets
	}
	return allowed, nil
}

func fetchGroup(ctx context.Context, client *http.Client, origin, agent string, logger *zap.Logger) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("robots.txt unavailable", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		logger.Debug("robots.txt unparseable", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return data.FindGroup(agent)
}
