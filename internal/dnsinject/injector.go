// Package dnsinject interleaves synthetic name resolution with page loads.
package dnsinject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/schedule"
	"github.com/torosent/trafficgen/internal/targets"
)

// Resolver resolves host against a specific DNS server.
type Resolver interface {
	Resolve(ctx context.Context, host, server string) ([]string, error)
}

// ResolutionError reports a failed synthetic lookup. It is never fatal.
type ResolutionError struct {
	Host   string
	Server string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s via %s: %v", e.Host, e.Server, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Lookup is the outcome of one injected query.
type Lookup struct {
	Host      string
	Server    string
	Addresses []string
	Latency   time.Duration
	Err       error
}

// Injector decides when a worker issues a lookup and against what.
// It is owned by a single worker and is not safe for concurrent use.
type Injector struct {
	servers  []string
	resolver Resolver
	rnd      schedule.RandSource
	logger   *zap.Logger
}

// New creates an Injector. servers may be empty, in which case no query is
// ever issued.
func New(servers []string, resolver Resolver, rnd schedule.RandSource, logger *zap.Logger) *Injector {
	if rnd == nil {
		rnd = schedule.NewRand(time.Now().UnixNano())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Injector{
		servers:  append([]string(nil), servers...),
		resolver: resolver,
		rnd:      rnd,
		logger:   logger,
	}
}

// Enabled reports whether any resolver is configured.
func (i *Injector) Enabled() bool {
	return i != nil && len(i.servers) > 0 && i.resolver != nil
}

// ShouldQuery returns true with probability frequency/100.
func (i *Injector) ShouldQuery(frequency int) bool {
	if !i.Enabled() || frequency <= 0 {
		return false
	}
	if frequency >= 100 {
		return true
	}
	return i.rnd.Intn(101) < frequency
}

// PickTarget returns the bare hostname of a random entry in urls.
func (i *Injector) PickTarget(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return targets.Hostname(urls[i.rnd.Intn(len(urls))])
}

// PickResolver chooses the server for the next query.
func (i *Injector) PickResolver() string {
	switch len(i.servers) {
	case 0:
		return ""
	case 1:
		return i.servers[0]
	default:
		return i.servers[i.rnd.Intn(len(i.servers))]
	}
}

// MaybeQuery runs a lookup when ShouldQuery allows it. The second return value
// is false when no query was issued.
func (i *Injector) MaybeQuery(ctx context.Context, frequency int, urls []string) (Lookup, bool) {
	if !i.ShouldQuery(frequency) {
		return Lookup{}, false
	}
	return i.Query(ctx, urls), true
}

// Query resolves a random target against a random resolver.
func (i *Injector) Query(ctx context.Context, urls []string) Lookup {
	lookup := Lookup{
		Host:   i.PickTarget(urls),
		Server: i.PickResolver(),
	}
	if lookup.Host == "" {
		lookup.Err = &ResolutionError{Server: lookup.Server, Err: errors.New("no hostname to resolve")}
		return lookup
	}

	start := time.Now()
	addrs, err := i.resolver.Resolve(ctx, lookup.Host, lookup.Server)
	lookup.Latency = time.Since(start)
	lookup.Addresses = addrs
	if err != nil {
		lookup.Err = &ResolutionError{Host: lookup.Host, Server: lookup.Server, Err: err}
		i.logger.Warn("dns query failed",
			zap.String("host", lookup.Host),
			zap.String("server", lookup.Server),
			zap.Error(err))
		return lookup
	}
	i.logger.Debug("dns query",
		zap.String("host", lookup.Host),
		zap.String("server", lookup.Server),
		zap.Strings("addresses", addrs),
		zap.Duration("latency", lookup.Latency))
	return lookup
}
