package dnsinject

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/trafficgen/internal/tracing"
)

const defaultDNSPort = "53"

// NetResolver queries one server per lookup using the pure-Go resolver.
type NetResolver struct {
	Timeout time.Duration
}

// NewNetResolver returns a NetResolver; a non-positive timeout means 5s.
func NewNetResolver(timeout time.Duration) *NetResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NetResolver{Timeout: timeout}
}

func (r *NetResolver) Resolve(ctx context.Context, host, server string) ([]string, error) {
	address := ServerAddress(server)
	dialer := &net.Dialer{Timeout: r.Timeout}
	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, address)
		},
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	ips, err := resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return addrs, nil
}

// ServerAddress appends the default DNS port when server carries none.
func ServerAddress(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultDNSPort)
}

type tracedResolver struct {
	inner  Resolver
	tracer trace.Tracer
}

// WithTracing records a span around every lookup.
func WithTracing(r Resolver, tracer trace.Tracer) Resolver {
	if r == nil || tracer == nil {
		return r
	}
	return &tracedResolver{inner: r, tracer: tracer}
}

func (t *tracedResolver) Resolve(ctx context.Context, host, server string) ([]string, error) {
	ctx, span := tracing.StartActionSpan(ctx, t.tracer, tracing.Action{Name: "dns", Target: host})
	addrs, err := t.inner.Resolve(ctx, host, server)
	tracing.EndSpan(span, err,
		attribute.String("dns.server", server),
		attribute.Int("dns.answers", len(addrs)),
	)
	return addrs, err
}
