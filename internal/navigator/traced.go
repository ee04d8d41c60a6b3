package navigator

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/trafficgen/internal/tracing"
)

// WithTracing records a span around every acquire, navigation and refresh.
func WithTracing(nav Navigator, tracer trace.Tracer) Navigator {
	if tracer == nil {
		return nav
	}
	return &tracedNavigator{inner: nav, tracer: tracer}
}

type tracedNavigator struct {
	inner  Navigator
	tracer trace.Tracer
}

func (t *tracedNavigator) Acquire(ctx context.Context) (Session, error) {
	ctx, span := tracing.StartActionSpan(ctx, t.tracer, tracing.Action{Name: string(ActionAcquire)})
	s, err := t.inner.Acquire(ctx)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	tracing.EndSpan(span, nil, tracing.SessionKey.String(s.ID()))
	return &tracedSession{Session: s, tracer: t.tracer}, nil
}

type tracedSession struct {
	Session
	tracer  trace.Tracer
	current string
}

func (t *tracedSession) Navigate(ctx context.Context, url string) error {
	ctx, span := tracing.StartActionSpan(ctx, t.tracer, tracing.Action{
		Name:    string(ActionNavigate),
		Target:  url,
		Session: t.ID(),
	})
	err := t.Session.Navigate(ctx, url)
	if err == nil {
		t.current = url
	}
	tracing.EndSpan(span, err)
	return err
}

func (t *tracedSession) Refresh(ctx context.Context) error {
	ctx, span := tracing.StartActionSpan(ctx, t.tracer, tracing.Action{
		Name:    string(ActionRefresh),
		Target:  t.current,
		Session: t.ID(),
	})
	err := t.Session.Refresh(ctx)
	tracing.EndSpan(span, err)
	return err
}
