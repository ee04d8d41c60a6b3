package tracing

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on the tracer resource and on action spans.
const (
	RunIDKey     = attribute.Key("trafficgen.run_id")
	NavigatorKey = attribute.Key("trafficgen.navigator")
	BrowsersKey  = attribute.Key("trafficgen.browsers")
	ActionKey    = attribute.Key("trafficgen.action")
	TargetKey    = attribute.Key("trafficgen.target")
	WorkerKey    = attribute.Key("trafficgen.worker")
	SessionKey   = attribute.Key("trafficgen.session")
)

type workerKey struct{}

// WithWorker marks ctx as belonging to the simulated user id. Spans started
// under it carry the worker attribute.
func WithWorker(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerFrom returns the worker id set by WithWorker.
func WorkerFrom(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerKey{}).(int)
	return id, ok
}

// Action describes one simulated-user action.
type Action struct {
	Name    string // acquire, navigate, refresh or dns
	Target  string
	Session string
}

// StartActionSpan starts a client span named after the action and its target.
func StartActionSpan(ctx context.Context, tracer trace.Tracer, a Action) (context.Context, trace.Span) {
	name := a.Name
	attrs := []attribute.KeyValue{ActionKey.String(a.Name)}
	if a.Target != "" {
		name += " " + a.Target
		attrs = append(attrs, TargetKey.String(a.Target))
	}
	if a.Session != "" {
		attrs = append(attrs, SessionKey.String(a.Session))
	}
	if id, ok := WorkerFrom(ctx); ok {
		attrs = append(attrs, WorkerKey.Int(id))
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan finishes span. A cancelled action is marked with an event rather
// than an error status.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		span.AddEvent("stopped")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// InjectHTTPHeaders writes the W3C trace context of ctx into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
