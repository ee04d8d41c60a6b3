package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/torosent/trafficgen/internal/config"
)

func TestRunAttributesTagResource(t *testing.T) {
	run := Run{ID: "01HZX0RUN", Navigator: "chrome", Browsers: 4}
	got := attribute.NewSet(run.attributes()...)

	want := map[attribute.Key]attribute.Value{
		RunIDKey:                     attribute.StringValue("01HZX0RUN"),
		semconv.ServiceInstanceIDKey: attribute.StringValue("01HZX0RUN"),
		NavigatorKey:                 attribute.StringValue("chrome"),
		BrowsersKey:                  attribute.IntValue(4),
	}
	for key, value := range want {
		v, ok := got.Value(key)
		if !ok {
			t.Errorf("missing resource attribute %s", key)
			continue
		}
		if v != value {
			t.Errorf("%s = %v, want %v", key, v.Emit(), value.Emit())
		}
	}
}

func TestRunAttributesSkipUnsetFields(t *testing.T) {
	if attrs := (Run{}).attributes(); len(attrs) != 0 {
		t.Errorf("attributes() = %v, want none for an empty run", attrs)
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		wantErr bool
	}{
		{0, false},
		{0.25, false},
		{1, false},
		{-0.5, true},
		{1.5, true},
	}
	for _, tt := range tests {
		s, err := newSampler(tt.rate)
		if (err != nil) != tt.wantErr {
			t.Errorf("newSampler(%g) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			continue
		}
		if err == nil && s == nil {
			t.Errorf("newSampler(%g) returned nil sampler", tt.rate)
		}
	}
}

func TestInitWithoutEndpointRecordsNothing(t *testing.T) {
	p, err := Init(context.Background(), config.TracingConfig{}, Run{ID: "run-1"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false without an endpoint")
	}
	_, span := StartActionSpan(context.Background(), p.Tracer(), Action{Name: "navigate", Target: "https://example.com"})
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("span context is valid, want a no-op span")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInitExporters(t *testing.T) {
	off := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantErr       bool
		wantPropagate bool
	}{
		{"grpc", config.TracingConfig{Endpoint: "localhost:4317", Insecure: true, SampleRate: 1}, false, true},
		{"http", config.TracingConfig{Endpoint: "localhost:4318", Protocol: "http", Insecure: true, SampleRate: 1}, false, true},
		{"propagation off", config.TracingConfig{Endpoint: "localhost:4317", Insecure: true, Propagate: &off}, false, false},
		{"unknown protocol", config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift"}, true, false},
		{"bad sample rate", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 2}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Init(context.Background(), tt.cfg, Run{ID: "run-1", Navigator: "http", Browsers: 1})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
			if got := p.ShouldPropagate(); got != tt.wantPropagate {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.wantPropagate)
			}
		})
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true on nil provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "refresh")
	span.End()
}
