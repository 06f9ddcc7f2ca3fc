// Package o11y defines the narrow observability interfaces consumed by
// the realtime client, so the core carries no dependency on a concrete
// metrics or tracing backend. The otel package provides an
// OpenTelemetry-backed implementation.
package o11y

import "context"

// MetricsProvider creates metric instruments.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider starts spans for client operations.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span is a unit of work in a trace.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a key-value pair attached to metrics and spans.
type Label struct {
	Key   string
	Value string
}

// SpanStatusCode is the completion status of a span.
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)
