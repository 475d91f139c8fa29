// Package telemetry provides a minimal tracing-span helper for the
// pipeline's longest-running operations (a discovery run, a deployment
// session), grounded on the teacher's internal/tracing +
// cmd/middleware/telemetry.go use of go.opentelemetry.io/otel. The teacher
// wires an OTLP exporter at the CLI layer; this module only needs the
// tracer API surface, so the exporter wiring is left to the embedding
// application (spec §1: observability/export plumbing is out of scope).
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/MSAInfotech/AzureCloner-API-sub000")

// StartSpan starts a span named name, attaching attrs as string key/value
// pairs (an even-length list: k1, v1, k2, v2, ...).
func StartSpan(ctx context.Context, name string, attrs ...string) (context.Context, trace.Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		kv = append(kv, attribute.String(attrs[i], attrs[i+1]))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

// EndWithError records err on the span, if any, and ends it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
