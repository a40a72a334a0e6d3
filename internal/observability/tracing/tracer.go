package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the shared tracer for the resilience layer. With no tracer
// provider installed it produces no-op spans.
var tracer = otel.Tracer("oddsline-core")

// GetTracer returns the shared tracer. The cache manager and the health
// monitor use it to open spans around operations that cross dependency
// boundaries:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "health.RunCycle")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
