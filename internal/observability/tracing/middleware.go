package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// responseWriter records the status code written by the wrapped handler
// so the span can carry it. Handlers that never call WriteHeader get the
// implicit 200.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the status code before delegating.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an HTTP handler with OpenTelemetry request tracing.
//
// Each request gets a server span named "<METHOD> <path>". Incoming W3C
// Trace Context headers (traceparent) are honored, so a caller probing
// /health from its own traced request sees the probe as a child span.
// The span's trace ID is reflected back in the X-Trace-Id response
// header for correlation from the client side.
//
// After the handler returns, the span carries http.method, http.path
// and http.status_code attributes; 5xx responses additionally mark the
// span with error=true. 4xx responses are the caller's problem and are
// not treated as errors here: a 503 from /health/deps is the signal
// operators alert on, a 404 is not.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(
			r.Context(),
			propagation.HeaderCarrier(r.Header),
		)

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			),
		)
		defer span.End()

		w.Header().Set("X-Trace-Id", span.SpanContext().TraceID().String())

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rw.statusCode))
		if rw.statusCode >= 500 {
			span.SetAttributes(attribute.Bool("error", true))
		}
	})
}
