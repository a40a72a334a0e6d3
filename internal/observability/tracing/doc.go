// Package tracing provides OpenTelemetry tracing integration.
//
// The middleware traces inbound HTTP requests on the health surface:
// it extracts W3C Trace Context from request headers, opens a server
// span per request, and reflects the trace ID back in the X-Trace-Id
// response header so callers can correlate probe results with their
// own traces.
//
// Span export is whatever tracer provider the process installs; with
// no provider configured the spans are no-ops and the middleware costs
// almost nothing.
//
// Example usage:
//
//	mux := http.NewServeMux()
//	mux.Handle("/health", healthHandler)
//	http.ListenAndServe(":9091", tracing.Middleware(mux))
package tracing
