package trace

import (
	"context"
	nethttp "net/http"
	"strings"
)

// InjectHeaders copies correlation identifiers from ctx into outbound request
// headers. Existing header values are preserved; only missing ones are filled.
// When the context carries a traceparent but no trace ID, X-Request-ID is
// derived from the traceparent's trace-id field.
func InjectHeaders(ctx context.Context, h nethttp.Header) {
	if h.Get(HeaderXRequestID) == "" {
		if id, ok := IDFromContext(ctx); ok {
			h.Set(HeaderXRequestID, id)
		} else if tp, ok := ParentFromContext(ctx); ok {
			if tid := TraceIDFromParent(tp); tid != "" {
				h.Set(HeaderXRequestID, tid)
			}
		}
	}
	if h.Get(HeaderTraceParent) == "" {
		if tp, ok := ParentFromContext(ctx); ok {
			h.Set(HeaderTraceParent, tp)
		}
	}
	if h.Get(HeaderTraceState) == "" {
		if ts, ok := StateFromContext(ctx); ok {
			h.Set(HeaderTraceState, ts)
		}
	}
}

// TraceIDFromParent extracts the 32-hex trace-id field from a W3C traceparent
// value, returning "" when the value does not have the expected shape.
func TraceIDFromParent(traceParent string) string {
	parts := strings.Split(traceParent, "-")
	if len(parts) != 4 || len(parts[1]) != 32 {
		return ""
	}
	return parts[1]
}
