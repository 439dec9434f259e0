package httpclient

import (
	"context"
	nethttp "net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package to the tracer provider
// registered by the host application.
const instrumentationName = "github.com/gaborage/go-curling/httpclient"

func newCallTracer() oteltrace.Tracer {
	return otel.Tracer(instrumentationName)
}

// callSpan wraps the per-call span. The zero value is inert, which lets the
// engine record span events unconditionally.
type callSpan struct {
	span oteltrace.Span
}

// startCallSpan opens a client span for one logical call when tracing is
// enabled. Without a tracer it returns the context unchanged and an inert
// span.
func (c *client) startCallSpan(ctx context.Context, httpReq *nethttp.Request) (context.Context, callSpan) {
	if c.tracer == nil {
		return ctx, callSpan{}
	}
	ctx, span := c.tracer.Start(ctx, "HTTP "+httpReq.Method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", httpReq.Method),
			attribute.String("url.full", httpReq.URL.String()),
		),
	)
	return ctx, callSpan{span: span}
}

// recordRetry appends a span event for one scheduled retry.
func (s callSpan) recordRetry(attempt int, cause error) {
	if s.span == nil {
		return
	}
	s.span.AddEvent("retry",
		oteltrace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("cause", cause.Error()),
		),
	)
}

// end closes the span and records the call outcome.
func (s callSpan) end(resp *Response, err error) {
	if s.span == nil {
		return
	}
	switch {
	case err != nil:
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	case resp != nil:
		s.span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if !resp.OK {
			s.span.SetStatus(codes.Error, resp.Status)
		}
	}
	s.span.End()
}
