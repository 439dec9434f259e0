package httpclient

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/gaborage/go-curling/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = trace.HeaderTraceParent
	// HeaderTraceState is the W3C trace context "tracestate" header name
	HeaderTraceState = trace.HeaderTraceState
)

// Client defines the HTTP client interface for making requests
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Head(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
	// Stream executes like Do but leaves the response body unconsumed;
	// the returned Response carries the raw transport response and the
	// caller owns closing its body.
	Stream(ctx context.Context, method string, req *Request) (*Response, error)

	// UseRequestInterceptor registers a request handler and returns its id.
	UseRequestInterceptor(i RequestInterceptor) int
	// UseResponseInterceptor registers a response handler and returns its id.
	UseResponseInterceptor(i ResponseInterceptor) int
	// EjectRequestInterceptor disables the handler with the given id.
	EjectRequestInterceptor(id int)
	// EjectResponseInterceptor disables the handler with the given id.
	EjectResponseInterceptor(id int)
	// ClearInterceptors resets both chains to empty.
	ClearInterceptors()

	// Close releases idle connections held by the underlying transport.
	Close()
}

// Request represents an HTTP request with all necessary data
type Request struct {
	URL string
	// Headers are per-request headers; they override client defaults per key
	Headers map[string]string
	// Query is merged into the URL query string; existing parameters are
	// preserved and duplicates are allowed
	Query url.Values
	// Body is the tagged request body; nil means no body
	Body *Body
	// Auth overrides client-level basic auth when set
	Auth *BasicAuth
	// Timeout overrides the client timeout for this request when positive
	Timeout time.Duration
	// Retry overrides the client retry policy for this request when set
	Retry *RetryPolicy
}

// BodyKind tags the encoding applied to a request body
type BodyKind int

const (
	// BodyJSON marshals Value with encoding/json unless it is already a
	// string or []byte, and defaults Content-Type to application/json
	BodyJSON BodyKind = iota
	// BodyForm encodes url.Values (or sends a pre-encoded string) with
	// Content-Type application/x-www-form-urlencoded
	BodyForm
	// BodyRaw sends Value bytes verbatim with no default Content-Type;
	// externally assembled payloads such as multipart enter here
	BodyRaw
)

// Body is a tagged request body variant. An explicit ContentType, or a
// Content-Type request header, wins over the Kind default.
type Body struct {
	Kind        BodyKind
	Value       any
	ContentType string
}

// JSONBody builds a JSON request body from any Go value.
func JSONBody(v any) *Body {
	return &Body{Kind: BodyJSON, Value: v}
}

// FormBody builds a form-encoded request body.
func FormBody(v url.Values) *Body {
	return &Body{Kind: BodyForm, Value: v}
}

// RawBody builds a verbatim request body with an optional content type.
func RawBody(b []byte, contentType string) *Body {
	return &Body{Kind: BodyRaw, Value: b, ContentType: contentType}
}

// Response represents an HTTP response with materialized body and stats
type Response struct {
	StatusCode int
	// Status is the full status line text, e.g. "200 OK"
	Status string
	// OK reports whether StatusCode is in the 2xx range
	OK      bool
	Headers nethttp.Header
	// Body holds the raw response bytes (nil in streaming mode and for
	// bodyless responses)
	Body []byte
	// Data holds the materialized body: decoded JSON for JSON content
	// types, the text as string otherwise, nil when absent
	Data any
	// Raw is the unconsumed transport response in streaming mode only;
	// the caller owns closing Raw.Body
	Raw   *nethttp.Response
	Stats Stats
}

// Stats contains request execution statistics
type Stats struct {
	// ElapsedTime spans the whole logical call: interceptor application,
	// every attempt, and the backoff sleeps between them
	ElapsedTime time.Duration
	// Attempts is the number of attempts performed for this call
	Attempts int
	// CallCount is the client-wide call counter; this call's ordinal
	CallCount int64
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called once per logical call, after the transport
// request is built and before the first attempt
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called on the final materialized response only,
// never on per-attempt failures
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *Response) error

// RetryPolicy controls retry orchestration for a client or a single request
type RetryPolicy struct {
	// Count is the number of retries after the first attempt; the total
	// attempt budget is Count+1
	Count int
	// Strategy selects the backoff curve (default BackoffExponential)
	Strategy BackoffStrategy
	// BaseDelay seeds the backoff curve (default 1s)
	BaseDelay time.Duration
	// MaxDelay caps every computed delay (default 30s)
	MaxDelay time.Duration
	// RetryableStatuses lists response codes retried while attempts remain;
	// an exhausted budget returns the response as-is rather than an error
	RetryableStatuses []int
	// OnRetry is invoked before each backoff sleep with the attempt number
	// that failed and its error
	OnRetry func(attempt int, err error)
}

// Config holds the assembled client configuration
type Config struct {
	Timeout              time.Duration
	UserAgent            string
	FollowRedirects      bool
	Retry                RetryPolicy
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// Transport overrides the default http.Transport when set
	Transport nethttp.RoundTripper
	// LogPayloads enables debug-level logging of body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// TraceIDHeader configures the header name used for trace ID propagation (default: X-Request-ID)
	TraceIDHeader string
	// NewTraceID generates a new trace ID when none is present (default: uuid)
	NewTraceID func() string
	// EnableW3CTrace enables W3C Trace Context (traceparent/tracestate) propagation
	EnableW3CTrace bool
	// RateLimitRPS caps outbound attempts per second when positive
	RateLimitRPS float64
	// RateLimitBurst sets the limiter burst size (default 1 when limiting)
	RateLimitBurst int
	// EnableDeduplication collapses concurrent identical GET/HEAD calls
	EnableDeduplication bool
	// EnableTracing opens an OpenTelemetry API span per call
	EnableTracing bool
}

// Trace ID utility functions, re-exported for callers that only import this package.

// WithTraceID adds a trace ID to the context for propagation
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return trace.WithTraceID(ctx, traceID)
}

// TraceIDFromContext returns a trace ID from context if present
func TraceIDFromContext(ctx context.Context) (string, bool) { return trace.IDFromContext(ctx) }

// EnsureTraceID returns an existing trace ID from context or generates a new one
func EnsureTraceID(ctx context.Context) string { return trace.EnsureTraceID(ctx) }

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return trace.WithTraceParent(ctx, traceParent)
}

// TraceParentFromContext returns a traceparent from context if present
func TraceParentFromContext(ctx context.Context) (string, bool) {
	return trace.ParentFromContext(ctx)
}

// WithTraceState adds a W3C tracestate value to the context
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return trace.WithTraceState(ctx, traceState)
}

// TraceStateFromContext returns a tracestate from context if present
func TraceStateFromContext(ctx context.Context) (string, bool) {
	return trace.StateFromContext(ctx)
}

// GenerateTraceParent creates a minimal W3C traceparent header value
func GenerateTraceParent() string { return trace.GenerateTraceParent() }

// NewTraceIDInterceptor creates a request interceptor that adds the default
// trace ID header when missing
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(HeaderXRequestID)
}

// NewTraceIDInterceptorFor creates a trace ID interceptor using a custom header name
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, trace.EnsureTraceID(ctx))
		}
		return nil
	}
}
