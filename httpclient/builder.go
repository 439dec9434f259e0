package httpclient

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/gaborage/go-curling/logger"
)

// DefaultTimeout is the default per-attempt timeout for new clients
const DefaultTimeout = 30 * time.Second

// Builder assembles a Client through fluent configuration.
type Builder struct {
	config Config
	logger logger.Logger
}

// NewBuilder creates a client builder with defaults: 30 second timeout, no
// retries, redirects followed.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: Config{
			Timeout:         DefaultTimeout,
			FollowRedirects: true,
		},
		logger: log,
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetry sets the client-wide retry policy.
func (b *Builder) WithRetry(policy RetryPolicy) *Builder {
	b.config.Retry = policy
	return b
}

// WithBasicAuth sets client-wide basic auth credentials.
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a header sent with every request unless the
// request overrides that key.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	if b.config.DefaultHeaders == nil {
		b.config.DefaultHeaders = make(map[string]string)
	}
	b.config.DefaultHeaders[key] = value
	return b
}

// WithUserAgent sets the User-Agent applied when a request has none.
func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.config.UserAgent = userAgent
	return b
}

// WithRequestInterceptor seeds the request chain ahead of any runtime
// registration.
func (b *Builder) WithRequestInterceptor(i RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, i)
	return b
}

// WithResponseInterceptor seeds the response chain ahead of any runtime
// registration.
func (b *Builder) WithResponseInterceptor(i ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, i)
	return b
}

// WithRateLimit caps outbound attempts at rps with the given burst.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.config.RateLimitRPS = rps
	b.config.RateLimitBurst = burst
	return b
}

// WithDeduplication collapses concurrent identical GET and HEAD calls
// into a single execution.
func (b *Builder) WithDeduplication() *Builder {
	b.config.EnableDeduplication = true
	return b
}

// WithTransport swaps the underlying RoundTripper.
func (b *Builder) WithTransport(transport nethttp.RoundTripper) *Builder {
	b.config.Transport = transport
	return b
}

// WithFollowRedirects controls whether redirects are followed. When false
// the client returns the first redirect response as-is.
func (b *Builder) WithFollowRedirects(follow bool) *Builder {
	b.config.FollowRedirects = follow
	return b
}

// WithPayloadLogging enables debug-level body logging, truncated to
// maxBytes (default 1024 when non-positive).
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// WithTracing opens an OpenTelemetry span per call using the globally
// registered tracer provider.
func (b *Builder) WithTracing() *Builder {
	b.config.EnableTracing = true
	return b
}

// WithTraceHeader overrides the header name used for trace ID propagation.
func (b *Builder) WithTraceHeader(name string) *Builder {
	b.config.TraceIDHeader = name
	return b
}

// WithTraceIDGenerator overrides how trace IDs are minted when a call
// arrives without one.
func (b *Builder) WithTraceIDGenerator(generate func() string) *Builder {
	b.config.NewTraceID = generate
	return b
}

// WithW3CTracing adds a W3C traceparent header to requests lacking one.
func (b *Builder) WithW3CTracing() *Builder {
	b.config.EnableW3CTrace = true
	return b
}

// Build materializes the configured client. The builder can keep being
// used afterwards without affecting already built clients.
func (b *Builder) Build() Client {
	return newClient(&b.config, b.logger)
}

// NewClient returns a client with default configuration.
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// NewClientWithConfig builds a client from an assembled Config, typically
// loaded through the config package.
func NewClientWithConfig(cfg *Config, log logger.Logger) Client {
	return newClient(cfg, log)
}

// RequestBuilder assembles a Request through fluent configuration.
type RequestBuilder struct {
	request Request
	method  string
}

// NewRequest starts a request builder for the given URL.
func NewRequest(rawURL string) *RequestBuilder {
	return &RequestBuilder{request: Request{URL: rawURL}}
}

// Method sets the HTTP method used by Do (GET when unset).
func (r *RequestBuilder) Method(method string) *RequestBuilder {
	r.method = method
	return r
}

// Header sets a request header.
func (r *RequestBuilder) Header(key, value string) *RequestBuilder {
	if r.request.Headers == nil {
		r.request.Headers = make(map[string]string)
	}
	r.request.Headers[key] = value
	return r
}

// QueryParam appends a query parameter; repeated keys are preserved.
func (r *RequestBuilder) QueryParam(key, value string) *RequestBuilder {
	if r.request.Query == nil {
		r.request.Query = make(url.Values)
	}
	r.request.Query.Add(key, value)
	return r
}

// JSON sets a JSON body.
func (r *RequestBuilder) JSON(value any) *RequestBuilder {
	r.request.Body = JSONBody(value)
	return r
}

// Form sets a form-encoded body.
func (r *RequestBuilder) Form(values url.Values) *RequestBuilder {
	r.request.Body = FormBody(values)
	return r
}

// Raw sets a verbatim body with an optional content type.
func (r *RequestBuilder) Raw(body []byte, contentType string) *RequestBuilder {
	r.request.Body = RawBody(body, contentType)
	return r
}

// BasicAuth sets per-request credentials, overriding the client's.
func (r *RequestBuilder) BasicAuth(username, password string) *RequestBuilder {
	r.request.Auth = &BasicAuth{Username: username, Password: password}
	return r
}

// Timeout sets a per-request timeout, overriding the client's.
func (r *RequestBuilder) Timeout(timeout time.Duration) *RequestBuilder {
	r.request.Timeout = timeout
	return r
}

// Retry sets a per-request retry policy, overriding the client's.
func (r *RequestBuilder) Retry(policy RetryPolicy) *RequestBuilder {
	r.request.Retry = &policy
	return r
}

// Build returns the assembled request.
func (r *RequestBuilder) Build() *Request {
	request := r.request
	return &request
}

// Do executes the assembled request against the given client with the
// configured method.
func (r *RequestBuilder) Do(ctx context.Context, c Client) (*Response, error) {
	return c.Do(ctx, r.method, r.Build())
}
