package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-curling/logger"
	"github.com/gaborage/go-curling/trace"
)

const (
	headerContentType = "Content-Type"
	headerUserAgent   = "User-Agent"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// client is the default Client implementation backed by net/http.
// The Config it holds must not be mutated after construction.
type client struct {
	httpClient   *nethttp.Client
	logger       logger.Logger
	config       *Config
	interceptors *interceptorRegistry
	limiter      *rate.Limiter
	flights      *singleflight.Group
	tracer       oteltrace.Tracer
	callCount    atomic.Int64
}

func newClient(cfg *Config, log logger.Logger) *client {
	if cfg == nil {
		cfg = &Config{}
	}
	owned := *cfg
	owned.DefaultHeaders = maps.Clone(cfg.DefaultHeaders)
	cfg = &owned
	if log == nil {
		log = logger.New("info", false)
	}
	if cfg.MaxPayloadLogBytes <= 0 {
		cfg.MaxPayloadLogBytes = DefaultMaxPayloadLogBytes
	}

	transport := cfg.Transport
	if transport == nil {
		transport = nethttp.DefaultTransport
	}
	httpClient := &nethttp.Client{Transport: transport}
	if !cfg.FollowRedirects {
		httpClient.CheckRedirect = func(*nethttp.Request, []*nethttp.Request) error {
			return nethttp.ErrUseLastResponse
		}
	}

	c := &client{
		httpClient:   httpClient,
		logger:       log,
		config:       cfg,
		interceptors: newInterceptorRegistry(cfg.RequestInterceptors, cfg.ResponseInterceptors),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	if cfg.EnableDeduplication {
		c.flights = &singleflight.Group{}
	}
	if cfg.EnableTracing {
		c.tracer = newCallTracer()
	}
	return c
}

func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.execute(ctx, nethttp.MethodGet, req, false)
}

func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.execute(ctx, nethttp.MethodPost, req, false)
}

func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.execute(ctx, nethttp.MethodPut, req, false)
}

func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.execute(ctx, nethttp.MethodPatch, req, false)
}

func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.execute(ctx, nethttp.MethodDelete, req, false)
}

func (c *client) Head(ctx context.Context, req *Request) (*Response, error) {
	return c.execute(ctx, nethttp.MethodHead, req, false)
}

func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	return c.execute(ctx, method, req, false)
}

func (c *client) Stream(ctx context.Context, method string, req *Request) (*Response, error) {
	return c.execute(ctx, method, req, true)
}

func (c *client) UseRequestInterceptor(i RequestInterceptor) int {
	return c.interceptors.useRequest(i)
}

func (c *client) UseResponseInterceptor(i ResponseInterceptor) int {
	return c.interceptors.useResponse(i)
}

func (c *client) EjectRequestInterceptor(id int) {
	c.interceptors.ejectRequest(id)
}

func (c *client) EjectResponseInterceptor(id int) {
	c.interceptors.ejectResponse(id)
}

func (c *client) ClearInterceptors() {
	c.interceptors.clear()
}

func (c *client) Close() {
	c.httpClient.CloseIdleConnections()
}

// execute runs one logical call: build the transport request, apply the
// request chain once, drive the attempt loop, materialize the winner and
// apply the response chain.
func (c *client) execute(ctx context.Context, method string, req *Request, streaming bool) (*Response, error) {
	start := time.Now()
	callNumber := c.callCount.Add(1)

	method, err := normalizeMethod(method)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, NewValidationError("request is required", "request")
	}

	httpReq, body, err := c.buildRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	ctx, span := c.startCallSpan(ctx, httpReq)

	if err := c.interceptors.runRequest(ctx, httpReq); err != nil {
		span.end(nil, err)
		return nil, err
	}

	traceID := httpReq.Header.Get(c.traceHeader())
	c.logRequest(httpReq, body, traceID)

	run := func() (*Response, error) {
		resp, err := c.doAttempts(ctx, httpReq, req, streaming, span)
		if err != nil {
			return nil, err
		}
		resp.Stats.ElapsedTime = time.Since(start)
		resp.Stats.CallCount = callNumber
		if err := c.interceptors.runResponse(ctx, httpReq, resp); err != nil {
			return nil, err
		}
		return resp, nil
	}

	var resp *Response
	if c.shouldDeduplicate(method, req, streaming) {
		resp, err = c.deduplicate(method+" "+httpReq.URL.String(), run)
	} else {
		resp, err = run()
	}
	if err != nil {
		span.end(nil, err)
		return nil, err
	}
	c.logResponse(resp, traceID)
	span.end(resp, nil)
	return resp, nil
}

// doAttempts drives the sequential attempt loop and returns the winning
// response with its attempt count stamped.
func (c *client) doAttempts(ctx context.Context, base *nethttp.Request, req *Request, streaming bool, span callSpan) (*Response, error) {
	policy := c.retryPolicyFor(req)
	maxAttempts := 1
	if policy.Count > 0 {
		maxAttempts = policy.Count + 1
	}
	timeout := c.timeoutFor(req)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, NewTimeoutError("request canceled", 0, err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, NewTimeoutError("request canceled", 0, err)
			}
		}

		attemptReq, cancel, err := attemptRequest(ctx, base, timeout)
		if err != nil {
			return nil, err
		}

		httpResp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			cancel()
			clientErr, retryable := classifyTransportError(ctx, err, timeout)
			if !retryable || attempt == maxAttempts {
				return nil, clientErr
			}
			if waitErr := c.waitRetry(ctx, attempt, policy, clientErr, span); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if attempt < maxAttempts && statusRetryable(httpResp.StatusCode, policy) {
			drainAndClose(httpResp.Body)
			cancel()
			statusErr := NewHTTPError("", httpResp.StatusCode, nil)
			if waitErr := c.waitRetry(ctx, attempt, policy, statusErr, span); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		resp, err := c.materializeResponse(httpResp, streaming, cancel)
		if err != nil {
			if attempt == maxAttempts {
				return nil, err
			}
			if waitErr := c.waitRetry(ctx, attempt, policy, err, span); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		resp.Stats.Attempts = attempt
		return resp, nil
	}
	return nil, NewNetworkError("no attempts were executed", nil)
}

// attemptRequest clones the built request for one attempt, rewinding the
// body via GetBody and deriving a per-attempt timeout context.
func attemptRequest(ctx context.Context, base *nethttp.Request, timeout time.Duration) (*nethttp.Request, context.CancelFunc, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	cloned := base.Clone(attemptCtx)
	if base.GetBody != nil {
		body, err := base.GetBody()
		if err != nil {
			cancel()
			return nil, nil, NewValidationError(fmt.Sprintf("cannot rewind request body: %v", err), "body")
		}
		cloned.Body = body
	}
	return cloned, cancel, nil
}

// waitRetry computes the backoff delay, notifies the policy callback and
// sleeps, aborting early when the call context is canceled.
func (c *client) waitRetry(ctx context.Context, attempt int, policy *RetryPolicy, cause error, span callSpan) error {
	delay := backoffFor(attempt, policy)
	if policy.OnRetry != nil {
		policy.OnRetry(attempt, cause)
	}
	span.recordRetry(attempt, cause)
	c.logger.Debug().
		Int("attempt", attempt).
		Dur("delay", delay).
		Err(cause).
		Msg("HTTP client retry")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return NewTimeoutError("request canceled", 0, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// classifyTransportError maps a transport failure to a typed client error
// and reports whether retrying it can help. Caller cancellation is final;
// attempt timeouts and connection failures are worth retrying.
func classifyTransportError(ctx context.Context, err error, timeout time.Duration) (ClientError, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return NewTimeoutError("request canceled", 0, err), false
	}
	if isTimeout(err) {
		return NewTimeoutError("request timeout", timeout, err), true
	}
	return NewNetworkError(fmt.Sprintf("request failed: %v", err), err), true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// materializeResponse reads and decodes the response body according to its
// content type. In streaming mode the body is left unconsumed and closing
// it releases the attempt context.
func (c *client) materializeResponse(httpResp *nethttp.Response, streaming bool, cancel context.CancelFunc) (*Response, error) {
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		OK:         IsSuccessStatus(httpResp.StatusCode),
		Headers:    httpResp.Header,
	}

	if streaming {
		httpResp.Body = &cancelOnCloseBody{ReadCloser: httpResp.Body, cancel: cancel}
		resp.Raw = httpResp
		return resp, nil
	}
	defer cancel()

	if httpResp.StatusCode == nethttp.StatusNoContent || isHeadResponse(httpResp) {
		drainAndClose(httpResp.Body)
		return resp, nil
	}

	body, readErr := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()
	if readErr != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to read response body: %v", readErr), readErr)
	}
	resp.Body = body

	if isJSONContent(httpResp.Header.Get(headerContentType)) {
		if len(body) == 0 {
			return resp, nil
		}
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, NewNetworkError(fmt.Sprintf("failed to decode JSON response: %v", err), err)
		}
		resp.Data = data
		return resp, nil
	}

	if len(body) > 0 {
		resp.Data = string(body)
	}
	return resp, nil
}

// buildRequest assembles the transport request once per call: URL with
// merged query, encoded body, headers, auth and trace headers.
func (c *client) buildRequest(ctx context.Context, method string, req *Request) (*nethttp.Request, []byte, error) {
	fullURL, err := buildURL(req)
	if err != nil {
		return nil, nil, err
	}
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, nil, NewValidationError(fmt.Sprintf("invalid request: %v", err), "url")
	}

	c.applyHeaders(httpReq, req, contentType)
	c.applyAuth(httpReq, req)
	c.applyTraceHeaders(ctx, httpReq.Header)
	return httpReq, body, nil
}

// buildURL merges Request.Query into the URL query string. Existing
// parameters are preserved and duplicate keys are allowed; a request
// without Query leaves the URL byte-for-byte untouched.
func buildURL(req *Request) (string, error) {
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return "", NewValidationError("url is required", "url")
	}
	if len(req.Query) == 0 {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid url: %v", err), "url")
	}
	query := parsed.Query()
	for key, values := range req.Query {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// encodeBody turns the tagged body variant into wire bytes and the default
// content type its kind implies.
func encodeBody(body *Body) ([]byte, string, error) {
	if body == nil || body.Value == nil {
		return nil, "", nil
	}

	contentType := body.ContentType
	switch body.Kind {
	case BodyJSON:
		if contentType == "" {
			contentType = contentTypeJSON
		}
		switch value := body.Value.(type) {
		case []byte:
			return value, contentType, nil
		case string:
			return []byte(value), contentType, nil
		default:
			data, err := json.Marshal(value)
			if err != nil {
				return nil, "", NewValidationError(fmt.Sprintf("failed to marshal JSON body: %v", err), "body")
			}
			return data, contentType, nil
		}
	case BodyForm:
		if contentType == "" {
			contentType = contentTypeForm
		}
		switch value := body.Value.(type) {
		case url.Values:
			return []byte(value.Encode()), contentType, nil
		case string:
			return []byte(value), contentType, nil
		default:
			return nil, "", NewValidationError("form body must be url.Values or a pre-encoded string", "body")
		}
	case BodyRaw:
		switch value := body.Value.(type) {
		case []byte:
			return value, contentType, nil
		case string:
			return []byte(value), contentType, nil
		default:
			return nil, "", NewValidationError("raw body must be []byte or string", "body")
		}
	default:
		return nil, "", NewValidationError(fmt.Sprintf("unknown body kind %d", body.Kind), "body")
	}
}

// applyHeaders layers client defaults under request headers, then fills
// Content-Type and User-Agent only when the caller did not set them.
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request, contentType string) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" && httpReq.Header.Get(headerContentType) == "" {
		httpReq.Header.Set(headerContentType, contentType)
	}
	if c.config.UserAgent != "" && httpReq.Header.Get(headerUserAgent) == "" {
		httpReq.Header.Set(headerUserAgent, c.config.UserAgent)
	}
}

func (c *client) applyAuth(httpReq *nethttp.Request, req *Request) {
	auth := req.Auth
	if auth == nil {
		auth = c.config.BasicAuth
	}
	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// applyTraceHeaders propagates trace context from ctx and mints a trace ID
// when none arrived with the call.
func (c *client) applyTraceHeaders(ctx context.Context, header nethttp.Header) {
	trace.InjectHeaders(ctx, header)

	name := c.traceHeader()
	if header.Get(name) == "" {
		id, ok := trace.IDFromContext(ctx)
		if !ok || id == "" {
			if c.config.NewTraceID != nil {
				id = c.config.NewTraceID()
			}
			if id == "" {
				id = trace.NewID()
			}
		}
		header.Set(name, id)
	}
	if c.config.EnableW3CTrace && header.Get(trace.HeaderTraceParent) == "" {
		header.Set(trace.HeaderTraceParent, trace.GenerateTraceParent())
	}
}

func (c *client) traceHeader() string {
	if c.config.TraceIDHeader != "" {
		return c.config.TraceIDHeader
	}
	return trace.HeaderXRequestID
}

func (c *client) retryPolicyFor(req *Request) *RetryPolicy {
	if req.Retry != nil {
		return req.Retry
	}
	return &c.config.Retry
}

func (c *client) timeoutFor(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.config.Timeout
}

func normalizeMethod(method string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(method))
	if normalized == "" {
		return nethttp.MethodGet, nil
	}
	switch normalized {
	case nethttp.MethodGet, nethttp.MethodPost, nethttp.MethodPut, nethttp.MethodPatch,
		nethttp.MethodDelete, nethttp.MethodHead, nethttp.MethodOptions:
		return normalized, nil
	}
	return "", NewValidationError(fmt.Sprintf("unsupported HTTP method %q", method), "method")
}

func statusRetryable(status int, policy *RetryPolicy) bool {
	for _, candidate := range policy.RetryableStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func isHeadResponse(httpResp *nethttp.Response) bool {
	return httpResp.Request != nil && httpResp.Request.Method == nethttp.MethodHead
}

func isJSONContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == contentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

// drainAndClose discards any unread bytes before closing so the transport
// can reuse the connection.
func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// cancelOnCloseBody defers release of the attempt context until the caller
// closes the stream. Canceling before return would kill the body mid-read;
// never canceling would leak the attempt timer.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	if b.cancel != nil {
		b.cancel()
	}
	return err
}
