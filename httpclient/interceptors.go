package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"sync"
)

const (
	stageRequest  = "request"
	stageResponse = "response"
)

// interceptorRegistry holds the request and response handler chains for one
// client. Ids are indexes into the chain; ejecting replaces the handler with
// an identity function so later ids stay stable, and iteration runs over a
// copied snapshot so in-flight calls never observe concurrent mutation.
type interceptorRegistry struct {
	mu       sync.RWMutex
	request  []RequestInterceptor
	response []ResponseInterceptor
}

func newInterceptorRegistry(request []RequestInterceptor, response []ResponseInterceptor) *interceptorRegistry {
	r := &interceptorRegistry{
		request:  make([]RequestInterceptor, 0, len(request)),
		response: make([]ResponseInterceptor, 0, len(response)),
	}
	for _, i := range request {
		r.useRequest(i)
	}
	for _, i := range response {
		r.useResponse(i)
	}
	return r
}

func identityRequestInterceptor(context.Context, *nethttp.Request) error { return nil }

func identityResponseInterceptor(context.Context, *nethttp.Request, *Response) error { return nil }

// useRequest appends a request handler and returns its id, the chain length
// before the push. Nil handlers register as identity.
func (r *interceptorRegistry) useRequest(i RequestInterceptor) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i == nil {
		i = identityRequestInterceptor
	}
	id := len(r.request)
	r.request = append(r.request, i)
	return id
}

// useResponse appends a response handler and returns its id.
func (r *interceptorRegistry) useResponse(i ResponseInterceptor) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i == nil {
		i = identityResponseInterceptor
	}
	id := len(r.response)
	r.response = append(r.response, i)
	return id
}

// ejectRequest disables the request handler with the given id. Unknown ids,
// including ids invalidated by clear, are ignored.
func (r *interceptorRegistry) ejectRequest(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= 0 && id < len(r.request) {
		r.request[id] = identityRequestInterceptor
	}
}

// ejectResponse disables the response handler with the given id.
func (r *interceptorRegistry) ejectResponse(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= 0 && id < len(r.response) {
		r.response[id] = identityResponseInterceptor
	}
}

// clear resets both chains. Previously issued ids dangle; ejecting them
// afterwards is a no-op.
func (r *interceptorRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.request = nil
	r.response = nil
}

func (r *interceptorRegistry) snapshotRequest() []RequestInterceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.request) == 0 {
		return nil
	}
	snapshot := make([]RequestInterceptor, len(r.request))
	copy(snapshot, r.request)
	return snapshot
}

func (r *interceptorRegistry) snapshotResponse() []ResponseInterceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.response) == 0 {
		return nil
	}
	snapshot := make([]ResponseInterceptor, len(r.response))
	copy(snapshot, r.response)
	return snapshot
}

// runRequest applies the request chain in registration order. The first
// handler error aborts the call as an interceptor error.
func (r *interceptorRegistry) runRequest(ctx context.Context, req *nethttp.Request) error {
	for i, interceptor := range r.snapshotRequest() {
		if err := interceptor(ctx, req); err != nil {
			return NewInterceptorError(fmt.Sprintf("handler %d failed", i), stageRequest, err)
		}
	}
	return nil
}

// runResponse applies the response chain to the final response.
func (r *interceptorRegistry) runResponse(ctx context.Context, req *nethttp.Request, resp *Response) error {
	for i, interceptor := range r.snapshotResponse() {
		if err := interceptor(ctx, req, resp); err != nil {
			return NewInterceptorError(fmt.Sprintf("handler %d failed", i), stageResponse, err)
		}
	}
	return nil
}
