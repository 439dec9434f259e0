package httpclient

import (
	"context"
	"errors"
	nethttp "net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIssuesSequentialIDs(t *testing.T) {
	registry := newInterceptorRegistry(nil, nil)

	assert.Equal(t, 0, registry.useRequest(identityRequestInterceptor))
	assert.Equal(t, 1, registry.useRequest(identityRequestInterceptor))
	assert.Equal(t, 2, registry.useRequest(identityRequestInterceptor))

	// The response chain has its own id space.
	assert.Equal(t, 0, registry.useResponse(identityResponseInterceptor))
	assert.Equal(t, 1, registry.useResponse(identityResponseInterceptor))
}

func TestRegistryNilHandlerRegistersAsIdentity(t *testing.T) {
	registry := newInterceptorRegistry(nil, nil)

	id := registry.useRequest(nil)
	assert.Equal(t, 0, id)

	req, err := nethttp.NewRequestWithContext(context.Background(), "GET", testExampleURL, nethttp.NoBody)
	require.NoError(t, err)
	assert.NoError(t, registry.runRequest(context.Background(), req))
}

func TestRegistryEject(t *testing.T) {
	t.Run("ejected request handler no longer runs", func(t *testing.T) {
		registry := newInterceptorRegistry(nil, nil)

		var ran []string
		first := registry.useRequest(func(context.Context, *nethttp.Request) error {
			ran = append(ran, "first")
			return nil
		})
		registry.useRequest(func(context.Context, *nethttp.Request) error {
			ran = append(ran, "second")
			return nil
		})

		registry.ejectRequest(first)

		req, err := nethttp.NewRequestWithContext(context.Background(), "GET", testExampleURL, nethttp.NoBody)
		require.NoError(t, err)
		require.NoError(t, registry.runRequest(context.Background(), req))
		assert.Equal(t, []string{"second"}, ran)
	})

	t.Run("later ids stay stable after an eject", func(t *testing.T) {
		registry := newInterceptorRegistry(nil, nil)

		registry.useRequest(nil)
		second := registry.useRequest(nil)
		registry.ejectRequest(0)

		// A handler registered after the eject still gets the next index.
		third := registry.useRequest(nil)
		assert.Equal(t, 1, second)
		assert.Equal(t, 2, third)
	})

	t.Run("out of range ids are ignored", func(t *testing.T) {
		registry := newInterceptorRegistry(nil, nil)
		registry.useRequest(nil)

		registry.ejectRequest(-1)
		registry.ejectRequest(99)
		registry.ejectResponse(0)
	})
}

func TestRegistryClear(t *testing.T) {
	registry := newInterceptorRegistry(nil, nil)

	requestID := registry.useRequest(nil)
	registry.useResponse(nil)

	registry.clear()
	assert.Nil(t, registry.snapshotRequest())
	assert.Nil(t, registry.snapshotResponse())

	// Dangling ids from before the clear are no-ops.
	registry.ejectRequest(requestID)

	// Registration starts over from id zero.
	assert.Equal(t, 0, registry.useRequest(nil))
}

func TestInterceptorExecutionOrder(t *testing.T) {
	client := NewClient(createTestLogger())
	ctx := context.Background()

	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	var order []string
	client.UseRequestInterceptor(func(context.Context, *nethttp.Request) error {
		order = append(order, "req-1")
		return nil
	})
	client.UseRequestInterceptor(func(context.Context, *nethttp.Request) error {
		order = append(order, "req-2")
		return nil
	})
	client.UseResponseInterceptor(func(context.Context, *nethttp.Request, *Response) error {
		order = append(order, "resp-1")
		return nil
	})
	client.UseResponseInterceptor(func(context.Context, *nethttp.Request, *Response) error {
		order = append(order, "resp-2")
		return nil
	})

	_, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1", "req-2", "resp-1", "resp-2"}, order)
}

func TestRequestInterceptorsRunOncePerCall(t *testing.T) {
	log := createTestLogger()
	ctx := context.Background()

	var serverCalls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if serverCalls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := NewBuilder(log).
		WithRetry(RetryPolicy{
			Count:             2,
			Strategy:          BackoffLinear,
			BaseDelay:         5 * time.Millisecond,
			RetryableStatuses: []int{nethttp.StatusServiceUnavailable},
		}).
		Build()

	var interceptorCalls atomic.Int32
	client.UseRequestInterceptor(func(context.Context, *nethttp.Request) error {
		interceptorCalls.Add(1)
		return nil
	})

	resp, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, int32(2), serverCalls.Load())
	assert.Equal(t, int32(1), interceptorCalls.Load())
}

func TestResponseInterceptorsSeeOnlyTheFinalResponse(t *testing.T) {
	log := createTestLogger()
	ctx := context.Background()

	var serverCalls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if serverCalls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", testJSONContentType)
		w.Write([]byte(`{"state": "ready"}`))
	}))
	defer server.Close()

	client := NewBuilder(log).
		WithRetry(RetryPolicy{
			Count:             1,
			Strategy:          BackoffLinear,
			BaseDelay:         5 * time.Millisecond,
			RetryableStatuses: []int{nethttp.StatusServiceUnavailable},
		}).
		Build()

	var observed []int
	client.UseResponseInterceptor(func(_ context.Context, _ *nethttp.Request, resp *Response) error {
		observed = append(observed, resp.StatusCode)
		// Materialization happened before the chain ran.
		assert.NotNil(t, resp.Data)
		return nil
	})

	resp, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, []int{nethttp.StatusOK}, observed)
}

func TestResponseInterceptorsCanMutateTheResult(t *testing.T) {
	client := NewClient(createTestLogger())
	ctx := context.Background()

	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.Header().Set("Content-Type", testTextPlainType)
		w.Write([]byte("original"))
	}))
	defer server.Close()

	client.UseResponseInterceptor(func(_ context.Context, _ *nethttp.Request, resp *Response) error {
		resp.Data = "replaced"
		return nil
	})

	resp, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "replaced", resp.Data)
	assert.Equal(t, "original", string(resp.Body))
}

func TestRequestInterceptorErrorAbortsTheCall(t *testing.T) {
	client := NewClient(createTestLogger())
	ctx := context.Background()

	var serverCalls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		serverCalls.Add(1)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	cause := errors.New("token refresh failed")
	client.UseRequestInterceptor(func(context.Context, *nethttp.Request) error {
		return cause
	})

	_, err := client.Get(ctx, &Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, InterceptorError))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), stageRequest)
	assert.Equal(t, int32(0), serverCalls.Load())
}

func TestResponseInterceptorErrorSurfaces(t *testing.T) {
	client := NewClient(createTestLogger())
	ctx := context.Background()

	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	cause := errors.New("schema validation failed")
	client.UseResponseInterceptor(func(context.Context, *nethttp.Request, *Response) error {
		return cause
	})

	_, err := client.Get(ctx, &Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, InterceptorError))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), stageResponse)
}

func TestEjectThroughTheClient(t *testing.T) {
	client := NewClient(createTestLogger())
	ctx := context.Background()

	var seenHeaders nethttp.Header
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		seenHeaders = r.Header.Clone()
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	firstID := client.UseRequestInterceptor(func(_ context.Context, req *nethttp.Request) error {
		req.Header.Set("X-First", "on")
		return nil
	})
	client.UseRequestInterceptor(func(_ context.Context, req *nethttp.Request) error {
		req.Header.Set("X-Second", "on")
		return nil
	})

	client.EjectRequestInterceptor(firstID)

	_, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Empty(t, seenHeaders.Get("X-First"))
	assert.Equal(t, "on", seenHeaders.Get("X-Second"))
}

func TestClearInterceptorsThroughTheClient(t *testing.T) {
	client := NewClient(createTestLogger())
	ctx := context.Background()

	var seenHeaders nethttp.Header
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		seenHeaders = r.Header.Clone()
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client.UseRequestInterceptor(func(_ context.Context, req *nethttp.Request) error {
		req.Header.Set("X-Marked", "on")
		return nil
	})
	client.ClearInterceptors()

	_, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Empty(t, seenHeaders.Get("X-Marked"))
}

func TestRegistryConcurrentMutation(t *testing.T) {
	log := createTestLogger()
	ctx := context.Background()

	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := NewClient(log)

	var wg sync.WaitGroup
	gate := make(chan struct{})

	// Half the goroutines mutate the chains while the other half drive calls
	// that iterate them. The snapshot discipline keeps every call valid no
	// matter how the operations interleave.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			for j := 0; j < 20; j++ {
				id := client.UseRequestInterceptor(func(context.Context, *nethttp.Request) error {
					return nil
				})
				client.EjectRequestInterceptor(id)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			for j := 0; j < 5; j++ {
				_, err := client.Get(ctx, &Request{URL: server.URL})
				assert.NoError(t, err)
			}
		}()
	}

	close(gate)
	wg.Wait()
}

func TestBuilderSeededInterceptorsRunFirst(t *testing.T) {
	log := createTestLogger()
	ctx := context.Background()

	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	var order []string
	client := NewBuilder(log).
		WithRequestInterceptor(func(context.Context, *nethttp.Request) error {
			order = append(order, "builder")
			return nil
		}).
		Build()

	runtimeID := client.UseRequestInterceptor(func(context.Context, *nethttp.Request) error {
		order = append(order, "runtime")
		return nil
	})
	assert.Equal(t, 1, runtimeID)

	_, err := client.Get(ctx, &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"builder", "runtime"}, order)
}
