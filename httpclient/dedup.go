package httpclient

import (
	nethttp "net/http"
)

// shouldDeduplicate limits request collapsing to idempotent, bodyless,
// non-streaming calls.
func (c *client) shouldDeduplicate(method string, req *Request, streaming bool) bool {
	if c.flights == nil || streaming {
		return false
	}
	if req.Body != nil {
		return false
	}
	return method == nethttp.MethodGet || method == nethttp.MethodHead
}

// deduplicate collapses concurrent identical calls into a single execution.
// Joined callers receive the winning execution's Response with its response
// chain already applied, so shared results are observed identically.
func (c *client) deduplicate(key string, run func() (*Response, error)) (*Response, error) {
	value, err, _ := c.flights.Do(key, func() (any, error) {
		return run()
	})
	if err != nil {
		return nil, err
	}
	return value.(*Response), nil
}
