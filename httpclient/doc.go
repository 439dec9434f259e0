// Package httpclient provides a convenience layer over net/http with
// request/response interceptors, typed errors, body materialization,
// and a retry mechanism with configurable backoff and jitter.
//
// Retries
//   - Controlled via RetryPolicy on the client or per request.
//   - The attempt budget is Count+1; attempts run strictly sequentially.
//   - Retries occur on:
//   - Transport errors (network failures)
//   - Timeouts (context deadline exceeded or net.Error timeout)
//   - Statuses listed in RetryableStatuses
//   - Caller cancellation is never retried and aborts backoff sleeps.
//   - A retryable status on the last attempt is returned as a normal
//     response, not an error: status handling stays representation.
//
// Backoff Strategy
//   - Exponential (default): delay = baseDelay * 2^(attempt-1), capped at
//     maxDelay, with a symmetric jitter of up to 25%.
//   - Linear: delay = baseDelay * attempt.
//   - Every delay is clamped to [0, maxDelay].
//
// Notes
//   - Request bodies are re-sent by cloning the request and rewinding the
//     body via GetBody on each attempt.
//   - Request interceptors run once per logical call; response
//     interceptors run on the final materialized response only.
//   - Interceptor errors are not retried and are surfaced immediately.
package httpclient
