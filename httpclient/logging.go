package httpclient

import (
	nethttp "net/http"
)

const (
	// DefaultMaxPayloadLogBytes caps logged body previews when no limit is configured
	DefaultMaxPayloadLogBytes = 1024

	msgClientRequest  = "HTTP client request"
	msgClientResponse = "HTTP client response"
)

// previewBody returns at most max bytes of body and whether it was truncated.
func previewBody(body []byte, max int) ([]byte, bool) {
	if max <= 0 {
		max = DefaultMaxPayloadLogBytes
	}
	if len(body) > max {
		return body[:max], true
	}
	return body, false
}

// logRequest emits one info event per call and, when payload logging is on,
// a debug event with headers and a truncated body preview.
func (c *client) logRequest(req *nethttp.Request, body []byte, traceID string) {
	infoEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID)

	if len(req.Header) > 0 {
		infoEvent = infoEvent.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		infoEvent = infoEvent.Int("body_size", len(body))
	}
	infoEvent.Msg(msgClientRequest)

	if !c.config.LogPayloads {
		return
	}

	preview, truncated := previewBody(body, c.config.MaxPayloadLogBytes)
	debugEvent := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID).
		Interface("headers", map[string][]string(req.Header)).
		Int("body_size", len(body)).
		Str("body_truncated", boolField(truncated))

	if len(preview) > 0 {
		debugEvent = debugEvent.Bytes("body_preview", preview)
	}
	debugEvent.Msg(msgClientRequest)
}

// logResponse mirrors logRequest for the final response of a call.
func (c *client) logResponse(resp *Response, traceID string) {
	infoEvent := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int("attempts", resp.Stats.Attempts).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", traceID)

	if len(resp.Body) > 0 {
		infoEvent = infoEvent.Int("body_size", len(resp.Body))
	}
	infoEvent.Msg(msgClientResponse)

	if !c.config.LogPayloads {
		return
	}

	preview, truncated := previewBody(resp.Body, c.config.MaxPayloadLogBytes)
	debugEvent := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", traceID).
		Interface("headers", map[string][]string(resp.Headers)).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", boolField(truncated))

	if len(preview) > 0 {
		debugEvent = debugEvent.Bytes("body_preview", preview)
	}
	debugEvent.Msg(msgClientResponse)
}

func boolField(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
