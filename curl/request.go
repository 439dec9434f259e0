package curl

import (
	"context"
	"encoding/json"
	"mime"
	"strings"

	"github.com/gaborage/go-curling/httpclient"
)

// ToRequest converts a parsed command into an executable request. This is
// the only failing step of the pipeline: a command without a URL cannot
// execute. Basic auth is split from User on the first colon, so passwords
// may contain colons; a value without a colon is malformed and dropped.
func (c *Command) ToRequest() (*httpclient.Request, error) {
	if c.URL == "" {
		return nil, httpclient.NewValidationError("no URL found in command", "url")
	}

	req := &httpclient.Request{URL: c.URL}
	if len(c.Header) > 0 {
		req.Headers = make(map[string]string, len(c.Header))
		for name, values := range c.Header {
			// repeated headers collapse to the last occurrence
			req.Headers[name] = values[len(values)-1]
		}
	}
	if username, password, ok := strings.Cut(c.User, ":"); ok {
		req.Auth = &httpclient.BasicAuth{Username: username, Password: password}
	}
	if c.HasBody {
		req.Body = classifyBody(c.Body, c.Header.Get("Content-Type"))
	}
	return req, nil
}

// Do converts the command into a request and executes it with the command's
// method.
func (c *Command) Do(ctx context.Context, client httpclient.Client) (*httpclient.Response, error) {
	req, err := c.ToRequest()
	if err != nil {
		return nil, err
	}
	return client.Do(ctx, c.Method, req)
}

// classifyBody picks the body variant from the declared Content-Type. With
// no Content-Type the text is sniffed once: valid JSON is sent as a JSON
// body, anything else stays raw with whatever headers the command carries.
func classifyBody(body, contentType string) *httpclient.Body {
	switch {
	case contentType == "":
		if json.Valid([]byte(body)) {
			return httpclient.JSONBody(body)
		}
		return httpclient.RawBody([]byte(body), "")
	case isJSONContentType(contentType):
		return httpclient.JSONBody(body)
	case isFormContentType(contentType):
		return &httpclient.Body{Kind: httpclient.BodyForm, Value: body}
	default:
		return httpclient.RawBody([]byte(body), "")
	}
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isFormContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}
