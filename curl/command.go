package curl

import (
	nethttp "net/http"
	"strings"
)

// Command is the structured result of parsing a curl-style invocation. It is
// purely descriptive: Parse never dispatches network traffic, and a Command
// is not mutated after construction.
type Command struct {
	// Method is the HTTP method, default GET. A data flag promotes it to
	// POST unless an explicit -X/--request was given.
	Method string
	// URL is the first URL-looking token, or the --url value, which always
	// wins over positional inference. Empty when no URL was found.
	URL string
	// Header accumulates -H/--header values plus the headers implied by
	// -A, -e, -b and --compressed. Names are canonicalized.
	Header nethttp.Header
	// Body holds the last -d/--data/--data-raw/--data-binary value.
	Body string
	// HasBody distinguishes an empty -d "" body from no body at all.
	HasBody bool
	// User holds the raw -u/--user value (username[:password], unsplit).
	User string
	// Ignored records recognized flags that have no equivalent in the
	// request model, in order of appearance, so callers can surface them.
	Ignored []string
}

// ignoredFlags are curl flags the request model has no use for. They concern
// transport, TLS, or output verbosity and are recorded rather than rejected
// so that pasted commands keep parsing.
var ignoredFlags = map[string]bool{
	"-L": true, "--location": true,
	"-k": true, "--insecure": true,
	"-s": true, "--silent": true,
	"-S": true, "--show-error": true,
	"-i": true, "--include": true,
	"-v": true, "--verbose": true,
	"-f": true, "--fail": true,
	"--compressed-ssh": true,
}

// Parse converts a curl-style command string into a Command. It is total and
// deterministic: malformed input degrades field by field instead of failing,
// and parsing the same string twice yields deep-equal results. A leading
// "curl" token is stripped case-insensitively.
func Parse(command string) *Command {
	cmd := &Command{Method: nethttp.MethodGet, Header: nethttp.Header{}}

	tokens := tokenize(normalize(command))
	if len(tokens) > 0 && strings.EqualFold(tokens[0], "curl") {
		tokens = tokens[1:]
	}

	explicitMethod := false
	for i := 0; i < len(tokens); i++ {
		switch token := tokens[i]; token {
		case "-X", "--request":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.Method = strings.ToUpper(value)
				explicitMethod = true
			}
		case "-H", "--header":
			if value, ok := nextValue(tokens, &i); ok {
				addHeader(cmd.Header, value)
			}
		case "-d", "--data", "--data-raw", "--data-binary":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.Body = value
				cmd.HasBody = true
				if !explicitMethod {
					cmd.Method = nethttp.MethodPost
				}
			}
		case "-u", "--user":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.User = value
			}
		case "--url":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.URL = value
			}
		case "-A", "--user-agent":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.Header.Set("User-Agent", value)
			}
		case "-e", "--referer":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.Header.Set("Referer", value)
			}
		case "-b", "--cookie":
			if value, ok := nextValue(tokens, &i); ok {
				cmd.Header.Set("Cookie", value)
			}
		case "--compressed":
			cmd.Header.Set("Accept-Encoding", "gzip, deflate, br")
		default:
			switch {
			case ignoredFlags[token]:
				cmd.Ignored = append(cmd.Ignored, token)
			case strings.HasPrefix(token, "-"):
				// unknown flag: skipped without consuming a value, since
				// its arity is unknown; the next token stands on its own
			case cmd.URL == "" && looksLikeURL(token):
				cmd.URL = token
			}
		}
	}
	return cmd
}

// nextValue consumes the token after *i as a flag value. A flag at the end
// of the input has no value and is dropped.
func nextValue(tokens []string, i *int) (string, bool) {
	if *i+1 >= len(tokens) {
		return "", false
	}
	*i++
	return tokens[*i], true
}

// addHeader parses a "Name: value" header flag value, splitting on the first
// colon and trimming both sides. Values missing a name, a colon, or a value
// are dropped so that Parse stays total.
func addHeader(header nethttp.Header, raw string) {
	name, value, ok := strings.Cut(raw, ":")
	if !ok {
		return
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" || value == "" {
		return
	}
	header.Add(name, value)
}

// looksLikeURL reports whether a bare token should be taken as the request
// URL: anything carrying a scheme separator or a leading www.
func looksLikeURL(token string) bool {
	return strings.Contains(token, "://") || strings.HasPrefix(token, "www.")
}
