// Package curl parses curl-style command strings into executable HTTP
// requests backed by the httpclient package.
//
// Parse is a pure function from string to Command: it never fails, never
// panics, and never touches the network. Malformed input degrades field by
// field, so any pasted string yields a Command (the URL may be empty).
// Converting a Command into an executable request is the only failing step,
// and only when no URL was found.
//
// Supported flags
//   - -X/--request, -H/--header, -d/--data/--data-raw/--data-binary
//   - -u/--user, --url, -A/--user-agent, -e/--referer, -b/--cookie
//   - --compressed (sets Accept-Encoding)
//   - Output and transport flags such as -L, -s, -k or -v are recognized
//     and recorded on Command.Ignored but have no effect.
//
// A data flag without an explicit method promotes GET to POST, matching
// curl. Multiline commands using backslash or caret line continuations are
// flattened before parsing.
//
//	cmd := curl.Parse(`curl -H "Content-Type: application/json" -d '{"name":"John"}' https://api.example.com/users`)
//	resp, err := cmd.Do(ctx, client)
package curl
