package curl

import (
	"strings"
	"unicode"
)

// continuationReplacer strips shell and cmd.exe line continuations so that
// multiline invocations flatten into one logical line before tokenizing.
var continuationReplacer = strings.NewReplacer(
	"\\\r\n", " ",
	"\\\n", " ",
	"^\r\n", " ",
	"^\n", " ",
)

// normalize flattens a raw command string: line continuations become spaces,
// runs of whitespace collapse to a single space, and the result is trimmed.
// Collapsing is quote-blind, so whitespace runs inside quoted values flatten
// too. Commands pasted from browser dev tools or shell history parse the
// same whether they arrive on one line or many.
func normalize(command string) string {
	return strings.Join(strings.Fields(continuationReplacer.Replace(command)), " ")
}

// tokenize splits a command line into shell-style tokens.
//
// Single and double quotes group characters into one token; the delimiting
// quotes are elided. Inside double quotes \" and \\ escape, any other
// backslash stays literal. Inside single quotes nothing is special. A quote
// of the other kind inside quotes is a literal character. Outside quotes a
// backslash makes the next rune literal (the backslash is dropped) and
// whitespace separates tokens.
//
// tokenize is total: an unterminated quote turns the remainder of the string
// into the final token, and empty quoted strings produce an empty token.
func tokenize(command string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune
	inToken := false
	escaped := false
	quotedEscape := false

	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for _, r := range command {
		switch {
		case escaped:
			current.WriteRune(r)
			inToken = true
			escaped = false
		case quotedEscape:
			quotedEscape = false
			if r == '"' || r == '\\' {
				current.WriteRune(r)
			} else {
				current.WriteRune('\\')
				current.WriteRune(r)
			}
		case quote != 0:
			switch {
			case r == quote:
				quote = 0
			case quote == '"' && r == '\\':
				quotedEscape = true
			default:
				current.WriteRune(r)
			}
		case r == '\\':
			escaped = true
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	// a backslash pending at end of input inside double quotes is literal
	if quotedEscape {
		current.WriteRune('\\')
	}
	flush()
	return tokens
}
