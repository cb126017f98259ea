package store

import (
	"strings"

	"github.com/tidwall/gjson"
)

// arrayBody returns the text between the first '[' and the last ']'.
// ok is false when the data holds no such pair.
func arrayBody(data string) (body string, ok bool) {
	start := strings.IndexByte(data, '[')
	end := strings.LastIndexByte(data, ']')
	if start < 0 || end < start {
		return "", false
	}
	return data[start+1 : end], true
}

// splitFragments cuts an array body at top-level commas. Commas inside
// string literals or nested braces/brackets never cut.
//
// A fragment that is not valid JSON is cut again at its first "}," and
// scanning restarts right after it, so a record with a stray quote or an
// unclosed brace cannot swallow the records that follow.
func splitFragments(body string) []string {
	var fragments []string
	for {
		raw, rest, more := nextFragment(body)
		if f := normalizeFragment(raw); f != "" && !gjson.Valid(f) {
			if k := strings.Index(raw, "},"); k >= 0 {
				fragments = appendFragment(fragments, raw[:k+1])
				body = body[k+2:]
				continue
			}
		}
		fragments = appendFragment(fragments, raw)
		if !more {
			return fragments
		}
		body = rest
	}
}

// nextFragment scans body up to its first top-level comma. more is false
// when body held no such comma.
func nextFragment(body string) (raw, rest string, more bool) {
	var (
		depth    int
		inString bool
		escaped  bool
	)

	for i := 0; i < len(body); i++ {
		c := body[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return body[:i], body[i+1:], true
			}
		}
	}

	return body, "", false
}

func appendFragment(fragments []string, raw string) []string {
	f := normalizeFragment(raw)
	if f == "" {
		return fragments
	}
	return append(fragments, f)
}

// normalizeFragment strips whitespace outside string literals and closes an
// object that lost its final brace.
func normalizeFragment(raw string) string {
	f := compact(raw)
	if strings.HasPrefix(f, "{") && !strings.HasSuffix(f, "}") {
		f += "}"
	}
	return f
}

// compact removes spaces, tabs, and line breaks outside string literals.
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			inString = true
		}
		b.WriteByte(c)
	}

	return b.String()
}
