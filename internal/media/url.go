package media

import (
	"net/url"
	"strings"
)

// SanitizeURL normalizes a possibly malformed source URL into one that is
// safe to open as a request target: whitespace is stripped from the path
// part and query parameters are re-encoded. Query pairs that do not split
// into a key and a value are dropped. Best effort; never fails the caller.
func SanitizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)

	base, query, hasQuery := strings.Cut(trimmed, "?")
	base = strings.Join(strings.Fields(base), "")

	if !hasQuery || query == "" {
		return base
	}

	return base + "?" + encodeQuery(query)
}

func encodeQuery(query string) string {
	pairs := strings.Split(query, "&")
	encoded := make([]string, 0, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		encoded = append(encoded, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}

	return strings.Join(encoded, "&")
}
