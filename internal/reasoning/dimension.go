package reasoning

import "strings"

// NormalizeDimension parses an affected-dimension string that may use
// either "kind:value" or "kind=value" as the separator and returns it canonicalized to "kind:value". Strings that
// contain neither separator are returned unchanged.
func NormalizeDimension(s string) string {
	if idx := strings.IndexAny(s, ":="); idx >= 0 {
		return s[:idx] + ":" + s[idx+1:]
	}
	return s
}

// DimensionKind returns the "kind" portion of a "kind:value" or
// "kind=value" dimension string (e.g. "issuer" from "issuer:HDFC").
func DimensionKind(s string) string {
	normalized := NormalizeDimension(s)
	if idx := strings.IndexByte(normalized, ':'); idx >= 0 {
		return normalized[:idx]
	}
	return normalized
}
