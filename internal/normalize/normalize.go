package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// hashBodyPrefix bounds how much of the body participates in the
	// content hash; drift beyond this prefix does not change the hash.
	hashBodyPrefix = 200

	// DefaultLeadChars caps the derived lead summary.
	DefaultLeadChars = 240
)

var whitespaceExpr = regexp.MustCompile(`\s+`)

// Canonicalize reduces an article URL to its deduplication key: the
// fragment and query string are dropped and a single trailing slash is
// trimmed. No percent-decoding or case-folding happens; the remaining
// characters are preserved exactly. Never fails, even on malformed input.
func Canonicalize(rawURL string) string {
	s := rawURL
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, "/")
}

// ContentHash digests the canonical URL together with the first 200
// characters of the body. Identical prefixes hash identically no matter
// what follows.
func ContentHash(canonicalURL, body string) string {
	prefix := body
	if runes := []rune(prefix); len(runes) > hashBodyPrefix {
		prefix = string(runes[:hashBodyPrefix])
	}
	sum := sha256.Sum256([]byte(canonicalURL + "|" + prefix))
	return hex.EncodeToString(sum[:])
}

// TruncateBody cuts body to at most maxChars characters. maxChars <= 0
// leaves the body untouched.
func TruncateBody(body string, maxChars int) string {
	if maxChars <= 0 {
		return body
	}
	runes := []rune(body)
	if len(runes) <= maxChars {
		return body
	}
	return string(runes[:maxChars])
}

// Lead derives a short summary from text: whitespace collapsed, trimmed,
// capped at maxChars with an ellipsis marker when truncated.
func Lead(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultLeadChars
	}
	s := strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "…"
}

// CollapseWhitespace folds runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(s, " "))
}
