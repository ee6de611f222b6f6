package diff

import (
	"fmt"
	"unicode/utf8"
)

// Limit caps text at maxBytes. If text fits (or maxBytes <= 0) it is returned
// unchanged with false. Otherwise the result is at most maxBytes of text,
// cut back to a rune boundary, followed by TruncationNotice(maxBytes).
func Limit(text string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text, false
	}
	return truncateUTF8(text, maxBytes) + TruncationNotice(maxBytes), true
}

// TruncationNotice is appended to a truncated diff.
func TruncationNotice(maxBytes int) string {
	return fmt.Sprintf("... [truncated up to %d bytes]", maxBytes)
}

// truncateUTF8 returns at most n bytes of s without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
