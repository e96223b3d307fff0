package db2i

import (
	"strings"
	"unicode/utf8"
)

const truncateSuffix = "..."

// TruncateWord shortens s to at most length runes, cutting at the last
// word boundary and appending "...". Strings at or under length and
// non-positive lengths leave s unchanged.
func TruncateWord(s string, length int) string {
	if length <= 0 || utf8.RuneCountInString(s) <= length {
		return s
	}
	cut := length - len(truncateSuffix)
	if cut < 0 {
		cut = 0
	}
	head := string([]rune(s)[:cut])
	if i := strings.LastIndex(head, " "); i >= 0 {
		head = head[:i]
	}
	return head + truncateSuffix
}

func truncateValue(v any, length int) any {
	if s, ok := v.(string); ok {
		return TruncateWord(s, length)
	}
	return v
}

// clip renders at most n runes of s, marking the cut with "...".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-len(truncateSuffix)]) + truncateSuffix
}
