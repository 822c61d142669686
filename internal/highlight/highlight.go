// Package highlight marks an extracted answer inside its source context.
package highlight

import (
	"strings"
	"unicode/utf8"
)

// Marker wraps the highlighted span on both sides.
const Marker = "**"

// Highlight returns context with the answer span wrapped in Marker.
//
// When start and end are a valid byte range on rune boundaries the span
// context[start:end] is marked. Otherwise the first verbatim occurrence of
// answer is marked. If neither applies, context is returned unchanged.
func Highlight(context, answer string, start, end int) string {
	if validSpan(context, start, end) {
		return wrap(context, start, end)
	}
	if answer == "" {
		return context
	}
	if i := strings.Index(context, answer); i >= 0 {
		return wrap(context, i, i+len(answer))
	}
	return context
}

func validSpan(s string, start, end int) bool {
	if start < 0 || end > len(s) || start >= end {
		return false
	}
	return boundary(s, start) && boundary(s, end)
}

func boundary(s string, i int) bool {
	return i == len(s) || utf8.RuneStart(s[i])
}

func wrap(s string, start, end int) string {
	var b strings.Builder
	b.Grow(len(s) + 2*len(Marker))
	b.WriteString(s[:start])
	b.WriteString(Marker)
	b.WriteString(s[start:end])
	b.WriteString(Marker)
	b.WriteString(s[end:])
	return b.String()
}
