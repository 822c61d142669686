package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxAnswerRunes bounds an accepted answer.
const MaxAnswerRunes = 500

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ValidateAnswer trims a, drops answers that are too long or look like
// injected instructions, and reconciles its offsets with context. An answer
// that fails validation is returned empty.
func ValidateAnswer(a Answer, context string) Answer {
	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" {
		return Answer{Start: NoOffset, End: NoOffset}
	}
	if utf8.RuneCountInString(a.Text) > MaxAnswerRunes || injectionPattern.MatchString(a.Text) {
		return Answer{Start: NoOffset, End: NoOffset}
	}
	return Locate(a, context)
}

// Locate keeps a's offsets when they select exactly a.Text in context.
// Otherwise it points them at the first verbatim occurrence, or sets both
// to NoOffset when the text does not occur.
func Locate(a Answer, context string) Answer {
	if a.Start >= 0 && a.End <= len(context) && a.Start < a.End && context[a.Start:a.End] == a.Text {
		return a
	}
	if i := strings.Index(context, a.Text); i >= 0 && a.Text != "" {
		a.Start, a.End = i, i+len(a.Text)
		return a
	}
	a.Start, a.End = NoOffset, NoOffset
	return a
}
