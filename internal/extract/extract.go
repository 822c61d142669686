// Package extract finds the answer to a question inside a context string.
package extract

import "context"

// NoOffset marks an answer whose position in the context is unknown.
const NoOffset = -1

// Answer is an extracted span. Start and End are byte offsets into the
// context the answer was extracted from, or NoOffset when unknown.
type Answer struct {
	Text  string  `json:"answer"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score,omitempty"`
}

// Empty reports whether no answer text was produced.
func (a Answer) Empty() bool { return a.Text == "" }

// Extractor answers a question from a context. An error means the
// extractor itself failed; an empty Answer means it found nothing.
type Extractor interface {
	Extract(ctx context.Context, question, passage string) (Answer, error)
}
