package extract

import (
	"context"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "does": true, "for": true, "from": true,
	"how": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"with": true,
}

// LexicalExtractor answers with the passage sentence sharing the most
// content words with the question. It needs no model and is deterministic.
type LexicalExtractor struct{}

func NewLexicalExtractor() *LexicalExtractor { return &LexicalExtractor{} }

// Extract returns the best sentence with its byte offsets in passage, or an
// empty answer when no sentence shares a content word with the question.
func (LexicalExtractor) Extract(ctx context.Context, question, passage string) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	want := contentTerms(question)
	none := Answer{Start: NoOffset, End: NoOffset}
	if len(want) == 0 {
		return none, nil
	}

	best, bestHits := span{}, 0
	for _, s := range sentences(passage) {
		hits := 0
		for t := range contentTerms(passage[s.start:s.end]) {
			if want[t] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = s, hits
		}
	}
	if bestHits == 0 {
		return none, nil
	}
	return Answer{
		Text:  passage[best.start:best.end],
		Start: best.start,
		End:   best.end,
		Score: float64(bestHits) / float64(len(want)),
	}, nil
}

type span struct{ start, end int }

// sentences splits s at terminal punctuation followed by whitespace or the
// end of input. Spans are trimmed and never empty.
func sentences(s string) []span {
	var out []span
	start := 0
	emit := func(end int) {
		a, b := start, end
		for a < b && isSpace(s[a]) {
			a++
		}
		for b > a && isSpace(s[b-1]) {
			b--
		}
		if a < b {
			out = append(out, span{a, b})
		}
		start = end
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?', '\n':
			if i+1 == len(s) || isSpace(s[i+1]) {
				emit(i + 1)
			}
		}
	}
	emit(len(s))
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func contentTerms(s string) map[string]bool {
	terms := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if !stopwords[f] {
			terms[f] = true
		}
	}
	return terms
}
