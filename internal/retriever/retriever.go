// Package retriever answers questions against an indexed corpus. Every
// outcome, including collaborator failures, is returned as a displayable
// Result rather than an error.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docchat/internal/embed"
	"github.com/dgallion1/docchat/internal/extract"
	"github.com/dgallion1/docchat/internal/highlight"
	"github.com/dgallion1/docchat/internal/metrics"
)

// Status names the outcome of a question.
type Status string

const (
	StatusOK            Status = "ok"
	StatusEmptyQuestion Status = "empty_question"
	StatusNoText        Status = "no_text"
	StatusNoContext     Status = "no_context"
	StatusEmbedFailed   Status = "embed_failed"
	StatusExtractFailed Status = "extract_failed"
	StatusNotConfident  Status = "not_confident"
)

// User-facing messages.
const (
	MsgEmptyQuestion = "Please type a question."
	MsgNoText        = "No valid text could be extracted from the files."
	MsgNoContext     = "I found no relevant context in the documents."
	MsgNotConfident  = "I'm not sure; try rephrasing the question or uploading more specific documents."
	msgExtractFailed = "An error occurred while generating the answer: %v"
	msgEmbedFailed   = "An error occurred while searching the documents: %v"
)

// ContextSeparator joins retrieved chunk texts into one context.
const ContextSeparator = " ... "

type Config struct {
	TopK         int
	PreviewChars int
}

func DefaultConfig() Config {
	return Config{TopK: 4, PreviewChars: 1200}
}

// Candidate is a retrieved chunk.
type Candidate struct {
	Index  int     `json:"index"`
	Score  float32 `json:"score"`
	Source string  `json:"source,omitempty"`
	Text   string  `json:"text"`
}

// Result is the outcome of one question. Message is always displayable.
type Result struct {
	Status     Status      `json:"status"`
	Message    string      `json:"message"`
	Answer     string      `json:"answer"`
	Context    string      `json:"-"`
	Candidates []Candidate `json:"candidates"`
}

// Retriever ties an embedder and an answer extractor together. The embedder
// must be the one the searched corpus was built with.
type Retriever struct {
	embedder  embed.Embedder
	extractor extract.Extractor
	cfg       Config
	stats     *Stats
	log       *slog.Logger
}

func New(embedder embed.Embedder, extractor extract.Extractor, cfg Config, log *slog.Logger) *Retriever {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = def.PreviewChars
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{embedder: embedder, extractor: extractor, cfg: cfg, stats: NewStats(time.Hour), log: log}
}

// Config returns the effective configuration.
func (r *Retriever) Config() Config { return r.cfg }

// Embedder returns the embedder queries and corpora must share.
func (r *Retriever) Embedder() embed.Embedder { return r.embedder }

// Stats returns the latency and outcome counters of recent questions.
func (r *Retriever) Stats() *Stats { return r.stats }

// AnswerQuery answers question from corpus using up to k chunks. A k below 1
// uses the configured default.
func (r *Retriever) AnswerQuery(ctx context.Context, question string, corpus *Corpus, k int) Result {
	t := newTiming()
	start := time.Now()
	res := r.answer(ctx, question, corpus, k, &t)
	t.set(PhaseTotal, time.Since(start))
	r.stats.record(res.Status, t)
	metrics.QuestionsTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (r *Retriever) answer(ctx context.Context, question string, corpus *Corpus, k int, t *timing) Result {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{Status: StatusEmptyQuestion, Message: MsgEmptyQuestion}
	}
	if corpus.Empty() {
		return Result{Status: StatusNoText, Message: MsgNoText}
	}
	if corpus.Model != r.embedder.Model() || corpus.Normalized != r.embedder.Normalized() {
		err := fmt.Errorf("corpus embedded with %s (normalized=%t), query embedder is %s (normalized=%t)",
			corpus.Model, corpus.Normalized, r.embedder.Model(), r.embedder.Normalized())
		r.log.Error("embedder mismatch", "error", err)
		return Result{Status: StatusEmbedFailed, Message: fmt.Sprintf(msgEmbedFailed, err)}
	}

	if k < 1 {
		k = r.cfg.TopK
	}
	kSafe := max(1, min(k, len(corpus.Chunks)))

	start := time.Now()
	qvec, err := embed.EmbedOne(ctx, r.embedder, question)
	t.set(PhaseEmbed, time.Since(start))
	metrics.EmbedDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	if err != nil {
		r.log.Error("embed question failed", "error", err)
		return Result{Status: StatusEmbedFailed, Message: fmt.Sprintf(msgEmbedFailed, err)}
	}

	start = time.Now()
	hits, err := corpus.Index.Search(qvec, kSafe)
	t.set(PhaseSearch, time.Since(start))
	if err != nil {
		r.log.Error("index search failed", "error", err)
		return Result{Status: StatusEmbedFailed, Message: fmt.Sprintf(msgEmbedFailed, err)}
	}

	candidates := make([]Candidate, 0, len(hits))
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(corpus.Chunks) {
			r.log.Warn("dropping out-of-range hit", "index", h.Index, "chunks", len(corpus.Chunks))
			continue
		}
		c := corpus.Chunks[h.Index]
		candidates = append(candidates, Candidate{Index: h.Index, Score: h.Score, Source: c.Source, Text: c.Text})
		texts = append(texts, c.Text)
	}

	passage := strings.TrimSpace(strings.Join(texts, ContextSeparator))
	if passage == "" {
		return Result{Status: StatusNoContext, Message: MsgNoContext, Candidates: candidates}
	}

	start = time.Now()
	ans, err := r.extractor.Extract(ctx, question, passage)
	t.set(PhaseExtract, time.Since(start))
	metrics.ExtractDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.log.Error("answer extraction failed", "error", err)
		return Result{
			Status:     StatusExtractFailed,
			Message:    fmt.Sprintf(msgExtractFailed, err),
			Context:    passage,
			Candidates: candidates,
		}
	}

	text := strings.TrimSpace(ans.Text)
	if text == "" {
		return Result{
			Status:     StatusNotConfident,
			Message:    Render(MsgNotConfident, r.preview(passage, extract.Answer{Start: extract.NoOffset, End: extract.NoOffset})),
			Context:    passage,
			Candidates: candidates,
		}
	}

	return Result{
		Status:     StatusOK,
		Message:    Render(text, r.preview(passage, extract.Answer{Text: text, Start: ans.Start, End: ans.End})),
		Answer:     text,
		Context:    passage,
		Candidates: candidates,
	}
}

// preview truncates passage to the configured number of runes and highlights
// the answer inside what remains.
func (r *Retriever) preview(passage string, ans extract.Answer) string {
	cut := truncateRunes(passage, r.cfg.PreviewChars)
	if ans.Text == "" {
		return cut
	}
	return highlight.Highlight(cut, ans.Text, ans.Start, ans.End)
}

// Render formats an answer with its context preview.
func Render(answer, preview string) string {
	return "**Answer:** " + answer + "\n\n**Related context:** " + preview + "..."
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
