// Package session holds per-conversation state: the uploaded corpus, its
// index and the transcript. Sessions never share mutable state.
package session

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docchat/internal/chunker"
	"github.com/dgallion1/docchat/internal/conversation"
	"github.com/dgallion1/docchat/internal/index"
	"github.com/dgallion1/docchat/internal/parser"
	"github.com/dgallion1/docchat/internal/retriever"
)

// User-facing messages for the one-shot chat flow.
const (
	MsgNoDocuments   = "Please upload at least one valid document."
	MsgUnreadable    = "I could not read any content from the uploaded files."
	msgIndexBuildErr = "Error building the index: %v"
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// Document describes an uploaded file after extraction.
type Document struct {
	ID     string `json:"doc_id"`
	Name   string `json:"filename"`
	Chars  int    `json:"chars"`
	Chunks int    `json:"chunks"`
}

// UploadSummary reports what an upload produced.
type UploadSummary struct {
	Documents []Document `json:"documents"`
	Chunks    int        `json:"chunks"`
	Skipped   []string   `json:"skipped"`
}

// Deps are the collaborators shared by all sessions. They hold no
// per-session state.
type Deps struct {
	Retriever *retriever.Retriever
	Parser    *parser.Extractor
	Chunking  chunker.Config
	Metric    index.Metric
	Log       *slog.Logger
}

// Session is one conversation. Questions are answered one at a time. An
// upload rebuilds the corpus without blocking questions and then replaces
// it in a single step, so a question sees either the old or the new corpus.
type Session struct {
	ID        string
	CreatedAt time.Time

	deps Deps
	log  *slog.Logger

	askMu    sync.Mutex
	uploadMu sync.Mutex
	corpus   atomic.Pointer[retriever.Corpus]
	docsMu   sync.Mutex
	docs     []Document

	transcript *conversation.Log
	lastUsed   atomic.Int64
}

func newSession(id string, deps Deps) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		deps:       deps,
		log:        deps.Log.With("session_id", id),
		transcript: conversation.NewLog(),
	}
	s.corpus.Store(&retriever.Corpus{})
	s.touch()
	return s
}

func (s *Session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

// LastUsed returns the time of the most recent operation.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// Upload replaces the session corpus with the given files. Files whose text
// cannot be extracted are skipped. On error the previous corpus stays.
func (s *Session) Upload(ctx context.Context, files []File) (UploadSummary, error) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	s.touch()

	corpus, summary, err := s.prepare(ctx, files)
	if err != nil {
		return summary, err
	}
	s.install(corpus, summary.Documents)
	return summary, nil
}

// prepare extracts, chunks and indexes files without touching session state.
func (s *Session) prepare(ctx context.Context, files []File) (*retriever.Corpus, UploadSummary, error) {
	summary := UploadSummary{Documents: []Document{}, Skipped: []string{}}
	seen := make(map[string]bool)
	var docs []chunker.Document

	for _, f := range files {
		id := ContentHashHex(f.Data)
		if seen[id] {
			s.log.Info("duplicate document skipped", "filename", f.Name, "doc_id", id)
			summary.Skipped = append(summary.Skipped, f.Name)
			continue
		}
		seen[id] = true

		text := chunker.Normalize(s.deps.Parser.ExtractText(f.Name, f.Data))
		if text == "" {
			summary.Skipped = append(summary.Skipped, f.Name)
			continue
		}
		docs = append(docs, chunker.Document{Name: f.Name, Text: text})
		summary.Documents = append(summary.Documents, Document{ID: id, Name: f.Name, Chars: len([]rune(text))})
	}

	chunks := chunker.ChunkDocuments(docs, s.deps.Chunking)
	for i := range summary.Documents {
		for _, c := range chunks {
			if c.Source == summary.Documents[i].Name {
				summary.Documents[i].Chunks++
			}
		}
	}
	summary.Chunks = len(chunks)

	start := time.Now()
	corpus, err := retriever.BuildCorpus(ctx, s.deps.Retriever.Embedder(), chunks, s.deps.Metric)
	if err != nil {
		s.log.Error("index build failed", "chunks", len(chunks), "error", err)
		return nil, summary, err
	}
	s.log.Info("index built",
		"documents", len(summary.Documents),
		"skipped", len(summary.Skipped),
		"chunks", len(chunks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return corpus, summary, nil
}

func (s *Session) install(corpus *retriever.Corpus, docs []Document) {
	s.corpus.Store(corpus)
	s.docsMu.Lock()
	s.docs = docs
	s.docsMu.Unlock()
}

// Ask answers question against the current corpus and records the turn.
func (s *Session) Ask(ctx context.Context, question string, k int) retriever.Result {
	s.askMu.Lock()
	defer s.askMu.Unlock()
	s.touch()

	res := s.deps.Retriever.AnswerQuery(ctx, question, s.corpus.Load(), k)
	s.transcript.Append(question, res.Message)
	s.log.Info("question answered", "status", res.Status, "candidates", len(res.Candidates))
	return res
}

// Chat uploads files and answers question in one step, recording exactly
// one turn whatever the outcome. It returns the full transcript.
func (s *Session) Chat(ctx context.Context, files []File, question string) []conversation.Turn {
	s.askMu.Lock()
	defer s.askMu.Unlock()
	s.touch()

	reply := s.chat(ctx, files, question)
	s.transcript.Append(question, reply)
	return s.transcript.Snapshot()
}

func (s *Session) chat(ctx context.Context, files []File, question string) string {
	if len(files) == 0 {
		return MsgNoDocuments
	}

	s.uploadMu.Lock()
	corpus, summary, err := s.prepare(ctx, files)
	if err == nil && !corpus.Empty() {
		s.install(corpus, summary.Documents)
	}
	s.uploadMu.Unlock()

	if err != nil {
		return fmt.Sprintf(msgIndexBuildErr, err)
	}
	if corpus.Empty() {
		return MsgUnreadable
	}

	res := s.deps.Retriever.AnswerQuery(ctx, question, corpus, s.deps.Retriever.Config().TopK)
	s.log.Info("question answered", "status", res.Status, "candidates", len(res.Candidates))
	return res.Message
}

// Transcript returns the recorded turns in order.
func (s *Session) Transcript() []conversation.Turn {
	s.touch()
	return s.transcript.Snapshot()
}

// Documents returns the documents behind the current corpus.
func (s *Session) Documents() []Document {
	s.docsMu.Lock()
	defer s.docsMu.Unlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Chunks returns the number of chunks in the current corpus.
func (s *Session) Chunks() int {
	return len(s.corpus.Load().Chunks)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
