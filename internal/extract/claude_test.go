package extract

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func claudeReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return string(b)
}

func newTestExtractor(url string) *ClaudeExtractor {
	return NewClaudeExtractor("test-key", "", WithEndpoint(url),
		WithBackoff(func(int) time.Duration { return 0 }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestClaudeExtractor_Extract(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		io.WriteString(w, claudeReply("```json\n{\"answer\": \"Paris\", \"start\": 0, \"end\": 5}\n```"))
	}))
	defer srv.Close()

	c := newTestExtractor(srv.URL)
	defer c.Close()

	got, err := c.Extract(context.Background(), "What is the capital of France?", "Paris is the capital of France.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "Paris" || got.Start != 0 || got.End != 5 {
		t.Errorf("unexpected answer: %+v", got)
	}
	if gotReq.Model != DefaultClaudeModel {
		t.Errorf("expected default model, got %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || !strings.Contains(gotReq.Messages[0].Content, "Paris is the capital of France.") {
		t.Errorf("prompt did not carry the passage: %+v", gotReq.Messages)
	}
}

func TestClaudeExtractor_RelocatesOffsets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, claudeReply(`{"answer": "Berlin", "start": 0, "end": 6}`))
	}))
	defer srv.Close()

	passage := "Paris is in France. ... Berlin is in Germany."
	got, err := newTestExtractor(srv.URL).Extract(context.Background(), "q", passage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if passage[got.Start:got.End] != "Berlin" {
		t.Errorf("expected offsets relocated to Berlin, got %d..%d", got.Start, got.End)
	}
}

func TestClaudeExtractor_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, claudeReply(`{"answer": "", "start": -1, "end": -1}`))
	}))
	defer srv.Close()

	got, err := newTestExtractor(srv.URL).Extract(context.Background(), "q", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("expected empty answer, got %+v", got)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClaudeExtractor_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "q", "p")
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if int(calls.Load()) != MaxRetries {
		t.Errorf("expected %d calls, got %d", MaxRetries, calls.Load())
	}
}

func TestClaudeExtractor_PermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "q", "p")
	if err == nil || IsRetryable(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestClaudeExtractor_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, claudeReply("Paris, obviously"))
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "q", "p")
	if err == nil || !strings.Contains(err.Error(), "parse answer json") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestStripCodeBlock(t *testing.T) {
	tests := map[string]string{
		"```json\n{}\n```": "{}",
		"```\n{}\n```":     "{}",
		"  {}  ":           "{}",
	}
	for in, want := range tests {
		if got := stripCodeBlock(in); got != want {
			t.Errorf("stripCodeBlock(%q) = %q, want %q", in, got, want)
		}
	}
}
