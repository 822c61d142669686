package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docchat/internal/chunker"
	"github.com/dgallion1/docchat/internal/embed"
	"github.com/dgallion1/docchat/internal/extract"
	"github.com/dgallion1/docchat/internal/index"
	"github.com/dgallion1/docchat/internal/parser"
	"github.com/dgallion1/docchat/internal/retriever"
)

type stubExtractor struct{ answer extract.Answer }

func (s stubExtractor) Extract(context.Context, string, string) (extract.Answer, error) {
	return s.answer, nil
}

// flakyEmbedder fails every call after the first n.
type flakyEmbedder struct {
	*embed.HashEmbedder
	ok    int32
	calls atomic.Int32
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) > f.ok {
		return nil, errors.New("embedding service down")
	}
	return f.HashEmbedder.Embed(ctx, texts)
}

func testDeps(e embed.Embedder, x extract.Extractor) Deps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Deps{
		Retriever: retriever.New(e, x, retriever.DefaultConfig(), log),
		Parser:    &parser.Extractor{Log: log},
		Chunking:  chunker.DefaultConfig(),
		Metric:    index.InnerProduct,
		Log:       log,
	}
}

func newTestSession(t *testing.T, x extract.Extractor) *Session {
	t.Helper()
	store := NewStore(testDeps(embed.NewHashEmbedder(384, true), x), time.Hour, 0)
	sess, err := store.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

var capitalFiles = []File{
	{Name: "fr.txt", Data: []byte("Paris is the capital of France.")},
	{Name: "de.txt", Data: []byte("Berlin is the capital of Germany.")},
}

func TestChat_NoFiles(t *testing.T) {
	sess := newTestSession(t, extract.NewLexicalExtractor())

	turns := sess.Chat(context.Background(), nil, "What is this?")
	if len(turns) != 1 {
		t.Fatalf("expected exactly one turn, got %d", len(turns))
	}
	if turns[0].Answer != MsgNoDocuments {
		t.Errorf("expected %q, got %q", MsgNoDocuments, turns[0].Answer)
	}
	if turns[0].Question != "User: What is this?" {
		t.Errorf("unexpected question label %q", turns[0].Question)
	}
}

func TestChat_UnreadableFiles(t *testing.T) {
	sess := newTestSession(t, extract.NewLexicalExtractor())

	turns := sess.Chat(context.Background(), []File{
		{Name: "scan.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "blank.txt", Data: []byte("   \n\t ")},
	}, "anything?")
	if len(turns) != 1 || turns[0].Answer != MsgUnreadable {
		t.Fatalf("expected one unreadable turn, got %+v", turns)
	}
}

func TestChat_AnswersFromFiles(t *testing.T) {
	sess := newTestSession(t, stubExtractor{answer: extract.Answer{Text: "Paris", Start: 0, End: 5}})

	turns := sess.Chat(context.Background(), capitalFiles, "What is the capital of France?")
	if len(turns) != 1 {
		t.Fatalf("expected one turn, got %d", len(turns))
	}
	if !strings.Contains(turns[0].Answer, "**Paris** is the capital of France.") {
		t.Errorf("expected highlighted answer, got %q", turns[0].Answer)
	}
	if sess.Chunks() != 2 {
		t.Errorf("expected chat to install 2 chunks, got %d", sess.Chunks())
	}

	turns = sess.Chat(context.Background(), capitalFiles, "")
	if len(turns) != 2 || turns[1].Answer != retriever.MsgEmptyQuestion {
		t.Errorf("expected second turn with empty question message, got %+v", turns)
	}
}

func TestChat_IndexBuildError(t *testing.T) {
	flaky := &flakyEmbedder{HashEmbedder: embed.NewHashEmbedder(32, true), ok: 0}
	store := NewStore(testDeps(flaky, extract.NewLexicalExtractor()), time.Hour, 0)
	sess, _ := store.Create()

	turns := sess.Chat(context.Background(), capitalFiles, "capital?")
	if len(turns) != 1 {
		t.Fatalf("expected one turn, got %d", len(turns))
	}
	if !strings.HasPrefix(turns[0].Answer, "Error building the index: ") ||
		!strings.Contains(turns[0].Answer, "embedding service down") {
		t.Errorf("unexpected answer %q", turns[0].Answer)
	}
}

func TestUploadThenAsk(t *testing.T) {
	sess := newTestSession(t, extract.NewLexicalExtractor())

	sum, err := sess.Upload(context.Background(), append(capitalFiles, File{Name: "empty.csv"}))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sum.Chunks != 2 || len(sum.Documents) != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(sum.Skipped) != 1 || sum.Skipped[0] != "empty.csv" {
		t.Errorf("expected empty.csv skipped, got %v", sum.Skipped)
	}
	if sum.Documents[0].Chunks != 1 || sum.Documents[0].ID != ContentHashHex(capitalFiles[0].Data) {
		t.Errorf("unexpected document info %+v", sum.Documents[0])
	}

	res := sess.Ask(context.Background(), "What is the capital of Germany?", 4)
	if res.Status != retriever.StatusOK {
		t.Fatalf("expected ok, got %s: %s", res.Status, res.Message)
	}
	if res.Answer != "Berlin is the capital of Germany." {
		t.Errorf("unexpected answer %q", res.Answer)
	}
	if got := sess.Transcript(); len(got) != 1 || got[0].Answer != res.Message {
		t.Errorf("expected the answer recorded once, got %+v", got)
	}
}

func TestUpload_SkipsDuplicates(t *testing.T) {
	sess := newTestSession(t, extract.NewLexicalExtractor())
	dup := File{Name: "copy.txt", Data: capitalFiles[0].Data}

	sum, err := sess.Upload(context.Background(), []File{capitalFiles[0], dup})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(sum.Documents) != 1 || len(sum.Skipped) != 1 || sum.Skipped[0] != "copy.txt" {
		t.Errorf("expected duplicate skipped, got %+v", sum)
	}
}

func TestUpload_FailureKeepsPreviousCorpus(t *testing.T) {
	flaky := &flakyEmbedder{HashEmbedder: embed.NewHashEmbedder(64, true), ok: 1}
	store := NewStore(testDeps(flaky, extract.NewLexicalExtractor()), time.Hour, 0)
	sess, _ := store.Create()

	if _, err := sess.Upload(context.Background(), capitalFiles); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	_, err := sess.Upload(context.Background(), []File{{Name: "new.txt", Data: []byte("Madrid is the capital of Spain.")}})
	if err == nil {
		t.Fatal("expected second upload to fail")
	}
	if sess.Chunks() != 2 {
		t.Errorf("expected previous 2 chunks to remain, got %d", sess.Chunks())
	}
	if docs := sess.Documents(); len(docs) != 2 || docs[0].Name != "fr.txt" {
		t.Errorf("expected previous documents to remain, got %+v", docs)
	}
}

func TestUpload_EmptyReplacesCorpus(t *testing.T) {
	sess := newTestSession(t, extract.NewLexicalExtractor())
	sess.Upload(context.Background(), capitalFiles)

	if _, err := sess.Upload(context.Background(), []File{{Name: "blank.txt", Data: []byte(" ")}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sess.Chunks() != 0 {
		t.Errorf("expected empty corpus, got %d chunks", sess.Chunks())
	}
	res := sess.Ask(context.Background(), "capital?", 4)
	if res.Status != retriever.StatusNoText || res.Message != retriever.MsgNoText {
		t.Errorf("expected no-text result, got %s %q", res.Status, res.Message)
	}
}

func TestAsk_ConcurrentWithUpload(t *testing.T) {
	sess := newTestSession(t, extract.NewLexicalExtractor())
	sess.Upload(context.Background(), capitalFiles)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res := sess.Ask(context.Background(), "capital of France", 2)
			if res.Status != retriever.StatusOK {
				t.Errorf("ask %d: expected ok, got %s", i, res.Status)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := sess.Upload(context.Background(), capitalFiles); err != nil {
				t.Errorf("upload %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if n := len(sess.Transcript()); n != 8 {
		t.Errorf("expected 8 turns, got %d", n)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	store := NewStore(testDeps(embed.NewHashEmbedder(64, true), extract.NewLexicalExtractor()), time.Hour, 0)
	a, _ := store.Create()
	b, _ := store.Create()

	a.Upload(context.Background(), capitalFiles)
	a.Ask(context.Background(), "capital?", 1)

	if b.Chunks() != 0 || len(b.Transcript()) != 0 {
		t.Errorf("session b saw a's state: chunks=%d turns=%d", b.Chunks(), len(b.Transcript()))
	}
}
