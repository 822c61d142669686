package embed

import (
	"context"
	"errors"
	"math"
	"testing"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestNormalize_UnitLength(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if math.Abs(norm(v)-1) > 1e-6 {
		t.Errorf("expected unit length, got %f", norm(v))
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("expected [0.6 0.8], got %v", v)
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("component %d changed to %f", i, x)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("What's the CAPITAL of France? (2024)")
	want := []string{"what", "s", "the", "capital", "of", "france", "2024"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64, true)
	a, err := e.Embed(context.Background(), []string{"hello world", "hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != a[1][i] {
			t.Fatalf("expected identical vectors, differ at %d", i)
		}
	}
	if len(a[0]) != 64 || e.Dimension() != 64 {
		t.Errorf("expected dimension 64, got %d", len(a[0]))
	}
}

func TestHashEmbedder_NormalizationFlag(t *testing.T) {
	texts := []string{"alpha beta beta gamma"}

	unit, _ := NewHashEmbedder(128, true).Embed(context.Background(), texts)
	if math.Abs(norm(unit[0])-1) > 1e-5 {
		t.Errorf("expected unit vector, got norm %f", norm(unit[0]))
	}

	raw, _ := NewHashEmbedder(128, false).Embed(context.Background(), texts)
	if norm(raw[0]) <= 1 {
		t.Errorf("expected raw counts with norm > 1, got %f", norm(raw[0]))
	}
}

func TestHashEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	vecs, _ := NewHashEmbedder(16, true).Embed(context.Background(), []string{"  ?! "})
	if norm(vecs[0]) != 0 {
		t.Errorf("expected zero vector, got norm %f", norm(vecs[0]))
	}
}

func TestHashEmbedder_RanksSharedTerms(t *testing.T) {
	e := NewHashEmbedder(384, true)
	vecs, err := e.Embed(context.Background(), []string{
		"What is the capital of France?",
		"Paris is the capital of France.",
		"Berlin is the capital of Germany.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	france := dot(vecs[0], vecs[1])
	germany := dot(vecs[0], vecs[2])
	if france <= germany {
		t.Errorf("expected France chunk to score higher: %f vs %f", france, germany)
	}
}

func TestHashEmbedder_DefaultDimension(t *testing.T) {
	if d := NewHashEmbedder(0, true).Dimension(); d != 384 {
		t.Errorf("expected default dimension 384, got %d", d)
	}
}

type fixedEmbedder struct {
	out [][]float32
	err error
}

func (f fixedEmbedder) Embed(context.Context, []string) ([][]float32, error) { return f.out, f.err }
func (f fixedEmbedder) Normalized() bool                                     { return true }
func (f fixedEmbedder) Dimension() int                                       { return 2 }
func (f fixedEmbedder) Model() string                                        { return "fixed" }

func TestEmbedOne(t *testing.T) {
	v, err := EmbedOne(context.Background(), fixedEmbedder{out: [][]float32{{1, 0}}}, "q")
	if err != nil || len(v) != 2 {
		t.Fatalf("expected one vector, got %v, %v", v, err)
	}

	_, err = EmbedOne(context.Background(), fixedEmbedder{}, "q")
	if !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("expected ErrEmptyOutput, got %v", err)
	}

	_, err = EmbedOne(context.Background(), fixedEmbedder{out: [][]float32{{1}, {2}}}, "q")
	if !errors.Is(err, ErrCountMismatch) {
		t.Errorf("expected ErrCountMismatch, got %v", err)
	}

	boom := errors.New("boom")
	_, err = EmbedOne(context.Background(), fixedEmbedder{err: boom}, "q")
	if !errors.Is(err, boom) {
		t.Errorf("expected underlying error, got %v", err)
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{}); err == nil {
		t.Error("expected error without api key")
	}
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", Normalize: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Model() != "text-embedding-3-small" || !e.Normalized() {
		t.Errorf("unexpected defaults: model=%s normalized=%v", e.Model(), e.Normalized())
	}
}
