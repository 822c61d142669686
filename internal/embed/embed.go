// Package embed maps text to fixed-dimension vectors for similarity search.
package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/vec/search"
)

var (
	// ErrEmptyOutput signals that the embedder produced no vectors.
	ErrEmptyOutput = errors.New("embedder returned no vectors")
	// ErrCountMismatch signals a response with a different number of vectors than inputs.
	ErrCountMismatch = errors.New("embedder returned wrong number of vectors")
)

// Embedder converts a batch of texts into vectors, one per text, in input
// order. An instance has a fixed dimension and normalization convention, so
// corpus and query vectors from the same instance are always comparable.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Normalized reports whether output vectors have unit length.
	Normalized() bool
	// Dimension is the output vector length, or 0 when only known after the first call.
	Dimension() int
	// Model identifies the underlying model.
	Model() string
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	mag := search.Float32s(v).Magnitude()
	if mag == 0 {
		return
	}
	inv := 1 / mag
	for i := range v {
		v[i] *= inv
	}
}

// EmbedOne embeds a single text, typically a question.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrEmptyOutput
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d for 1 text", ErrCountMismatch, len(vecs))
	}
	return vecs[0], nil
}
