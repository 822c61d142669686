package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic bag-of-words embedder using signed feature
// hashing. It needs no network access and is used for offline deployments
// and tests.
type HashEmbedder struct {
	dim       int
	normalize bool
}

// NewHashEmbedder creates a hashing embedder with the given dimension.
func NewHashEmbedder(dim int, normalize bool) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim, normalize: normalize}
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dim))
		if sum>>63 == 1 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	if e.normalize {
		Normalize(v)
	}
	return v
}

func (e *HashEmbedder) Normalized() bool { return e.normalize }
func (e *HashEmbedder) Dimension() int   { return e.dim }
func (e *HashEmbedder) Model() string    { return "hash-bow" }

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
