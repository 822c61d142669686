// Package index provides exact nearest-neighbor search over an in-memory,
// immutable set of vectors.
package index

import (
	"container/heap"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput signals an empty or non-rectangular vector collection.
	ErrEmptyInput = errors.New("index: no vectors to index")
	// ErrDimensionMismatch signals vectors of differing length.
	ErrDimensionMismatch = errors.New("index: vector dimension mismatch")
	// ErrUnknownMetric signals an unsupported similarity metric.
	ErrUnknownMetric = errors.New("index: unknown metric")
)

// Result is one neighbor: the position of the indexed vector and its score.
type Result struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Index stores vectors for brute-force search. It is never mutated after
// Build, so it can be shared by readers without locking.
type Index struct {
	vectors [][]float32
	dim     int
	metric  Metric
}

// Build validates vectors and creates an index over copies of them.
// Position i in vectors becomes Result.Index i.
func Build(vectors [][]float32, metric Metric) (*Index, error) {
	if !metric.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vectors", ErrEmptyInput)
	}

	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			// Ragged input is not a usable matrix; it matches both sentinels.
			return nil, fmt.Errorf("%w: %w: vector %d has %d dims, expected %d",
				ErrEmptyInput, ErrDimensionMismatch, i, len(v), dim)
		}
		stored[i] = append([]float32(nil), v...)
	}

	return &Index{vectors: stored, dim: dim, metric: metric}, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int { return len(idx.vectors) }

// Dimension returns the common vector length.
func (idx *Index) Dimension() int { return idx.dim }

// Metric returns the metric the index was built with.
func (idx *Index) Metric() Metric { return idx.metric }

// Search returns the k best neighbors of query, best first. k is clamped to
// [1, Len()] so asking for more neighbors than exist is not an error. Equal
// scores are ordered by ascending position.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), idx.dim)
	}
	k = max(1, min(k, len(idx.vectors)))

	h := &worstFirst{metric: idx.metric}
	for i, v := range idx.vectors {
		r := Result{Index: i, Score: idx.metric.Score(query, v)}
		if h.Len() < k {
			heap.Push(h, r)
		} else if h.ranksAhead(r, h.items[0]) {
			h.items[0] = r
			heap.Fix(h, 0)
		}
	}

	results := make([]Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Result)
	}
	return results, nil
}

// worstFirst is a bounded heap whose root is the weakest kept result.
type worstFirst struct {
	metric Metric
	items  []Result
}

func (h *worstFirst) ranksAhead(a, b Result) bool {
	if a.Score != b.Score {
		return h.metric.Better(a.Score, b.Score)
	}
	return a.Index < b.Index
}

func (h *worstFirst) Len() int           { return len(h.items) }
func (h *worstFirst) Less(i, j int) bool { return h.ranksAhead(h.items[j], h.items[i]) }
func (h *worstFirst) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *worstFirst) Push(x any)         { h.items = append(h.items, x.(Result)) }
func (h *worstFirst) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
