package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docchat/internal/chunker"
	"github.com/dgallion1/docchat/internal/embed"
	"github.com/dgallion1/docchat/internal/index"
	"github.com/dgallion1/docchat/internal/metrics"
)

// ErrNotNormalized signals an inner-product index over vectors that are not
// unit length.
var ErrNotNormalized = errors.New("metric requires unit-normalized embeddings")

// Corpus is the searchable state built from one upload: the chunks, their
// index, and the embedder settings the vectors were produced with. A Corpus
// is immutable once built and is replaced as a whole on the next upload.
type Corpus struct {
	Chunks     []chunker.Chunk
	Index      *index.Index
	Model      string
	Normalized bool
}

// Empty reports whether the corpus holds no searchable chunks.
func (c *Corpus) Empty() bool {
	return c == nil || len(c.Chunks) == 0 || c.Index == nil
}

// BuildCorpus embeds chunks and indexes them under metric. No chunks yields
// an empty corpus and no error.
func BuildCorpus(ctx context.Context, e embed.Embedder, chunks []chunker.Chunk, metric index.Metric) (*Corpus, error) {
	c := &Corpus{Chunks: chunks, Model: e.Model(), Normalized: e.Normalized()}
	if len(chunks) == 0 {
		metrics.IndexBuildsTotal.WithLabelValues("empty").Inc()
		return c, nil
	}

	idx, err := buildIndex(ctx, e, chunks, metric)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	c.Index = idx
	metrics.IndexBuildsTotal.WithLabelValues("ok").Inc()
	metrics.IndexChunks.Observe(float64(len(chunks)))
	return c, nil
}

func buildIndex(ctx context.Context, e embed.Embedder, chunks []chunker.Chunk, metric index.Metric) (*index.Index, error) {
	if metric.RequiresUnitVectors() && !e.Normalized() {
		return nil, fmt.Errorf("%w: metric %s, embedder %s", ErrNotNormalized, metric, e.Model())
	}

	start := time.Now()
	vecs, err := e.Embed(ctx, chunker.Texts(chunks))
	metrics.EmbedDuration.WithLabelValues("corpus").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) == 0 {
		return nil, embed.ErrEmptyOutput
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d for %d chunks", embed.ErrCountMismatch, len(vecs), len(chunks))
	}

	idx, err := index.Build(vecs, metric)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return idx, nil
}
