package index

import (
	"fmt"
	"strings"
)

// Metric is the similarity measure an index was built with.
type Metric string

const (
	// InnerProduct scores by dot product; higher is closer. Vectors must be
	// unit-normalized for the score to mean cosine similarity.
	InnerProduct Metric = "ip"
	// L2Squared scores by squared Euclidean distance; lower is closer.
	L2Squared Metric = "l2"
)

// ParseMetric resolves a configured metric name.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ip", "inner_product", "dot":
		return InnerProduct, nil
	case "l2", "l2_squared", "euclidean":
		return L2Squared, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// RequiresUnitVectors reports whether scores are only meaningful on
// unit-normalized input.
func (m Metric) RequiresUnitVectors() bool {
	return m == InnerProduct
}

// Score compares two vectors of equal length.
func (m Metric) Score(a, b []float32) float32 {
	var s float32
	switch m {
	case L2Squared:
		for i := range a {
			d := a[i] - b[i]
			s += d * d
		}
	default:
		for i := range a {
			s += a[i] * b[i]
		}
	}
	return s
}

// Better reports whether score a ranks ahead of score b.
func (m Metric) Better(a, b float32) bool {
	if m == L2Squared {
		return a < b
	}
	return a > b
}

func (m Metric) valid() bool {
	return m == InnerProduct || m == L2Squared
}
