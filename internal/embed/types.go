// Package embed turns text into vectors for the semantic side of hybrid
// search. Providers: an OpenAI-compatible HTTP embedder, a hash-based static
// embedder for offline use, and an LRU cache that wraps either.
package embed

import (
	"context"
	"math"
)

const (
	// DefaultBatchSize is the default number of texts per embedding request.
	DefaultBatchSize = 64

	// MaxBatchSize bounds a single request.
	MaxBatchSize = 2048

	// StaticDimensions is the vector length of the static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding length.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
