package embed

import (
	"context"
	"math"
	"sync/atomic"
)

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// countingEmbedder returns a fixed vector and counts calls.
type countingEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchTexts atomic.Int64
	vec        []float32
}

func newCountingEmbedder(dims int) *countingEmbedder {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return &countingEmbedder{vec: vec}
}

func (m *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.vec, nil
}

func (m *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchTexts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, nil
}

func (m *countingEmbedder) Dimensions() int                { return len(m.vec) }
func (m *countingEmbedder) ModelName() string              { return "counting" }
func (m *countingEmbedder) Available(context.Context) bool { return true }
func (m *countingEmbedder) Close() error                   { return nil }
