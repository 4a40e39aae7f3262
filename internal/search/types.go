package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/archivist/internal/store"
)

// Service is the query surface exposed to the CLI and the MCP server.
type Service interface {
	// Search runs a hybrid query and returns ranked documents.
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)

	// EntityTimeline buckets the documents mentioning entity by period.
	EntityTimeline(ctx context.Context, entity string, dates store.DateRange, g store.Granularity) ([]store.TimelineBucket, error)

	// Trend reports keyword frequency, co-entities and representative documents.
	Trend(ctx context.Context, keyword string, dates store.DateRange, g store.Granularity) (*store.TrendReport, error)

	// SearchBySource lists documents attributed to a media outlet.
	SearchBySource(ctx context.Context, media, topic string, dates store.DateRange) ([]store.DocumentSummary, error)
}

// SearchOptions configures one query.
type SearchOptions struct {
	// TopK is the number of results; zero uses the engine default.
	TopK int

	// Dates restricts results to an inclusive date range.
	Dates store.DateRange

	// Entity keeps only documents whose persons, organizations or concepts
	// contain this substring.
	Entity string

	// LexicalOnly skips the vector adapter.
	LexicalOnly bool
}

// SearchResult is one ranked document.
type SearchResult struct {
	DocID         string   `json:"doc_id"`
	Score         float64  `json:"score"`
	Date          string   `json:"date"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Persons       []string `json:"persons,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Concepts      []string `json:"concepts,omitempty"`

	// LexicalRank and VectorRank are 1-based; 0 means absent.
	LexicalRank  int     `json:"lexical_rank,omitempty"`
	VectorRank   int     `json:"vector_rank,omitempty"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	Similarity   float64 `json:"similarity,omitempty"`
}

// Weights are the per-source fusion weights. They are not required to sum to 1.
type Weights struct {
	Lexical float64
	Vector  float64
}

// DefaultWeights favours the semantic side.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.3, Vector: 0.7}
}

// EngineConfig configures the engine.
type EngineConfig struct {
	// TopK is the default number of results (10).
	TopK int

	// InitialK is how many candidates each source contributes (30).
	InitialK int

	Weights     Weights
	RRFConstant int

	// VectorTimeout bounds embedding plus vector search (3s).
	VectorTimeout time.Duration

	// BreakerFailures opens the vector circuit after this many consecutive
	// failures (5).
	BreakerFailures int

	// BreakerReset is how long an open circuit waits before probing (30s).
	BreakerReset time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		TopK:            10,
		InitialK:        30,
		Weights:         DefaultWeights(),
		RRFConstant:     DefaultRRFConstant,
		VectorTimeout:   3 * time.Second,
		BreakerFailures: 5,
		BreakerReset:    30 * time.Second,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	def := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.InitialK <= 0 {
		c.InitialK = def.InitialK
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = def.RRFConstant
	}
	if c.VectorTimeout <= 0 {
		c.VectorTimeout = def.VectorTimeout
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = def.BreakerFailures
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = def.BreakerReset
	}
	return c
}

// EngineStats describes the loaded index and adapter state.
type EngineStats struct {
	Index        *store.IndexStats `json:"index,omitempty"`
	VectorActive bool              `json:"vector_active"`
	CircuitState string            `json:"circuit_state,omitempty"`
}
