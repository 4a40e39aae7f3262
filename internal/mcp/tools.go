package mcp

import (
	"github.com/Aman-CERP/archivist/internal/search"
	"github.com/Aman-CERP/archivist/internal/store"
)

// Tool names.
const (
	ToolSearch        = "search"
	ToolTimeline      = "entity_timeline"
	ToolTrend         = "trend_analysis"
	ToolSource        = "source_search"
	ToolEntity        = "entity_search"
	ToolDailySummary  = "daily_summary"
	ToolIndexStatus   = "index_status"
	documentURIPrefix = "document://"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query       string `json:"query" jsonschema:"search query, Korean or English"`
	TopK        int    `json:"top_k,omitempty" jsonschema:"number of results, default 10, max 50"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"inclusive start date YYYY-MM-DD"`
	EndDate     string `json:"end_date,omitempty" jsonschema:"inclusive end date YYYY-MM-DD"`
	Entity      string `json:"entity,omitempty" jsonschema:"keep only documents mentioning this person, organization or concept"`
	LexicalOnly bool   `json:"lexical_only,omitempty" jsonschema:"skip semantic search"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []search.SearchResult `json:"results"`
	Context string                `json:"context" jsonschema:"results rendered as a numbered context block"`
}

// TimelineInput defines the input schema for the entity_timeline tool.
type TimelineInput struct {
	Entity      string `json:"entity" jsonschema:"entity name, matched as a substring"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"inclusive start date YYYY-MM-DD"`
	EndDate     string `json:"end_date,omitempty" jsonschema:"inclusive end date YYYY-MM-DD"`
	Granularity string `json:"granularity,omitempty" jsonschema:"day, week or month; default month"`
}

// TimelineOutput defines the output schema for the entity_timeline tool.
type TimelineOutput struct {
	Entity  string                 `json:"entity"`
	Buckets []store.TimelineBucket `json:"buckets"`
	Text    string                 `json:"text"`
}

// TrendInput defines the input schema for the trend_analysis tool.
type TrendInput struct {
	Keyword     string `json:"keyword" jsonschema:"keyword matched against entity names and titles"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"inclusive start date YYYY-MM-DD"`
	EndDate     string `json:"end_date,omitempty" jsonschema:"inclusive end date YYYY-MM-DD"`
	Granularity string `json:"granularity,omitempty" jsonschema:"day, week or month; default month"`
}

// TrendOutput defines the output schema for the trend_analysis tool.
type TrendOutput struct {
	Report *store.TrendReport `json:"report"`
	Text   string             `json:"text"`
}

// SourceInput defines the input schema for the source_search tool.
type SourceInput struct {
	Media     string `json:"media" jsonschema:"media outlet name"`
	Topic     string `json:"topic,omitempty" jsonschema:"optional topic within the outlet's documents"`
	StartDate string `json:"start_date,omitempty" jsonschema:"inclusive start date YYYY-MM-DD"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"inclusive end date YYYY-MM-DD"`
}

// DocumentsOutput is shared by source_search and entity_search.
type DocumentsOutput struct {
	Documents []store.DocumentSummary `json:"documents"`
	Text      string                  `json:"text"`
}

// EntityInput defines the input schema for the entity_search tool.
type EntityInput struct {
	Name      string `json:"name" jsonschema:"entity name, matched as a substring"`
	Type      string `json:"type,omitempty" jsonschema:"person, organization, concept, event or location"`
	StartDate string `json:"start_date,omitempty" jsonschema:"inclusive start date YYYY-MM-DD"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"inclusive end date YYYY-MM-DD"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum documents, default 20"`
}

// DailySummaryInput defines the input schema for the daily_summary tool.
type DailySummaryInput struct {
	Date string `json:"date" jsonschema:"day to summarize, YYYY-MM-DD"`
}

// DailySummaryOutput defines the output schema for the daily_summary tool.
type DailySummaryOutput struct {
	Summary *store.DailySummary `json:"summary"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Ready      bool              `json:"ready"`
	Index      *store.IndexStats `json:"index,omitempty"`
	Store      store.StoreStats  `json:"store"`
	Embeddings EmbeddingInfo     `json:"embeddings"`
}

// EmbeddingInfo describes the semantic side.
type EmbeddingInfo struct {
	Active       bool   `json:"active"`
	Model        string `json:"model,omitempty"`
	Dimensions   int    `json:"dimensions,omitempty"`
	CircuitState string `json:"circuit_state,omitempty"`
}
