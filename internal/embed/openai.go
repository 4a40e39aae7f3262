package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	// BaseURL overrides the API endpoint, e.g. a local server. Empty uses OpenAI.
	BaseURL string
	// APIKey is the bearer token. Local servers accept any value.
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API through
// langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	model    string
	dims     int
	batch    int
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewOpenAIEmbedder creates an embedder for cfg. No request is made.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		return nil, aerrors.ConfigError(fmt.Sprintf("embedding dimensions must be positive, got %d", cfg.Dimensions), nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	token := cfg.APIKey
	if token == "" {
		if cfg.BaseURL == "" {
			return nil, aerrors.ConfigError("openai embeddings need an API key", nil).
				WithSuggestion("Set ARCHIVIST_EMBEDDINGS_API_KEY or OPENAI_API_KEY, or use embeddings.provider: static")
		}
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed, "create openai client", err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed, "create embedder", err)
	}

	return &OpenAIEmbedder{
		embedder: emb,
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		batch:    cfg.BatchSize,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// Embed generates the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Debug("embed_query_failed", slog.String("error", err.Error()))
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed, "embed query", err)
	}
	if len(vec) != e.dims {
		return nil, aerrors.New(aerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("model %s returned %d dimensions, expected %d", e.model, len(vec), e.dims), nil)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for texts; langchaingo splits the
// request into batches.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("embedding_batch", slog.Int("count", len(texts)))
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed, fmt.Sprintf("embed %d documents", len(texts)), err)
	}
	if len(vecs) != len(texts) {
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vecs)), nil)
	}
	for _, v := range vecs {
		if len(v) != e.dims {
			return nil, aerrors.New(aerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("model %s returned %d dimensions, expected %d", e.model, len(v), e.dims), nil)
		}
	}
	return vecs, nil
}

// Dimensions returns the configured embedding length.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return e.model }

// Available reports whether the embedder is open. It does not probe the
// endpoint; failures surface on the first request.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	return e.checkOpen() == nil
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *OpenAIEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}
