package embed

import (
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderNone disables semantic search.
	ProviderNone ProviderType = "none"

	// ProviderOpenAI uses an OpenAI-compatible HTTP endpoint.
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses hash-based embeddings.
	ProviderStatic ProviderType = "static"
)

// ParseProvider accepts a provider name; empty means none.
func ParseProvider(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProviderNone:
		return ProviderNone, nil
	case ProviderOpenAI, ProviderStatic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown embeddings provider %q: use none, openai or static", s)
	}
}

// Options selects and configures a provider.
type Options struct {
	Provider  ProviderType
	OpenAI    OpenAIConfig
	CacheSize int
}

// NewEmbedder builds the configured embedder wrapped in a query cache.
// ProviderNone returns (nil, nil): the caller runs lexical-only.
func NewEmbedder(opts Options) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)
	switch opts.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(opts.OpenAI)
	case ProviderStatic:
		inner = NewStaticEmbedder(opts.OpenAI.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	if opts.CacheSize < 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, opts.CacheSize), nil
}
