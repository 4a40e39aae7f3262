package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(0)

	a, err := e.Embed(ctx, "반도체 수출 증가")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "반도체 수출 증가")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(a), 1e-5)
}

func TestStaticEmbedder_Similarity(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(512)

	q, _ := e.Embed(ctx, "반도체 수출")
	near, _ := e.Embed(ctx, "반도체 수출이 늘었다")
	far, _ := e.Embed(ctx, "오늘 서울 날씨 맑음")

	assert.Greater(t, cosineSimilarity(q, near), cosineSimilarity(q, far))
}

func TestStaticEmbedder_CaseFolded(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(64)

	upper, _ := e.Embed(ctx, "OpenAI GPT")
	lower, _ := e.Embed(ctx, "openai gpt")
	assert.Equal(t, upper, lower)
}

func TestStaticEmbedder_EmptyAndClosed(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(8)

	v, err := e.Embed(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)

	batch, err := e.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	require.NoError(t, e.Close())
	assert.False(t, e.Available(ctx))
	_, err = e.Embed(ctx, "x")
	assert.Error(t, err)
}

func TestCachedEmbedder_CachesQueries(t *testing.T) {
	ctx := context.Background()
	inner := newCountingEmbedder(4)
	c := NewCachedEmbedder(inner, 10)
	var _ Embedder = c

	// When: the same query is embedded twice
	_, err := c.Embed(ctx, "질문")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "질문")
	require.NoError(t, err)

	// Then: the provider is called once
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_BatchEmbedsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	inner := newCountingEmbedder(4)
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)

	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
	assert.Equal(t, int64(2), inner.batchTexts.Load())

	_, err = c.EmbedBatch(ctx, []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_Evicts(t *testing.T) {
	ctx := context.Background()
	inner := newCountingEmbedder(2)
	c := NewCachedEmbedder(inner, 1)

	_, _ = c.Embed(ctx, "a")
	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "a")
	assert.Equal(t, int64(3), inner.embedCalls.Load())
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{"", ProviderNone, false},
		{"none", ProviderNone, false},
		{"OpenAI", ProviderOpenAI, false},
		{"static", ProviderStatic, false},
		{"ollama", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEmbedder(t *testing.T) {
	// None disables the semantic side.
	e, err := NewEmbedder(Options{Provider: ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, e)

	// Static is wrapped in a cache by default.
	e, err = NewEmbedder(Options{Provider: ProviderStatic, OpenAI: OpenAIConfig{Dimensions: 32}})
	require.NoError(t, err)
	require.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, 32, e.Dimensions())

	// A negative cache size skips the cache.
	e, err = NewEmbedder(Options{Provider: ProviderStatic, CacheSize: -1})
	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEmbedder(OpenAIConfig{Dimensions: 0, APIKey: "k"})
	assert.Equal(t, aerrors.ErrCodeConfigInvalid, aerrors.GetCode(err))

	_, err = NewOpenAIEmbedder(OpenAIConfig{Dimensions: 8})
	assert.Equal(t, aerrors.ErrCodeConfigInvalid, aerrors.GetCode(err))

	e, err := NewOpenAIEmbedder(OpenAIConfig{Dimensions: 8, BaseURL: "http://127.0.0.1:1/v1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, e.ModelName())
	assert.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}
