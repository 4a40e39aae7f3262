package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty directory and clears
// the environment overrides the tests touch.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"ARCHIVIST_DATA_DIR", "ARCHIVIST_CORPUS", "ARCHIVIST_LEXICAL_WEIGHT",
		"ARCHIVIST_VECTOR_WEIGHT", "ARCHIVIST_RRF_CONSTANT", "ARCHIVIST_VECTOR_TIMEOUT",
		"ARCHIVIST_EMBEDDINGS_PROVIDER", "ARCHIVIST_EMBEDDINGS_MODEL",
		"ARCHIVIST_EMBEDDINGS_BASE_URL", "ARCHIVIST_EMBEDDINGS_API_KEY",
		"OPENAI_API_KEY", "ARCHIVIST_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 0.3, cfg.Search.LexicalWeight)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 30, cfg.Search.InitialK)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, 3*time.Second, cfg.VectorTimeoutDuration())
	require.NoError(t, cfg.Validate())
}

func TestLoad_LayersUserProjectEnv(t *testing.T) {
	isolate(t)

	// Given: a user config, a project config and an env override
	userPath := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("search:\n  top_k: 25\n  rrf_constant: 80\n"), 0o644))

	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, ".archivist.yaml"),
		[]byte("search:\n  rrf_constant: 40\nembeddings:\n  provider: static\n  dimensions: 64\n"), 0o644))

	t.Setenv("ARCHIVIST_VECTOR_WEIGHT", "0")
	t.Setenv("ARCHIVIST_DATA_DIR", "/srv/archivist")

	// When
	cfg, err := Load(project)

	// Then: each layer wins over the previous one
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.TopK)
	assert.Equal(t, 40, cfg.Search.RRFConstant)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 64, cfg.Embeddings.Dimensions)
	assert.Equal(t, 0.0, cfg.Search.VectorWeight)
	assert.Equal(t, "/srv/archivist", cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join("/srv/archivist", "lexical.idx"), cfg.LexicalIndexPath())
	assert.Equal(t, filepath.Join("/srv/archivist", "entities.db"), cfg.EntityDBPath())
}

func TestLoad_APIKeyFromEnvOnly(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)

	out := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, cfg.WriteYAML(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-test")
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".archivist.yaml"), []byte("search: [unclosed"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative lexical weight", func(c *Config) { c.Search.LexicalWeight = -0.1 }},
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"bad timeout", func(c *Config) { c.Search.VectorTimeout = "soon" }},
		{"b out of range", func(c *Config) { c.BM25.B = 1.5 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "ollama" }},
		{"unknown transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"unknown level", func(c *Config) { c.Server.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_WeightsNeedNotSumToOne(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.LexicalWeight = 1
	cfg.Search.VectorWeight = 1
	assert.NoError(t, cfg.Validate())
}
