package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archivist/internal/config"
)

func TestConfigTemplate_LoadsAsProjectConfig(t *testing.T) {
	// Given: the template written as a project config
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".archivist.yaml"), []byte(ConfigTemplate), 0o644))

	// When: configuration is loaded from that directory
	cfg, err := config.Load(dir)

	// Then: it validates and matches the defaults it documents
	require.NoError(t, err)
	def := config.NewConfig()
	assert.Equal(t, def.Search, cfg.Search)
	assert.Equal(t, def.BM25, cfg.BM25)
	assert.Equal(t, "none", cfg.Embeddings.Provider)
}
