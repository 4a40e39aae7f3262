package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete archivist configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	BM25       BM25Config       `yaml:"bm25" json:"bm25"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Build      BuildConfig      `yaml:"build" json:"build"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig locates the corpus and the derived data.
type PathsConfig struct {
	// DataDir holds lexical.idx, entities.db and the optional vector graph.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Corpus is the default CSV/JSONL corpus used by build and serve --watch.
	Corpus string `yaml:"corpus" json:"corpus"`
}

// SearchConfig configures hybrid search.
// Weights are fusion multipliers and are not required to sum to 1.
// Explicit zero weights can only be set via ARCHIVIST_LEXICAL_WEIGHT and
// ARCHIVIST_VECTOR_WEIGHT because zero values in YAML mean "unset".
type SearchConfig struct {
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	RRFConstant   int     `yaml:"rrf_constant" json:"rrf_constant"`
	// InitialK is how many candidates each source contributes before fusion.
	InitialK int `yaml:"initial_k" json:"initial_k"`
	TopK     int `yaml:"top_k" json:"top_k"`
	// VectorTimeout bounds each vector adapter call, e.g. "3s".
	VectorTimeout string `yaml:"vector_timeout" json:"vector_timeout"`
	// BreakerFailures opens the adapter circuit after this many consecutive failures.
	BreakerFailures int `yaml:"breaker_failures" json:"breaker_failures"`
}

// BM25Config holds the lexical scoring constants.
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// EmbeddingsConfig configures the query embedder used by the vector adapter.
type EmbeddingsConfig struct {
	// Provider is "openai", "static" or "none".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// APIKey is read from ARCHIVIST_EMBEDDINGS_API_KEY or OPENAI_API_KEY only.
	APIKey string `yaml:"-" json:"-"`
}

// BuildConfig configures offline index builds.
type BuildConfig struct {
	Workers       int    `yaml:"workers" json:"workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the tool server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a configuration with defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: DefaultDataDir(),
		},
		Search: SearchConfig{
			LexicalWeight:   0.3,
			VectorWeight:    0.7,
			RRFConstant:     60,
			InitialK:        30,
			TopK:            10,
			VectorTimeout:   "3s",
			BreakerFailures: 5,
		},
		BM25: BM25Config{
			K1: 1.5,
			B:  0.75,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "none",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			CacheSize:  1000,
			BatchSize:  64,
		},
		Build: BuildConfig{
			Workers:       runtime.NumCPU(),
			WatchDebounce: "2s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DefaultDataDir returns ~/.archivist/data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".archivist", "data")
	}
	return filepath.Join(home, ".archivist", "data")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/archivist/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/archivist/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "archivist", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "archivist", "config.yaml")
	}
	return filepath.Join(home, ".config", "archivist", "config.yaml")
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/archivist/config.yaml)
//  3. Project config (.archivist.yaml in dir)
//  4. Environment variables (ARCHIVIST_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	if dir == "" {
		return nil
	}
	for _, name := range []string{".archivist.yaml", ".archivist.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	setString(&c.Paths.DataDir, other.Paths.DataDir)
	setString(&c.Paths.Corpus, other.Paths.Corpus)

	setFloat(&c.Search.LexicalWeight, other.Search.LexicalWeight)
	setFloat(&c.Search.VectorWeight, other.Search.VectorWeight)
	setInt(&c.Search.RRFConstant, other.Search.RRFConstant)
	setInt(&c.Search.InitialK, other.Search.InitialK)
	setInt(&c.Search.TopK, other.Search.TopK)
	setString(&c.Search.VectorTimeout, other.Search.VectorTimeout)
	setInt(&c.Search.BreakerFailures, other.Search.BreakerFailures)

	setFloat(&c.BM25.K1, other.BM25.K1)
	setFloat(&c.BM25.B, other.BM25.B)

	setString(&c.Embeddings.Provider, other.Embeddings.Provider)
	setString(&c.Embeddings.Model, other.Embeddings.Model)
	setString(&c.Embeddings.BaseURL, other.Embeddings.BaseURL)
	setInt(&c.Embeddings.Dimensions, other.Embeddings.Dimensions)
	setInt(&c.Embeddings.CacheSize, other.Embeddings.CacheSize)
	setInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)

	setInt(&c.Build.Workers, other.Build.Workers)
	setString(&c.Build.WatchDebounce, other.Build.WatchDebounce)

	setString(&c.Server.Transport, other.Server.Transport)
	setString(&c.Server.LogLevel, other.Server.LogLevel)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ARCHIVIST_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("ARCHIVIST_CORPUS"); v != "" {
		c.Paths.Corpus = v
	}
	if v := os.Getenv("ARCHIVIST_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("ARCHIVIST_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 {
			c.Search.VectorWeight = w
		}
	}
	if v := os.Getenv("ARCHIVIST_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("ARCHIVIST_VECTOR_TIMEOUT"); v != "" {
		c.Search.VectorTimeout = v
	}
	if v := os.Getenv("ARCHIVIST_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("ARCHIVIST_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("ARCHIVIST_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	c.Embeddings.APIKey = os.Getenv("ARCHIVIST_EMBEDDINGS_API_KEY")
	if c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("ARCHIVIST_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Search.LexicalWeight < 0 {
		return fmt.Errorf("search.lexical_weight must be non-negative, got %f", c.Search.LexicalWeight)
	}
	if c.Search.VectorWeight < 0 {
		return fmt.Errorf("search.vector_weight must be non-negative, got %f", c.Search.VectorWeight)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.InitialK <= 0 || c.Search.TopK <= 0 {
		return fmt.Errorf("search.initial_k and search.top_k must be positive")
	}
	if _, err := time.ParseDuration(c.Search.VectorTimeout); err != nil {
		return fmt.Errorf("search.vector_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Build.WatchDebounce); err != nil {
		return fmt.Errorf("build.watch_debounce: %w", err)
	}
	if c.BM25.K1 <= 0 || c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.k1 must be positive and bm25.b within [0,1], got k1=%f b=%f", c.BM25.K1, c.BM25.B)
	}

	validProviders := map[string]bool{"openai": true, "static": true, "none": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'openai', 'static' or 'none', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// VectorTimeoutDuration returns the parsed vector adapter timeout.
func (c *Config) VectorTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Search.VectorTimeout)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// WatchDebounceDuration returns the parsed watcher debounce window.
func (c *Config) WatchDebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Build.WatchDebounce)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// LexicalIndexPath returns the lexical blob path inside the data directory.
func (c *Config) LexicalIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "lexical.idx")
}

// EntityDBPath returns the entity database path inside the data directory.
func (c *Config) EntityDBPath() string {
	return filepath.Join(c.Paths.DataDir, "entities.db")
}

// VectorGraphPath returns the local vector graph path inside the data directory.
func (c *Config) VectorGraphPath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.hnsw")
}

// LockPath returns the build lock path inside the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, ".build.lock")
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
