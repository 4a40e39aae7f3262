package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorGraphConfig configures the local HNSW graph.
type VectorGraphConfig struct {
	Dimensions int
	// Model records the embedding model that produced the vectors.
	Model    string
	M        int
	EfSearch int
}

// VectorResult is a nearest-neighbour hit. Similarity is cosine similarity
// mapped to [0,1].
type VectorResult struct {
	DocID      string
	Distance   float32
	Similarity float32
}

// HNSWStore keeps one embedding per document in a coder/hnsw graph. It
// remembers the content hash each vector was computed from so that rebuilds
// only embed changed documents. Replaced and deleted vectors are orphaned in
// the graph rather than removed.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorGraphConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	hashes  map[string]string
	nextKey uint64

	closed bool
}

type hnswMetadata struct {
	IDMap   map[string]uint64
	Hashes  map[string]string
	NextKey uint64
	Config  VectorGraphConfig
}

// NewHNSWStore creates an empty graph.
func NewHNSWStore(cfg VectorGraphConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}
	return &HNSWStore{
		graph:  newGraph(cfg),
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		hashes: make(map[string]string),
	}, nil
}

func newGraph(cfg VectorGraphConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Config returns the graph configuration.
func (s *HNSWStore) Config() VectorGraphConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Add inserts or replaces the vectors of ids. hashes records the content
// hash of each document and may be nil.
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32, hashes []string) error {
	if len(ids) != len(vectors) || (hashes != nil && len(hashes) != len(ids)) {
		return fmt.Errorf("ids, vectors and hashes length mismatch: %d, %d, %d", len(ids), len(vectors), len(hashes))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if old, ok := s.idMap[id]; ok {
			delete(s.keyMap, old)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalize(vec)
		s.graph.Add(hnsw.MakeNode(key, vec))

		s.idMap[id] = key
		s.keyMap[key] = id
		if hashes != nil {
			s.hashes[id] = hashes[i]
		}
	}
	return nil
}

// Search returns up to k nearest documents to query.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 || k <= 0 {
		return []VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalize(q)

	// Orphaned nodes take result slots; over-fetch to compensate.
	fetch := k
	if orphans := s.graph.Len() - len(s.idMap); orphans > 0 {
		fetch += orphans
	}

	nodes := s.graph.Search(q, fetch)
	out := make([]VectorResult, 0, min(k, len(nodes)))
	for _, n := range nodes {
		id, ok := s.keyMap[n.Key]
		if !ok {
			continue
		}
		d := s.graph.Distance(q, n.Value)
		out = append(out, VectorResult{DocID: id, Distance: d, Similarity: 1 - d/2})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Delete orphans the vectors of ids.
func (s *HNSWStore) Delete(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if key, ok := s.idMap[id]; ok {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.hashes, id)
		}
	}
}

// Hash returns the content hash recorded for id.
func (s *HNSWStore) Hash(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[id]
	return h, ok
}

// IDs returns every live document id.
func (s *HNSWStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Orphans returns the number of dead nodes still in the graph.
func (s *HNSWStore) Orphans() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.graph.Len() - len(s.idMap)
}

// Save writes the graph to path and the id mappings to path+".meta",
// each via temp file and rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error {
		return s.graph.Export(f)
	}); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	meta := hnswMetadata{IDMap: s.idMap, Hashes: s.hashes, NextKey: s.nextKey, Config: s.config}
	if err := writeAtomic(path+".meta", func(f *os.File) error {
		return gob.NewEncoder(f).Encode(meta)
	}); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// LoadHNSWStore reads a graph written by Save.
func LoadHNSWStore(path string) (*HNSWStore, error) {
	mf, err := os.Open(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("open vector metadata: %w", err)
	}
	var meta hnswMetadata
	err = gob.NewDecoder(mf).Decode(&meta)
	_ = mf.Close()
	if err != nil {
		return nil, fmt.Errorf("decode vector metadata: %w", err)
	}

	s, err := NewHNSWStore(meta.Config)
	if err != nil {
		return nil, err
	}
	if meta.IDMap != nil {
		s.idMap = meta.IDMap
	}
	if meta.Hashes != nil {
		s.hashes = meta.Hashes
	}
	s.nextKey = meta.NextKey
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}

	gf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector graph: %w", err)
	}
	defer func() {
		if err := gf.Close(); err != nil {
			slog.Warn("vector_graph_close_failed", slog.String("error", err.Error()))
		}
	}()

	// Import needs an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(gf)); err != nil {
		return nil, fmt.Errorf("import vector graph: %w", err)
	}
	return s, nil
}

// Close releases the graph.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graph = nil
	return nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
