package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(VectorGraphConfig{Dimensions: 3, Model: "static"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_AddSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestGraph(t)

	// Given: three orthogonal-ish vectors
	require.NoError(t, s.Add(ctx,
		[]string{"x", "y", "z"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]string{"hx", "hy", "hz"}))

	// When: searching near x
	res, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 1)

	// Then: x is the nearest, with similarity in (0,1]
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "x", res[0].DocID)
	assert.Greater(t, res[0].Similarity, float32(0.9))
	assert.LessOrEqual(t, res[0].Similarity, float32(1.0001))

	h, ok := s.Hash("y")
	assert.True(t, ok)
	assert.Equal(t, "hy", h)
	assert.Equal(t, 3, s.Count())
	assert.ElementsMatch(t, []string{"x", "y", "z"}, s.IDs())
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestGraph(t)

	err := s.Add(ctx, []string{"a"}, [][]float32{{1, 2}}, nil)
	var dm ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Got)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorAs(t, err, &dm)

	assert.Error(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}}, nil))

	_, err = NewHNSWStore(VectorGraphConfig{})
	assert.Error(t, err)
}

func TestHNSWStore_ReplaceAndDeleteOrphan(t *testing.T) {
	ctx := context.Background()
	s := newTestGraph(t)
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}, nil))

	// When: a is re-embedded pointing elsewhere
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 0, 1}}, nil))

	// Then: the old node is orphaned and never returned
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 1, s.Orphans())
	res, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	ids := []string{res[0].DocID, res[1].DocID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	s.Delete([]string{"b"})
	assert.Equal(t, 1, s.Count())
	res, err = s.Search(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].DocID)
}

func TestHNSWStore_EmptyAndClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestGraph(t)

	res, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, s.Close())
	_, err = s.Search(ctx, []float32{1, 0, 0}, 5)
	assert.Error(t, err)
	assert.Zero(t, s.Orphans())
}

func TestHNSWStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	s := newTestGraph(t)
	require.NoError(t, s.Add(ctx,
		[]string{"x", "y"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"hx", "hy"}))
	require.NoError(t, s.Save(path))

	loaded, err := LoadHNSWStore(path)
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, "static", loaded.Config().Model)
	h, ok := loaded.Hash("x")
	assert.True(t, ok)
	assert.Equal(t, "hx", h)

	res, err := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "y", res[0].DocID)

	_, err = LoadHNSWStore(filepath.Join(t.TempDir(), "missing.hnsw"))
	assert.Error(t, err)
}
