package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
)

func open(t *testing.T, path, collection string) *Storage {
	t.Helper()
	s, err := Open(Config{Path: path, Collection: collection})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "papers.db")

	s, err := Open(Config{Path: path, Collection: "research_papers"})
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Add(ctx, []domain.VectorRecord{{
		ID:        "doc_text",
		Embedding: []float32{1, 0, 0},
		Metadata:  map[string]string{"type": "text", "filepath": "/p/a.pdf"},
		Document:  `{"text":"body"}`,
	}}))
	require.NoError(t, s.Close())

	s2 := open(t, path, "research_papers")
	require.NoError(t, s2.Init(ctx, 3))
	got, err := s2.Get(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc_text", got[0].ID)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Embedding)
	assert.Equal(t, "/p/a.pdf", got[0].Metadata["filepath"])
	assert.Equal(t, `{"text":"body"}`, got[0].Document)

	assert.Error(t, s2.Init(ctx, 5))
}

func TestStorage_Upsert(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "v.db"), "c")
	require.NoError(t, s.Init(ctx, 2))
	assert.True(t, s.Upserts())

	first := domain.VectorRecord{ID: "x", Embedding: []float32{1, 0}, Metadata: map[string]string{}, Document: "v1"}
	second := domain.VectorRecord{ID: "x", Embedding: []float32{0, 1}, Metadata: map[string]string{}, Document: "v2"}
	require.NoError(t, s.Add(ctx, []domain.VectorRecord{first}))
	require.NoError(t, s.Add(ctx, []domain.VectorRecord{second}))

	hits, err := s.Query(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "v2", hits[0].Document)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
}

func TestStorage_QueryDeleteAndDrop(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "v.db"), "c")
	require.NoError(t, s.Init(ctx, 2))

	recs := []domain.VectorRecord{
		{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]string{}},
		{ID: "b", Embedding: []float32{0.9, 0.1}, Metadata: map[string]string{}},
		{ID: "c", Embedding: []float32{0, 1}, Metadata: map[string]string{}},
	}
	require.NoError(t, s.Add(ctx, recs))

	hits, err := s.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)

	require.NoError(t, s.Delete(ctx, []string{"a"}))
	got, err := s.Get(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	require.NoError(t, s.Drop(ctx))
	assert.Error(t, s.Add(ctx, recs))
	require.NoError(t, s.Init(ctx, 2))
	got, err = s.Get(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorage_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "v.db")
	a := open(t, path, "a")
	b := open(t, path, "b")
	require.NoError(t, a.Init(ctx, 2))
	require.NoError(t, b.Init(ctx, 4))

	require.NoError(t, a.Add(ctx, []domain.VectorRecord{{ID: "1", Embedding: []float32{1, 0}, Metadata: map[string]string{}}}))
	got, err := b.Get(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
