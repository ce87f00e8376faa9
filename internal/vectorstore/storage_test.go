package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "v.db")}})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, DefaultCollection, s.Name())
	assert.True(t, s.Upserts())

	m, err := New(ctx, Config{Type: "Memory", Collection: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", m.Name())
	assert.False(t, m.Upserts())

	q, err := New(ctx, Config{Type: "qdrant", Collection: "papers"})
	require.NoError(t, err)
	assert.Equal(t, "papers", q.Name())

	_, err = New(ctx, Config{Type: "chroma"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfig))
}
