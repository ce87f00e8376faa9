package milvus

import (
	"strings"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
)

func TestIDExpr(t *testing.T) {
	assert.Equal(t, `id in ["/p/a.pdf_text"]`, idExpr([]string{"/p/a.pdf_text"}))
	assert.Equal(t, `id in ["a\"b","c\\d"]`, idExpr([]string{`a"b`, `c\d`}))
}

func TestColumnsRoundTrip(t *testing.T) {
	recs := []domain.VectorRecord{
		{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]string{"type": "text"}, Document: "{}"},
		{ID: "b", Embedding: []float32{0, 1}, Metadata: map[string]string{"type": "image"}, Document: `{"x":1}`},
	}
	cols, err := columns(recs, 2)
	require.NoError(t, err)
	require.Len(t, cols, 4)

	got, err := records(client.ResultSet(cols), 2)
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestColumnsRejects(t *testing.T) {
	_, err := columns([]domain.VectorRecord{{ID: "a", Embedding: []float32{1}}}, 2)
	assert.Error(t, err)

	big := make([]byte, maxVarLength+1)
	_, err = columns([]domain.VectorRecord{{ID: "a", Embedding: []float32{1, 0}, Document: string(big)}}, 2)
	assert.Error(t, err)
}

func TestVectorDim(t *testing.T) {
	assert.Equal(t, 384, vectorDim(collectionSchema("papers", 384)))
	assert.Equal(t, 0, vectorDim(nil))
	assert.Equal(t, 0, vectorDim(entity.NewSchema()))
}

func TestMaxDocumentBytesMatchesColumnCap(t *testing.T) {
	s := &Storage{}
	limit := s.MaxDocumentBytes()
	vec := []float32{1, 0}

	_, err := columns([]domain.VectorRecord{{ID: "a", Embedding: vec, Metadata: map[string]string{}, Document: strings.Repeat("x", limit)}}, 2)
	require.NoError(t, err)
	_, err = columns([]domain.VectorRecord{{ID: "a", Embedding: vec, Metadata: map[string]string{}, Document: strings.Repeat("x", limit+1)}}, 2)
	assert.Error(t, err)
}
