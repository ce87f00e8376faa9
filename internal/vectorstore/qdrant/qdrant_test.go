package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
)

// fakeQdrant keeps points in memory and answers the handful of endpoints the
// client uses.
type fakeQdrant struct {
	mu     sync.Mutex
	size   int
	exists bool
	points map[string]map[string]any
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	path := strings.TrimPrefix(r.URL.Path, "/collections/papers")
	reply := func(v any) { _ = json.NewEncoder(w).Encode(map[string]any{"result": v, "status": "ok"}) }

	switch {
	case path == "" && r.Method == http.MethodGet:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
			return
		}
		reply(map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}}})
	case path == "" && r.Method == http.MethodPut:
		f.exists = true
		f.size = int(body["vectors"].(map[string]any)["size"].(float64))
		reply(true)
	case path == "" && r.Method == http.MethodDelete:
		f.exists = false
		f.points = nil
		reply(true)
	case path == "/points" && r.Method == http.MethodPut:
		if f.points == nil {
			f.points = map[string]map[string]any{}
		}
		for _, p := range body["points"].([]any) {
			pt := p.(map[string]any)
			f.points[pt["id"].(string)] = pt
		}
		reply(map[string]any{"status": "completed"})
	case path == "/points/delete":
		for _, id := range body["points"].([]any) {
			delete(f.points, id.(string))
		}
		reply(map[string]any{"status": "completed"})
	case path == "/points/search":
		// fixed score, ranking is the server's job
		var out []map[string]any
		for _, id := range f.sortedIDs() {
			pt := f.points[id]
			out = append(out, map[string]any{"id": id, "score": 0.9, "payload": pt["payload"]})
		}
		reply(out)
	case path == "/points/scroll":
		ids := f.sortedIDs()
		start := 0
		if off, ok := body["offset"].(string); ok {
			start = sort.SearchStrings(ids, off)
		}
		end := start + int(body["limit"].(float64))
		var next any
		if end < len(ids) {
			next = ids[end]
		} else {
			end = len(ids)
		}
		var pts []map[string]any
		for _, id := range ids[start:end] {
			pts = append(pts, f.points[id])
		}
		reply(map[string]any{"points": pts, "next_page_offset": next})
	case path == "/points" && r.Method == http.MethodPost:
		var pts []map[string]any
		for _, id := range body["ids"].([]any) {
			if pt, ok := f.points[id.(string)]; ok {
				pts = append(pts, pt)
			}
		}
		reply(pts)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeQdrant) sortedIDs() []string {
	ids := make([]string, 0, len(f.points))
	for id := range f.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newStore(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s := NewStorage(Config{URL: srv.URL, Collection: "papers"})
	s.pageSize = 2
	return s, fake
}

func TestStorage_InitCreatesOnce(t *testing.T) {
	ctx := context.Background()
	s, fake := newStore(t)

	require.NoError(t, s.Init(ctx, 3))
	assert.True(t, fake.exists)
	assert.Equal(t, 3, fake.size)

	require.NoError(t, s.Init(ctx, 3))
	assert.Error(t, s.Init(ctx, 8))
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Init(ctx, 2))

	recs := []domain.VectorRecord{
		{ID: "/p/a.pdf_text", Embedding: []float32{1, 0}, Metadata: map[string]string{"filepath": "/p/a.pdf"}, Document: "a"},
		{ID: "/p/a.pdf_image_1", Embedding: []float32{0, 1}, Metadata: map[string]string{"filepath": "/p/a.pdf"}, Document: "b"},
		{ID: "/p/b.pdf_text", Embedding: []float32{1, 1}, Metadata: map[string]string{"filepath": "/p/b.pdf"}, Document: "c"},
	}
	require.NoError(t, s.Add(ctx, recs))
	require.NoError(t, s.Add(ctx, recs[:1]))

	all, err := s.Get(ctx, nil)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	assert.ElementsMatch(t, []string{"/p/a.pdf_text", "/p/a.pdf_image_1", "/p/b.pdf_text"}, ids)

	some, err := s.Get(ctx, []string{"/p/b.pdf_text"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "c", some[0].Document)
	assert.Equal(t, []float32{1, 1}, some[0].Embedding)

	hits, err := s.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.InDelta(t, 0.1, hits[0].Distance, 1e-9)
	assert.NotEmpty(t, hits[0].Metadata["filepath"])

	require.NoError(t, s.Delete(ctx, []string{"/p/a.pdf_text"}))
	all, err = s.Get(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Drop(ctx))
	require.NoError(t, s.Drop(ctx))
}

func TestPointIDIsStableUUID(t *testing.T) {
	a := pointID("/p/a.pdf_text")
	assert.Equal(t, a, pointID("/p/a.pdf_text"))
	assert.NotEqual(t, a, pointID("/p/a.pdf_image_1"))
	assert.Len(t, a, 36)
}
