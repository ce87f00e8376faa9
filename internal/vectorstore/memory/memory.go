package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"paperindex/internal/domain"
	"paperindex/internal/vectorstore/vecmath"
)

// Storage is an in-process collection using brute-force cosine distance.
// Like Chroma, adding an id that already exists leaves the stored record
// untouched.
type Storage struct {
	mu         sync.RWMutex
	collection string
	dimension  int
	order      []string
	records    map[string]domain.VectorRecord
}

func NewStorage(collection string) *Storage {
	return &Storage{collection: collection, records: make(map[string]domain.VectorRecord)}
}

func (s *Storage) Name() string { return s.collection }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("collection %s has dimension %d, not %d", s.collection, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upserts() bool { return false }

func (s *Storage) Add(ctx context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("collection not initialised")
	}
	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("record %s: vector dimension %d, want %d", r.ID, len(r.Embedding), s.dimension)
		}
	}
	for _, r := range records {
		if _, exists := s.records[r.ID]; exists {
			continue
		}
		s.records[r.ID] = clone(r)
		s.order = append(s.order, r.ID)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			drop[id] = struct{}{}
			delete(s.records, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, n int) ([]domain.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		n = 10
	}
	all := make([]domain.VectorRecord, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.records[id])
	}
	return vecmath.Nearest(all, vector, n), nil
}

// Get returns the records with the given ids in insertion order, or every
// record when ids is nil.
func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var want map[string]struct{}
	if ids != nil {
		want = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
	}
	out := make([]domain.VectorRecord, 0, len(s.order))
	for _, id := range s.order {
		if want != nil {
			if _, ok := want[id]; !ok {
				continue
			}
		}
		out = append(out, clone(s.records[id]))
	}
	return out, nil
}

func (s *Storage) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.VectorRecord)
	s.order = nil
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return nil }

func clone(r domain.VectorRecord) domain.VectorRecord {
	meta := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		meta[k] = v
	}
	r.Metadata = meta
	r.Embedding = append([]float32(nil), r.Embedding...)
	return r
}
