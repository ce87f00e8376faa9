package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"paperindex/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
// Point ids are UUIDv5 digests of record ids; the record id itself travels in
// the payload.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	pageSize   int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

var errNotFound = errors.New("not found")

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		pageSize:   256,
	}
}

func (s *Storage) Name() string { return s.collection }

func (s *Storage) Upserts() bool { return true }

func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func (s *Storage) endpoint(path string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, url.PathEscape(s.collection), path)
}

// Init attaches to the collection or creates it.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.endpoint(""), nil, &info)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size != 0 && size != dimension {
			return fmt.Errorf("collection %s has dimension %d, not %d", s.collection, size, dimension)
		}
	case errors.Is(err, errNotFound):
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if err := s.do(ctx, http.MethodPut, s.endpoint(""), body, nil); err != nil {
			return err
		}
	default:
		return err
	}
	s.dimension = dimension
	return nil
}

type payload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
	Document string            `json:"document"`
}

type point struct {
	ID      string    `json:"id"`
	Score   float64   `json:"score"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

func (p point) record() domain.VectorRecord {
	return domain.VectorRecord{
		ID:        p.Payload.ID,
		Embedding: p.Vector,
		Metadata:  p.Payload.Metadata,
		Document:  p.Payload.Document,
	}
}

func (s *Storage) Add(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if s.dimension != 0 && len(r.Embedding) != s.dimension {
			return fmt.Errorf("record %s: vector dimension %d, want %d", r.ID, len(r.Embedding), s.dimension)
		}
		points[i] = map[string]any{
			"id":      pointID(r.ID),
			"vector":  r.Embedding,
			"payload": payload{ID: r.ID, Metadata: r.Metadata, Document: r.Document},
		}
	}
	return s.do(ctx, http.MethodPut, s.endpoint("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pts := make([]string, len(ids))
	for i, id := range ids {
		pts[i] = pointID(id)
	}
	return s.do(ctx, http.MethodPost, s.endpoint("/points/delete?wait=true"), map[string]any{"points": pts}, nil)
}

func (s *Storage) Query(ctx context.Context, vector []float32, n int) ([]domain.VectorHit, error) {
	if n <= 0 {
		n = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        n,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.endpoint("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.VectorHit, 0, len(resp.Result))
	for _, p := range resp.Result {
		hits = append(hits, domain.VectorHit{VectorRecord: p.record(), Distance: 1 - p.Score})
	}
	return hits, nil
}

// Get fetches points by record id, or scrolls the whole collection when ids
// is nil.
func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.VectorRecord, error) {
	if ids != nil {
		pts := make([]string, len(ids))
		for i, id := range ids {
			pts[i] = pointID(id)
		}
		var resp struct {
			Result []point `json:"result"`
		}
		req := map[string]any{"ids": pts, "with_payload": true, "with_vector": true}
		if err := s.do(ctx, http.MethodPost, s.endpoint("/points"), req, &resp); err != nil {
			return nil, err
		}
		out := make([]domain.VectorRecord, 0, len(resp.Result))
		for _, p := range resp.Result {
			out = append(out, p.record())
		}
		return out, nil
	}

	var (
		out    []domain.VectorRecord
		offset any
	)
	for {
		req := map[string]any{"limit": s.pageSize, "with_payload": true, "with_vector": true}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, s.endpoint("/points/scroll"), req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, p.record())
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// Drop deletes the collection. A missing collection is not an error.
func (s *Storage) Drop(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.endpoint(""), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, url, errNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
