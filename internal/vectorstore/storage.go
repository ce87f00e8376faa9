package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"paperindex/internal/domain"
	"paperindex/internal/vectorstore/memory"
	"paperindex/internal/vectorstore/milvus"
	"paperindex/internal/vectorstore/qdrant"
	"paperindex/internal/vectorstore/sqlite"
)

// Storage is one named collection of vector records.
type Storage interface {
	Name() string
	// Init attaches to the collection, creating it with the given dimension
	// when it does not exist yet.
	Init(ctx context.Context, dimension int) error
	Add(ctx context.Context, records []domain.VectorRecord) error
	Delete(ctx context.Context, ids []string) error
	// Query returns up to n records nearest to vector, nearest first.
	Query(ctx context.Context, vector []float32, n int) ([]domain.VectorHit, error)
	// Get returns the records with the given ids, or every record when ids is nil.
	Get(ctx context.Context, ids []string) ([]domain.VectorRecord, error)
	// Drop removes the collection and everything in it.
	Drop(ctx context.Context) error
	// Upserts reports whether Add replaces records whose id already exists.
	Upserts() bool
	Close() error
}

// DocumentLimiter is implemented by stores that cap the stored document
// size in bytes.
type DocumentLimiter interface {
	MaxDocumentBytes() int
}

var (
	_ DocumentLimiter = (*milvus.Storage)(nil)

	_ Storage = (*memory.Storage)(nil)
	_ Storage = (*sqlite.Storage)(nil)
	_ Storage = (*qdrant.Storage)(nil)
	_ Storage = (*milvus.Storage)(nil)
)

const DefaultCollection = "research_papers"

type Config struct {
	Type       string
	Collection string
	SQLite     SQLiteConfig
	Qdrant     QdrantConfig
	Milvus     MilvusConfig
}

type SQLiteConfig struct {
	Path string
}

type QdrantConfig struct {
	URL    string
	APIKey string
}

type MilvusConfig struct {
	Address string
	APIKey  string
}

// New opens the configured backend. It does not create the collection;
// call Init for that.
func New(ctx context.Context, cfg Config) (Storage, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "./db/papers.db"
		}
		s, err := sqlite.Open(sqlite.Config{Path: path, Collection: cfg.Collection})
		if err != nil {
			return nil, domain.StoreError("open sqlite store", err)
		}
		return s, nil
	case "memory":
		return memory.NewStorage(cfg.Collection), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Collection,
		}), nil
	case "milvus":
		s, err := milvus.NewStorage(ctx, milvus.Config{
			Address:    cfg.Milvus.Address,
			APIKey:     cfg.Milvus.APIKey,
			Collection: cfg.Collection,
		})
		if err != nil {
			return nil, domain.StoreError("open milvus store", err)
		}
		return s, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown vector store type %q", cfg.Type), nil)
	}
}
