// Package milvus stores vector records in a Milvus collection.
package milvus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"paperindex/internal/domain"
)

const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldMetadata  = "metadata"
	FieldDocument  = "document"

	maxIDLength  = 512
	maxVarLength = 65535

	DefaultAddress = "localhost:19530"
)

var outputFields = []string{FieldID, FieldEmbedding, FieldMetadata, FieldDocument}

type Config struct {
	Address    string
	APIKey     string
	Collection string
}

// Storage keeps one collection with four fields: a VarChar primary key, a
// float vector indexed with AUTOINDEX/COSINE, metadata as a JSON string and
// the document payload.
type Storage struct {
	client     client.Client
	collection string
	dimension  int
}

func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address, APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus %s: %w", cfg.Address, err)
	}
	return &Storage{client: c, collection: cfg.Collection}, nil
}

func (s *Storage) Name() string { return s.collection }

func (s *Storage) Upserts() bool { return true }

// MaxDocumentBytes is the VarChar cap of the document field.
func (s *Storage) MaxDocumentBytes() int { return maxVarLength }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if has {
		coll, err := s.client.DescribeCollection(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("describe collection %s: %w", s.collection, err)
		}
		if existing := vectorDim(coll.Schema); existing != 0 && existing != dimension {
			return fmt.Errorf("collection %s has dimension %d, not %d", s.collection, existing, dimension)
		}
	} else {
		if err := s.client.CreateCollection(ctx, collectionSchema(s.collection, dimension), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("create collection %s: %w", s.collection, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return err
		}
		if err := s.client.CreateIndex(ctx, s.collection, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("index %s.%s: %w", s.collection, FieldEmbedding, err)
		}
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", s.collection, err)
	}
	s.dimension = dimension
	return nil
}

func collectionSchema(name string, dimension int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("paper artifacts").
		WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension))).
		WithField(entity.NewField().WithName(FieldMetadata).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxVarLength)).
		WithField(entity.NewField().WithName(FieldDocument).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxVarLength))
}

func vectorDim(schema *entity.Schema) int {
	if schema == nil {
		return 0
	}
	for _, f := range schema.Fields {
		if f.Name != FieldEmbedding {
			continue
		}
		dim, _ := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		return dim
	}
	return 0
}

func (s *Storage) Add(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if s.dimension == 0 {
		return errors.New("collection not initialised")
	}
	cols, err := columns(records, s.dimension)
	if err != nil {
		return err
	}
	if _, err := s.client.Upsert(ctx, s.collection, "", cols...); err != nil {
		return fmt.Errorf("upsert into %s: %w", s.collection, err)
	}
	return s.client.Flush(ctx, s.collection, false)
}

// columns lays records out column-wise. Fields longer than Milvus accepts
// are rejected rather than truncated.
func columns(records []domain.VectorRecord, dimension int) ([]entity.Column, error) {
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	metas := make([]string, len(records))
	docs := make([]string, len(records))
	for i, r := range records {
		if len(r.Embedding) != dimension {
			return nil, fmt.Errorf("record %s: vector dimension %d, want %d", r.ID, len(r.Embedding), dimension)
		}
		if len(r.ID) > maxIDLength {
			return nil, fmt.Errorf("record id %.40q...: longer than %d bytes", r.ID, maxIDLength)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("record %s metadata: %w", r.ID, err)
		}
		if len(meta) > maxVarLength || len(r.Document) > maxVarLength {
			return nil, fmt.Errorf("record %s: payload exceeds %d bytes", r.ID, maxVarLength)
		}
		ids[i] = r.ID
		vectors[i] = r.Embedding
		metas[i] = string(meta)
		docs[i] = r.Document
	}
	return []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, dimension, vectors),
		entity.NewColumnVarChar(FieldMetadata, metas),
		entity.NewColumnVarChar(FieldDocument, docs),
	}, nil
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.Delete(ctx, s.collection, "", idExpr(ids)); err != nil {
		return fmt.Errorf("delete from %s: %w", s.collection, err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, n int) ([]domain.VectorHit, error) {
	if n <= 0 {
		n = 10
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	results, err := s.client.Search(ctx, s.collection, []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, FieldEmbedding, entity.COSINE, n, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}
	var hits []domain.VectorHit
	for _, res := range results {
		recs, err := records(res.Fields, res.ResultCount)
		if err != nil {
			return nil, err
		}
		for i, r := range recs {
			hits = append(hits, domain.VectorHit{VectorRecord: r, Distance: 1 - float64(res.Scores[i])})
		}
	}
	return hits, nil
}

// Get fetches records by id; nil ids selects the whole collection.
func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.VectorRecord, error) {
	expr := FieldID + ` != ""`
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		expr = idExpr(ids)
	}
	rs, err := s.client.Query(ctx, s.collection, []string{}, expr, outputFields)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.collection, err)
	}
	n := 0
	if col := rs.GetColumn(FieldID); col != nil {
		n = col.Len()
	}
	return records(rs, n)
}

func (s *Storage) Drop(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return err
	}
	if has {
		if err := s.client.DropCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("drop %s: %w", s.collection, err)
		}
	}
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return s.client.Close() }

// idExpr builds a boolean expression matching the given primary keys.
func idExpr(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = quote(id)
	}
	return fmt.Sprintf("%s in [%s]", FieldID, strings.Join(quoted, ","))
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func quote(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}

// records zips result columns back into rows. The vector column is optional.
func records(rs client.ResultSet, n int) ([]domain.VectorRecord, error) {
	if n == 0 {
		return nil, nil
	}
	idCol, ok := rs.GetColumn(FieldID).(*entity.ColumnVarChar)
	if !ok {
		return nil, errors.New("result is missing the id column")
	}
	metaCol, _ := rs.GetColumn(FieldMetadata).(*entity.ColumnVarChar)
	docCol, _ := rs.GetColumn(FieldDocument).(*entity.ColumnVarChar)
	vecCol, _ := rs.GetColumn(FieldEmbedding).(*entity.ColumnFloatVector)

	out := make([]domain.VectorRecord, n)
	for i := 0; i < n; i++ {
		r := domain.VectorRecord{ID: idCol.Data()[i], Metadata: map[string]string{}}
		if metaCol != nil {
			if err := json.Unmarshal([]byte(metaCol.Data()[i]), &r.Metadata); err != nil {
				return nil, fmt.Errorf("record %s metadata: %w", r.ID, err)
			}
		}
		if docCol != nil {
			r.Document = docCol.Data()[i]
		}
		if vecCol != nil {
			r.Embedding = vecCol.Data()[i]
		}
		out[i] = r
	}
	return out, nil
}
