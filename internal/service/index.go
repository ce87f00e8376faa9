package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"paperindex/internal/domain"
	"paperindex/internal/embedding"
	"paperindex/internal/logging"
	"paperindex/internal/vectorstore"
)

// Reserved metadata keys. They take precedence over document metadata.
const (
	MetaType     = "type"
	MetaFilepath = "filepath"
	MetaDocID    = "doc_id"
	MetaPage     = "page_num"
	MetaSummary  = "summary"
	MetaPassage  = "passage"
	MetaTrimmed  = "trimmed"
)

const DefaultNumResults = 10

type Options struct {
	// Chunker, when set, adds sentence-window passages of the body.
	Chunker domain.Chunker
	// Summarizer, when set, stores a summary on the text artifact.
	Summarizer       domain.Summarizer
	SummarySentences int
	Log              *logrus.Entry
}

// IndexService embeds document artifacts into one collection and answers
// nearest-neighbour queries over it.
type IndexService struct {
	embedder         embedding.Embedder
	store            vectorstore.Storage
	chunker          domain.Chunker
	summarizer       domain.Summarizer
	summarySentences int
	log              *logrus.Entry
	dimension        int
}

func NewIndexService(embedder embedding.Embedder, store vectorstore.Storage, opts Options) *IndexService {
	return &IndexService{
		embedder:         embedder,
		store:            store,
		chunker:          opts.Chunker,
		summarizer:       opts.Summarizer,
		summarySentences: opts.SummarySentences,
		log:              logging.OrDiscard(opts.Log),
	}
}

func (s *IndexService) Collection() string { return s.store.Name() }

// OpenOrCreate attaches to the collection, creating it when missing. It is
// safe to call more than once.
func (s *IndexService) OpenOrCreate(ctx context.Context) error {
	dim, err := embedding.Probe(ctx, s.embedder)
	if err != nil {
		return domain.EmbeddingError("probe embedder", err)
	}
	if err := s.store.Init(ctx, dim); err != nil {
		return domain.StoreError("open collection "+s.store.Name(), err)
	}
	s.dimension = dim
	s.log.WithFields(logrus.Fields{"collection": s.store.Name(), "dimension": dim}).Debug("collection ready")
	return nil
}

// Reset drops the collection and recreates it empty.
func (s *IndexService) Reset(ctx context.Context) error {
	if err := s.store.Drop(ctx); err != nil {
		return domain.StoreError("drop collection "+s.store.Name(), err)
	}
	s.dimension = 0
	return s.OpenOrCreate(ctx)
}

// IndexReport lists the artifact ids stored for one document, the ones left
// out because they had nothing to embed and the ones removed because an
// earlier run stored them and this one did not produce them.
type IndexReport struct {
	DocID   string
	Stored  []string
	Skipped []string
	Removed []string
}

type artifact struct {
	id      string
	embed   string
	meta    map[string]string
	payload any
}

// Index stores the text artifact, every captioned image and table, and the
// optional passages of rec. Artifacts that fail do not stop the others; the
// failures come back joined. Records of docID that the new artifact set no
// longer contains are deleted.
func (s *IndexService) Index(ctx context.Context, docID, filepath string, rec *domain.DocumentRecord) (IndexReport, error) {
	report := IndexReport{DocID: docID}
	if s.dimension == 0 {
		return report, domain.StoreError("index "+docID, errors.New("collection is not open"))
	}
	log := s.log.WithFields(logrus.Fields{"doc_id": docID, "path": filepath})

	arts, skipped := s.artifacts(docID, filepath, rec, log)
	report.Skipped = skipped

	var errs []error
	for _, a := range arts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.put(ctx, a); err != nil {
			log.WithError(err).WithField("artifact", a.id).Error("store artifact")
			errs = append(errs, err)
			continue
		}
		report.Stored = append(report.Stored, a.id)
	}
	if ctx.Err() == nil {
		removed, err := s.prune(ctx, docID, arts)
		if err != nil {
			log.WithError(err).Error("remove stale artifacts")
			errs = append(errs, err)
		}
		report.Removed = removed
	}
	log.WithFields(logrus.Fields{
		"stored":  len(report.Stored),
		"skipped": len(skipped),
		"removed": len(report.Removed),
	}).Debug("indexed document")
	return report, errors.Join(errs...)
}

func (s *IndexService) artifacts(docID, filepath string, rec *domain.DocumentRecord, log *logrus.Entry) ([]artifact, []string) {
	base := baseMetadata(docID, filepath, rec.Metadata)
	var (
		arts    []artifact
		skipped []string
	)

	body := rec.Text.Text
	if strings.TrimSpace(body) == "" {
		body = rec.Text.AllText
	}
	textID := docID + "_text"
	if strings.TrimSpace(body) == "" {
		skipped = append(skipped, textID)
	} else {
		meta := withType(base, domain.ArtifactText)
		if s.summarizer != nil {
			summary, err := s.summarizer.Summarize(body, s.summarySentences)
			if err != nil {
				log.WithError(err).Warn("summarize body")
			} else {
				meta[MetaSummary] = summary
			}
		}
		arts = append(arts, artifact{id: textID, embed: body, meta: meta, payload: newTextPayload(rec.Text)})
	}

	for _, key := range sortedKeys(rec.Images) {
		img := rec.Images[key]
		id := docID + "_" + key
		if !img.Caption.Found || strings.TrimSpace(img.Caption.Text) == "" {
			skipped = append(skipped, id)
			continue
		}
		meta := withType(base, domain.ArtifactImage)
		meta[MetaPage] = strconv.Itoa(img.PageNumber)
		arts = append(arts, artifact{id: id, embed: img.Caption.Text, meta: meta, payload: newImagePayload(img)})
	}

	for _, key := range sortedKeys(rec.Tables) {
		tbl := rec.Tables[key]
		id := docID + "_" + key
		if !tbl.Caption.Found || strings.TrimSpace(tbl.Caption.Text) == "" {
			skipped = append(skipped, id)
			continue
		}
		meta := withType(base, domain.ArtifactTable)
		meta[MetaPage] = strconv.Itoa(tbl.PageNumber)
		arts = append(arts, artifact{id: id, embed: tbl.Caption.Text, meta: meta, payload: newTablePayload(tbl)})
	}

	if s.chunker != nil && strings.TrimSpace(rec.Text.Text) != "" {
		chunks, err := s.chunker.Chunk(docID, rec.Text.Text)
		if err != nil {
			log.WithError(err).Warn("chunk body")
		}
		for _, c := range chunks {
			meta := withType(base, domain.ArtifactText)
			meta[MetaPassage] = strconv.Itoa(c.Index)
			arts = append(arts, artifact{id: c.ChunkID, embed: c.Text, meta: meta, payload: passagePayload{Text: c.Text, Index: c.Index}})
		}
	}
	return arts, skipped
}

// prune deletes the records of docID whose ids are not in keep. Ids of
// artifacts that failed this run are in keep, so their previous version
// stays.
func (s *IndexService) prune(ctx context.Context, docID string, keep []artifact) ([]string, error) {
	all, err := s.store.Get(ctx, nil)
	if err != nil {
		return nil, domain.StoreError("list "+docID, err)
	}
	current := make(map[string]struct{}, len(keep))
	for _, a := range keep {
		current[a.id] = struct{}{}
	}
	var stale []string
	for _, r := range all {
		if r.Metadata[MetaDocID] != docID {
			continue
		}
		if _, ok := current[r.ID]; !ok {
			stale = append(stale, r.ID)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}
	if err := s.store.Delete(ctx, stale); err != nil {
		return nil, domain.StoreError("remove stale artifacts of "+docID, err)
	}
	return stale, nil
}

func (s *IndexService) put(ctx context.Context, a artifact) error {
	vec, err := s.embedder.Embed(ctx, a.embed)
	if err != nil {
		return domain.EmbeddingError("embed "+a.id, err)
	}
	doc, err := encode(a.payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.id, err)
	}
	if doc, err = s.fit(a, doc); err != nil {
		return err
	}
	rec := domain.VectorRecord{ID: a.id, Embedding: vec, Metadata: a.meta, Document: doc}
	if !s.store.Upserts() {
		if err := s.store.Delete(ctx, []string{a.id}); err != nil {
			return domain.StoreError("replace "+a.id, err)
		}
	}
	if err := s.store.Add(ctx, []domain.VectorRecord{rec}); err != nil {
		return domain.StoreError("add "+a.id, err)
	}
	return nil
}

// fit re-encodes a payload without its bulkiest field when the store caps
// document size and doc is over the cap. The artifact is marked trimmed.
func (s *IndexService) fit(a artifact, doc string) (string, error) {
	limiter, ok := s.store.(vectorstore.DocumentLimiter)
	if !ok || len(doc) <= limiter.MaxDocumentBytes() {
		return doc, nil
	}
	t, ok := a.payload.(trimmer)
	if !ok {
		return doc, nil
	}
	slim, err := encode(t.trimmed())
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", a.id, err)
	}
	a.meta[MetaTrimmed] = "true"
	s.log.WithFields(logrus.Fields{"artifact": a.id, "bytes": len(doc), "limit": limiter.MaxDocumentBytes()}).
		Warn("payload over store limit, stored without bulk field")
	return slim, nil
}

// QueryResult holds the hits of one query, nearest first.
type QueryResult struct {
	Query string             `json:"query"`
	Hits  []domain.VectorHit `json:"hits"`
}

func (s *IndexService) Query(ctx context.Context, text string, n int) (*QueryResult, error) {
	if n <= 0 {
		n = DefaultNumResults
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, domain.EmbeddingError("embed query", err)
	}
	hits, err := s.store.Query(ctx, vec, n)
	if err != nil {
		return nil, domain.StoreError("query "+s.store.Name(), err)
	}
	return &QueryResult{Query: text, Hits: hits}, nil
}

// UniqueFilepaths returns the distinct source files among the hits, sorted.
func UniqueFilepaths(hits []domain.VectorHit) []string {
	recs := make([]domain.VectorRecord, len(hits))
	for i, h := range hits {
		recs[i] = h.VectorRecord
	}
	return filepaths(recs)
}

// IndexedFilepaths lists every source file with at least one stored artifact.
func (s *IndexService) IndexedFilepaths(ctx context.Context) ([]string, error) {
	all, err := s.store.Get(ctx, nil)
	if err != nil {
		return nil, domain.StoreError("list "+s.store.Name(), err)
	}
	return filepaths(all), nil
}

func filepaths(recs []domain.VectorRecord) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range recs {
		p := r.Metadata[MetaFilepath]
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func baseMetadata(docID, filepath string, doc map[string]string) map[string]string {
	meta := make(map[string]string, len(doc)+3)
	for k, v := range doc {
		meta[k] = v
	}
	meta[MetaFilepath] = filepath
	meta[MetaDocID] = docID
	return meta
}

func withType(base map[string]string, typ string) map[string]string {
	meta := make(map[string]string, len(base)+2)
	for k, v := range base {
		meta[k] = v
	}
	meta[MetaType] = typ
	return meta
}

// sortedKeys orders ids like "image_2" before "image_10".
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, ni := splitOrdinal(keys[i])
		pj, nj := splitOrdinal(keys[j])
		if pi != pj {
			return pi < pj
		}
		if ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func splitOrdinal(key string) (string, int) {
	i := strings.LastIndexByte(key, '_')
	if i < 0 {
		return key, 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return key, 0
	}
	return key[:i], n
}
