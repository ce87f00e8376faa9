// Package api serves queries and single-document indexing over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"paperindex/internal/domain"
	"paperindex/internal/logging"
	"paperindex/internal/service"
)

const maxResults = 1000

// Searcher answers queries against the indexed collection.
type Searcher interface {
	Query(ctx context.Context, text string, n int) (*service.QueryResult, error)
	IndexedFilepaths(ctx context.Context) ([]string, error)
}

type Config struct {
	NumResults     int
	RequestTimeout time.Duration
	Log            *logrus.Entry
}

type Handler struct {
	search     Searcher
	extractor  service.Extractor
	indexer    service.Indexer
	numResults int
	timeout    time.Duration
	log        *logrus.Entry
}

func NewHandler(search Searcher, extractor service.Extractor, indexer service.Indexer, cfg Config) *Handler {
	n := cfg.NumResults
	if n <= 0 {
		n = service.DefaultNumResults
	}
	return &Handler{
		search:     search,
		extractor:  extractor,
		indexer:    indexer,
		numResults: n,
		timeout:    cfg.RequestTimeout,
		log:        logging.OrDiscard(cfg.Log),
	}
}

// NewRouter mounts the handler's routes behind the standard middleware.
func NewRouter(h *Handler) http.Handler {
	timeout := h.timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "paperindex"})
	})
	r.Get("/query", h.Query)
	r.Get("/files", h.Files)
	r.Post("/documents", h.IndexDocument)
	return r
}

type queryResponse struct {
	Query     string             `json:"query"`
	Hits      []domain.VectorHit `json:"hits"`
	Filepaths []string           `json:"filepaths"`
}

// Query handles GET /query?q=...&n=...
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query", "parameter q is required")
		return
	}
	n := h.numResults
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxResults {
			writeError(w, http.StatusBadRequest, "invalid n", "n must be between 1 and "+strconv.Itoa(maxResults))
			return
		}
		n = v
	}
	res, err := h.search.Query(r.Context(), q, n)
	if err != nil {
		h.fail(w, r, "query", err)
		return
	}
	hits := res.Hits
	if hits == nil {
		hits = []domain.VectorHit{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Query: res.Query, Hits: hits, Filepaths: service.UniqueFilepaths(hits)})
}

// Files handles GET /files.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	paths, err := h.search.IndexedFilepaths(r.Context())
	if err != nil {
		h.fail(w, r, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"filepaths": paths})
}

type indexRequest struct {
	Path string `json:"path"`
}

type indexResponse struct {
	DocID    string   `json:"doc_id"`
	Stored   []string `json:"stored"`
	Skipped  []string `json:"skipped"`
	Removed  []string `json:"removed,omitempty"`
	Warnings []string `json:"warnings"`
	Error    string   `json:"error,omitempty"`
}

// IndexDocument handles POST /documents: extract one PDF from a path the
// server can read and index it.
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "missing path", "")
		return
	}

	ext, err := h.extractor.Extract(req.Path)
	if err != nil {
		h.fail(w, r, "extract", err)
		return
	}
	docID := service.DocID(req.Path)
	report, err := h.indexer.Index(r.Context(), docID, docID, ext.Document)

	resp := indexResponse{DocID: docID, Stored: report.Stored, Skipped: report.Skipped, Removed: report.Removed, Warnings: []string{}}
	for _, wn := range ext.Troubleshoot {
		resp.Warnings = append(resp.Warnings, wn.String())
	}
	if err != nil {
		if len(report.Stored) == 0 {
			h.fail(w, r, "index", err)
			return
		}
		// partial: what was stored stays stored
		resp.Error = err.Error()
		writeJSON(w, http.StatusMultiStatus, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	h.log.WithError(err).WithFields(logrus.Fields{
		"op":         op,
		"request_id": chimiddleware.GetReqID(r.Context()),
	}).Error("request failed")
	writeError(w, status, op+" failed", err.Error())
}

func statusFor(err error) int {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case domain.KindDocument:
		return http.StatusUnprocessableEntity
	case domain.KindEmbedding:
		return http.StatusBadGateway
	case domain.KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"elapsed":    time.Since(start).Round(time.Microsecond).String(),
				"request_id": chimiddleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}
