package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"paperindex/internal/domain"
	"paperindex/internal/logging"
)

const DefaultInclude = "*.{pdf,PDF}"

// Extractor produces the structured record of one PDF.
type Extractor interface {
	Extract(path string) (*domain.Extraction, error)
}

// Indexer stores one extracted document.
type Indexer interface {
	Index(ctx context.Context, docID, filepath string, rec *domain.DocumentRecord) (IndexReport, error)
}

type BatchOptions struct {
	Workers int
	// Include is matched against file base names.
	Include   string
	Recursive bool
	Log       *logrus.Entry
}

// Batch extracts and indexes documents, several at a time. A failing
// document is reported and the batch moves on.
type Batch struct {
	extractor Extractor
	indexer   Indexer
	workers   int
	include   glob.Glob
	recursive bool
	log       *logrus.Entry
}

func NewBatch(extractor Extractor, indexer Indexer, opts BatchOptions) (*Batch, error) {
	pattern := opts.Include
	if pattern == "" {
		pattern = DefaultInclude
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, domain.ConfigError("include pattern "+pattern, err)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Batch{
		extractor: extractor,
		indexer:   indexer,
		workers:   workers,
		include:   g,
		recursive: opts.Recursive,
		log:       logging.OrDiscard(opts.Log),
	}, nil
}

// Outcome is the result of one document.
type Outcome struct {
	Path     string
	DocID    string
	Report   IndexReport
	Warnings []domain.Warning
	Err      error
	Elapsed  time.Duration
}

type Summary struct {
	Total   int
	Indexed int
	Failed  int
	Elapsed time.Duration
}

// ProgressFunc is called once per document. Calls never overlap.
type ProgressFunc func(Outcome)

// Discover lists the files under dir whose names match the include pattern,
// sorted by path.
func (b *Batch) Discover(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			b.log.WithError(err).WithField("path", path).Warn("skip unreadable entry")
			return nil
		}
		if d.IsDir() {
			if path != dir && !b.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if b.include.Match(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (b *Batch) RunDir(ctx context.Context, dir string, progress ProgressFunc) (Summary, error) {
	paths, err := b.Discover(dir)
	if err != nil {
		return Summary{}, err
	}
	return b.RunFiles(ctx, paths, progress)
}

// RunFiles processes paths and returns once every started document is done.
// The error is non-nil only when ctx was cancelled.
func (b *Batch) RunFiles(ctx context.Context, paths []string, progress ProgressFunc) (Summary, error) {
	start := time.Now()
	var (
		mu  sync.Mutex
		sum = Summary{Total: len(paths)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := b.process(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if out.Err != nil {
				sum.Failed++
			} else {
				sum.Indexed++
			}
			if progress != nil {
				progress(out)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sum.Elapsed = time.Since(start)
	b.log.WithFields(logrus.Fields{
		"total":   sum.Total,
		"indexed": sum.Indexed,
		"failed":  sum.Failed,
		"elapsed": sum.Elapsed.Round(time.Millisecond).String(),
	}).Info("batch finished")
	return sum, err
}

func (b *Batch) process(ctx context.Context, path string) Outcome {
	start := time.Now()
	out := Outcome{Path: path, DocID: DocID(path)}
	log := b.log.WithFields(logrus.Fields{"path": path, "doc_id": out.DocID})

	ext, err := b.extractor.Extract(path)
	if err != nil {
		log.WithError(err).Error("extract document")
		out.Err = err
		out.Elapsed = time.Since(start)
		return out
	}
	out.Warnings = ext.Troubleshoot

	out.Report, out.Err = b.indexer.Index(ctx, out.DocID, out.DocID, ext.Document)
	out.Elapsed = time.Since(start)
	if out.Err != nil {
		log.WithError(out.Err).Error("index document")
		return out
	}
	log.WithFields(logrus.Fields{
		"artifacts": len(out.Report.Stored),
		"warnings":  len(out.Warnings),
		"elapsed":   out.Elapsed.Round(time.Millisecond).String(),
	}).Info("indexed")
	return out
}

// DocID is the document id used for path: its absolute form when it can be
// resolved.
func DocID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// IsDir reports whether path names a directory.
func IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
