package extractor

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"paperindex/internal/domain"
	"paperindex/internal/logging"
	"paperindex/internal/section"
)

type Options struct {
	Patterns      *section.Library
	CaptionMargin float64
	Log           *logrus.Entry
}

// Extractor turns a PDF into a DocumentRecord.
type Extractor struct {
	opener   domain.PDFOpener
	captions *section.PatternSet
	refs     *section.PatternSet
	acks     *section.PatternSet
	margin   float64
	log      *logrus.Entry
}

func New(opener domain.PDFOpener, opts Options) (*Extractor, error) {
	lib := opts.Patterns
	if lib == nil {
		lib = section.DefaultLibrary()
	}
	if err := lib.Require(section.FigureCaptions, section.References, section.Acknowledgments); err != nil {
		return nil, domain.ConfigError("extractor patterns", err)
	}
	margin := opts.CaptionMargin
	if margin <= 0 {
		margin = DefaultCaptionMargin
	}
	captions, _ := lib.Set(section.FigureCaptions)
	refs, _ := lib.Set(section.References)
	acks, _ := lib.Set(section.Acknowledgments)
	return &Extractor{
		opener:   opener,
		captions: captions,
		refs:     refs,
		acks:     acks,
		margin:   margin,
		log:      logging.OrDiscard(opts.Log),
	}, nil
}

// Extract reads every page of the PDF at path. Failures confined to a page or
// an image are recorded in the troubleshoot log; only an unopenable document
// returns an error.
func (e *Extractor) Extract(path string) (*domain.Extraction, error) {
	log := e.log.WithField("path", path)

	doc, err := e.opener.Open(path)
	if err != nil {
		return nil, domain.DocumentError("open "+path, err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			log.WithError(cerr).Warn("close pdf")
		}
	}()

	rec := &domain.DocumentRecord{
		Images:   make(map[string]domain.PageImageRecord),
		Tables:   make(map[string]domain.TableRecord),
		Metadata: doc.Metadata(),
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]string{}
	}

	var (
		all    strings.Builder
		warns  []domain.Warning
		imgNum int
	)
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			warns = append(warns, domain.Warning{Page: i + 1, Message: err.Error()})
			continue
		}

		text, err := page.Text()
		if err != nil {
			warns = append(warns, domain.Warning{Page: page.Number(), Message: "text: " + err.Error()})
		} else if text != "" {
			all.WriteString(text)
			if !strings.HasSuffix(text, "\n") {
				all.WriteByte('\n')
			}
		}

		refs, err := page.Images()
		if err != nil {
			warns = append(warns, domain.Warning{Page: page.Number(), Message: "images: " + err.Error()})
			continue
		}
		for _, ref := range refs {
			imgNum++
			img, warn := e.figure(page, ref)
			if warn != nil {
				warns = append(warns, *warn)
				if img == nil {
					continue
				}
			}
			rec.Images[fmt.Sprintf("image_%d", imgNum)] = *img
		}
	}

	rec.Text.AllText = all.String()
	rec.Text.References = ParseReferences(rec.Text.AllText, e.refs)
	rec.Text.Text = StripBackMatter(rec.Text.AllText, e.refs, e.acks)

	for _, w := range warns {
		log.WithField("page", w.Page).Warn(w.String())
	}
	log.WithFields(logrus.Fields{
		"pages":      doc.PageCount(),
		"images":     len(rec.Images),
		"references": len(rec.Text.References.Entries),
	}).Debug("extracted")

	return &domain.Extraction{Document: rec, Troubleshoot: warns}, nil
}

// figure builds the record for one image. A nil record means the image was
// skipped; a warning may accompany a kept record when only its caption failed.
func (e *Extractor) figure(page domain.PDFPage, ref domain.ImageRef) (*domain.PageImageRecord, *domain.Warning) {
	skip := func(err error) (*domain.PageImageRecord, *domain.Warning) {
		return nil, &domain.Warning{Page: page.Number(), Image: ref.Name, Message: err.Error()}
	}

	data, err := page.ExtractImage(ref)
	if err != nil {
		return skip(err)
	}
	bbox, err := page.ImageBBox(ref)
	if err != nil {
		return skip(err)
	}

	img := &domain.PageImageRecord{
		Name:       ref.Name,
		Bytes:      data.Bytes,
		Ext:        data.Ext,
		Width:      ref.Width,
		Height:     ref.Height,
		BBox:       bbox,
		PageNumber: page.Number(),
	}
	caption, err := CaptionFor(page, bbox, e.margin, e.captions)
	if err != nil {
		return img, &domain.Warning{Page: page.Number(), Message: err.Error()}
	}
	img.Caption = caption
	return img, nil
}
