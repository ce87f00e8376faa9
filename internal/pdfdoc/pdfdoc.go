// Package pdfdoc reads PDF files with github.com/ledongthuc/pdf for text,
// glyph geometry and content streams, and github.com/pdfcpu/pdfcpu for the
// bytes of embedded images.
package pdfdoc

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"paperindex/internal/domain"
)

var ErrNotPDF = errors.New("not a pdf file")

// Opener opens PDF files from disk.
type Opener struct{}

func NewOpener() *Opener { return &Opener{} }

func (o *Opener) Open(path string) (doc domain.PDFDocument, err error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}
	if !mt.Is("application/pdf") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotPDF, mt.String())
	}

	defer recoverInto(&err, "open")
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &document{path: path, file: f, reader: r}, nil
}

type document struct {
	path   string
	file   *os.File
	reader *pdf.Reader

	imagesOnce sync.Once
	images     *imageSource
	imagesErr  error
}

func (d *document) PageCount() int { return d.reader.NumPage() }

func (d *document) Page(index int) (p domain.PDFPage, err error) {
	if index < 0 || index >= d.reader.NumPage() {
		return nil, fmt.Errorf("page index %d out of range", index)
	}
	defer recoverInto(&err, "page")
	pg := d.reader.Page(index + 1)
	if pg.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing page object", index+1)
	}
	return &page{doc: d, num: index + 1, pg: pg, media: mediaBox(pg.V)}, nil
}

// Metadata returns the Info dictionary with keys as written in the file.
func (d *document) Metadata() (meta map[string]string) {
	meta = map[string]string{}
	defer func() {
		if recover() != nil {
			meta = map[string]string{}
		}
	}()
	info := d.reader.Trailer().Key("Info")
	keys := info.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		v := info.Key(k)
		switch v.Kind() {
		case pdf.String:
			meta[k] = v.Text()
		case pdf.Null:
		default:
			meta[k] = v.String()
		}
	}
	return meta
}

func (d *document) Close() error {
	var err error
	if d.images != nil {
		err = d.images.close()
	}
	return errors.Join(err, d.file.Close())
}

// imageSource loads the pdfcpu view of the document on first use.
func (d *document) imageSource() (*imageSource, error) {
	d.imagesOnce.Do(func() {
		d.images, d.imagesErr = openImageSource(d.path)
	})
	return d.images, d.imagesErr
}

func mediaBox(v pdf.Value) domain.Rect {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		if mb := v.Key("MediaBox"); mb.Kind() == pdf.Array && mb.Len() == 4 {
			r := domain.Rect{
				X0: mb.Index(0).Float64(),
				Y0: mb.Index(1).Float64(),
				X1: mb.Index(2).Float64(),
				Y1: mb.Index(3).Float64(),
			}
			if r.X0 > r.X1 {
				r.X0, r.X1 = r.X1, r.X0
			}
			if r.Y0 > r.Y1 {
				r.Y0, r.Y1 = r.Y1, r.Y0
			}
			return r
		}
		v = v.Key("Parent")
	}
	// US Letter
	return domain.Rect{X1: 612, Y1: 792}
}

// recoverInto turns a parser panic into an error. The pdf package panics on
// malformed objects and unsupported stream filters.
func recoverInto(err *error, what string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: malformed pdf: %v", what, r)
	}
}
