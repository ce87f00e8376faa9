package extractor

import (
	"errors"
	"strings"

	"paperindex/internal/domain"
)

type fakeOpener struct {
	docs map[string]*fakeDoc
}

func (o *fakeOpener) Open(path string) (domain.PDFDocument, error) {
	d, ok := o.docs[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return d, nil
}

type fakeDoc struct {
	pages  []*fakePage
	meta   map[string]string
	closed int
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Page(i int) (domain.PDFPage, error) {
	if d.pages[i] == nil {
		return nil, errors.New("broken page object")
	}
	return d.pages[i], nil
}

func (d *fakeDoc) Metadata() map[string]string { return d.meta }

func (d *fakeDoc) Close() error {
	d.closed++
	return nil
}

type fakeBlock struct {
	rect domain.Rect
	text string
}

type fakeImage struct {
	ref     domain.ImageRef
	bytes   []byte
	bbox    domain.Rect
	bboxErr error
	dataErr error
}

type fakePage struct {
	num     int
	text    string
	textErr error
	blocks  []fakeBlock
	images  []fakeImage
}

func (p *fakePage) Number() int { return p.num }

func (p *fakePage) Rect() domain.Rect { return domain.Rect{X1: 612, Y1: 792} }

func (p *fakePage) Text() (string, error) { return p.text, p.textErr }

func (p *fakePage) TextIn(r domain.Rect) (string, error) {
	var parts []string
	for _, b := range p.blocks {
		if b.rect.Intersects(r) {
			parts = append(parts, b.text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (p *fakePage) Images() ([]domain.ImageRef, error) {
	refs := make([]domain.ImageRef, len(p.images))
	for i, img := range p.images {
		refs[i] = img.ref
	}
	return refs, nil
}

func (p *fakePage) find(ref domain.ImageRef) fakeImage {
	for _, img := range p.images {
		if img.ref.Name == ref.Name {
			return img
		}
	}
	return fakeImage{bboxErr: errors.New("unknown image")}
}

func (p *fakePage) ImageBBox(ref domain.ImageRef) (domain.Rect, error) {
	img := p.find(ref)
	return img.bbox, img.bboxErr
}

func (p *fakePage) ExtractImage(ref domain.ImageRef) (domain.ImageData, error) {
	img := p.find(ref)
	if img.dataErr != nil {
		return domain.ImageData{}, img.dataErr
	}
	return domain.ImageData{Bytes: img.bytes, Ext: "png"}, nil
}
