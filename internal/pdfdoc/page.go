package pdfdoc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ledongthuc/pdf"

	"paperindex/internal/domain"
)

type page struct {
	doc   *document
	num   int
	pg    pdf.Page
	media domain.Rect

	glyphsOnce sync.Once
	glyphs     []glyph
	glyphsErr  error

	placedOnce sync.Once
	placed     map[string][]domain.Rect
	placedErr  error
}

func (p *page) Number() int { return p.num }

func (p *page) Rect() domain.Rect {
	return domain.Rect{X1: p.media.Width(), Y1: p.media.Height()}
}

func (p *page) Text() (string, error) {
	glyphs, err := p.loadGlyphs()
	if err != nil {
		return "", err
	}
	if len(glyphs) > 0 {
		return assemble(glyphs), nil
	}
	return p.plainText()
}

func (p *page) TextIn(r domain.Rect) (string, error) {
	glyphs, err := p.loadGlyphs()
	if err != nil {
		return "", err
	}
	return assemble(clip(glyphs, r)), nil
}

// plainText covers pages whose content the glyph walk could not see.
func (p *page) plainText() (text string, err error) {
	defer recoverInto(&err, fmt.Sprintf("page %d text", p.num))
	return p.pg.GetPlainText(nil)
}

func (p *page) loadGlyphs() ([]glyph, error) {
	p.glyphsOnce.Do(func() {
		defer recoverInto(&p.glyphsErr, fmt.Sprintf("page %d content", p.num))
		content := p.pg.Content()
		p.glyphs = make([]glyph, 0, len(content.Text))
		for _, t := range content.Text {
			p.glyphs = append(p.glyphs, glyph{
				x:    t.X - p.media.X0,
				y:    p.media.Y1 - t.Y,
				w:    t.W,
				size: t.FontSize,
				s:    t.S,
			})
		}
	})
	return p.glyphs, p.glyphsErr
}

// Images lists the image XObjects in the page resources, sorted by name.
func (p *page) Images() (refs []domain.ImageRef, err error) {
	defer recoverInto(&err, fmt.Sprintf("page %d images", p.num))
	xobjects := p.pg.Resources().Key("XObject")
	for _, name := range xobjects.Keys() {
		x := xobjects.Key(name)
		if x.Key("Subtype").Name() != "Image" {
			continue
		}
		refs = append(refs, domain.ImageRef{
			Name:   name,
			Width:  int(x.Key("Width").Int64()),
			Height: int(x.Key("Height").Int64()),
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// ImageBBox returns where ref is first painted on the page. An image listed
// in the resources but never painted has no bounding box.
func (p *page) ImageBBox(ref domain.ImageRef) (domain.Rect, error) {
	placed, err := p.loadPlacements()
	if err != nil {
		return domain.Rect{}, err
	}
	boxes := placed[ref.Name]
	if len(boxes) == 0 {
		return domain.Rect{}, fmt.Errorf("bad image name %s: not painted on page %d", ref.Name, p.num)
	}
	return toPage(boxes[0], p.media), nil
}

func (p *page) ExtractImage(ref domain.ImageRef) (domain.ImageData, error) {
	src, err := p.doc.imageSource()
	if err != nil {
		return domain.ImageData{}, err
	}
	return src.image(p.num, ref)
}

func (p *page) loadPlacements() (map[string][]domain.Rect, error) {
	p.placedOnce.Do(func() {
		defer recoverInto(&p.placedErr, fmt.Sprintf("page %d layout", p.num))
		w := newPlacements(resolverFor(p.pg.Resources()))
		p.placedErr = walkContents(p.pg.V.Key("Contents"), w)
		p.placed = w.found
	})
	return p.placed, p.placedErr
}

func resolverFor(resources pdf.Value) resolver {
	xobjects := resources.Key("XObject")
	return func(name string) (xobject, bool) {
		x := xobjects.Key(name)
		if x.IsNull() {
			return xobject{}, false
		}
		switch x.Key("Subtype").Name() {
		case "Image":
			return xobject{kind: xobjectImage}, true
		case "Form":
			m := identity
			if mv := x.Key("Matrix"); mv.Kind() == pdf.Array && mv.Len() == 6 {
				for i := range m {
					m[i] = mv.Index(i).Float64()
				}
			}
			formRes := x.Key("Resources")
			if formRes.IsNull() {
				formRes = resources
			}
			return xobject{
				kind:   xobjectForm,
				matrix: m,
				run: func(w *placements) error {
					w.enter(resolverFor(formRes))
					defer w.leave()
					return walkStream(x, w)
				},
			}, true
		}
		return xobject{kind: xobjectOther}, true
	}
}

// walkContents walks a page Contents entry, which is a stream or an array of
// streams sharing graphics state.
func walkContents(contents pdf.Value, w *placements) error {
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			if err := walkStream(contents.Index(i), w); err != nil {
				return err
			}
		}
		return nil
	}
	return walkStream(contents, w)
}

func walkStream(strm pdf.Value, w *placements) error {
	if strm.Kind() != pdf.Stream {
		return nil
	}
	var err error
	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]operand, n)
		for i := n - 1; i >= 0; i-- {
			v := stk.Pop()
			switch v.Kind() {
			case pdf.Integer, pdf.Real:
				args[i].num = v.Float64()
			case pdf.Name:
				args[i].name = v.Name()
			}
		}
		if err == nil {
			err = w.step(op, args)
		}
	})
	return err
}
