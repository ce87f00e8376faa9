package pdfdoc

import (
	"math"

	"paperindex/internal/domain"
)

const maxFormDepth = 8

// matrix is a PDF transformation [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// unitBox is the bounding box of the unit square under m, in PDF user space.
func (m matrix) unitBox() domain.Rect {
	r := domain.Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, c := range [4][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.apply(c[0], c[1])
		r.X0, r.X1 = math.Min(r.X0, x), math.Max(r.X1, x)
		r.Y0, r.Y1 = math.Min(r.Y0, y), math.Max(r.Y1, y)
	}
	return r
}

// operand is a content-stream argument reduced to what placement needs.
type operand struct {
	num  float64
	name string
}

type xobjectKind int

const (
	xobjectOther xobjectKind = iota
	xobjectImage
	xobjectForm
)

// xobject is a resolved XObject resource. For forms, run replays the form's
// content through the walker.
type xobject struct {
	kind   xobjectKind
	matrix matrix
	run    func(w *placements) error
}

type resolver func(name string) (xobject, bool)

// placements records where images are painted while walking content streams.
type placements struct {
	ctm     matrix
	saved   []matrix
	resolve []resolver
	// page-level images by resource name, in paint order
	found map[string][]domain.Rect
}

func newPlacements(resolve resolver) *placements {
	return &placements{
		ctm:     identity,
		resolve: []resolver{resolve},
		found:   make(map[string][]domain.Rect),
	}
}

func (p *placements) step(op string, args []operand) error {
	switch op {
	case "q":
		p.saved = append(p.saved, p.ctm)
	case "Q":
		if n := len(p.saved); n > 0 {
			p.ctm = p.saved[n-1]
			p.saved = p.saved[:n-1]
		}
	case "cm":
		if len(args) != 6 {
			return nil
		}
		var m matrix
		for i, a := range args {
			m[i] = a.num
		}
		p.ctm = m.mul(p.ctm)
	case "Do":
		if len(args) != 1 || args[0].name == "" {
			return nil
		}
		return p.paint(args[0].name)
	}
	return nil
}

func (p *placements) paint(name string) error {
	resolve := p.resolve[len(p.resolve)-1]
	x, ok := resolve(name)
	if !ok {
		return nil
	}
	switch x.kind {
	case xobjectImage:
		// Only page-level names are recorded; names inside a form refer to
		// the form's own resources.
		if len(p.resolve) == 1 {
			p.found[name] = append(p.found[name], p.ctm.unitBox())
		}
	case xobjectForm:
		if len(p.resolve) > maxFormDepth || x.run == nil {
			return nil
		}
		saved := p.ctm
		p.ctm = x.matrix.mul(p.ctm)
		err := x.run(p)
		p.ctm = saved
		return err
	}
	return nil
}

func (p *placements) enter(r resolver) { p.resolve = append(p.resolve, r) }
func (p *placements) leave()           { p.resolve = p.resolve[:len(p.resolve)-1] }

// toPage converts a user-space rectangle to top-left page space for a page
// whose media box is mb.
func toPage(r, mb domain.Rect) domain.Rect {
	return domain.Rect{
		X0: r.X0 - mb.X0,
		Y0: mb.Y1 - r.Y1,
		X1: r.X1 - mb.X0,
		Y1: mb.Y1 - r.Y0,
	}
}
