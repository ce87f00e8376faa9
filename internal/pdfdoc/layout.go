package pdfdoc

import (
	"math"
	"strings"

	"paperindex/internal/domain"
)

// glyph is one shown string in top-left page space. y is the baseline.
type glyph struct {
	x, y, w, size float64
	s             string
}

func (g glyph) box() domain.Rect {
	size := g.size
	if size <= 0 {
		size = 1
	}
	return domain.Rect{X0: g.x, Y0: g.y - 0.8*size, X1: g.x + g.w, Y1: g.y + 0.2*size}
}

// assemble joins glyphs into lines in content-stream order. A new line starts
// when the baseline moves by more than a fraction of the font size; a space is
// inserted where the horizontal gap between glyphs exceeds one.
func assemble(glyphs []glyph) string {
	var (
		sb    strings.Builder
		prev  glyph
		first = true
	)
	for _, g := range glyphs {
		if g.s == "" {
			continue
		}
		if first {
			sb.WriteString(g.s)
			prev, first = g, false
			continue
		}
		size := math.Max(math.Max(g.size, prev.size), 1)
		switch {
		case math.Abs(g.y-prev.y) > 0.5*size || g.x < prev.x-size:
			sb.WriteByte('\n')
		case g.x-(prev.x+prev.w) > 0.15*size && !endsSpace(prev.s) && !startsSpace(g.s):
			sb.WriteByte(' ')
		}
		sb.WriteString(g.s)
		prev = g
	}
	if sb.Len() == 0 {
		return ""
	}
	sb.WriteByte('\n')
	return sb.String()
}

func clip(glyphs []glyph, r domain.Rect) []glyph {
	var out []glyph
	for _, g := range glyphs {
		if g.box().Intersects(r) {
			out = append(out, g)
		}
	}
	return out
}

func endsSpace(s string) bool   { return strings.HasSuffix(s, " ") }
func startsSpace(s string) bool { return strings.HasPrefix(s, " ") }
