package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
)

func nums(v ...float64) []operand {
	out := make([]operand, len(v))
	for i, f := range v {
		out[i].num = f
	}
	return out
}

func name(n string) []operand { return []operand{{name: n}} }

func TestMatrixMul(t *testing.T) {
	scale := matrix{2, 0, 0, 3, 0, 0}
	move := matrix{1, 0, 0, 1, 10, 20}

	// scale first, then translate
	x, y := scale.mul(move).apply(1, 1)
	assert.Equal(t, 12.0, x)
	assert.Equal(t, 23.0, y)

	assert.Equal(t, scale, scale.mul(identity))
	assert.Equal(t, scale, identity.mul(scale))
}

func TestPlacements_ImageUnderCTM(t *testing.T) {
	w := newPlacements(func(n string) (xobject, bool) {
		return xobject{kind: xobjectImage}, n == "Im0"
	})

	require.NoError(t, w.step("q", nil))
	require.NoError(t, w.step("cm", nums(200, 0, 0, 100, 72, 500)))
	require.NoError(t, w.step("Do", name("Im0")))
	require.NoError(t, w.step("Q", nil))
	require.NoError(t, w.step("Do", name("Im0")))
	require.NoError(t, w.step("Do", name("Missing")))

	require.Len(t, w.found["Im0"], 2)
	assert.Equal(t, domain.Rect{X0: 72, Y0: 500, X1: 272, Y1: 600}, w.found["Im0"][0])
	assert.Equal(t, domain.Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}, w.found["Im0"][1])
	assert.NotContains(t, w.found, "Missing")
}

func TestPlacements_RotatedImage(t *testing.T) {
	w := newPlacements(func(string) (xobject, bool) { return xobject{kind: xobjectImage}, true })

	// 90 degrees counter-clockwise, 50 wide and 80 tall after rotation
	require.NoError(t, w.step("cm", nums(0, 50, -80, 0, 300, 100)))
	require.NoError(t, w.step("Do", name("Im1")))

	assert.Equal(t, domain.Rect{X0: 220, Y0: 100, X1: 300, Y1: 150}, w.found["Im1"][0])
}

func TestPlacements_FormXObject(t *testing.T) {
	inner := func(n string) (xobject, bool) {
		return xobject{kind: xobjectImage}, true
	}
	var innerPainted bool
	page := func(n string) (xobject, bool) {
		switch n {
		case "Fm0":
			return xobject{
				kind:   xobjectForm,
				matrix: matrix{1, 0, 0, 1, 100, 0},
				run: func(w *placements) error {
					w.enter(inner)
					defer w.leave()
					innerPainted = true
					return w.step("Do", name("Im0"))
				},
			}, true
		case "Im0":
			return xobject{kind: xobjectImage}, true
		}
		return xobject{}, false
	}
	w := newPlacements(page)

	require.NoError(t, w.step("cm", nums(10, 0, 0, 10, 0, 0)))
	require.NoError(t, w.step("Do", name("Fm0")))
	require.NoError(t, w.step("Do", name("Im0")))

	assert.True(t, innerPainted)
	// only the page-level paint is recorded, and the form leaves the CTM alone
	require.Len(t, w.found["Im0"], 1)
	assert.Equal(t, domain.Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}, w.found["Im0"][0])
}

func TestPlacements_UnbalancedRestoreIsIgnored(t *testing.T) {
	w := newPlacements(func(string) (xobject, bool) { return xobject{}, false })
	assert.NoError(t, w.step("Q", nil))
	assert.NoError(t, w.step("cm", nums(1, 2)))
	assert.Equal(t, identity, w.ctm)
}

func TestToPage(t *testing.T) {
	mb := domain.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}
	got := toPage(domain.Rect{X0: 72, Y0: 500, X1: 272, Y1: 600}, mb)
	assert.Equal(t, domain.Rect{X0: 72, Y0: 192, X1: 272, Y1: 292}, got)
}
