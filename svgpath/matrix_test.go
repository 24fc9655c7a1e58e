package svgpath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertPointInDelta(t *testing.T, expected, got Point, msgAndArgs ...interface{}) {
	t.Helper()
	assert.InDelta(t, expected.X, got.X, 1e-9, msgAndArgs...)
	assert.InDelta(t, expected.Y, got.Y, 1e-9, msgAndArgs...)
}

func TestMatrixMultOrder(t *testing.T) {
	translate := Identity.Translate(10, 20)
	scale := Identity.Scale(2, 2)

	// translate(10,20) scale(2) : the scale is applied first
	m := translate.Mult(scale)
	assertPointInDelta(t, Point{10, 20}, m.Apply(Point{0, 0}))
	assertPointInDelta(t, Point{20, 20}, m.Apply(Point{5, 0}))

	// same as the chained version
	assert.Equal(t, m, Identity.Translate(10, 20).Scale(2, 2))

	for _, p := range []Point{{0, 0}, {1, 2}, {-3, 7.5}} {
		sequential := translate.Apply(scale.Apply(p))
		assertPointInDelta(t, sequential, m.Apply(p))
	}
}

func TestMatrixInvert(t *testing.T) {
	m := Identity.Translate(4, -3).Rotate(math.Pi / 6).Scale(2, 0.5).SkewX(0.2)
	assert.True(t, m.IsInvertible())
	inv := m.Invert()
	for _, p := range []Point{{0, 0}, {1, 2}, {-3, 7.5}} {
		assertPointInDelta(t, p, inv.Apply(m.Apply(p)))
	}
	prod := m.Mult(inv)
	assert.InDelta(t, 1, prod.A, 1e-9)
	assert.InDelta(t, 0, prod.B, 1e-9)
	assert.InDelta(t, 0, prod.E, 1e-9)

	degenerate := Identity.Scale(0, 1)
	assert.False(t, degenerate.IsInvertible())
	assert.Equal(t, Identity, degenerate.Invert())
}

func TestMatrixRotate(t *testing.T) {
	m := Identity.Rotate(math.Pi / 2)
	assertPointInDelta(t, Point{0, 1}, m.Apply(Point{1, 0}))
	x, y := m.TransformVector(0, 1)
	assertPointInDelta(t, Point{-1, 0}, Point{x, y})
	assert.InDelta(t, 1, m.ScaleFactor(), 1e-9)
	assert.InDelta(t, 3, Identity.Scale(3, 3).ScaleFactor(), 1e-9)
}

func TestRect(t *testing.T) {
	r := Rect{0, 0, 10, 10}
	assert.Equal(t, r, r.Union(Rect{}))
	assert.Equal(t, r, Rect{}.Union(r))
	assert.Equal(t, Rect{-5, 0, 15, 20}, r.Union(Rect{-5, 5, 2, 15}))

	assert.Equal(t, Rect{10, 20, 20, 20}, r.Transform(Identity.Translate(10, 20).Scale(2, 2)))
	assert.Equal(t, Rect{-1, -1, 12, 12}, r.Inflate(1))
	assert.True(t, Rect{}.Transform(Identity.Translate(4, 4)).IsZero())
}
