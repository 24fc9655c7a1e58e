package svgpath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func randPoint(offsetx, offsety float64) Point {
	return Point{rand.Float64()*100 + offsetx, rand.Float64()*100 + offsety}
}

// sampleBox evaluates the curve at many points
func sampleBox(curve bezier) Rect {
	var b bbox
	b.init()
	for i := 0; i <= 1000; i++ {
		x, y := curve.evaluateCurve(float64(i) / 1000)
		b.add(Point{x, y})
	}
	return b.rect()
}

func TestBoundingBoxCurves(t *testing.T) {
	for range [50]int{} {
		a, b, c, d := randPoint(0, 0), randPoint(0, 0), randPoint(0, 0), randPoint(0, 0)
		curve := cubicBezier{a, b, c, d}
		var p Path
		p.Start(a)
		p.CubeBezier(b, c, d)

		exact := p.BoundingBox()
		sampled := sampleBox(curve)
		// the sampled box is always inside the exact one, and close to it
		assert.LessOrEqual(t, exact.X, sampled.X+1e-9)
		assert.LessOrEqual(t, exact.Y, sampled.Y+1e-9)
		assert.InDelta(t, sampled.W, exact.W, 0.1)
		assert.InDelta(t, sampled.H, exact.H, 0.1)

		control := p.ControlBox()
		assert.LessOrEqual(t, control.X, exact.X+1e-9)
		assert.LessOrEqual(t, control.Y, exact.Y+1e-9)
		assert.GreaterOrEqual(t, control.X+control.W, exact.X+exact.W-1e-9)
		assert.GreaterOrEqual(t, control.Y+control.H, exact.Y+exact.H-1e-9)
	}
}

func TestBoundingBoxLine(t *testing.T) {
	var p Path
	p.Start(Point{10, 10})
	p.Line(Point{20, 5})
	p.Line(Point{15, 30})
	p.Stop(true)
	assert.Equal(t, Rect{10, 5, 10, 25}, p.BoundingBox())

	assert.True(t, Path(nil).BoundingBox().IsZero())
}

func TestBoundingBoxEllipse(t *testing.T) {
	box := Ellipse(0, 0, 5, 3).BoundingBox()
	assert.InDelta(t, -5, box.X, 1e-9)
	assert.InDelta(t, -3, box.Y, 1e-9)
	assert.InDelta(t, 10, box.W, 1e-9)
	assert.InDelta(t, 6, box.H, 1e-9)
}

func TestQuadraticRoots(t *testing.T) {
	assert.Nil(t, quadraticRoots(0, 0, 3))
	assert.Equal(t, []float64{-1.5}, quadraticRoots(0, 2, 3))
	assert.Nil(t, quadraticRoots(1, 0, 1))
	roots := quadraticRoots(1, 0, -4)
	assert.ElementsMatch(t, []float64{2, -2}, roots)
	assert.False(t, math.IsNaN(quadraticRoots(1, 2, 1)[0]))
}
