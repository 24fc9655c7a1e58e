package svgraster

import (
	"image"
	"image/color"
	"math"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/srwiley/rasterx"
)

// source returns the color or the color function used by the scanner
// to paint with `p`, applying `alpha` and the clipping mask.
func (b *Backend) source(p paint, alpha float64) interface{} {
	clip := b.state.clip
	if grad, ok := b.shadings[p.pattern]; ok {
		return maskedFunc(gradientFunc(grad, b.scale), alpha, clip)
	}
	c := withAlpha(p.color, alpha)
	if clip == nil {
		return c
	}
	return maskedFunc(func(x, y int) color.NRGBA { return p.color }, alpha, clip)
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * math.Min(1, alpha)))
	return c
}

func maskedFunc(base func(x, y int) color.NRGBA, alpha float64, clip *image.Alpha) rasterx.ColorFunc {
	alpha = math.Min(1, alpha)
	if clip == nil {
		return func(x, y int) color.Color { return withAlpha(base(x, y), alpha) }
	}
	return func(x, y int) color.Color {
		m := clip.AlphaAt(x, y).A
		if m == 0 {
			return color.NRGBA{}
		}
		return withAlpha(base(x, y), alpha*float64(m)/0xff)
	}
}

// gradientFunc returns the color of the gradient at each pixel,
// sampled at its center. `scale` is the number of pixels per page unit.
func gradientFunc(grad svgpath.Gradient, scale float64) func(x, y int) color.NRGBA {
	stops := grad.Stops
	switch {
	case len(stops) == 0:
		return func(x, y int) color.NRGBA { return color.NRGBA{} }
	case len(stops) == 1:
		c := stops[0].Color
		return func(x, y int) color.NRGBA { return c }
	}
	last := stops[len(stops)-1].Color
	solid := func(x, y int) color.NRGBA { return last }

	toGradient := svgpath.Identity.Scale(scale, scale).Mult(grad.Matrix)
	if !toGradient.IsInvertible() {
		return solid
	}
	toGradient = toGradient.Invert()

	var param func(p svgpath.Point) (float64, bool)
	switch dir := grad.Direction.(type) {
	case svgpath.Linear:
		param = linearParam(dir)
	case svgpath.Radial:
		param = radialParam(dir)
	}
	if param == nil {
		return solid
	}
	return func(x, y int) color.NRGBA {
		p := toGradient.Apply(svgpath.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
		t, ok := param(p)
		if !ok {
			return color.NRGBA{}
		}
		return svgpath.ColorAt(stops, grad.Spread.Spread(t))
	}
}

// linearParam projects the point on the gradient vector
func linearParam(dir svgpath.Linear) func(p svgpath.Point) (float64, bool) {
	x1, y1, dx, dy := dir[0], dir[1], dir[2]-dir[0], dir[3]-dir[1]
	l2 := dx*dx + dy*dy
	if l2 < 1e-12 {
		return nil
	}
	return func(p svgpath.Point) (float64, bool) {
		return ((p.X-x1)*dx + (p.Y-y1)*dy) / l2, true
	}
}

// radialParam returns the largest t such that the point lies on the circle
// interpolated between the focal circle (t = 0) and the end circle (t = 1),
// with a non negative radius.
func radialParam(dir svgpath.Radial) func(p svgpath.Point) (float64, bool) {
	cx, cy, fx, fy, r, fr := dir[0], dir[1], dir[2], dir[3], dir[4], dir[5]
	if r <= 0 {
		return nil
	}
	cdx, cdy, dr := cx-fx, cy-fy, r-fr
	a := cdx*cdx + cdy*cdy - dr*dr
	return func(p svgpath.Point) (float64, bool) {
		pdx, pdy := p.X-fx, p.Y-fy
		b := pdx*cdx + pdy*cdy + fr*dr
		c := pdx*pdx + pdy*pdy - fr*fr
		if math.Abs(a) < 1e-9 {
			if b == 0 {
				return 0, false
			}
			t := c / (2 * b)
			return t, fr+t*dr >= 0
		}
		disc := b*b - a*c
		if disc < 0 {
			return 0, false
		}
		sq := math.Sqrt(disc)
		t1, t2 := (b+sq)/a, (b-sq)/a
		if t1 < t2 {
			t1, t2 = t2, t1
		}
		if fr+t1*dr >= 0 {
			return t1, true
		}
		if fr+t2*dr >= 0 {
			return t2, true
		}
		return 0, false
	}
}
