package svgpdf

import (
	"image/color"
	"math"

	"github.com/benoitkugler/svg2pdf/svgpath"
)

const (
	// side of the normalized space used for gofpdf shadings,
	// whose coordinates are written with 2 decimals
	unitSide = 100.
	// bound on the number of repeated periods of a gradient
	maxPeriods = 256
	// number of concentric circles used per unit of the
	// radial gradient parameter
	radialSteps    = 128
	maxRadialSteps = 4096
)

// fillShading paints the gradient inside the path.
// gofpdf only supports two-color axial and radial shadings, so that
// gradients are split into bands, drawn inside a clipping path.
func (b *Backend) fillShading(path string, box svgpath.Rect, evenOdd bool, grad svgpath.Gradient) {
	stops := grad.Stops
	if len(stops) == 0 {
		return
	}

	alpha := b.state.alpha
	b.raw("q")
	b.raw(path + clipOp(evenOdd))
	defer func() {
		b.raw("Q")
		b.state.alpha = alpha
	}()

	if len(stops) == 1 || !grad.Matrix.IsInvertible() || !b.state.ctm.IsInvertible() {
		b.solidBox(box, stops[len(stops)-1].Color)
		return
	}

	// from now on, draw in gradient space
	toGradient := b.state.ctm.Invert().Mult(grad.Matrix)
	b.concat(toGradient)
	region := box.Transform(grad.Matrix.Invert())

	switch dir := grad.Direction.(type) {
	case svgpath.Linear:
		b.linearShading(dir, stops, grad.Spread, region)
	case svgpath.Radial:
		b.radialShading(dir, stops, grad.Spread, region)
	}
}

// solidBox fills `box`, expressed in page space
func (b *Backend) solidBox(box svgpath.Rect, c color.NRGBA) {
	if !b.state.ctm.IsInvertible() {
		return
	}
	b.concat(b.state.ctm.Invert())
	b.solidRect(box, c)
}

// solidRect fills the rectangle expressed in the current coordinates
func (b *Backend) solidRect(r svgpath.Rect, c color.NRGBA) {
	b.setBandColor(c, c)
	b.raw(fmtNum(r.X*b.k) + " " + fmtNum((b.height-r.Y)*b.k) + " " +
		fmtNum(r.W*b.k) + " " + fmtNum(-r.H*b.k) + " re f")
}

// setBandColor sets the fill color and alpha for a band
// blending from `c0` to `c1`. The alpha of the band is the mean
// of the stop alphas.
func (b *Backend) setBandColor(c0, c1 color.NRGBA) {
	b.pdf.SetFillColor(int(c0.R), int(c0.G), int(c0.B))
	stopAlpha := (float64(c0.A) + float64(c1.A)) / 510
	base := b.state.fillAlpha
	if base < 0 {
		if stopAlpha == 1 {
			b.useAlpha(inheritFill)
			return
		}
		base = 1
	}
	b.setAlpha(base * stopAlpha)
}

// band is the part of a gradient between two parameters,
// with colors linearly interpolated.
type band struct {
	t0, t1 float64
	c0, c1 color.NRGBA
}

// bands returns the bands covering the [tMin, tMax] interval,
// according to the spread method.
func bands(stops []svgpath.GradStop, spread svgpath.SpreadMethod, tMin, tMax float64) []band {
	first, last := stops[0], stops[len(stops)-1]
	// one period, in [0, 1]
	var period []band
	if first.Offset > 0 {
		period = append(period, band{0, first.Offset, first.Color, first.Color})
	}
	for i := 1; i < len(stops); i++ {
		s0, s1 := stops[i-1], stops[i]
		if s1.Offset > s0.Offset {
			period = append(period, band{s0.Offset, s1.Offset, s0.Color, s1.Color})
		}
	}
	if last.Offset < 1 {
		period = append(period, band{last.Offset, 1, last.Color, last.Color})
	}

	if spread == svgpath.PadSpread {
		var out []band
		if tMin < 0 {
			out = append(out, band{tMin, 0, first.Color, first.Color})
		}
		out = append(out, period...)
		if tMax > 1 {
			out = append(out, band{1, tMax, last.Color, last.Color})
		}
		return out
	}

	p0, p1 := math.Floor(tMin), math.Ceil(tMax)
	if p1-p0 > maxPeriods {
		p1 = p0 + maxPeriods
	}
	var out []band
	for p := p0; p < p1; p++ {
		mirrored := spread == svgpath.ReflectSpread && int(p)%2 != 0
		for i := range period {
			bd := period[i]
			if mirrored {
				bd = period[len(period)-1-i]
				bd = band{1 - bd.t1, 1 - bd.t0, bd.c1, bd.c0}
			}
			bd.t0, bd.t1 = bd.t0+p, bd.t1+p
			out = append(out, bd)
		}
	}
	return out
}

// linearShading draws the linear gradient covering `region`,
// expressed in gradient space.
func (b *Backend) linearShading(dir svgpath.Linear, stops []svgpath.GradStop, spread svgpath.SpreadMethod, region svgpath.Rect) {
	dx, dy := dir[2]-dir[0], dir[3]-dir[1]
	if dx*dx+dy*dy < 1e-12 {
		b.solidRect(region, stops[len(stops)-1].Color)
		return
	}
	// normalized space: the gradient vector is (0, 0) -> (unitSide, 0)
	norm := svgpath.Matrix2D{
		A: dx / unitSide, B: dy / unitSide,
		C: -dy / unitSide, D: dx / unitSide,
		E: dir[0], F: dir[1],
	}
	b.concat(norm)
	r := region.Transform(norm.Invert())
	tMin, tMax := r.X/unitSide, (r.X+r.W)/unitSide

	for _, bd := range bands(stops, spread, tMin, tMax) {
		x0, x1 := math.Max(bd.t0, tMin)*unitSide, math.Min(bd.t1, tMax)*unitSide
		if x1 <= x0 {
			continue
		}
		if bd.c0 == bd.c1 {
			b.solidRect(svgpath.Rect{X: x0, Y: r.Y, W: x1 - x0, H: r.H}, bd.c0)
			continue
		}
		b.setBandColor(bd.c0, bd.c1)
		b.markShading()
		// the vector is expressed relatively to the band
		w := (bd.t1 - bd.t0) * unitSide
		b.pdf.LinearGradient(x0, r.Y, x1-x0, r.H,
			int(bd.c0.R), int(bd.c0.G), int(bd.c0.B), int(bd.c1.R), int(bd.c1.G), int(bd.c1.B),
			(bd.t0*unitSide-x0)/(x1-x0), 0, (bd.t0*unitSide+w-x0)/(x1-x0), 0)
	}
}

// markShading records that the content uses a shading,
// which can't be used in templates.
func (b *Backend) markShading() {
	if b.recording > 0 {
		b.unsafe = true
	}
}

// radialShading draws the radial gradient covering `region`,
// expressed in gradient space.
func (b *Backend) radialShading(dir svgpath.Radial, stops []svgpath.GradStop, spread svgpath.SpreadMethod, region svgpath.Rect) {
	cx, cy, fx, fy, r, fr := dir[0], dir[1], dir[2], dir[3], dir[4], dir[5]
	if r <= 0 {
		b.solidRect(region, stops[len(stops)-1].Color)
		return
	}
	first, last := stops[0], stops[len(stops)-1]

	// exact shading for the common two-color case
	if len(stops) == 2 && first.Offset == 0 && last.Offset == 1 && fr == 0 &&
		spread == svgpath.PadSpread && first.Color.A == last.Color.A {
		b.solidRect(region, last.Color)
		// normalized space: the circle is inscribed in [0, unitSide]²
		norm := svgpath.Identity.Translate(cx-r, cy-r).Scale(2*r/unitSide, 2*r/unitSide)
		b.concat(norm)
		b.setBandColor(first.Color, last.Color)
		b.markShading()
		// gofpdf uses a y axis pointing up inside the rectangle
		b.pdf.RadialGradient(0, 0, unitSide, unitSide,
			int(first.Color.R), int(first.Color.G), int(first.Color.B),
			int(last.Color.R), int(last.Color.G), int(last.Color.B),
			(fx-cx+r)/(2*r), 1-(fy-cy+r)/(2*r), 0.5, 0.5, 0.5)
		return
	}

	// general case: concentric circles, from the outermost to the focal circle
	tMax := 1.
	growth := (r - fr) - math.Hypot(cx-fx, cy-fy)
	if spread != svgpath.PadSpread && growth > 1e-9 {
		dist := 0.
		for _, p := range [4]svgpath.Point{
			{X: region.X, Y: region.Y}, {X: region.X + region.W, Y: region.Y},
			{X: region.X, Y: region.Y + region.H}, {X: region.X + region.W, Y: region.Y + region.H},
		} {
			dist = math.Max(dist, math.Hypot(p.X-fx, p.Y-fy))
		}
		tMax = math.Min(math.Max(1, (dist-fr)/growth), maxPeriods)
	}
	steps := int(math.Min(math.Ceil(tMax*radialSteps), maxRadialSteps))

	colorAt := func(t float64) color.NRGBA { return svgpath.ColorAt(stops, spread.Spread(t)) }
	b.solidRect(region, colorAt(tMax))
	for i := steps; i >= 0; i-- {
		t := tMax * float64(i) / float64(steps)
		c := colorAt(math.Max(0, t-tMax/float64(2*steps)))
		b.setBandColor(c, c)
		b.ellipse(fx+t*(cx-fx), fy+t*(cy-fy), fr+t*(r-fr), fr+t*(r-fr))
		path, _ := b.takePath()
		b.raw(path + "f")
	}
}
