package alt

import (
	"image/color"
	"math"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

// bound on the number of repeated periods of a gradient
const maxPeriods = 256

func (b *Backend) AddShading(key string, gradient svgpath.Gradient) {
	b.shadings[key] = gradient
}

func (b *Backend) AddTilingPattern(key string, pattern svgdraw.TilingPattern) {
	b.patterns[key] = pattern
}

// paintPattern paints the path with the shading or tiling pattern
// registered with `key`. It returns false if the key is unknown.
func (b *Backend) paintPattern(key string, path []contentstream.Operation, box svgpath.Rect,
	paintOp contentstream.Operation, stroke bool,
) bool {
	name, solid, ok := b.patternResource(key, box)
	if !ok {
		return false
	}
	if name == "" && solid == nil {
		// nothing to paint
		b.ops(path...)
		b.ops(contentstream.OpEndPath{})
		return true
	}

	alpha := b.state.fillAlpha
	if stroke {
		alpha = b.state.strokeAlpha
	}
	b.ops(contentstream.OpSave{})
	if solid != nil {
		r, g, bl := rgb(*solid)
		if stroke {
			b.ops(contentstream.OpSetStrokeRGBColor{R: r, G: g, B: bl})
		} else {
			b.ops(contentstream.OpSetFillRGBColor{R: r, G: g, B: bl})
		}
		if solid.A != 0xff {
			if alpha < 0 {
				alpha = 1
			}
			alpha *= float64(solid.A) / 0xff
		}
	} else {
		space := model.ObjName(model.ColorSpacePattern)
		if stroke {
			b.ops(contentstream.OpSetStrokeColorSpace{ColorSpace: space}, contentstream.OpSetStrokeColorN{Pattern: name})
		} else {
			b.ops(contentstream.OpSetFillColorSpace{ColorSpace: space}, contentstream.OpSetFillColorN{Pattern: name})
		}
	}
	fillAlpha, strokeAlpha := alpha, -1.
	if stroke {
		fillAlpha, strokeAlpha = -1, alpha
	}
	if gs := b.alphaState(fillAlpha, strokeAlpha); gs != "" {
		b.ops(contentstream.OpSetExtGState{Dict: gs})
	}
	if grad, isGrad := b.shadings[key]; isGrad && solid == nil && translucent(grad.Stops) {
		if mask := b.softMask(grad, box); mask != "" {
			b.ops(contentstream.OpSetExtGState{Dict: mask})
		}
	}
	b.ops(path...)
	b.ops(paintOp, contentstream.OpRestore{})
	return true
}

func translucent(stops []svgpath.GradStop) bool {
	for _, s := range stops {
		if s.Color.A != 0xff {
			return true
		}
	}
	return false
}

// patternResource returns the name of the pattern painting `box`,
// or a plain color for degenerate gradients.
// Both are empty when nothing should be painted.
func (b *Backend) patternResource(key string, box svgpath.Rect) (model.ObjName, *color.NRGBA, bool) {
	onPage := b.out.ap == b.page.ap
	if grad, ok := b.shadings[key]; ok {
		sh, t0, t1, solid := buildShading(grad, box, false)
		if solid != nil {
			return "", solid, true
		}
		pk := patternKey{key: key, page: onPage, t0: t0, t1: t1}
		pattern, ok := b.pdfPatterns[pk]
		if !ok {
			pattern = &model.PatternShading{Shading: sh, Matrix: toMatrix(b.out.root.Mult(grad.Matrix))}
			b.pdfPatterns[pk] = pattern
		}
		return b.out.ap.AddPattern(pattern), nil, true
	}

	p, ok := b.patterns[key]
	if !ok {
		return "", nil, false
	}
	if p.Width <= 0 || p.Height <= 0 || !p.Matrix.IsInvertible() {
		return "", nil, true
	}
	pk := patternKey{key: key, page: onPage}
	pattern, ok := b.pdfPatterns[pk]
	if !ok {
		root := b.out.root
		cell := contentstream.NewAppearance(p.Width, p.Height)
		err := b.record(&cell, true, func() error {
			b.Transform(p.Content)
			return b.PlaceForm(p.Form)
		})
		if err != nil {
			b.setErr(err)
			return "", nil, true
		}
		fo := cell.ToXFormObject(b.compress)
		pattern = &model.PatternTiling{
			ContentStream: fo.ContentStream,
			PaintType:     1, // colored
			TilingType:    1,
			BBox:          model.Rectangle{Urx: p.Width, Ury: p.Height},
			XStep:         p.Width,
			YStep:         p.Height,
			Resources:     fo.Resources,
			Matrix:        toMatrix(root.Mult(p.Matrix)),
		}
		b.pdfPatterns[pk] = pattern
	}
	return b.out.ap.AddPattern(pattern), nil, true
}

// buildShading returns the shading covering `box`, expressed in
// page space, and the parameter range it uses.
// When the gradient is degenerate, a plain color is returned instead.
// If `alpha` is true, the shading uses the gray color space, filled
// with the opacity of the stops.
func buildShading(grad svgpath.Gradient, box svgpath.Rect, alpha bool) (sh *model.ShadingDict, t0, t1 float64, solid *color.NRGBA) {
	stops := grad.Stops
	if len(stops) == 0 {
		return nil, 0, 0, &color.NRGBA{}
	}
	last := stops[len(stops)-1].Color
	if len(stops) == 1 || !grad.Matrix.IsInvertible() {
		return nil, 0, 0, &last
	}
	region := box.Transform(grad.Matrix.Invert())
	corners := [4]svgpath.Point{
		{X: region.X, Y: region.Y}, {X: region.X + region.W, Y: region.Y},
		{X: region.X, Y: region.Y + region.H}, {X: region.X + region.W, Y: region.Y + region.H},
	}

	t0, t1 = 0, 1
	var shading model.Shading
	switch dir := grad.Direction.(type) {
	case svgpath.Linear:
		dx, dy := dir[2]-dir[0], dir[3]-dir[1]
		l2 := dx*dx + dy*dy
		if l2 < 1e-12 {
			return nil, 0, 0, &last
		}
		if grad.Spread != svgpath.PadSpread && !region.IsZero() {
			tMin, tMax := math.Inf(1), math.Inf(-1)
			for _, p := range corners {
				t := ((p.X-dir[0])*dx + (p.Y-dir[1])*dy) / l2
				tMin, tMax = math.Min(tMin, t), math.Max(tMax, t)
			}
			t0, t1 = periodRange(tMin, tMax)
		}
		shading = model.ShadingAxial{
			BaseGradient: baseGradient(stops, grad.Spread, t0, t1, alpha),
			Coords:       [4]model.Fl{dir[0] + t0*dx, dir[1] + t0*dy, dir[0] + t1*dx, dir[1] + t1*dy},
		}
	case svgpath.Radial:
		cx, cy, fx, fy, r, fr := dir[0], dir[1], dir[2], dir[3], dir[4], dir[5]
		if r <= 0 {
			return nil, 0, 0, &last
		}
		growth := (r - fr) - math.Hypot(cx-fx, cy-fy)
		if grad.Spread != svgpath.PadSpread && growth > 1e-9 && !region.IsZero() {
			dist := 0.
			for _, p := range corners {
				dist = math.Max(dist, math.Hypot(p.X-fx, p.Y-fy))
			}
			_, t1 = periodRange(0, (dist-fr)/growth)
		}
		shading = model.ShadingRadial{
			BaseGradient: baseGradient(stops, grad.Spread, t0, t1, alpha),
			Coords:       [6]model.Fl{fx, fy, fr, fx + t1*(cx-fx), fy + t1*(cy-fy), fr + t1*(r-fr)},
		}
	default:
		return nil, 0, 0, &last
	}

	sh = &model.ShadingDict{ShadingType: shading, ColorSpace: model.ColorSpaceRGB}
	if alpha {
		sh.ColorSpace = model.ColorSpaceGray
	}
	return sh, t0, t1, nil
}

// periodRange returns the integer bounds enclosing [tMin, tMax],
// and [0, 1], with a bounded number of periods
func periodRange(tMin, tMax float64) (t0, t1 float64) {
	t0, t1 = math.Floor(math.Min(tMin, 0)), math.Ceil(math.Max(tMax, 1))
	if t1-t0 > maxPeriods {
		// keep the periods around the gradient vector
		t0 = math.Max(t0, -maxPeriods/2)
		t1 = t0 + maxPeriods
	}
	return t0, t1
}

func baseGradient(stops []svgpath.GradStop, spread svgpath.SpreadMethod, t0, t1 float64, alpha bool) model.BaseGradient {
	return model.BaseGradient{
		Domain:   [2]model.Fl{t0, t1},
		Function: []model.FunctionDict{spreadFunction(stops, spread, t0, t1, alpha)},
		Extend:   [2]bool{true, true},
	}
}

// spreadFunction repeats the gradient function on the [t0, t1] range,
// reversing the odd periods for the reflect spread.
func spreadFunction(stops []svgpath.GradStop, spread svgpath.SpreadMethod, t0, t1 float64, alpha bool) model.FunctionDict {
	period := periodFunction(stops, alpha)
	if spread == svgpath.PadSpread || (t0 == 0 && t1 == 1) {
		return period
	}
	n := int(t1 - t0)
	fns := make([]model.FunctionDict, n)
	bounds := make([]model.Fl, n-1)
	encode := make([][2]model.Fl, n)
	for i := range fns {
		p := t0 + float64(i)
		fns[i] = period
		encode[i] = [2]model.Fl{0, 1}
		if spread == svgpath.ReflectSpread && int(math.Abs(p))%2 == 1 {
			encode[i] = [2]model.Fl{1, 0}
		}
		if i > 0 {
			bounds[i-1] = p
		}
	}
	return model.FunctionDict{
		Domain:       []model.Range{{t0, t1}},
		FunctionType: model.FunctionStitching{Functions: fns, Bounds: bounds, Encode: encode},
	}
}

func stopComponents(c color.NRGBA, alpha bool) []model.Fl {
	if alpha {
		return []model.Fl{float64(c.A) / 0xff}
	}
	r, g, b := rgb(c)
	return []model.Fl{r, g, b}
}

// periodFunction interpolates the stops on [0, 1], stitching
// one linear function per pair of stops.
func periodFunction(stops []svgpath.GradStop, alpha bool) model.FunctionDict {
	type piece struct {
		t0, t1 float64
		c0, c1 color.NRGBA
	}
	first, last := stops[0], stops[len(stops)-1]
	var pieces []piece
	if first.Offset > 0 {
		pieces = append(pieces, piece{0, first.Offset, first.Color, first.Color})
	}
	for i := 1; i < len(stops); i++ {
		s0, s1 := stops[i-1], stops[i]
		if s1.Offset > s0.Offset {
			pieces = append(pieces, piece{s0.Offset, s1.Offset, s0.Color, s1.Color})
		}
	}
	if last.Offset < 1 || len(pieces) == 0 {
		pieces = append(pieces, piece{last.Offset, 1, last.Color, last.Color})
	}

	unit := []model.Range{{0, 1}}
	fns := make([]model.FunctionDict, len(pieces))
	for i, p := range pieces {
		fns[i] = model.FunctionDict{
			Domain: unit,
			FunctionType: model.FunctionExpInterpolation{
				C0: stopComponents(p.c0, alpha),
				C1: stopComponents(p.c1, alpha),
				N:  1,
			},
		}
	}
	if len(fns) == 1 {
		return fns[0]
	}
	bounds := make([]model.Fl, len(pieces)-1)
	for i := range bounds {
		bounds[i] = pieces[i+1].t0
	}
	return model.FunctionDict{
		Domain: unit,
		FunctionType: model.FunctionStitching{
			Functions: fns,
			Bounds:    bounds,
			Encode:    model.FunctionEncodeRepeat(len(fns)),
		},
	}
}

// softMask returns a graphics state applying the opacity of the
// gradient stops, as a luminosity mask covering `box`.
func (b *Backend) softMask(grad svgpath.Gradient, box svgpath.Rect) model.ObjName {
	if !b.state.ctm.IsInvertible() || box.W <= 0 || box.H <= 0 {
		return ""
	}
	sh, _, _, solid := buildShading(grad, box, true)
	if solid != nil {
		return ""
	}
	// the mask content is expressed in page space
	mask := contentstream.NewAppearance(box.W, box.H)
	name := mask.AddPattern(&model.PatternShading{Shading: sh, Matrix: toMatrix(grad.Matrix)})
	mask.Ops(
		contentstream.OpSetFillColorSpace{ColorSpace: model.ObjName(model.ColorSpacePattern)},
		contentstream.OpSetFillColorN{Pattern: name},
		contentstream.OpRectangle{X: box.X, Y: box.Y, W: box.W, H: box.H},
		contentstream.OpFill{},
	)
	fo := mask.ToXFormObject(b.compress)
	fo.BBox = model.Rectangle{Llx: box.X, Lly: box.Y, Urx: box.X + box.W, Ury: box.Y + box.H}
	fo.Matrix = toMatrix(b.state.ctm.Invert())
	gs := &model.GraphicState{SMask: model.SoftMaskDict{
		S: "Luminosity",
		G: &model.XObjectTransparencyGroup{XObjectForm: *fo, CS: model.ColorSpaceGray},
	}}
	return b.out.ap.AddExtGState(gs)
}
