// Package alt implements a PDF backend writing content streams
// with github.com/benoitkugler/pdf.
//
// Contrary to the gofpdf backend, gradients are written as native
// axial and radial shadings, patterns as tiling patterns and
// referenced content as form XObjects. Fill and stroke opacities
// are independent.
package alt

import (
	"fmt"
	"image/color"
	"math"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/fonts"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

var _ svgdraw.Backend = (*Backend)(nil) // assert interface conformance

// paint is a fill or stroke source
type paint struct {
	known   bool // false when inherited from the placement of a form
	color   color.NRGBA
	pattern string // key of a shading or a tiling pattern
}

// written is a color set in the content stream
type written struct {
	known   bool
	r, g, b uint8
}

type graphicState struct {
	ctm          svgpath.Matrix2D
	fill, stroke paint
	lineWidth    float64
	// negative when inherited
	fillAlpha, strokeAlpha float64

	fillWritten, strokeWritten written
}

// stream is the content being written: the page,
// a form or the cell of a tiling pattern.
type stream struct {
	ap *contentstream.Appearance
	// maps the user space of the stream to its
	// default space (identity for forms and cells)
	root svgpath.Matrix2D
	// the initial opacity is 1, not inherited
	opaque bool
}

type form struct {
	bbox    svgpath.Rect
	content func() error
	xobj    *model.XObjectForm // nil if the content must be replayed
}

// patternKey identifies a pattern resource: the same
// gradient requires different patterns when used
// with different spreads or in different streams
type patternKey struct {
	key    string
	page   bool
	t0, t1 float64
}

// Backend draws on a content stream, later written as the
// content of a PDF page.
// SVG user units are mapped to the unit of the document.
type Backend struct {
	page stream
	out  stream

	k                     float64 // size of the document unit, in points
	pageWidth, pageHeight float64 // in user units

	state graphicState
	stack []graphicState

	path    []contentstream.Operation
	pathBox extent // control points of the current path, in page space

	shadings    map[string]svgpath.Gradient
	patterns    map[string]svgdraw.TilingPattern
	forms       map[string]*form
	pdfPatterns map[patternKey]model.Pattern
	alphaStates map[[2]float64]*model.GraphicState
	fonts       map[string]fonts.BuiltFont
	images      map[uint64]*model.XObjectImage
	useForms    bool
	compress    bool

	err error
}

// Option customizes a Backend
type Option func(*Backend)

// WithForms enables or disables the use of form XObjects for
// referenced content. Forms are enabled by default;
// disabling them replays the content at each use.
func WithForms(enabled bool) Option {
	return func(b *Backend) { b.useForms = enabled }
}

// WithCompression enables the Flate compression of the content streams.
func WithCompression(enabled bool) Option {
	return func(b *Backend) { b.compress = enabled }
}

// WithUnit sets the size of one user unit, in points.
func WithUnit(k float64) Option {
	return func(b *Backend) {
		if k > 0 {
			b.k = k
		}
	}
}

// New returns a backend drawing on a page of the given size,
// expressed in user units.
func New(width, height float64, opts ...Option) *Backend {
	b := &Backend{
		k:           1,
		pageWidth:   width,
		pageHeight:  height,
		shadings:    make(map[string]svgpath.Gradient),
		patterns:    make(map[string]svgdraw.TilingPattern),
		forms:       make(map[string]*form),
		pdfPatterns: make(map[patternKey]model.Pattern),
		alphaStates: make(map[[2]float64]*model.GraphicState),
		fonts:       make(map[string]fonts.BuiltFont),
		images:      make(map[uint64]*model.XObjectImage),
		useForms:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	ap := contentstream.NewAppearance(width*b.k, height*b.k)
	b.page = stream{
		ap:     &ap,
		root:   svgpath.Matrix2D{A: b.k, D: -b.k, F: b.k * height},
		opaque: true,
	}
	b.out = b.page
	black := written{known: true}
	b.state = graphicState{
		ctm:           svgpath.Identity,
		fill:          paint{known: true, color: color.NRGBA{A: 0xff}},
		stroke:        paint{known: true, color: color.NRGBA{A: 0xff}},
		lineWidth:     1,
		fillAlpha:     1,
		strokeAlpha:   1,
		fillWritten:   black,
		strokeWritten: black,
	}
	ap.Ops(contentstream.OpConcat{Matrix: toMatrix(b.page.root)})
	return b
}

// Page returns a new page object whose content is the drawing.
func (b *Backend) Page() *model.PageObject {
	page := new(model.PageObject)
	b.page.ap.ApplyToPageObject(page, b.compress)
	return page
}

func toMatrix(m svgpath.Matrix2D) model.Matrix {
	return model.Matrix{m.A, m.B, m.C, m.D, m.E, m.F}
}

func (b *Backend) ops(ops ...contentstream.Operation) { b.out.ap.Ops(ops...) }

func (b *Backend) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Backend) Save() {
	b.stack = append(b.stack, b.state)
	b.out.ap.SaveState()
}

func (b *Backend) Restore() {
	if len(b.stack) == 0 {
		b.setErr(fmt.Errorf("unbalanced graphics state restore"))
		return
	}
	b.state = b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	if err := b.out.ap.RestoreState(); err != nil {
		b.setErr(err)
	}
}

func (b *Backend) Transform(m svgpath.Matrix2D) {
	if m.IsIdentity() {
		return
	}
	b.state.ctm = b.state.ctm.Mult(m)
	b.out.ap.Transform(toMatrix(m))
}

func (b *Backend) CTM() svgpath.Matrix2D { return b.state.ctm }

func (b *Backend) PageSize() (float64, float64) { return b.pageWidth, b.pageHeight }

func (b *Backend) SetFillColor(c color.NRGBA) { b.state.fill = paint{known: true, color: c} }

func (b *Backend) SetStrokeColor(c color.NRGBA) { b.state.stroke = paint{known: true, color: c} }

func (b *Backend) SetFillPattern(key string) { b.state.fill.pattern = key }

func (b *Backend) SetStrokePattern(key string) { b.state.stroke.pattern = key }

func (b *Backend) SetLineWidth(width float64) {
	b.state.lineWidth = width
	b.ops(contentstream.OpSetLineWidth{W: width})
}

var (
	capStyles  = [...]uint8{svgdraw.ButtCap: 0, svgdraw.RoundCap: 1, svgdraw.SquareCap: 2}
	joinStyles = [...]uint8{svgdraw.Miter: 0, svgdraw.Round: 1, svgdraw.Bevel: 2, svgdraw.MiterClip: 0, svgdraw.Arc: 0}
)

func (b *Backend) SetLineCap(c svgdraw.CapMode) {
	if int(c) < len(capStyles) {
		b.ops(contentstream.OpSetLineCap{Style: capStyles[c]})
	}
}

func (b *Backend) SetLineJoin(j svgdraw.JoinMode) {
	if int(j) < len(joinStyles) {
		b.ops(contentstream.OpSetLineJoin{Style: joinStyles[j]})
	}
}

func (b *Backend) SetMiterLimit(limit float64) {
	b.ops(contentstream.OpSetMiterLimit{Limit: limit})
}

func (b *Backend) SetDash(dashes []float64, offset float64) {
	b.ops(contentstream.OpSetDash{Dash: model.DashPattern{Array: dashes, Phase: offset}})
}

func (b *Backend) SetOpacity(fill, stroke float64) {
	b.state.fillAlpha, b.state.strokeAlpha = fill, stroke
}

func rgb(c color.NRGBA) (r, g, b float64) {
	return float64(c.R) / 0xff, float64(c.G) / 0xff, float64(c.B) / 0xff
}

// writeFillColor sets the non stroking color, if needed
func (b *Backend) writeFillColor() {
	p := b.state.fill
	if !p.known {
		return
	}
	w := written{true, p.color.R, p.color.G, p.color.B}
	if b.state.fillWritten == w {
		return
	}
	r, g, bl := rgb(p.color)
	b.ops(contentstream.OpSetFillRGBColor{R: r, G: g, B: bl})
	b.state.fillWritten = w
}

func (b *Backend) writeStrokeColor() {
	p := b.state.stroke
	if !p.known {
		return
	}
	w := written{true, p.color.R, p.color.G, p.color.B}
	if b.state.strokeWritten == w {
		return
	}
	r, g, bl := rgb(p.color)
	b.ops(contentstream.OpSetStrokeRGBColor{R: r, G: g, B: bl})
	b.state.strokeWritten = w
}

// alphaState returns the graphics state dictionary setting the
// given alpha values, or an empty name if nothing has to be written.
// Negative values are inherited.
func (b *Backend) alphaState(fill, stroke float64) model.ObjName {
	if b.out.opaque {
		if fill == 1 {
			fill = -1
		}
		if stroke == 1 {
			stroke = -1
		}
	}
	if fill < 0 && stroke < 0 {
		return ""
	}
	key := [2]float64{math.Min(1, fill), math.Min(1, stroke)}
	gs, ok := b.alphaStates[key]
	if !ok {
		gs = &model.GraphicState{BM: []model.Name{"Normal"}}
		if key[0] >= 0 {
			gs.Ca = model.ObjFloat(key[0])
		}
		if key[1] >= 0 {
			gs.CA = model.ObjFloat(key[1])
		}
		b.alphaStates[key] = gs
	}
	return b.out.ap.AddExtGState(gs)
}

// path construction

func (b *Backend) addPoint(x, y float64) {
	b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x, Y: y}))
}

func (b *Backend) MoveTo(x, y float64) {
	b.addPoint(x, y)
	b.path = append(b.path, contentstream.OpMoveTo{X: x, Y: y})
}

func (b *Backend) LineTo(x, y float64) {
	b.addPoint(x, y)
	b.path = append(b.path, contentstream.OpLineTo{X: x, Y: y})
}

func (b *Backend) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	b.addPoint(x1, y1)
	b.addPoint(x2, y2)
	b.addPoint(x3, y3)
	b.path = append(b.path, contentstream.OpCubicTo{X1: x1, Y1: y1, X2: x2, Y2: y2, X3: x3, Y3: y3})
}

func (b *Backend) ClosePath() {
	b.path = append(b.path, contentstream.OpClosePath{})
}

func (b *Backend) RoundedRect(x, y, width, height, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		b.addPoint(x, y)
		b.addPoint(x+width, y)
		b.addPoint(x, y+height)
		b.addPoint(x+width, y+height)
		b.path = append(b.path, contentstream.OpRectangle{X: x, Y: y, W: width, H: height})
		return
	}
	rx, ry = math.Min(rx, width/2), math.Min(ry, height/2)
	cx, cy := rx*kappa, ry*kappa
	b.MoveTo(x+rx, y)
	b.LineTo(x+width-rx, y)
	b.CurveTo(x+width-rx+cx, y, x+width, y+ry-cy, x+width, y+ry)
	b.LineTo(x+width, y+height-ry)
	b.CurveTo(x+width, y+height-ry+cy, x+width-rx+cx, y+height, x+width-rx, y+height)
	b.LineTo(x+rx, y+height)
	b.CurveTo(x+rx-cx, y+height, x, y+height-ry+cy, x, y+height-ry)
	b.LineTo(x, y+ry)
	b.CurveTo(x, y+ry-cy, x+rx-cx, y, x+rx, y)
	b.ClosePath()
}

func (b *Backend) Line(x1, y1, x2, y2 float64) {
	b.MoveTo(x1, y1)
	b.LineTo(x2, y2)
}

// takePath returns the current path and resets it
func (b *Backend) takePath() ([]contentstream.Operation, svgpath.Rect) {
	p, box := b.path, b.pathBox.rect()
	b.path = nil
	b.pathBox = extent{}
	return p, box
}

// painting

func fillOp(evenOdd bool) contentstream.Operation {
	if evenOdd {
		return contentstream.OpEOFill{}
	}
	return contentstream.OpFill{}
}

func (b *Backend) Paint(op svgdraw.PaintOp, evenOdd bool) {
	path, box := b.takePath()
	if len(path) == 0 {
		return
	}
	st := &b.state
	switch op {
	case svgdraw.PaintDiscard:
		b.ops(path...)
		b.ops(contentstream.OpEndPath{})
	case svgdraw.PaintFill:
		b.fill(path, box, evenOdd)
	case svgdraw.PaintStroke:
		b.stroke(path, box)
	case svgdraw.PaintFillStroke:
		if st.fill.pattern == "" && st.stroke.pattern == "" {
			b.writeFillColor()
			b.writeStrokeColor()
			var paintOp contentstream.Operation = contentstream.OpFillStroke{}
			if evenOdd {
				paintOp = contentstream.OpEOFillStroke{}
			}
			b.paintWithAlpha(b.alphaState(st.fillAlpha, st.strokeAlpha), path, paintOp)
			return
		}
		b.fill(path, box, evenOdd)
		b.stroke(path, box)
	}
}

// paintWithAlpha writes the path and the painting operator, scoping
// the alpha values so that inherited values are preserved.
func (b *Backend) paintWithAlpha(gs model.ObjName, path []contentstream.Operation, paintOp contentstream.Operation) {
	if gs != "" {
		b.ops(contentstream.OpSave{}, contentstream.OpSetExtGState{Dict: gs})
	}
	b.ops(path...)
	b.ops(paintOp)
	if gs != "" {
		b.ops(contentstream.OpRestore{})
	}
}

func (b *Backend) fill(path []contentstream.Operation, box svgpath.Rect, evenOdd bool) {
	if key := b.state.fill.pattern; key != "" {
		if b.paintPattern(key, path, box, fillOp(evenOdd), false) {
			return
		}
	}
	b.writeFillColor()
	b.paintWithAlpha(b.alphaState(b.state.fillAlpha, -1), path, fillOp(evenOdd))
}

func (b *Backend) stroke(path []contentstream.Operation, box svgpath.Rect) {
	if key := b.state.stroke.pattern; key != "" {
		// the outline extends beyond the path
		box = box.Inflate(b.state.lineWidth * b.state.ctm.ScaleFactor() / 2)
		if b.paintPattern(key, path, box, contentstream.OpStroke{}, true) {
			return
		}
	}
	b.writeStrokeColor()
	b.paintWithAlpha(b.alphaState(-1, b.state.strokeAlpha), path, contentstream.OpStroke{})
}

func (b *Backend) Clip(evenOdd bool) {
	path, _ := b.takePath()
	if len(path) == 0 {
		// empty clipping area
		b.ops(contentstream.OpRectangle{}, contentstream.OpClip{}, contentstream.OpEndPath{})
		return
	}
	b.ops(path...)
	if evenOdd {
		b.ops(contentstream.OpEOClip{})
	} else {
		b.ops(contentstream.OpClip{})
	}
	b.ops(contentstream.OpEndPath{})
}

// forms

// record draws `content` into `ap`, starting with the
// identity transformation and inherited paint.
func (b *Backend) record(ap *contentstream.Appearance, opaque bool, content func() error) error {
	out, state, stack := b.out, b.state, b.stack
	path, pathBox := b.path, b.pathBox
	b.out = stream{ap: ap, root: svgpath.Identity, opaque: opaque}
	b.stack, b.path, b.pathBox = nil, nil, extent{}
	b.state = graphicState{
		ctm:         svgpath.Identity,
		lineWidth:   state.lineWidth,
		fillAlpha:   -1,
		strokeAlpha: -1,
	}
	if opaque {
		// the default graphics state
		black := written{known: true}
		b.state.fill = paint{known: true, color: color.NRGBA{A: 0xff}}
		b.state.stroke = b.state.fill
		b.state.fillWritten, b.state.strokeWritten = black, black
		b.state.fillAlpha, b.state.strokeAlpha, b.state.lineWidth = 1, 1, 1
	}
	err := content()
	for len(b.stack) != 0 { // unbalanced content
		b.Restore()
	}
	b.out, b.state, b.stack = out, state, stack
	b.path, b.pathBox = path, pathBox
	return err
}

func (b *Backend) DefineForm(key string, bbox svgpath.Rect, content func() error) error {
	f := &form{bbox: bbox, content: content}
	b.forms[key] = f
	if !b.useForms || bbox.W <= 0 || bbox.H <= 0 {
		return nil
	}
	ap := contentstream.NewAppearance(bbox.W, bbox.H)
	if err := b.record(&ap, false, content); err != nil {
		return err
	}
	f.xobj = ap.ToXFormObject(b.compress)
	f.xobj.BBox = model.Rectangle{Llx: bbox.X, Lly: bbox.Y, Urx: bbox.X + bbox.W, Ury: bbox.Y + bbox.H}
	return nil
}

func (b *Backend) PlaceForm(key string) error {
	f, ok := b.forms[key]
	if !ok {
		return fmt.Errorf("undefined form %s", key)
	}
	if f.xobj == nil {
		b.Save()
		defer b.Restore()
		return f.content()
	}

	// the form inherits the paint of the current graphics state
	st := &b.state
	b.writeFillColor()
	b.writeStrokeColor()
	b.ops(contentstream.OpSave{})
	if gs := b.alphaState(st.fillAlpha, st.strokeAlpha); gs != "" {
		b.ops(contentstream.OpSetExtGState{Dict: gs})
	}
	box := f.bbox.Transform(st.ctm)
	if st.fill.pattern != "" {
		if name, _, _ := b.patternResource(st.fill.pattern, box); name != "" {
			b.ops(contentstream.OpSetFillColorSpace{ColorSpace: model.ObjName(model.ColorSpacePattern)},
				contentstream.OpSetFillColorN{Pattern: name})
		}
	}
	if st.stroke.pattern != "" {
		if name, _, _ := b.patternResource(st.stroke.pattern, box); name != "" {
			b.ops(contentstream.OpSetStrokeColorSpace{ColorSpace: model.ObjName(model.ColorSpacePattern)},
				contentstream.OpSetStrokeColorN{Pattern: name})
		}
	}
	b.out.ap.AddXObject(f.xobj)
	b.ops(contentstream.OpRestore{})
	return nil
}

func (b *Backend) Err() error { return b.err }

// extent is the bounding box of a set of points
type extent struct {
	minX, minY, maxX, maxY float64
	set                    bool
}

func (e *extent) add(p svgpath.Point) {
	if !e.set {
		*e = extent{p.X, p.Y, p.X, p.Y, true}
		return
	}
	e.minX, e.maxX = math.Min(e.minX, p.X), math.Max(e.maxX, p.X)
	e.minY, e.maxY = math.Min(e.minY, p.Y), math.Max(e.maxY, p.Y)
}

func (e extent) rect() svgpath.Rect {
	return svgpath.Rect{X: e.minX, Y: e.minY, W: e.maxX - e.minX, H: e.maxY - e.minY}
}

// kappa is the control point ratio used to approximate quarter circles
const kappa = 0.5522847498
