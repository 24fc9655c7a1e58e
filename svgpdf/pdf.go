// Implements a PDF backend to render SVG images,
// by wrapping github.com/jung-kurt/gofpdf.
//
// The SVG coordinate system (y axis pointing down) is mapped to the
// gofpdf page by the usual (x, h - y) flip. Transformations are
// concatenated with raw `cm` operators, conjugated by this flip, so that
// gofpdf methods taking page coordinates (text, images, gradients)
// keep working in the current user space.
package svgpdf

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/jung-kurt/gofpdf"
)

var _ svgdraw.Backend = (*Backend)(nil) // assert interface conformance

// paint is a fill or stroke source
type paint struct {
	known   bool // false when inherited from the placement of a template
	color   color.NRGBA
	pattern string // key of a shading or a tiling pattern
}

// graphicState stores the part of the PDF graphics state
// which is either emitted lazily or needed to compute coordinates.
type graphicState struct {
	ctm          svgpath.Matrix2D
	fill, stroke paint
	lineWidth    float64
	// requested alpha values, negative when inherited
	fillAlpha, strokeAlpha float64
	// alpha last written in the content stream, negative when unknown
	alpha float64
}

type form struct {
	bbox     svgpath.Rect
	content  func() error
	template gofpdf.Template // nil if the content must be replayed
	inherits uint8           // alpha values used by the template
	opaque   bool            // the template expects an alpha of 1
}

// Backend draws on a gofpdf document.
// SVG user units are mapped to the unit of the document.
type Backend struct {
	pdf    *gofpdf.Fpdf
	k      float64 // scale factor of the document unit
	height float64 // of the current page or template, in user units

	pageWidth, pageHeight float64

	state graphicState
	stack []graphicState

	path    []byte
	pathBox extent // control points of the current path, in page space

	shadings map[string]svgpath.Gradient
	patterns map[string]svgdraw.TilingPattern
	forms    map[string]*form
	fonts    map[string]bool // family -> UTF-8 font registered
	images   map[uint64]imageInfo
	encode   func(string) string // for the core fonts

	useTemplates bool
	recording    int   // nesting level of template definitions
	unsafe       bool  // the template being recorded requires page resources
	inherits     uint8 // alpha values the template being recorded inherits
	opaque       bool  // the template being recorded expects an alpha of 1

	err error
}

// Option customizes a Backend
type Option func(*Backend)

// WithTemplates enables or disables the use of templates (form
// XObjects) for referenced content. Templates are enabled by default;
// disabling them replays the content at each use.
func WithTemplates(enabled bool) Option {
	return func(b *Backend) { b.useTemplates = enabled }
}

// New returns a backend drawing on the current page of `pdf`,
// adding a page if needed.
func New(pdf *gofpdf.Fpdf, opts ...Option) *Backend {
	if pdf.PageNo() == 0 {
		pdf.AddPage()
	}
	w, h := pdf.GetPageSize()
	b := &Backend{
		pdf:          pdf,
		k:            pdf.GetConversionRatio(),
		height:       h,
		pageWidth:    w,
		pageHeight:   h,
		shadings:     make(map[string]svgpath.Gradient),
		patterns:     make(map[string]svgdraw.TilingPattern),
		forms:        make(map[string]*form),
		fonts:        make(map[string]bool),
		images:       make(map[uint64]imageInfo),
		encode:       pdf.UnicodeTranslatorFromDescriptor(""),
		useTemplates: true,
		state: graphicState{
			ctm:         svgpath.Identity,
			fill:        paint{known: true, color: color.NRGBA{A: 0xff}},
			stroke:      paint{known: true, color: color.NRGBA{A: 0xff}},
			lineWidth:   1,
			fillAlpha:   1,
			strokeAlpha: 1,
			alpha:       1,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// flip maps user coordinates to PDF coordinates
func (b *Backend) flip() svgpath.Matrix2D {
	return svgpath.Matrix2D{A: b.k, D: -b.k, F: b.k * b.height}
}

func (b *Backend) unflip() svgpath.Matrix2D {
	return svgpath.Matrix2D{A: 1 / b.k, D: -1 / b.k, F: b.height}
}

func (b *Backend) raw(s string) { b.pdf.RawWriteStr(s) }

func (b *Backend) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// concat writes the `cm` operator for a transformation
// expressed in user space, without updating the CTM.
func (b *Backend) concat(m svgpath.Matrix2D) {
	if m.IsIdentity() {
		return
	}
	c := b.flip().Mult(m).Mult(b.unflip())
	b.raw(fmtNum(c.A) + " " + fmtNum(c.B) + " " + fmtNum(c.C) + " " +
		fmtNum(c.D) + " " + fmtNum(c.E) + " " + fmtNum(c.F) + " cm")
}

func (b *Backend) Save() {
	b.stack = append(b.stack, b.state)
	b.raw("q")
}

func (b *Backend) Restore() {
	if len(b.stack) == 0 {
		b.setErr(fmt.Errorf("unbalanced graphics state restore"))
		return
	}
	b.state = b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.raw("Q")
}

func (b *Backend) Transform(m svgpath.Matrix2D) {
	b.state.ctm = b.state.ctm.Mult(m)
	b.concat(m)
}

func (b *Backend) CTM() svgpath.Matrix2D { return b.state.ctm }

func (b *Backend) PageSize() (float64, float64) { return b.pageWidth, b.pageHeight }

func (b *Backend) SetFillColor(c color.NRGBA) {
	b.state.fill = paint{known: true, color: c}
	b.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func (b *Backend) SetStrokeColor(c color.NRGBA) {
	b.state.stroke = paint{known: true, color: c}
	b.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func (b *Backend) SetFillPattern(key string) {
	b.state.fill.pattern = key
}

func (b *Backend) SetStrokePattern(key string) {
	b.state.stroke.pattern = key
}

func (b *Backend) SetLineWidth(width float64) {
	b.state.lineWidth = width
	b.raw(fmtNum(width*b.k) + " w")
}

var (
	capStyles  = [...]string{svgdraw.ButtCap: "butt", svgdraw.RoundCap: "round", svgdraw.SquareCap: "square"}
	joinStyles = [...]string{
		svgdraw.Miter:     "miter",
		svgdraw.Round:     "round",
		svgdraw.Bevel:     "bevel",
		svgdraw.MiterClip: "miter",
		svgdraw.Arc:       "miter",
	}
)

func (b *Backend) SetLineCap(c svgdraw.CapMode) {
	if int(c) < len(capStyles) {
		b.pdf.SetLineCapStyle(capStyles[c])
	}
}

func (b *Backend) SetLineJoin(j svgdraw.JoinMode) {
	if int(j) < len(joinStyles) {
		b.pdf.SetLineJoinStyle(joinStyles[j])
	}
}

func (b *Backend) SetMiterLimit(limit float64) {
	b.raw(fmtNum(limit) + " M")
}

func (b *Backend) SetDash(dashes []float64, offset float64) {
	out := []byte{'['}
	for i, d := range dashes {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, fmtNum(d*b.k)...)
	}
	out = append(out, "] "...)
	out = append(out, fmtNum(offset*b.k)...)
	out = append(out, " d"...)
	b.raw(string(out))
}

func (b *Backend) SetOpacity(fill, stroke float64) {
	b.state.fillAlpha, b.state.strokeAlpha = fill, stroke
}

// setAlpha writes the alpha used by the next painting operation.
// gofpdf uses the same value for filling and stroking.
func (b *Backend) setAlpha(alpha float64) {
	if alpha < 0 {
		return
	}
	alpha = math.Min(1, alpha)
	if alpha == b.state.alpha {
		return
	}
	if alpha == 1 && b.recording > 0 && b.state.alpha < 0 && b.inherits == 0 {
		// the template is placed with an opaque graphics state
		b.opaque = true
		b.state.alpha = 1
		return
	}
	b.pdf.SetAlpha(alpha, "Normal")
	b.state.alpha = alpha
	if b.recording > 0 {
		b.unsafe = true
	}
}

// alpha values possibly inherited by templates
const (
	inheritFill uint8 = 1 << iota
	inheritStroke
)

// useAlpha writes the alpha used by a fill or stroke operation.
// Inside templates, unset alpha values are inherited
// from the placement.
func (b *Backend) useAlpha(kind uint8) {
	alpha := b.state.fillAlpha
	if kind == inheritStroke {
		alpha = b.state.strokeAlpha
	}
	if alpha < 0 {
		if b.recording > 0 && b.state.alpha >= 0 {
			// the inherited value has been overridden
			b.unsafe = true
		}
		b.inherits |= kind
		return
	}
	b.setAlpha(alpha)
}

// placeAlpha writes the alpha expected by the template content.
// It returns false if the template can't be used, since gofpdf
// uses the same value for filling and stroking.
func (b *Backend) placeAlpha(f *form) bool {
	var alphas []float64
	if f.inherits&inheritFill != 0 {
		alphas = append(alphas, b.state.fillAlpha)
	}
	if f.inherits&inheritStroke != 0 {
		alphas = append(alphas, b.state.strokeAlpha)
	}
	if f.opaque {
		alphas = append(alphas, 1)
	}
	if len(alphas) == 0 {
		return true
	}
	for _, a := range alphas[1:] {
		if a != alphas[0] {
			return false
		}
	}
	if alphas[0] < 0 {
		b.useAlpha(f.inherits)
	} else {
		b.setAlpha(alphas[0])
	}
	return true
}

// path construction

func (b *Backend) appendPoint(x, y float64) {
	b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x, Y: y}))
	b.path = append(b.path, fmtNum(x*b.k)...)
	b.path = append(b.path, ' ')
	b.path = append(b.path, fmtNum((b.height-y)*b.k)...)
	b.path = append(b.path, ' ')
}

func (b *Backend) MoveTo(x, y float64) {
	b.appendPoint(x, y)
	b.path = append(b.path, "m\n"...)
}

func (b *Backend) LineTo(x, y float64) {
	b.appendPoint(x, y)
	b.path = append(b.path, "l\n"...)
}

func (b *Backend) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	b.appendPoint(x1, y1)
	b.appendPoint(x2, y2)
	b.appendPoint(x3, y3)
	b.path = append(b.path, "c\n"...)
}

func (b *Backend) ClosePath() {
	b.path = append(b.path, "h\n"...)
}

func (b *Backend) RoundedRect(x, y, width, height, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x, Y: y}))
		b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x + width, Y: y}))
		b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x, Y: y + height}))
		b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x + width, Y: y + height}))
		b.path = append(b.path, fmt.Sprintf("%s %s %s %s re\n", fmtNum(x*b.k), fmtNum((b.height-y)*b.k),
			fmtNum(width*b.k), fmtNum(-height*b.k))...)
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

// ellipse adds the ellipse (cx, cy, rx, ry)
func (b *Backend) ellipse(cx, cy, rx, ry float64) {
	kx, ky := rx*kappa, ry*kappa
	b.MoveTo(cx+rx, cy)
	b.CurveTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	b.CurveTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	b.CurveTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	b.CurveTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	b.ClosePath()
}

// takePath returns the current path and resets it
func (b *Backend) takePath() (string, svgpath.Rect) {
	p, box := string(b.path), b.pathBox.rect()
	b.path = b.path[:0]
	b.pathBox = extent{}
	return p, box
}

// painting

func fillOp(evenOdd bool) string {
	if evenOdd {
		return "f*"
	}
	return "f"
}

func clipOp(evenOdd bool) string {
	if evenOdd {
		return "W* n"
	}
	return "W n"
}

func (b *Backend) Paint(op svgdraw.PaintOp, evenOdd bool) {
	path, box := b.takePath()
	if path == "" {
		return
	}
	st := &b.state
	switch op {
	case svgdraw.PaintDiscard:
		b.raw(path + "n")
	case svgdraw.PaintFill:
		b.fill(path, box, evenOdd)
	case svgdraw.PaintStroke:
		b.stroke(path)
	case svgdraw.PaintFillStroke:
		if st.fill.pattern == "" && st.stroke.pattern == "" && st.fillAlpha == st.strokeAlpha {
			b.useAlpha(inheritFill | inheritStroke)
			if evenOdd {
				b.raw(path + "B*")
			} else {
				b.raw(path + "B")
			}
			return
		}
		b.fill(path, box, evenOdd)
		b.stroke(path)
	}
}

func (b *Backend) fill(path string, box svgpath.Rect, evenOdd bool) {
	if key := b.state.fill.pattern; key != "" {
		if grad, ok := b.shadings[key]; ok {
			b.fillShading(path, box, evenOdd, grad)
			return
		}
		if pattern, ok := b.patterns[key]; ok {
			b.fillTiling(path, box, evenOdd, pattern)
			return
		}
	}
	b.useAlpha(inheritFill)
	b.raw(path + fillOp(evenOdd))
}

// stroke paints the outline. Gradients and patterns are not supported
// for strokes: the middle color of the gradient, or the current stroke
// color, is used instead.
func (b *Backend) stroke(path string) {
	if grad, ok := b.shadings[b.state.stroke.pattern]; ok && len(grad.Stops) != 0 {
		c := svgpath.ColorAt(grad.Stops, 0.5)
		alpha := b.state.alpha
		b.raw("q")
		b.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
		if base := b.state.strokeAlpha; base >= 0 {
			b.setAlpha(base * float64(c.A) / 255)
		} else if c.A != 0xff {
			b.setAlpha(float64(c.A) / 255)
		} else {
			b.useAlpha(inheritStroke)
		}
		b.raw(path + "S")
		b.raw("Q")
		b.state.alpha = alpha
		return
	}
	b.useAlpha(inheritStroke)
	b.raw(path + "S")
}

func (b *Backend) Clip(evenOdd bool) {
	path, _ := b.takePath()
	if path == "" {
		// empty clipping area
		b.raw("0 0 0 0 re " + clipOp(false))
		return
	}
	b.raw(path + clipOp(evenOdd))
}

// forms and patterns

func (b *Backend) DefineForm(key string, bbox svgpath.Rect, content func() error) error {
	f := &form{bbox: bbox, content: content}
	b.forms[key] = f
	if !b.useTemplates || bbox.W <= 0 || bbox.H <= 0 {
		return nil
	}
	tpl, err := b.record(f)
	if err != nil {
		return err
	}
	f.template = tpl
	return nil
}

// record draws the content of `f` into a template, and sets the
// alpha values it expects. It returns a nil template
// if the content requires resources which can't be attached to
// templates (transparency and shadings).
func (b *Backend) record(f *form) (gofpdf.Template, error) {
	pdf, height, state, stack := b.pdf, b.height, b.state, b.stack
	path, pathBox, unsafe, inherits, opaque := b.path, b.pathBox, b.unsafe, b.inherits, b.opaque
	b.recording++
	b.unsafe, b.inherits, b.opaque = false, 0, false

	var (
		contentErr error
		failed     bool
	)
	bbox := f.bbox
	tpl := pdf.CreateTemplateCustom(gofpdf.PointType{}, gofpdf.SizeType{Wd: bbox.W, Ht: bbox.H}, func(t *gofpdf.Tpl) {
		b.pdf, b.height = &t.Fpdf, bbox.H
		b.stack, b.path, b.pathBox = nil, nil, extent{}
		b.state = graphicState{
			ctm:         svgpath.Identity,
			lineWidth:   state.lineWidth,
			fillAlpha:   -1,
			strokeAlpha: -1,
			alpha:       -1,
		}
		b.Transform(svgpath.Identity.Translate(-bbox.X, -bbox.Y))
		contentErr = f.content()
		failed = t.Err()
	})

	safe := !b.unsafe
	f.inherits, f.opaque = b.inherits, b.opaque
	b.pdf, b.height, b.state, b.stack = pdf, height, state, stack
	b.path, b.pathBox, b.unsafe, b.inherits, b.opaque = path, pathBox, unsafe, inherits, opaque
	b.recording--

	if contentErr != nil {
		return nil, contentErr
	}
	if !safe || failed {
		return nil, nil
	}
	return tpl, nil
}

func (b *Backend) PlaceForm(key string) error {
	f, ok := b.forms[key]
	if !ok {
		return fmt.Errorf("undefined form %s", key)
	}
	if f.template != nil && b.placeAlpha(f) {
		b.pdf.UseTemplateScaled(f.template,
			gofpdf.PointType{X: f.bbox.X, Y: f.bbox.Y},
			gofpdf.SizeType{Wd: f.bbox.W, Ht: f.bbox.H})
		return nil
	}
	b.Save()
	defer b.Restore()
	return f.content()
}

func (b *Backend) AddShading(key string, gradient svgpath.Gradient) {
	b.shadings[key] = gradient
}

func (b *Backend) AddTilingPattern(key string, pattern svgdraw.TilingPattern) {
	b.patterns[key] = pattern
}

// maxTiles bounds the number of tiles drawn for one painting operation
const maxTiles = 4096

// fillTiling paints the pattern cells intersecting the path.
func (b *Backend) fillTiling(path string, box svgpath.Rect, evenOdd bool, p svgdraw.TilingPattern) {
	if p.Width <= 0 || p.Height <= 0 || !p.Matrix.IsInvertible() || !b.state.ctm.IsInvertible() {
		return
	}
	cells := box.Transform(p.Matrix.Invert())
	i0, i1 := math.Floor(cells.X/p.Width), math.Ceil((cells.X+cells.W)/p.Width)
	j0, j1 := math.Floor(cells.Y/p.Height), math.Ceil((cells.Y+cells.H)/p.Height)
	if (i1-i0)*(j1-j0) > maxTiles {
		b.setErr(fmt.Errorf("pattern %s: too many tiles (%g)", p.Form, (i1-i0)*(j1-j0)))
		return
	}

	b.useAlpha(inheritFill)
	b.Save()
	defer b.Restore()
	b.raw(path + clipOp(evenOdd))
	b.Transform(b.state.ctm.Invert().Mult(p.Matrix))
	for i := i0; i < i1; i++ {
		for j := j0; j < j1; j++ {
			b.Save()
			b.Transform(svgpath.Identity.Translate(i*p.Width, j*p.Height))
			b.RoundedRect(0, 0, p.Width, p.Height, 0, 0)
			b.Clip(false)
			b.Transform(p.Content)
			err := b.PlaceForm(p.Form)
			b.Restore()
			if err != nil {
				b.setErr(err)
				return
			}
		}
	}
}

func (b *Backend) Err() error {
	if b.err != nil {
		return b.err
	}
	return b.pdf.Error()
}

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

// fmtNum formats `v` with at most 5 decimals, without trailing zeros
func fmtNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 5, 64)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}
