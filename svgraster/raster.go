// Implements a raster backend to render SVG images,
// by wrapping rasterx.
//
// Paths are transformed to device space when they are built, so that
// rasterx only deals with pixel coordinates. Clipping areas are
// stored as alpha masks, applied by the color function of the scanner.
package svgraster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

var _ svgdraw.Backend = (*Backend)(nil) // assert interface conformance

type paint struct {
	color   color.NRGBA
	pattern string // key of a shading or a tiling pattern
}

type graphicState struct {
	ctm          svgpath.Matrix2D
	fill, stroke paint

	lineWidth, miterLimit float64
	cap                   svgdraw.CapMode
	join                  svgdraw.JoinMode
	dashes                []float64
	dashOffset            float64

	fillAlpha, strokeAlpha float64
	// group is applied to every painting, and is used
	// to propagate the opacity of a pattern to its tiles
	group float64

	clip *image.Alpha // nil means no clipping
}

// Backend rasterizes the drawing on an image.
type Backend struct {
	img           draw.Image
	width, height int     // in pixels
	scale         float64 // pixels per page unit

	dasher *rasterx.Dasher // to avoid shared state
	filler *rasterx.Filler // we use separated instance

	state graphicState
	stack []graphicState

	path    rasterx.Path // in device space
	pathBox extent       // in page space

	forms    map[string]func() error
	shadings map[string]svgpath.Gradient
	patterns map[string]svgdraw.TilingPattern

	faces  *svgdraw.FontFaces
	glyphs sfnt.Buffer

	err error
}

// Option customizes a Backend
type Option func(*Backend)

// WithScale sets the number of pixels per page unit (default to 1).
func WithScale(scale float64) Option {
	return func(b *Backend) {
		if scale > 0 {
			b.scale = scale
		}
	}
}

// WithFaces sets the fonts used to draw text (default to the Go fonts).
func WithFaces(faces *svgdraw.FontFaces) Option {
	return func(b *Backend) {
		if faces != nil {
			b.faces = faces
		}
	}
}

// New returns a backend drawing on `img`, whose bounds
// must start at the origin.
func New(img draw.Image, opts ...Option) *Backend {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	b := &Backend{
		img:      img,
		width:    w,
		height:   h,
		scale:    1,
		dasher:   rasterx.NewDasher(w, h, scanner),
		filler:   rasterx.NewFiller(w, h, scanner),
		forms:    make(map[string]func() error),
		shadings: make(map[string]svgpath.Gradient),
		patterns: make(map[string]svgdraw.TilingPattern),
		state: graphicState{
			ctm:         svgpath.Identity,
			fill:        paint{color: color.NRGBA{A: 0xff}},
			stroke:      paint{color: color.NRGBA{A: 0xff}},
			lineWidth:   1,
			miterLimit:  4,
			fillAlpha:   1,
			strokeAlpha: 1,
			group:       1,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.faces == nil {
		b.faces = svgdraw.NewFontFaces()
	}
	return b
}

func (b *Backend) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// device maps the user space to the pixels
func (b *Backend) device() svgpath.Matrix2D {
	return svgpath.Identity.Scale(b.scale, b.scale).Mult(b.state.ctm)
}

// deviceScale is used for line widths
func (b *Backend) deviceScale() float64 { return b.device().ScaleFactor() }

func (b *Backend) Save() {
	b.stack = append(b.stack, b.state)
}

func (b *Backend) Restore() {
	if len(b.stack) == 0 {
		b.setErr(errors.New("unbalanced graphics state restore"))
		return
	}
	b.state = b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *Backend) Transform(m svgpath.Matrix2D) {
	b.state.ctm = b.state.ctm.Mult(m)
}

func (b *Backend) CTM() svgpath.Matrix2D { return b.state.ctm }

func (b *Backend) PageSize() (float64, float64) {
	return float64(b.width) / b.scale, float64(b.height) / b.scale
}

func (b *Backend) SetFillColor(c color.NRGBA)   { b.state.fill = paint{color: c} }
func (b *Backend) SetStrokeColor(c color.NRGBA) { b.state.stroke = paint{color: c} }
func (b *Backend) SetFillPattern(key string)    { b.state.fill.pattern = key }
func (b *Backend) SetStrokePattern(key string)  { b.state.stroke.pattern = key }
func (b *Backend) SetLineWidth(width float64)   { b.state.lineWidth = width }
func (b *Backend) SetLineCap(c svgdraw.CapMode) { b.state.cap = c }

func (b *Backend) SetLineJoin(j svgdraw.JoinMode) { b.state.join = j }
func (b *Backend) SetMiterLimit(limit float64)    { b.state.miterLimit = limit }

func (b *Backend) SetDash(dashes []float64, offset float64) {
	b.state.dashes, b.state.dashOffset = slices.Clone(dashes), offset
}

func (b *Backend) SetOpacity(fill, stroke float64) {
	b.state.fillAlpha, b.state.strokeAlpha = fill, stroke
}

// path construction

func (b *Backend) toFixed(x, y float64) fixed.Point26_6 {
	b.pathBox.add(b.state.ctm.Apply(svgpath.Point{X: x, Y: y}))
	p := b.device().Apply(svgpath.Point{X: x, Y: y})
	return rasterx.ToFixedP(p.X, p.Y)
}

func (b *Backend) MoveTo(x, y float64) { b.path.Start(b.toFixed(x, y)) }
func (b *Backend) LineTo(x, y float64) { b.path.Line(b.toFixed(x, y)) }

func (b *Backend) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	b.path.CubeBezier(b.toFixed(x1, y1), b.toFixed(x2, y2), b.toFixed(x3, y3))
}

func (b *Backend) quadTo(x1, y1, x2, y2 float64) {
	b.path.QuadBezier(b.toFixed(x1, y1), b.toFixed(x2, y2))
}

func (b *Backend) ClosePath() { b.path.Stop(true) }

// kappa is the control point ratio used to approximate quarter circles
const kappa = 0.5522847498

func (b *Backend) RoundedRect(x, y, width, height, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		b.MoveTo(x, y)
		b.LineTo(x+width, y)
		b.LineTo(x+width, y+height)
		b.LineTo(x, y+height)
		b.ClosePath()
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
func (b *Backend) takePath() (rasterx.Path, svgpath.Rect) {
	p, box := b.path, b.pathBox.rect()
	b.path, b.pathBox = nil, extent{}
	return p, box
}

var (
	joinToJoin = [...]rasterx.JoinMode{
		svgdraw.Round:     rasterx.Round,
		svgdraw.Bevel:     rasterx.Bevel,
		svgdraw.Miter:     rasterx.Miter,
		svgdraw.MiterClip: rasterx.MiterClip,
		svgdraw.Arc:       rasterx.Arc,
	}

	capToFunc = [...]rasterx.CapFunc{
		svgdraw.ButtCap:   rasterx.ButtCap,
		svgdraw.SquareCap: rasterx.SquareCap,
		svgdraw.RoundCap:  rasterx.RoundCap,
	}
)

// setStroke configures `dasher` with the current line style,
// converted to device space.
func (b *Backend) setStroke(dasher *rasterx.Dasher) {
	st := &b.state
	scale := b.deviceScale()
	gap := rasterx.FlatGap
	if st.join == svgdraw.Round {
		gap = rasterx.RoundGap
	}
	join, capFn := rasterx.MiterClip, rasterx.ButtCap
	if int(st.join) < len(joinToJoin) {
		join = joinToJoin[st.join]
	}
	if int(st.cap) < len(capToFunc) {
		capFn = capToFunc[st.cap]
	}
	dashes := make([]float64, len(st.dashes))
	for i, d := range st.dashes {
		dashes[i] = d * scale
	}
	dasher.SetStroke(
		fixed.Int26_6(st.lineWidth*scale*64), fixed.Int26_6(st.miterLimit*64),
		capFn, capFn, gap, join, dashes, st.dashOffset*scale,
	)
}

// painting

func (b *Backend) Paint(op svgdraw.PaintOp, evenOdd bool) {
	path, box := b.takePath()
	if len(path) == 0 {
		return
	}
	// the vector rasterizer only supports the nonzero rule
	b.filler.SetWinding(!evenOdd)
	if op == svgdraw.PaintFill || op == svgdraw.PaintFillStroke {
		b.fill(path, box)
	}
	if op == svgdraw.PaintStroke || op == svgdraw.PaintFillStroke {
		b.stroke(path, box)
	}
}

func (b *Backend) fill(path rasterx.Path, box svgpath.Rect) {
	alpha := b.state.fillAlpha * b.state.group
	if alpha <= 0 {
		return
	}
	if p, ok := b.patterns[b.state.fill.pattern]; ok {
		b.fillTiling(b.fillMask(path), box, p, alpha)
		return
	}
	b.filler.Clear()
	b.filler.SetColor(b.source(b.state.fill, alpha))
	path.AddTo(b.filler)
	b.filler.Draw()
}

func (b *Backend) stroke(path rasterx.Path, box svgpath.Rect) {
	alpha := b.state.strokeAlpha * b.state.group
	if alpha <= 0 || b.state.lineWidth <= 0 {
		return
	}
	if p, ok := b.patterns[b.state.stroke.pattern]; ok {
		// the area covered by the pattern includes the line width
		w := b.state.lineWidth * b.deviceScale() / b.scale
		box = svgpath.Rect{X: box.X - w, Y: box.Y - w, W: box.W + 2*w, H: box.H + 2*w}
		b.fillTiling(b.strokeMask(path), box, p, alpha)
		return
	}
	b.setStroke(b.dasher)
	b.dasher.Clear()
	b.dasher.SetColor(b.source(b.state.stroke, alpha))
	path.AddTo(b.dasher)
	b.dasher.Draw()
}

// Clip restricts the drawing to the current path. As for filling,
// the even-odd rule is not supported.
func (b *Backend) Clip(_ bool) {
	path, _ := b.takePath()
	if len(path) == 0 {
		// empty clipping area
		b.state.clip = image.NewAlpha(image.Rect(0, 0, b.width, b.height))
		return
	}
	b.state.clip = intersect(b.state.clip, b.fillMask(path))
}

// newMaskScanner returns a scanner drawing an opaque coverage
// on a new mask
func (b *Backend) newMaskScanner() (*image.Alpha, *rasterx.ScannerGV) {
	mask := image.NewAlpha(image.Rect(0, 0, b.width, b.height))
	scanner := rasterx.NewScannerGV(b.width, b.height, mask, mask.Bounds())
	scanner.SetColor(color.Opaque)
	return mask, scanner
}

func (b *Backend) fillMask(path rasterx.Path) *image.Alpha {
	mask, scanner := b.newMaskScanner()
	filler := rasterx.NewFiller(b.width, b.height, scanner)
	path.AddTo(filler)
	filler.Draw()
	return mask
}

func (b *Backend) strokeMask(path rasterx.Path) *image.Alpha {
	mask, scanner := b.newMaskScanner()
	dasher := rasterx.NewDasher(b.width, b.height, scanner)
	b.setStroke(dasher)
	path.AddTo(dasher)
	dasher.Draw()
	return mask
}

// intersect returns the product of the masks, which have the same bounds.
// `current` may be nil.
func intersect(current, mask *image.Alpha) *image.Alpha {
	if current == nil {
		return mask
	}
	out := image.NewAlpha(mask.Rect)
	for i := range out.Pix {
		out.Pix[i] = uint8(uint16(current.Pix[i]) * uint16(mask.Pix[i]) / 0xff)
	}
	return out
}

// forms and patterns

func (b *Backend) DefineForm(key string, _ svgpath.Rect, content func() error) error {
	b.forms[key] = content
	return nil
}

func (b *Backend) PlaceForm(key string) error {
	content, ok := b.forms[key]
	if !ok {
		return fmt.Errorf("undefined form %s", key)
	}
	b.Save()
	defer b.Restore()
	return content()
}

func (b *Backend) AddShading(key string, gradient svgpath.Gradient) {
	b.shadings[key] = gradient
}

func (b *Backend) AddTilingPattern(key string, pattern svgdraw.TilingPattern) {
	b.patterns[key] = pattern
}

// maxTiles bounds the number of tiles drawn for one painting operation
const maxTiles = 4096

// fillTiling paints the pattern cells intersecting `box`, restricted to `mask`.
func (b *Backend) fillTiling(mask *image.Alpha, box svgpath.Rect, p svgdraw.TilingPattern, alpha float64) {
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

	b.Save()
	defer b.Restore()
	b.state.clip = intersect(b.state.clip, mask)
	b.state.group = alpha
	b.state.ctm = p.Matrix
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
