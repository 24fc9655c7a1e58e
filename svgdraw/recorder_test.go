package svgdraw

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

type paintCall struct {
	op      PaintOp
	evenOdd bool
	bbox    svgpath.Rect // of the painted path, in page space
}

type textCall struct {
	text string
	x, y float64 // in page space
	opts TextOptions
	fill color.NRGBA
}

// recorder is a Backend storing the operations it receives.
// Forms are drawn when defined, so their content is recorded once.
type recorder struct {
	ctm   svgpath.Matrix2D
	stack []svgpath.Matrix2D

	ops  []string
	path []svgpath.Point // current path, in page space

	fill, stroke color.NRGBA
	lineWidth    float64
	opacity      [2]float64

	paints   []paintCall
	clips    int
	texts    []textCall
	forms    []string
	placed   []string
	shadings map[string]svgpath.Gradient
	patterns map[string]TilingPattern
	images   []ImageSource

	// CTM when placing forms and images
	placedCTM, imageCTM []svgpath.Matrix2D

	fonts map[string]bool
}

func newRecorder() *recorder {
	return &recorder{
		ctm:      svgpath.Identity,
		shadings: make(map[string]svgpath.Gradient),
		patterns: make(map[string]TilingPattern),
		fonts:    map[string]bool{"helvetica": true, "times": true, "courier": true},
	}
}

func (r *recorder) record(format string, args ...any) {
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, op := range r.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) Save() {
	r.stack = append(r.stack, r.ctm)
	r.record("save")
}

func (r *recorder) Restore() {
	r.ctm = r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	r.record("restore")
}

func (r *recorder) Transform(m svgpath.Matrix2D) {
	r.ctm = r.ctm.Mult(m)
	r.record("transform %v", m)
}

func (r *recorder) CTM() svgpath.Matrix2D { return r.ctm }

func (r *recorder) PageSize() (float64, float64) { return 595, 842 }

func (r *recorder) SetFillColor(c color.NRGBA) {
	r.fill = c
	r.record("fill-color %v", c)
}

func (r *recorder) SetStrokeColor(c color.NRGBA) {
	r.stroke = c
	r.record("stroke-color %v", c)
}

func (r *recorder) SetFillPattern(key string)   { r.record("fill-pattern %s", key) }
func (r *recorder) SetStrokePattern(key string) { r.record("stroke-pattern %s", key) }

func (r *recorder) SetLineWidth(width float64) {
	r.lineWidth = width
	r.record("line-width %g", width)
}

func (r *recorder) SetLineCap(c CapMode)                     { r.record("line-cap %s", c) }
func (r *recorder) SetLineJoin(j JoinMode)                   { r.record("line-join %s", j) }
func (r *recorder) SetMiterLimit(limit float64)              { r.record("miter-limit %g", limit) }
func (r *recorder) SetDash(dashes []float64, offset float64) { r.record("dash %v %g", dashes, offset) }

func (r *recorder) SetOpacity(fill, stroke float64) {
	r.opacity = [2]float64{fill, stroke}
	r.record("opacity %g %g", fill, stroke)
}

func (r *recorder) addPoint(x, y float64) {
	r.path = append(r.path, r.ctm.Apply(svgpath.Point{X: x, Y: y}))
}

func (r *recorder) MoveTo(x, y float64) { r.addPoint(x, y) }
func (r *recorder) LineTo(x, y float64) { r.addPoint(x, y) }

func (r *recorder) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	r.addPoint(x1, y1)
	r.addPoint(x2, y2)
	r.addPoint(x3, y3)
}

func (r *recorder) ClosePath() {}

func (r *recorder) RoundedRect(x, y, width, height, rx, ry float64) {
	r.record("rect %g %g %g %g %g %g", x, y, width, height, rx, ry)
	r.addPoint(x, y)
	r.addPoint(x+width, y)
	r.addPoint(x+width, y+height)
	r.addPoint(x, y+height)
}

func (r *recorder) Line(x1, y1, x2, y2 float64) {
	r.addPoint(x1, y1)
	r.addPoint(x2, y2)
}

func (r *recorder) pathBox() svgpath.Rect {
	if len(r.path) == 0 {
		return svgpath.Rect{}
	}
	minX, minY, maxX, maxY := r.path[0].X, r.path[0].Y, r.path[0].X, r.path[0].Y
	for _, p := range r.path[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return svgpath.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func (r *recorder) Paint(op PaintOp, evenOdd bool) {
	r.paints = append(r.paints, paintCall{op: op, evenOdd: evenOdd, bbox: r.pathBox()})
	r.record("paint %s", op)
	r.path = nil
}

func (r *recorder) Clip(evenOdd bool) {
	r.clips++
	r.record("clip %v", evenOdd)
	r.path = nil
}

func (r *recorder) DefineForm(key string, bbox svgpath.Rect, content func() error) error {
	r.forms = append(r.forms, key)
	r.record("define-form %s", key)
	saved := r.ctm
	r.ctm = svgpath.Identity
	err := content()
	r.ctm = saved
	return err
}

func (r *recorder) PlaceForm(key string) error {
	r.placed = append(r.placed, key)
	r.placedCTM = append(r.placedCTM, r.ctm)
	r.record("place-form %s", key)
	return nil
}

func (r *recorder) AddShading(key string, gradient svgpath.Gradient) {
	r.shadings[key] = gradient
	r.record("shading %s", key)
}

func (r *recorder) AddTilingPattern(key string, pattern TilingPattern) {
	r.patterns[key] = pattern
	r.record("pattern %s", key)
}

func (r *recorder) HasFont(family string, _ FontStyle) bool { return r.fonts[family] }

// MeasureText uses a fixed advance of half the font size
func (r *recorder) MeasureText(text string, font Font) float64 {
	return float64(len([]rune(text))) * font.Size / 2
}

func (r *recorder) Text(text string, x, y float64, opts TextOptions) {
	p := r.ctm.Apply(svgpath.Point{X: x, Y: y})
	r.texts = append(r.texts, textCall{text: text, x: p.X, y: p.Y, opts: opts, fill: r.fill})
	r.record("text %q", text)
}

func (r *recorder) Image(src ImageSource, x, y, width, height float64) error {
	if src.Data == nil {
		return ErrUnsupportedImage
	}
	r.images = append(r.images, src)
	r.imageCTM = append(r.imageCTM, r.ctm)
	r.record("image %s %g %g %g %g", src.Format, x, y, width, height)
	return nil
}

func (r *recorder) Err() error { return nil }

func quietOptions() Options {
	return Options{Logger: log.New(io.Discard), Session: "test"}
}

// convertString draws `svg` on a new recorder
func convertString(t *testing.T, svg string, opts Options) (*recorder, error) {
	t.Helper()
	rec := newRecorder()
	err := ConvertReader(context.Background(), strings.NewReader(svg), rec, opts)
	return rec, err
}

func mustConvert(t *testing.T, svg string) *recorder {
	t.Helper()
	rec, err := convertString(t, svg, quietOptions())
	require.NoError(t, err)
	require.Empty(t, rec.stack, "unbalanced save/restore")
	return rec
}
