package svgraster

import (
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// families drawn with the Go fonts
var familyAliases = map[string]string{
	"serif":      "go",
	"sans-serif": "go",
	"times":      "go",
	"helvetica":  "go",
	"arial":      "go",
	"courier":    "go mono",
	"monospace":  "go mono",
}

// family returns the name of the registered family used
// for `name`, and false if `name` itself is unknown.
func (b *Backend) family(name string) (string, bool) {
	name = strings.ToLower(name)
	if _, ok := b.faces.Font(name, svgdraw.Regular); ok {
		return name, true
	}
	if alias, ok := familyAliases[name]; ok {
		return alias, true
	}
	return "go", false
}

// AddFont registers a TrueType font, usable by SVG text
// with the given family and style.
func (b *Backend) AddFont(family string, style svgdraw.FontStyle, ttf []byte) error {
	return b.faces.Register(strings.ToLower(family), style, ttf)
}

func (b *Backend) HasFont(family string, _ svgdraw.FontStyle) bool {
	_, ok := b.family(family)
	return ok
}

func (b *Backend) MeasureText(text string, f svgdraw.Font) float64 {
	f.Family, _ = b.family(f.Family)
	w, _ := b.faces.Measure(text, f)
	return w
}

var textOps = [...]svgdraw.PaintOp{
	svgdraw.TextFill:       svgdraw.PaintFill,
	svgdraw.TextStroke:     svgdraw.PaintStroke,
	svgdraw.TextFillStroke: svgdraw.PaintFillStroke,
	svgdraw.TextInvisible:  svgdraw.PaintDiscard,
}

// Text draws the glyph outlines, built in font units
// and scaled to the font size.
func (b *Backend) Text(text string, x, y float64, opts svgdraw.TextOptions) {
	if opts.Font.Size <= 0 || text == "" || int(opts.Mode) >= len(textOps) {
		return
	}
	family, _ := b.family(opts.Font.Family)
	f, ok := b.faces.Font(family, opts.Font.Style)
	if !ok {
		return
	}
	upem := fixed.I(int(f.UnitsPerEm()))
	scale := opts.Font.Size / float64(f.UnitsPerEm())

	// the current path is not part of the text
	b.path, b.pathBox = nil, extent{}

	pen, prev := x, sfnt.GlyphIndex(0)
	for i, r := range text {
		idx, err := f.GlyphIndex(&b.glyphs, r)
		if err != nil || idx == 0 {
			idx, _ = f.GlyphIndex(&b.glyphs, '?')
		}
		if i > 0 {
			if kern, err := f.Kern(&b.glyphs, prev, idx, upem, font.HintingNone); err == nil {
				pen += float64(kern) / 64 * scale
			}
		}
		segments, err := f.LoadGlyph(&b.glyphs, idx, upem, nil)
		if err != nil {
			b.setErr(err)
			return
		}
		b.glyphPath(segments, pen, y, scale)
		adv, err := f.GlyphAdvance(&b.glyphs, idx, upem, font.HintingNone)
		if err != nil {
			b.setErr(err)
			return
		}
		pen += float64(adv) / 64 * scale
		prev = idx
	}
	b.Paint(textOps[opts.Mode], false)
}

// glyphPath adds the glyph outline, whose origin is placed at (x, y).
// sfnt segments already use a y axis pointing down.
func (b *Backend) glyphPath(segments sfnt.Segments, x, y, scale float64) {
	pt := func(p fixed.Point26_6) (float64, float64) {
		return x + float64(p.X)/64*scale, y + float64(p.Y)/64*scale
	}
	open := false
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				b.ClosePath()
			}
			b.MoveTo(pt(seg.Args[0]))
			open = true
		case sfnt.SegmentOpLineTo:
			b.LineTo(pt(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			x1, y1 := pt(seg.Args[0])
			x2, y2 := pt(seg.Args[1])
			b.quadTo(x1, y1, x2, y2)
		case sfnt.SegmentOpCubeTo:
			x1, y1 := pt(seg.Args[0])
			x2, y2 := pt(seg.Args[1])
			x3, y3 := pt(seg.Args[2])
			b.CurveTo(x1, y1, x2, y2, x3, y3)
		}
	}
	if open {
		b.ClosePath()
	}
}
