package svgpdf

import (
	"fmt"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"golang.org/x/image/font/sfnt"
)

// the standard 14 fonts, available in every PDF reader
var coreFonts = map[string]bool{
	"helvetica":    true,
	"times":        true,
	"courier":      true,
	"symbol":       true,
	"zapfdingbats": true,
}

// nominal font size used when writing text; the actual size
// is obtained with a scaling transformation.
const nominalFontSize = 10

func fontKey(family string, style svgdraw.FontStyle) string {
	return strings.ToLower(family) + "/" + style.String()
}

// AddFont registers a TrueType font, usable by SVG text
// with the given family and style.
func (b *Backend) AddFont(family string, style svgdraw.FontStyle, ttf []byte) error {
	if _, err := sfnt.Parse(ttf); err != nil {
		return fmt.Errorf("invalid font %s: %w", family, err)
	}
	family = strings.ToLower(family)
	b.pdf.AddUTF8FontFromBytes(family, style.String(), ttf)
	if err := b.pdf.Error(); err != nil {
		return err
	}
	b.fonts[fontKey(family, style)] = true
	b.fonts[family] = true
	return nil
}

func (b *Backend) HasFont(family string, _ svgdraw.FontStyle) bool {
	family = strings.ToLower(family)
	return coreFonts[family] || b.fonts[family]
}

// selectFont returns the gofpdf family and style, and
// whether the font is an UTF-8 font.
func (b *Backend) selectFont(font svgdraw.Font) (family, style string, utf8 bool) {
	family = strings.ToLower(font.Family)
	if b.fonts[family] {
		if b.fonts[fontKey(family, font.Style)] {
			return family, font.Style.String(), true
		}
		return family, "", true
	}
	switch family {
	case "symbol", "zapfdingbats":
		return family, "", false
	case "helvetica", "times", "courier":
		return family, font.Style.String(), false
	default:
		return "times", font.Style.String(), false
	}
}

func (b *Backend) setFont(font svgdraw.Font) (text func(string) string) {
	family, style, utf8 := b.selectFont(font)
	b.pdf.SetFont(family, style, nominalFontSize)
	if utf8 {
		return func(s string) string { return s }
	}
	return b.encode
}

func (b *Backend) MeasureText(text string, font svgdraw.Font) float64 {
	encode := b.setFont(font)
	_, unitSize := b.pdf.GetFontSize()
	if unitSize == 0 {
		return 0
	}
	return b.pdf.GetStringWidth(encode(text)) * font.Size / unitSize
}

var textModes = [...]int{
	svgdraw.TextFill:       0,
	svgdraw.TextStroke:     1,
	svgdraw.TextFillStroke: 2,
	svgdraw.TextInvisible:  3,
}

func (b *Backend) Text(text string, x, y float64, opts svgdraw.TextOptions) {
	if opts.Font.Size <= 0 || text == "" {
		return
	}
	switch opts.Mode {
	case svgdraw.TextStroke:
		b.useAlpha(inheritStroke)
	case svgdraw.TextFill:
		b.useAlpha(inheritFill)
	case svgdraw.TextFillStroke:
		// a single alpha is supported
		b.useAlpha(inheritFill | inheritStroke)
	}

	b.raw("q")
	encode := b.setFont(opts.Font)
	// the font is part of the graphics state, restored by Q,
	// so it is always written
	b.pdf.SetFontSize(nominalFontSize)
	_, unitSize := b.pdf.GetFontSize()
	scale := opts.Font.Size / unitSize
	b.concat(svgpath.Identity.Translate(x, y).Scale(scale, scale))
	if opts.Mode == svgdraw.TextStroke || opts.Mode == svgdraw.TextFillStroke {
		b.raw(fmtNum(b.state.lineWidth/scale*b.k) + " w")
	}
	// gofpdf draws text with its own text color
	if fill := b.state.fill; fill.known {
		b.pdf.SetTextColor(int(fill.color.R), int(fill.color.G), int(fill.color.B))
	} else {
		b.pdf.SetTextColor(b.pdf.GetFillColor())
	}
	if int(opts.Mode) < len(textModes) {
		b.pdf.SetTextRenderingMode(textModes[opts.Mode])
	}
	b.pdf.Text(0, 0, encode(text))
	b.raw("Q")
}
