package alt

import (
	"fmt"
	"strings"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/fonts"
	"github.com/benoitkugler/pdf/fonts/standardfonts"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/svgdraw"
)

// standardFont returns the name of the standard 14 font
// used for the given family and style.
func standardFont(family string, style svgdraw.FontStyle) string {
	bold, italic := style&svgdraw.Bold != 0, style&svgdraw.Italic != 0
	switch strings.ToLower(family) {
	case "symbol":
		return "Symbol"
	case "zapfdingbats":
		return "ZapfDingbats"
	case "helvetica", "courier":
		name := "Helvetica"
		if strings.EqualFold(family, "courier") {
			name = "Courier"
		}
		switch {
		case bold && italic:
			return name + "-BoldOblique"
		case bold:
			return name + "-Bold"
		case italic:
			return name + "-Oblique"
		}
		return name
	default:
		switch {
		case bold && italic:
			return "Times-BoldItalic"
		case bold:
			return "Times-Bold"
		case italic:
			return "Times-Italic"
		}
		return "Times-Roman"
	}
}

func (b *Backend) HasFont(family string, _ svgdraw.FontStyle) bool {
	switch strings.ToLower(family) {
	case "helvetica", "times", "courier", "symbol", "zapfdingbats":
		return true
	}
	return false
}

// font returns the built standard font, with WinAnsi encoding
func (b *Backend) font(font svgdraw.Font) (fonts.BuiltFont, error) {
	name := standardFont(font.Family, font.Style)
	if f, ok := b.fonts[name]; ok {
		return f, nil
	}
	metrics, ok := standardfonts.Fonts[name]
	if !ok {
		return fonts.BuiltFont{}, fmt.Errorf("unknown standard font %s", name)
	}
	f, err := fonts.BuildFont(&model.FontDict{Subtype: metrics.WesternType1Font()})
	if err != nil {
		return fonts.BuiltFont{}, fmt.Errorf("building font %s: %w", name, err)
	}
	b.fonts[name] = f
	return f, nil
}

func (b *Backend) MeasureText(text string, font svgdraw.Font) float64 {
	f, err := b.font(font)
	if err != nil {
		b.setErr(err)
		return 0
	}
	var w float64
	for _, r := range text {
		w += f.GetWidth(r, font.Size)
	}
	return w
}

var textModes = [...]float64{
	svgdraw.TextFill:       0,
	svgdraw.TextStroke:     1,
	svgdraw.TextFillStroke: 2,
	svgdraw.TextInvisible:  3,
}

func (b *Backend) Text(text string, x, y float64, opts svgdraw.TextOptions) {
	if opts.Font.Size <= 0 || text == "" || int(opts.Mode) >= len(textModes) {
		return
	}
	f, err := b.font(opts.Font)
	if err != nil {
		b.setErr(err)
		return
	}

	st := &b.state
	fillAlpha, strokeAlpha := -1., -1.
	switch opts.Mode {
	case svgdraw.TextFill:
		b.writeFillColor()
		fillAlpha = st.fillAlpha
	case svgdraw.TextStroke:
		b.writeStrokeColor()
		strokeAlpha = st.strokeAlpha
	case svgdraw.TextFillStroke:
		b.writeFillColor()
		b.writeStrokeColor()
		fillAlpha, strokeAlpha = st.fillAlpha, st.strokeAlpha
	}

	ap := b.out.ap
	ap.Ops(contentstream.OpSave{})
	if gs := b.alphaState(fillAlpha, strokeAlpha); gs != "" {
		ap.Ops(contentstream.OpSetExtGState{Dict: gs})
	}
	ap.BeginText()
	ap.SetFontAndSize(f, opts.Font.Size)
	ap.Ops(contentstream.OpSetTextRender{Render: textModes[opts.Mode]})
	// the user space has a y axis pointing down
	ap.SetTextMatrix(1, 0, 0, -1, x, y)
	if err := ap.ShowText(text); err != nil {
		b.setErr(err)
	}
	ap.EndText()
	ap.Ops(contentstream.OpRestore{})
}
