package alt

import (
	"context"
	"fmt"
	"io"

	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgdraw"
)

// size of the supported units, in points
var units = map[string]float64{
	"pt":    1,
	"point": 1,
	"mm":    72 / 25.4,
	"cm":    72 / 2.54,
	"in":    72,
	"inch":  72,
}

// a4 page, in points
const a4Width, a4Height = 595.28, 841.89

// Options configures the document created by Render.
type Options struct {
	// Unit is "pt", "mm", "cm" or "in", defaulting to "pt".
	// One SVG user unit is mapped to one Unit.
	Unit string
	// PageWidth and PageHeight are expressed in Unit.
	// If one of them is zero, the page fits the drawing.
	PageWidth, PageHeight float64
	// Margin is added around the drawing
	Margin float64

	DisableForms  bool
	NoCompression bool

	Convert svgdraw.Options
}

// Render draws `doc` on a one page PDF document, written to `w`.
// Only the standard 14 fonts are available to the text.
func Render(ctx context.Context, doc *svgdom.Document, w io.Writer, opts Options) error {
	page, err := Draw(ctx, doc, opts)
	if err != nil {
		return err
	}
	var pdf model.Document
	pdf.Catalog.Pages.Kids = append(pdf.Catalog.Pages.Kids, page)
	return pdf.Write(w, nil)
}

// Draw returns a new page, with `doc` drawn on it.
func Draw(ctx context.Context, doc *svgdom.Document, opts Options) (*model.PageObject, error) {
	if opts.Unit == "" {
		opts.Unit = "pt"
	}
	k, ok := units[opts.Unit]
	if !ok {
		return nil, fmt.Errorf("unsupported unit %q", opts.Unit)
	}
	conv := opts.Convert
	pageW, pageH := opts.PageWidth, opts.PageHeight
	if pageW <= 0 || pageH <= 0 {
		// percentages are resolved against an A4 page
		dw, dh, err := svgdraw.DocumentSize(doc, conv, a4Width/k, a4Height/k)
		if err != nil {
			return nil, err
		}
		pageW, pageH = dw+2*opts.Margin, dh+2*opts.Margin
	}
	conv.X += opts.Margin
	conv.Y += opts.Margin

	backend := New(pageW, pageH,
		WithUnit(k),
		WithForms(!opts.DisableForms),
		WithCompression(!opts.NoCompression),
	)
	if err := svgdraw.Convert(ctx, doc, backend, conv); err != nil {
		return nil, err
	}
	return backend.Page(), nil
}
