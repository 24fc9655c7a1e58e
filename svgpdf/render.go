package svgpdf

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/jung-kurt/gofpdf"
)

// Font is a TrueType font made available to the SVG text.
type Font struct {
	Family string
	Style  svgdraw.FontStyle
	Data   []byte
}

// Options configures the document created by Render.
type Options struct {
	// Unit is the gofpdf unit ("pt", "mm", "cm" or "in"), defaulting to "pt".
	// One SVG user unit is mapped to one Unit.
	Unit string
	// PageWidth and PageHeight are expressed in Unit.
	// If one of them is zero, the page fits the drawing.
	PageWidth, PageHeight float64
	// Margin is added around the drawing
	Margin float64

	Fonts            []Font
	DisableTemplates bool
	NoCompression    bool

	Convert svgdraw.Options
}

// Render draws `doc` on a one page PDF document, written to `w`.
func Render(ctx context.Context, doc *svgdom.Document, w io.Writer, opts Options) error {
	pdf, err := Draw(ctx, doc, opts)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// Draw returns a new one page document, with `doc` drawn on it.
func Draw(ctx context.Context, doc *svgdom.Document, opts Options) (*gofpdf.Fpdf, error) {
	if opts.Unit == "" {
		opts.Unit = "pt"
	}
	conv := opts.Convert
	pageW, pageH := opts.PageWidth, opts.PageHeight
	if pageW <= 0 || pageH <= 0 {
		// percentages are resolved against an A4 page
		a4 := gofpdf.New("P", opts.Unit, "A4", "").GetPageSizeStr("A4")
		dw, dh, err := svgdraw.DocumentSize(doc, conv, a4.Wd, a4.Ht)
		if err != nil {
			return nil, err
		}
		pageW, pageH = dw+2*opts.Margin, dh+2*opts.Margin
	}
	conv.X += opts.Margin
	conv.Y += opts.Margin

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        opts.Unit,
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetCompression(!opts.NoCompression)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()

	backend := New(pdf, WithTemplates(!opts.DisableTemplates))
	if conv.Faces == nil && len(opts.Fonts) != 0 {
		conv.Faces = svgdraw.NewFontFaces()
	}
	for _, font := range opts.Fonts {
		if err := backend.AddFont(font.Family, font.Style, font.Data); err != nil {
			return nil, err
		}
		if err := conv.Faces.Register(font.Family, font.Style, font.Data); err != nil {
			return nil, err
		}
	}

	if err := svgdraw.Convert(ctx, doc, backend, conv); err != nil {
		return nil, err
	}
	return pdf, nil
}

// RenderSVGToPDF reads the given SVG file and renders it
// into the given PDF file.
func RenderSVGToPDF(ctx context.Context, svg io.Reader, pdfName string, opts Options) error {
	doc, err := svgdom.Parse(svg)
	if err != nil {
		return err
	}
	f, err := os.Create(pdfName)
	if err != nil {
		return err
	}
	if err := Render(ctx, doc, f, opts); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", pdfName, err)
	}
	return f.Close()
}
