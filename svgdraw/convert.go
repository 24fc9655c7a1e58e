package svgdraw

import (
	"context"
	"fmt"
	"io"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/charmbracelet/log"
)

// Convert draws `doc` on the backend. The outermost element is placed at
// (opts.X, opts.Y), and its viewport is bounded by the page of the backend.
// Cancelling `goCtx` interrupts the rendering between two elements.
func Convert(goCtx context.Context, doc *svgdom.Document, backend Backend, opts Options) error {
	if doc == nil || doc.Root == nil {
		return svgdom.ErrInvalidDocument
	}
	opts = opts.withDefaults()

	styles := svgdom.LoadStyleSheets(goCtx, doc, svgdom.LoadOptions{
		External: opts.LoadExternalStyleSheets,
		Client:   opts.HTTPClient,
		Logger:   opts.Logger,
	})
	root, ids, err := buildTree(doc, &opts)
	if err != nil {
		return err
	}

	exact := func(text string, f Font) (float64, bool) { return backend.MeasureText(text, f), true }
	pw, ph := backend.PageSize()
	attrs := DefaultAttributeState()
	attrs.FontFamily = opts.DefaultFontFamily
	ctx := &Context{
		Backend:    backend,
		Attributes: attrs,
		Transform:  svgpath.Identity,
		Refs:       NewReferencesHandler(opts.Session, ids),
		Styles:     styles,
		Measure:    NewTextMeasure(opts.Faces.Measure, exact, opts.Logger),
		Viewport:   svgdom.Viewport{W: pw - opts.X, H: ph - opts.Y},
		Options:    &opts,
		goCtx:      goCtx,
	}

	backend.Save()
	if opts.X != 0 || opts.Y != 0 {
		translate := svgpath.Identity.Translate(opts.X, opts.Y)
		backend.Transform(translate)
		ctx.Transform = translate
	}
	ctx.applyDefaults()
	err = render(root, ctx)
	backend.Restore()
	if err != nil {
		return err
	}
	if err := backend.Err(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	return nil
}

// ConvertReader parses the SVG file from `r` and draws it
// on the backend. See Convert for details.
func ConvertReader(goCtx context.Context, r io.Reader, backend Backend, opts Options) error {
	doc, err := svgdom.Parse(r)
	if err != nil {
		return err
	}
	return Convert(goCtx, doc, backend, opts)
}

// DocumentSize returns the dimensions of the outermost element of `doc`,
// as used by Convert when drawing on a page of size (pageWidth, pageHeight),
// with the drawing placed at the origin.
func DocumentSize(doc *svgdom.Document, opts Options, pageWidth, pageHeight float64) (w, h float64, err error) {
	if doc == nil || doc.Root == nil {
		return 0, 0, svgdom.ErrInvalidDocument
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx := &Context{
		Attributes: DefaultAttributeState(),
		Styles:     svgdom.LoadStyleSheets(context.Background(), doc, svgdom.LoadOptions{Logger: opts.Logger}),
		Viewport:   svgdom.Viewport{W: pageWidth, H: pageHeight},
		Options:    &opts,
	}
	root := &svgNode{nodeBase{elem: doc.Root}}
	w, h = root.size(ctx)
	return w, h, nil
}
