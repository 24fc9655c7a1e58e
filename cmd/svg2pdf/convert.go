package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpdf"
	"github.com/benoitkugler/svg2pdf/svgpdf/alt"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// convertOpts holds the command-line flags of the convert command.
// Flags take precedence over the configuration file.
type convertOpts struct {
	output      string
	config      string
	width       float64 // of the outermost element
	height      float64
	page        string // standard page size, empty to fit the drawing
	externalCSS bool
	strict      bool
	noTemplates bool
	backend     string // "gofpdf" or "native"
}

// outputPath replaces the extension of `input`
func outputPath(input, ext string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func newConvertCmd() *cobra.Command {
	var opts convertOpts
	cmd := &cobra.Command{
		Use:   "convert [file.svg]",
		Short: "Convert an SVG image to a one page PDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runConvert(cmd, args[0], cfg, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default: input with .pdf extension)")
	flags.StringVar(&opts.config, "config", "", "TOML configuration file")
	flags.Float64Var(&opts.width, "width", 0, "width of the drawing, in page units")
	flags.Float64Var(&opts.height, "height", 0, "height of the drawing, in page units")
	flags.StringVar(&opts.page, "page", "", "page size (A3, A4, A5, Letter, Legal, Tabloid); fits the drawing by default")
	flags.BoolVar(&opts.externalCSS, "external-css", false, "fetch external stylesheets")
	flags.BoolVar(&opts.strict, "strict", false, "fail on unsupported elements")
	flags.BoolVar(&opts.noTemplates, "no-templates", false, "replay referenced content instead of using form objects")
	flags.StringVar(&opts.backend, "backend", "gofpdf", "PDF writer: gofpdf, or native for shadings and independent opacities")
	return cmd
}

// loadConfig reads the configuration file, if any,
// and applies the flags set on the command line.
func (opts convertOpts) loadConfig(cmd *cobra.Command) (config, error) {
	var cfg config
	if opts.config != "" {
		var err error
		if cfg, err = loadConfig(opts.config); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Render.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.Render.Height = opts.height
	}
	if flags.Changed("page") {
		cfg.Page.Size = opts.page
	}
	if flags.Changed("external-css") {
		cfg.Render.ExternalStylesheets = opts.externalCSS
	}
	if opts.strict {
		cfg.Render.ErrorMode = svgdraw.StrictErrorMode.String()
	}
	return cfg, nil
}

func runConvert(cmd *cobra.Command, input string, cfg config, opts convertOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	pdfOpts, err := cfg.pdfOptions(logger)
	if err != nil {
		return err
	}
	pdfOpts.DisableTemplates = opts.noTemplates
	switch opts.backend {
	case "gofpdf", "native":
	default:
		return fmt.Errorf("unknown backend %q", opts.backend)
	}

	doc, err := svgdom.ParseFile(input)
	if err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = outputPath(input, ".pdf")
	}
	logger.Debug("converting", "input", input, "output", output, "page", cfg.Page.Size, "unit", pdfOpts.Unit, "backend", opts.backend)

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := render(ctx, logger, opts.backend, doc, f, pdfOpts); err != nil {
		f.Close()
		os.Remove(output)
		return fmt.Errorf("converting %s: %w", input, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	prog.done("PDF written", "file", output)
	return nil
}

// render writes the document with the chosen backend
func render(ctx context.Context, logger *log.Logger, backend string, doc *svgdom.Document, w io.Writer, opts svgpdf.Options) error {
	if backend != "native" {
		return svgpdf.Render(ctx, doc, w, opts)
	}
	if len(opts.Fonts) != 0 {
		logger.Warn("custom fonts are ignored by the native backend", "fonts", len(opts.Fonts))
	}
	return alt.Render(ctx, doc, w, alt.Options{
		Unit:          opts.Unit,
		PageWidth:     opts.PageWidth,
		PageHeight:    opts.PageHeight,
		Margin:        opts.Margin,
		DisableForms:  opts.DisableTemplates,
		NoCompression: opts.NoCompression,
		Convert:       opts.Convert,
	})
}
