package main

import (
	"fmt"
	"image/color"
	"image/png"
	"os"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgraster"
	"github.com/spf13/cobra"
)

type rasterOpts struct {
	output     string
	config     string
	scale      float64
	background bool
}

func newRasterCmd() *cobra.Command {
	var opts rasterOpts
	cmd := &cobra.Command{
		Use:   "raster [file.svg]",
		Short: "Rasterize an SVG image to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config
			if opts.config != "" {
				var err error
				if cfg, err = loadConfig(opts.config); err != nil {
					return err
				}
			}
			return runRaster(cmd, args[0], cfg, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default: input with .png extension)")
	flags.StringVar(&opts.config, "config", "", "TOML configuration file")
	flags.Float64Var(&opts.scale, "scale", 1, "pixels per SVG unit")
	flags.BoolVar(&opts.background, "white", false, "paint a white background")
	return cmd
}

func runRaster(cmd *cobra.Command, input string, cfg config, opts rasterOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	if opts.scale <= 0 {
		return fmt.Errorf("invalid scale %g", opts.scale)
	}
	rOpts, err := cfg.rasterOptions(logger)
	if err != nil {
		return err
	}
	rOpts.Scale = opts.scale
	if opts.background {
		rOpts.Background = color.White
	}

	doc, err := svgdom.ParseFile(input)
	if err != nil {
		return err
	}
	img, err := svgraster.Render(ctx, doc, rOpts)
	if err != nil {
		return fmt.Errorf("rasterizing %s: %w", input, err)
	}

	output := opts.output
	if output == "" {
		output = outputPath(input, ".png")
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	b := img.Bounds()
	prog.done("PNG written", "file", output, "width", b.Dx(), "height", b.Dy())
	return nil
}
