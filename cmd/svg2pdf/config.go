package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpdf"
	"github.com/benoitkugler/svg2pdf/svgraster"
	"github.com/charmbracelet/log"
	"github.com/jung-kurt/gofpdf"
)

// config is the content of the TOML configuration file.
//
//	[page]
//	size = "A4"            # empty to fit the drawing
//	orientation = "portrait"
//	unit = "mm"
//	margin = 10
//
//	[render]
//	width = 200
//	external_stylesheets = true
//	error_mode = "warn"
//
//	[[fonts]]
//	family = "DejaVu Sans"
//	style = "B"
//	file = "fonts/DejaVuSans-Bold.ttf"
type config struct {
	Page   pageConfig   `toml:"page"`
	Render renderConfig `toml:"render"`
	Fonts  []fontConfig `toml:"fonts"`
}

type pageConfig struct {
	Size        string  `toml:"size"`
	Orientation string  `toml:"orientation"` // "portrait" or "landscape"
	Unit        string  `toml:"unit"`
	Margin      float64 `toml:"margin"`
}

type renderConfig struct {
	X                   float64 `toml:"x"`
	Y                   float64 `toml:"y"`
	Width               float64 `toml:"width"`
	Height              float64 `toml:"height"`
	ExternalStylesheets bool    `toml:"external_stylesheets"`
	ErrorMode           string  `toml:"error_mode"`
	MaxReferenceDepth   int     `toml:"max_reference_depth"`
}

type fontConfig struct {
	Family string `toml:"family"`
	Style  string `toml:"style"` // "", "B", "I" or "BI"
	File   string `toml:"file"`
}

// loadConfig decodes the file at `path`, rejecting unknown keys.
func loadConfig(path string) (config, error) {
	var cfg config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("reading config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func parseFontStyle(s string) (svgdraw.FontStyle, error) {
	var style svgdraw.FontStyle
	for _, r := range strings.ToUpper(s) {
		switch r {
		case 'B':
			style |= svgdraw.Bold
		case 'I':
			style |= svgdraw.Italic
		default:
			return 0, fmt.Errorf("invalid font style %q", s)
		}
	}
	return style, nil
}

type loadedFont struct {
	family string
	style  svgdraw.FontStyle
	data   []byte
}

func (cfg config) loadFonts() ([]loadedFont, error) {
	var out []loadedFont
	for _, f := range cfg.Fonts {
		style, err := parseFontStyle(f.Style)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.File)
		if err != nil {
			return nil, fmt.Errorf("loading font %s: %w", f.Family, err)
		}
		out = append(out, loadedFont{family: f.Family, style: style, data: data})
	}
	return out, nil
}

// convertOptions returns the options shared by both backends.
func (cfg config) convertOptions(logger *log.Logger) (svgdraw.Options, error) {
	r := cfg.Render
	opts := svgdraw.Options{
		X:                       r.X,
		Y:                       r.Y,
		Width:                   r.Width,
		Height:                  r.Height,
		LoadExternalStyleSheets: r.ExternalStylesheets,
		MaxReferenceDepth:       r.MaxReferenceDepth,
		Logger:                  logger,
	}
	mode, ok := svgdraw.ParseErrorMode(r.ErrorMode) // default to warn
	if !ok {
		return opts, fmt.Errorf("invalid error mode %q", r.ErrorMode)
	}
	opts.ErrorMode = mode
	return opts, nil
}

func (cfg config) pdfOptions(logger *log.Logger) (svgpdf.Options, error) {
	conv, err := cfg.convertOptions(logger)
	if err != nil {
		return svgpdf.Options{}, err
	}
	opts := svgpdf.Options{
		Unit:    cfg.Page.Unit,
		Margin:  cfg.Page.Margin,
		Convert: conv,
	}
	if opts.Unit == "" {
		opts.Unit = "pt"
	}
	switch opts.Unit {
	case "pt", "mm", "cm", "in", "inch", "point":
	default:
		return opts, fmt.Errorf("invalid unit %q", opts.Unit)
	}
	if size := cfg.Page.Size; size != "" {
		ps := gofpdf.New("P", opts.Unit, "A4", "").GetPageSizeStr(size)
		if ps.Wd == 0 || ps.Ht == 0 {
			return opts, fmt.Errorf("unknown page size %q", size)
		}
		opts.PageWidth, opts.PageHeight = ps.Wd, ps.Ht
	}
	switch strings.ToLower(cfg.Page.Orientation) {
	case "", "p", "portrait":
	case "l", "landscape":
		opts.PageWidth, opts.PageHeight = opts.PageHeight, opts.PageWidth
	default:
		return opts, fmt.Errorf("invalid orientation %q", cfg.Page.Orientation)
	}

	fonts, err := cfg.loadFonts()
	if err != nil {
		return opts, err
	}
	for _, f := range fonts {
		opts.Fonts = append(opts.Fonts, svgpdf.Font{Family: f.family, Style: f.style, Data: f.data})
	}
	return opts, nil
}

func (cfg config) rasterOptions(logger *log.Logger) (svgraster.Options, error) {
	conv, err := cfg.convertOptions(logger)
	if err != nil {
		return svgraster.Options{}, err
	}
	opts := svgraster.Options{Convert: conv}
	fonts, err := cfg.loadFonts()
	if err != nil {
		return opts, err
	}
	for _, f := range fonts {
		opts.Fonts = append(opts.Fonts, svgraster.Font{Family: f.family, Style: f.style, Data: f.data})
	}
	return opts, nil
}
