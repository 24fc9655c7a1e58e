package svgraster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgdraw"
)

// reference size used to resolve percentages of the outermost
// element (an A4 page, in points)
const (
	referenceWidth  = 595.28
	referenceHeight = 841.89
)

// maxPixels bounds the size of the rendered images
const maxPixels = 1 << 26

// Font is a TrueType font made available to the SVG text.
type Font struct {
	Family string
	Style  svgdraw.FontStyle
	Data   []byte
}

// Options configures the image created by Render.
type Options struct {
	// Scale is the number of pixels per SVG unit (default to 1).
	Scale float64
	// Background fills the image before drawing, if not nil
	Background color.Color
	Fonts      []Font

	Convert svgdraw.Options
}

// Render draws `doc` on a new image, sized to fit the drawing.
func Render(ctx context.Context, doc *svgdom.Document, opts Options) (*image.RGBA, error) {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	conv := opts.Convert
	w, h, err := svgdraw.DocumentSize(doc, conv, referenceWidth, referenceHeight)
	if err != nil {
		return nil, err
	}
	pw, ph := int(math.Ceil(w*opts.Scale)), int(math.Ceil(h*opts.Scale))
	if pw <= 0 || ph <= 0 || pw*ph > maxPixels {
		return nil, fmt.Errorf("invalid image size %dx%d", pw, ph)
	}
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	if opts.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}

	if conv.Faces == nil {
		conv.Faces = svgdraw.NewFontFaces()
	}
	backend := New(img, WithScale(opts.Scale), WithFaces(conv.Faces))
	for _, font := range opts.Fonts {
		if err := backend.AddFont(font.Family, font.Style, font.Data); err != nil {
			return nil, err
		}
	}
	if err := svgdraw.Convert(ctx, doc, backend, conv); err != nil {
		return nil, err
	}
	return img, nil
}

// RasterSVGToImage reads the given SVG file and
// renders it into an image.
func RasterSVGToImage(ctx context.Context, svg io.Reader, opts Options) (*image.RGBA, error) {
	doc, err := svgdom.Parse(svg)
	if err != nil {
		return nil, err
	}
	return Render(ctx, doc, opts)
}
