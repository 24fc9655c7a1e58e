package svgraster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Image draws the image with a bilinear interpolation.
func (b *Backend) Image(src svgdraw.ImageSource, x, y, width, height float64) error {
	if len(src.Data) == 0 {
		return svgdraw.ErrUnsupportedImage
	}
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return fmt.Errorf("invalid %s image: %w", src.Format, err)
	}
	bounds := img.Bounds()
	if bounds.Empty() || width <= 0 || height <= 0 {
		return nil
	}
	alpha := b.state.fillAlpha * b.state.group
	if alpha <= 0 {
		return nil
	}

	m := b.device().Mult(svgpath.Identity.Translate(x, y).
		Scale(width/float64(bounds.Dx()), height/float64(bounds.Dy())).
		Translate(-float64(bounds.Min.X), -float64(bounds.Min.Y)))
	s2d := f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}

	var opts draw.Options
	if clip := b.state.clip; clip != nil {
		opts.DstMask = clip
	}
	if alpha < 1 {
		opts.SrcMask = image.NewUniform(color.Alpha{A: uint8(alpha * 0xff)})
	}
	draw.BiLinear.Transform(b.img, s2d, img, bounds, draw.Over, &opts)
	return nil
}
