package alt

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/png"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"golang.org/x/image/draw"
)

// imageObject returns the image XObject for `src`.
// JPEG, GIF and TIFF images are parsed directly; other formats
// are converted to 8 bits, non interlaced PNG images.
func imageObject(src svgdraw.ImageSource) (*model.XObjectImage, error) {
	var mimeType string
	switch src.Format {
	case "jpeg", "jpg":
		mimeType = "image/jpeg"
	case "gif", "tiff":
		mimeType = "image/" + src.Format
	}
	if mimeType != "" {
		img, _, err := contentstream.ParseImage(bytes.NewReader(src.Data), mimeType)
		if err != nil {
			return nil, fmt.Errorf("invalid %s image: %w", src.Format, err)
		}
		return img, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("invalid %s image: %w", src.Format, err)
	}
	nrgba := image.NewNRGBA(decoded.Bounds())
	draw.Draw(nrgba, nrgba.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, err
	}
	img, _, err := contentstream.ParseImage(&buf, "image/png")
	return img, err
}

func (b *Backend) registerImage(src svgdraw.ImageSource) (*model.XObjectImage, error) {
	h := fnv.New64a()
	h.Write(src.Data)
	sum := h.Sum64()
	if img, ok := b.images[sum]; ok {
		return img, nil
	}
	img, err := imageObject(src)
	if err != nil {
		return nil, err
	}
	b.images[sum] = img
	return img, nil
}

func (b *Backend) Image(src svgdraw.ImageSource, x, y, width, height float64) error {
	if len(src.Data) == 0 {
		return svgdraw.ErrUnsupportedImage
	}
	img, err := b.registerImage(src)
	if err != nil {
		return err
	}
	gs := b.alphaState(b.state.fillAlpha, -1)
	if gs != "" {
		b.ops(contentstream.OpSave{}, contentstream.OpSetExtGState{Dict: gs})
	}
	// images are drawn in the unit square, with a y axis pointing up
	b.out.ap.AddXObjectDims(img, x, y+height, width, -height)
	if gs != "" {
		b.ops(contentstream.OpRestore{})
	}
	return nil
}
