package svgpdf

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/png"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"
)

type imageInfo struct {
	name      string
	imageType string // as expected by gofpdf
	data      []byte
}

// prepareImage returns the image content in a format supported by gofpdf.
// PNG images are normalized to 8 bits, non interlaced images, and
// other formats are converted to PNG.
func prepareImage(src svgdraw.ImageSource) (imageType string, data []byte, err error) {
	switch src.Format {
	case "jpeg", "jpg":
		return "jpg", src.Data, nil
	case "gif":
		return "gif", src.Data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return "", nil, fmt.Errorf("invalid %s image: %w", src.Format, err)
	}
	nrgba := image.NewNRGBA(img.Bounds())
	draw.Draw(nrgba, nrgba.Bounds(), img, img.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return "", nil, err
	}
	return "png", buf.Bytes(), nil
}

func (b *Backend) registerImage(src svgdraw.ImageSource) (imageInfo, error) {
	h := fnv.New64a()
	h.Write(src.Data)
	sum := h.Sum64()
	if info, ok := b.images[sum]; ok {
		return info, nil
	}
	imageType, data, err := prepareImage(src)
	if err != nil {
		return imageInfo{}, err
	}
	info := imageInfo{name: fmt.Sprintf("svgimage%x", sum), imageType: imageType, data: data}
	b.images[sum] = info
	return info, nil
}

func (b *Backend) Image(src svgdraw.ImageSource, x, y, width, height float64) error {
	if len(src.Data) == 0 {
		return svgdraw.ErrUnsupportedImage
	}
	info, err := b.registerImage(src)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: info.imageType}
	// registering is a no-op if the image is already known by the
	// current document or template
	b.pdf.RegisterImageOptionsReader(info.name, opts, bytes.NewReader(info.data))
	if err := b.pdf.Error(); err != nil {
		return err
	}
	b.useAlpha(inheritFill)
	b.pdf.ImageOptions(info.name, x, y, width, height, false, opts, 0, "")
	return nil
}
