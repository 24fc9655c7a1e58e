package svgdraw

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errNotDataURL = errors.New("not a data URL")

// decodeDataURL returns the content of a data: URL
func decodeDataURL(href string) ([]byte, error) {
	if !strings.HasPrefix(href, "data:") {
		return nil, errNotDataURL
	}
	header, payload, ok := strings.Cut(href[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URL: missing comma")
	}
	if strings.HasSuffix(header, ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		return base64.StdEncoding.DecodeString(payload)
	}
	s, err := url.PathUnescape(payload)
	return []byte(s), err
}

// imageNode is an <image> element. Only embedded (data:) images
// are decoded; other sources are delegated to the backend.
type imageNode struct{ nodeBase }

// source returns the image and its intrinsic size
func (n *imageNode) source() (ImageSource, error) {
	href := strings.TrimSpace(svgdom.Href(n.elem))
	data, err := decodeDataURL(href)
	if err == errNotDataURL {
		return ImageSource{URL: href}, nil
	}
	if err != nil {
		return ImageSource{}, err
	}
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageSource{}, err
	}
	return ImageSource{Data: data, Format: format, Width: config.Width, Height: config.Height}, nil
}

func (n *imageNode) viewport(ctx *Context, src ImageSource) (x, y, w, h float64) {
	x = ctx.length(n.elem, "x", svgdom.WidthPercentage, 0)
	y = ctx.length(n.elem, "y", svgdom.HeightPercentage, 0)
	w = ctx.length(n.elem, "width", svgdom.WidthPercentage, -1)
	h = ctx.length(n.elem, "height", svgdom.HeightPercentage, -1)
	iw, ih := float64(src.Width), float64(src.Height)
	switch {
	case w < 0 && h < 0:
		w, h = iw, ih
	case w < 0 && ih > 0:
		w = h * iw / ih
	case h < 0 && iw > 0:
		h = w * ih / iw
	}
	return x, y, w, h
}

func (n *imageNode) boundingBoxCore(ctx *Context) svgpath.Rect {
	src, err := n.source()
	if err != nil {
		return svgpath.Rect{}
	}
	x, y, w, h := n.viewport(ctx, src)
	if !isValidSize(w) || !isValidSize(h) {
		return svgpath.Rect{}
	}
	return svgpath.Rect{X: x, Y: y, W: w, H: h}
}

func (n *imageNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *imageNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *imageNode) renderCore(ctx *Context) error {
	if ctx.InClipPath {
		return nil
	}
	src, err := n.source()
	if err != nil {
		ctx.warn("invalid image", "err", err)
		return nil
	}
	x, y, w, h := n.viewport(ctx, src)
	if src.Data == nil {
		// the intrinsic size is unknown: the image fills its viewport
		if !isValidSize(w) || !isValidSize(h) {
			return nil
		}
		if err := ctx.Backend.Image(src, x, y, w, h); err != nil {
			ctx.warn("skipping image", "url", src.URL, "err", err)
		}
		return nil
	}
	if !isValidSize(w) || !isValidSize(h) || src.Width == 0 || src.Height == 0 {
		return nil
	}

	aspect := svgdom.ParseAspectRatio(svgdom.AttrValue(n.elem, "preserveaspectratio"))
	intrinsic := svgpath.Rect{W: float64(src.Width), H: float64(src.Height)}
	m := aspect.ViewBoxTransform(intrinsic, x, y, w, h)

	b := ctx.Backend
	b.Save()
	defer b.Restore()
	if aspect.Slice {
		b.RoundedRect(x, y, w, h, 0, 0)
		b.Clip(false)
	}
	b.Transform(m)
	if err := b.Image(src, 0, 0, intrinsic.W, intrinsic.H); err != nil {
		ctx.warn("skipping image", "err", err)
	}
	return nil
}
