package svgdraw

import (
	"image/color"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

// Fill is a resolved paint source, used for
// the fill and stroke properties.
type Fill interface {
	// apply selects the paint on the backend, for an element
	// whose bounding box is `bbox`. It returns false
	// if nothing should be painted.
	apply(ctx *Context, bbox svgpath.Rect, stroke bool) bool
}

// ColorFill is a plain color. The alpha channel
// is merged into the fill or stroke opacity.
type ColorFill struct {
	Color color.NRGBA
}

func (c ColorFill) opaque() color.NRGBA {
	out := c.Color
	out.A = 0xff
	return out
}

// the color is set when applying the attributes
func (ColorFill) apply(*Context, svgpath.Rect, bool) bool { return true }

// GradientFill is a linear or radial gradient with at least two stops.
type GradientFill struct {
	id   string
	key  string // identifies the resolved stops
	node *gradientNode
}

func (gf GradientFill) apply(ctx *Context, bbox svgpath.Rect, stroke bool) bool {
	grad, ok := gf.node.gradient(ctx, gf.key, bbox)
	if !ok {
		return false
	}
	grad.Matrix = ctx.Backend.CTM().Mult(grad.Matrix)
	key := ctx.Refs.uniqueKey(gf.key)
	ctx.Backend.AddShading(key, grad)
	if stroke {
		ctx.Backend.SetStrokePattern(key)
	} else {
		ctx.Backend.SetFillPattern(key)
	}
	return true
}

// PatternFill is a tiling pattern.
type PatternFill struct {
	id   string
	node *patternNode
}

func (pf PatternFill) apply(ctx *Context, bbox svgpath.Rect, stroke bool) bool {
	pattern, ok, err := pf.node.tiling(ctx, pf.id, bbox)
	if err != nil {
		ctx.warn("invalid pattern", "id", pf.id, "err", err)
		return false
	}
	if !ok {
		return false
	}
	key := ctx.Refs.uniqueKey(pattern.Form)
	ctx.Backend.AddTilingPattern(key, pattern)
	if stroke {
		ctx.Backend.SetStrokePattern(key)
	} else {
		ctx.Backend.SetFillPattern(key)
	}
	return true
}

var black = color.NRGBA{A: 0xff}

// parseFill resolves the value of a fill or stroke property.
// It returns nil for 'none', for invalid values and for gradients
// without stops.
func (ctx *Context) parseFill(v string) Fill {
	v = strings.TrimSpace(v)
	if id, fallback, ok := svgdom.ParseURL(v); ok {
		switch node := ctx.Refs.Get(id).(type) {
		case *gradientNode:
			stops, key, err := node.stops(ctx, id)
			if err != nil {
				ctx.warn("invalid gradient", "id", id, "err", err)
				return ColorFill{Color: black}
			}
			switch len(stops) {
			case 0:
				return nil
			case 1:
				return ColorFill{Color: stops[0].Color}
			default:
				return GradientFill{id: id, key: key, node: node}
			}
		case *patternNode:
			return PatternFill{id: id, node: node}
		}
		if fallback != "" {
			return ctx.parseFill(fallback)
		}
		ctx.warn("unresolved paint reference", "id", id)
		return ColorFill{Color: black}
	}
	if v == "none" {
		return nil
	}
	c, err := svgdom.ParseColor(v, ctx.Attributes.Color)
	if err != nil {
		return nil
	}
	return ColorFill{Color: c}
}

// solidColor returns a plain color approximating `f`, used
// where patterns are not supported.
func solidColor(f Fill) (color.NRGBA, bool) {
	switch f := f.(type) {
	case ColorFill:
		return f.Color, true
	case GradientFill:
		stops := f.node.resolved[f.key].stops
		return svgpath.ColorAt(stops, 0.5), true
	case PatternFill:
		return black, true
	default:
		return color.NRGBA{}, false
	}
}
