package svgdraw

import (
	"math"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"golang.org/x/net/html"
)

// attributes of gradients and patterns, inherited through href
var (
	gradientAttrs = map[string]bool{
		"x1": true, "y1": true, "x2": true, "y2": true,
		"cx": true, "cy": true, "r": true, "fx": true, "fy": true, "fr": true,
		"gradientunits": true, "gradienttransform": true, "spreadmethod": true,
	}
	patternAttrs = map[string]bool{
		"x": true, "y": true, "width": true, "height": true,
		"patternunits": true, "patterncontentunits": true, "patterntransform": true,
		"viewbox": true, "preserveaspectratio": true,
	}
)

// collectAttrs adds the attributes of `elem` missing from `attrs`
func collectAttrs(attrs map[string]string, elem *html.Node, names map[string]bool) {
	for _, a := range elem.Attr {
		if _, has := attrs[a.Key]; names[a.Key] && !has {
			attrs[a.Key] = a.Val
		}
	}
}

// unitsMatrix maps the unit square to `bbox`
func unitsMatrix(bbox svgpath.Rect) svgpath.Matrix2D {
	return svgpath.Matrix2D{A: bbox.W, D: bbox.H, E: bbox.X, F: bbox.Y}
}

// gradientNode is a linearGradient or a radialGradient element.
type gradientNode struct {
	nodeBase
	radial bool

	// resolved stops and attributes, by rendering key
	resolved map[string]gradientData
}

type gradientData struct {
	attrs map[string]string
	stops []svgpath.GradStop
}

func (gradientNode) nonRendered() {}

func (n *gradientNode) boundingBoxCore(*Context) svgpath.Rect { return svgpath.Rect{} }

func (n *gradientNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *gradientNode) isVisible(bool, *Context) bool { return false }

func (n *gradientNode) renderCore(*Context) error { return nil }

// stops resolves the gradient for the current color, and returns its stops.
func (n *gradientNode) stops(ctx *Context, id string) ([]svgpath.GradStop, string, error) {
	current := ctx.Attributes.Color
	_, key, err := ctx.Refs.GetRendered(id, &current, func(_ Node, key string) error {
		n.resolved[key] = n.resolve(ctx)
		return nil
	})
	if err != nil {
		return nil, key, err
	}
	return n.resolved[key].stops, key, nil
}

// resolve follows the href chain
func (n *gradientNode) resolve(ctx *Context) gradientData {
	data := gradientData{attrs: make(map[string]string)}
	visited := map[*gradientNode]bool{}
	haveStops := false
	for g := n; g != nil && !visited[g]; {
		visited[g] = true
		collectAttrs(data.attrs, g.elem, gradientAttrs)
		if !haveStops {
			data.stops, haveStops = g.parseStops(ctx)
		}
		id, _ := svgdom.ParseHref(svgdom.Href(g.elem))
		g, _ = ctx.Refs.Get(id).(*gradientNode)
	}
	return data
}

// parseStops returns false if the element has no <stop> child
func (n *gradientNode) parseStops(ctx *Context) ([]svgpath.GradStop, bool) {
	var (
		stops []svgpath.GradStop
		found bool
	)
	for _, child := range svgdom.Children(n.elem) {
		if child.Data != "stop" {
			continue
		}
		found = true
		offset, err := svgdom.ParseFraction(svgdom.AttrValue(child, "offset"))
		if err != nil {
			offset = 0
		}
		current := ctx.Attributes.Color
		if v, ok := ctx.prop(child, "color"); ok {
			if c, err := svgdom.ParseColor(v, current); err == nil {
				current = c
			}
		}
		c := black
		if v, ok := ctx.prop(child, "stop-color"); ok {
			if parsed, err := svgdom.ParseColor(v, current); err == nil {
				c = parsed
			}
		}
		if v, ok := ctx.prop(child, "stop-opacity"); ok {
			if op, ok := parseOpacity(v); ok {
				c.A = uint8(math.Round(float64(c.A) * op))
			}
		}
		stops = append(stops, svgpath.GradStop{Offset: offset, Color: c})
	}
	return svgpath.NormalizeStops(stops), found
}

// gradient returns the gradient, mapped to the user space of an element
// with bounding box `bbox`. It returns false for degenerate boxes.
func (n *gradientNode) gradient(ctx *Context, key string, bbox svgpath.Rect) (svgpath.Gradient, bool) {
	data := n.resolved[key]
	userSpace := data.attrs["gradientunits"] == "userSpaceOnUse"
	coord := func(name, def string, ref svgdom.PercentageReference) float64 {
		v, ok := data.attrs[name]
		if !ok {
			v = def
		}
		var (
			f   float64
			err error
		)
		if userSpace {
			f, err = svgdom.ParseLength(v, ctx.Viewport.Ref(ref), ctx.Attributes.FontSize)
		} else {
			f, err = svgdom.ParseFraction(v)
		}
		if err != nil && v != def {
			return coordDefault(def, userSpace, ctx.Viewport.Ref(ref))
		}
		return f
	}

	m := svgpath.Identity
	if !userSpace {
		if bbox.W <= 0 || bbox.H <= 0 {
			return svgpath.Gradient{}, false
		}
		m = unitsMatrix(bbox)
	}
	if v, ok := data.attrs["gradienttransform"]; ok {
		if t, err := svgdom.ParseTransform(v); err == nil {
			m = m.Mult(t)
		}
	}
	out := svgpath.Gradient{Stops: data.stops, Matrix: m}
	switch data.attrs["spreadmethod"] {
	case "reflect":
		out.Spread = svgpath.ReflectSpread
	case "repeat":
		out.Spread = svgpath.RepeatSpread
	}
	if n.radial {
		cx := coord("cx", "50%", svgdom.WidthPercentage)
		cy := coord("cy", "50%", svgdom.HeightPercentage)
		fx, fy := cx, cy
		if _, ok := data.attrs["fx"]; ok {
			fx = coord("fx", "50%", svgdom.WidthPercentage)
		}
		if _, ok := data.attrs["fy"]; ok {
			fy = coord("fy", "50%", svgdom.HeightPercentage)
		}
		out.Direction = svgpath.Radial{
			cx, cy, fx, fy,
			coord("r", "50%", svgdom.DiagPercentage),
			coord("fr", "0%", svgdom.DiagPercentage),
		}
	} else {
		out.Direction = svgpath.Linear{
			coord("x1", "0%", svgdom.WidthPercentage),
			coord("y1", "0%", svgdom.HeightPercentage),
			coord("x2", "100%", svgdom.WidthPercentage),
			coord("y2", "0%", svgdom.HeightPercentage),
		}
	}
	return out, true
}

func coordDefault(def string, userSpace bool, ref float64) float64 {
	if userSpace {
		f, _ := svgdom.ParseLength(def, ref, 0)
		return f
	}
	f, _ := svgdom.ParseFraction(def)
	return f
}

// patternNode is a pattern element.
type patternNode struct{ nodeBase }

func (patternNode) nonRendered() {}

func (n *patternNode) boundingBoxCore(*Context) svgpath.Rect { return svgpath.Rect{} }

func (n *patternNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *patternNode) isVisible(bool, *Context) bool { return false }

func (n *patternNode) renderCore(*Context) error { return nil }

// resolve follows the href chain, returning the attributes
// and the pattern providing the content
func (n *patternNode) resolve(ctx *Context) (map[string]string, *patternNode) {
	attrs := make(map[string]string)
	var content *patternNode
	visited := map[*patternNode]bool{}
	for p := n; p != nil && !visited[p]; {
		visited[p] = true
		collectAttrs(attrs, p.elem, patternAttrs)
		if content == nil && len(p.children) != 0 {
			content = p
		}
		id, _ := svgdom.ParseHref(svgdom.Href(p.elem))
		p, _ = ctx.Refs.Get(id).(*patternNode)
	}
	if content == nil {
		content = n
	}
	return attrs, content
}

// tiling returns the tiling pattern for an element with bounding box `bbox`,
// registering the tile on first use. It returns false if nothing should be painted.
func (n *patternNode) tiling(ctx *Context, id string, bbox svgpath.Rect) (TilingPattern, bool, error) {
	attrs, content := n.resolve(ctx)
	userSpace := attrs["patternunits"] == "userSpaceOnUse"
	contentBox := attrs["patterncontentunits"] == "objectBoundingBox"
	if (!userSpace || contentBox) && (bbox.W <= 0 || bbox.H <= 0) {
		return TilingPattern{}, false, nil
	}

	var x, y, w, h float64
	if userSpace {
		length := func(name string, ref svgdom.PercentageReference) float64 {
			l, _ := svgdom.ParseLength(attrs[name], ctx.Viewport.Ref(ref), ctx.Attributes.FontSize)
			return l
		}
		x, y = length("x", svgdom.WidthPercentage), length("y", svgdom.HeightPercentage)
		w, h = length("width", svgdom.WidthPercentage), length("height", svgdom.HeightPercentage)
	} else {
		fraction := func(name string) float64 {
			f, _ := svgdom.ParseFraction(attrs[name])
			return f
		}
		x, y = bbox.X+fraction("x")*bbox.W, bbox.Y+fraction("y")*bbox.H
		w, h = fraction("width")*bbox.W, fraction("height")*bbox.H
	}
	if !isValidSize(w) || !isValidSize(h) {
		return TilingPattern{}, false, nil
	}

	contentMatrix := svgpath.Identity
	var (
		vb    svgpath.Rect
		hasVB bool
	)
	if v, ok := attrs["viewbox"]; ok {
		if parsed, err := svgdom.ParseViewBox(v); err == nil && parsed.W > 0 && parsed.H > 0 {
			vb, hasVB = parsed, true
			aspect := svgdom.ParseAspectRatio(attrs["preserveaspectratio"])
			contentMatrix = aspect.ViewBoxTransform(vb, 0, 0, w, h)
		}
	}
	if !hasVB && contentBox {
		contentMatrix = svgpath.Matrix2D{A: bbox.W, D: bbox.H}
	}

	patternTransform := svgpath.Identity
	if v, ok := attrs["patterntransform"]; ok {
		if t, err := svgdom.ParseTransform(v); err == nil {
			patternTransform = t
		}
	}

	_, key, err := ctx.Refs.GetRendered(id, nil, func(_ Node, key string) error {
		formCtx, err := ctx.formContext(id, false)
		if err != nil {
			return err
		}
		if hasVB {
			formCtx.Viewport = svgdom.Viewport{W: vb.W, H: vb.H}
		}
		pctx := attributesContext(n, formCtx)
		bbox := formBox(childrenBoundingBox(content, pctx), svgpath.Rect{W: w, H: h})
		return ctx.Backend.DefineForm(key, bbox, func() error {
			formCtx.applyDefaults()
			pctx.applyAttributes(&formCtx.Attributes, n)
			return renderChildren(content, pctx)
		})
	})
	if err != nil {
		return TilingPattern{}, false, err
	}

	return TilingPattern{
		Form:    key,
		Matrix:  ctx.Backend.CTM().Mult(patternTransform).Translate(x, y),
		Width:   w,
		Height:  h,
		Content: contentMatrix,
	}, true, nil
}

// clipPathNode is a clipPath element
type clipPathNode struct{ nodeBase }

func (clipPathNode) nonRendered() {}

func (n *clipPathNode) boundingBoxCore(*Context) svgpath.Rect { return svgpath.Rect{} }

func (n *clipPathNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *clipPathNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *clipPathNode) renderCore(*Context) error { return nil }

// apply intersects the clipping area with the content of the clip path.
// `ctx` is the context of the clipped element `target`, whose transform is `nt`.
func (n *clipPathNode) apply(target Node, ctx *Context, nt svgpath.Matrix2D) error {
	cctx := attributesContext(n, ctx)
	units := svgpath.Identity
	if svgdom.AttrValue(n.elem, "clippathunits") == "objectBoundingBox" {
		units = unitsMatrix(objectBoundingBox(target, ctx))
	}
	cctx.InClipPath = true
	cctx.clipTransform = nt.Mult(units).Mult(computeNodeTransform(n, cctx))
	evenOdd := cctx.Attributes.ClipEvenOdd
	cctx.clipRule = &evenOdd
	for _, child := range n.children {
		if err := render(child, cctx); err != nil {
			return err
		}
	}
	ctx.Backend.Clip(evenOdd)
	return nil
}
