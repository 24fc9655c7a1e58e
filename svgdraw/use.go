package svgdraw

import (
	"image/color"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

// useNode instances another element, through a form.
type useNode struct{ nodeBase }

func (n *useNode) target(ctx *Context) (string, Node) {
	id, ok := svgdom.ParseHref(svgdom.Href(n.elem))
	if !ok {
		return "", nil
	}
	return id, ctx.Refs.Get(id)
}

func (n *useNode) nodeTransformCore(ctx *Context) svgpath.Matrix2D {
	x := ctx.length(n.elem, "x", svgdom.WidthPercentage, 0)
	y := ctx.length(n.elem, "y", svgdom.HeightPercentage, 0)
	return svgpath.Identity.Translate(x, y)
}

// symbolTransform returns the viewport transform of a symbol target
func (n *useNode) symbolTransform(ctx *Context, target Node) svgpath.Matrix2D {
	symbol, ok := target.(*symbolNode)
	if !ok {
		return svgpath.Identity
	}
	vb, ok := symbol.viewBox(ctx)
	if !ok {
		return svgpath.Identity
	}
	w := ctx.length(n.elem, "width", svgdom.WidthPercentage, -1)
	h := ctx.length(n.elem, "height", svgdom.HeightPercentage, -1)
	if w < 0 {
		w = ctx.length(symbol.elem, "width", svgdom.WidthPercentage, ctx.Viewport.W)
	}
	if h < 0 {
		h = ctx.length(symbol.elem, "height", svgdom.HeightPercentage, ctx.Viewport.H)
	}
	aspect := svgdom.ParseAspectRatio(svgdom.AttrValue(symbol.elem, "preserveaspectratio"))
	return aspect.ViewBoxTransform(vb, 0, 0, w, h)
}

func (n *useNode) boundingBoxCore(ctx *Context) svgpath.Rect {
	id, target := n.target(ctx)
	if target == nil {
		return svgpath.Rect{}
	}
	refCtx, err := ctx.withReference(id)
	if err != nil {
		return svgpath.Rect{}
	}
	refCtx.instancing = target
	return getBoundingBox(target, refCtx).Transform(n.symbolTransform(ctx, target))
}

func (n *useNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *useNode) renderCore(ctx *Context) error {
	id, target := n.target(ctx)
	if target == nil {
		ctx.warn("unresolved use reference", "href", svgdom.Href(n.elem))
		return nil
	}
	vbT := n.symbolTransform(ctx, target)

	if ctx.InClipPath {
		refCtx, err := ctx.withReference(id)
		if err != nil {
			return ctx.referenceFailed(id, err)
		}
		refCtx.clipTransform = refCtx.clipTransform.Mult(vbT)
		refCtx.instancing = target
		return render(target, refCtx)
	}

	var paint *color.NRGBA
	if c, ok := ctx.Attributes.Fill.(ColorFill); ok {
		paint = &c.Color
	}
	_, key, err := ctx.Refs.GetRendered(id, paint, func(node Node, key string) error {
		formCtx, err := ctx.formContext(id, true)
		if err != nil {
			return err
		}
		formCtx.instancing = node
		fallback := svgpath.Rect{W: ctx.Viewport.W, H: ctx.Viewport.H}
		bbox := formBox(getBoundingBox(node, formCtx), fallback)
		return ctx.Backend.DefineForm(key, bbox, func() error { return render(node, formCtx) })
	})
	if err != nil {
		return ctx.referenceFailed(id, err)
	}
	if !vbT.IsIdentity() {
		ctx.Backend.Transform(vbT)
	}
	return ctx.Backend.PlaceForm(key)
}
