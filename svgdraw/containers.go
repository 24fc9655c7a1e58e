package svgdraw

import (
	"math"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

// default size of the outermost element, when not specified
const (
	defaultWidth  = 300
	defaultHeight = 150
)

// svgNode is an <svg> element, either the outermost one
// or a nested one.
type svgNode struct{ nodeBase }

func (n *svgNode) isRoot() bool { return n.parent == nil }

func (n *svgNode) viewBox(ctx *Context) (svgpath.Rect, bool) {
	v, ok := ctx.prop(n.elem, "viewbox")
	if !ok {
		return svgpath.Rect{}, false
	}
	vb, err := svgdom.ParseViewBox(v)
	if err != nil {
		ctx.logger().Debug("invalid viewBox", "value", v, "err", err)
		return svgpath.Rect{}, false
	}
	return vb, true
}

// size returns the dimensions of the viewport established by the element.
func (n *svgNode) size(ctx *Context) (w, h float64) {
	vb, hasVB := n.viewBox(ctx)
	w = ctx.length(n.elem, "width", svgdom.WidthPercentage, -1)
	h = ctx.length(n.elem, "height", svgdom.HeightPercentage, -1)
	if n.isRoot() {
		if ctx.Options.Width > 0 {
			w = ctx.Options.Width
		}
		if ctx.Options.Height > 0 {
			h = ctx.Options.Height
		}
	}
	hasW, hasH := w >= 0, h >= 0
	switch {
	case hasW && hasH:
	case hasW && hasVB && vb.W > 0:
		h = w * vb.H / vb.W
	case hasH && hasVB && vb.H > 0:
		w = h * vb.W / vb.H
	case hasVB && !hasW && !hasH:
		w, h = vb.W, vb.H
	default:
		if !hasW {
			w = defaultWidth
		}
		if !hasH {
			h = defaultHeight
		}
		if n.isRoot() {
			// capped to the page, preserving the aspect ratio
			pw, ph := ctx.Viewport.W, ctx.Viewport.H
			if pw > 0 && ph > 0 {
				if ratio := math.Min(pw/w, ph/h); ratio < 1 {
					w, h = w*ratio, h*ratio
				}
			}
		}
	}
	return w, h
}

func (n *svgNode) nodeTransformCore(ctx *Context) svgpath.Matrix2D {
	var x, y float64
	if !n.isRoot() {
		x = ctx.length(n.elem, "x", svgdom.WidthPercentage, 0)
		y = ctx.length(n.elem, "y", svgdom.HeightPercentage, 0)
	}
	vb, hasVB := n.viewBox(ctx)
	if !hasVB {
		return svgpath.Identity.Translate(x, y)
	}
	w, h := n.size(ctx)
	aspect := svgdom.ParseAspectRatio(svgdom.AttrValue(n.elem, "preserveaspectratio"))
	return aspect.ViewBoxTransform(vb, x, y, w, h)
}

// childViewport returns the viewport used to resolve the
// percentages of the children
func (n *svgNode) childViewport(ctx *Context) svgdom.Viewport {
	if vb, ok := n.viewBox(ctx); ok {
		return svgdom.Viewport{W: vb.W, H: vb.H}
	}
	w, h := n.size(ctx)
	return svgdom.Viewport{W: w, H: h}
}

func (n *svgNode) boundingBoxCore(ctx *Context) svgpath.Rect {
	ctx = ctx.clone()
	ctx.Viewport = n.childViewport(ctx)
	return childrenBoundingBox(n, ctx)
}

func (n *svgNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *svgNode) renderCore(ctx *Context) error {
	if !n.isRoot() && !ctx.InClipPath {
		if overflow, _ := ctx.prop(n.elem, "overflow"); overflow != "visible" && overflow != "auto" {
			n.clipViewport(ctx)
		}
	}
	ctx.Viewport = n.childViewport(ctx)
	return renderChildren(n, ctx)
}

// clipViewport restricts the drawing to the (x, y, width, height)
// viewport, expressed in the coordinates established by the viewBox.
func (n *svgNode) clipViewport(ctx *Context) {
	m := n.nodeTransformCore(ctx)
	if !m.IsInvertible() {
		return
	}
	x := ctx.length(n.elem, "x", svgdom.WidthPercentage, 0)
	y := ctx.length(n.elem, "y", svgdom.HeightPercentage, 0)
	w, h := n.size(ctx)
	vp := svgpath.Rect{X: x, Y: y, W: w, H: h}.Transform(m.Invert())
	ctx.Backend.RoundedRect(vp.X, vp.Y, vp.W, vp.H, 0, 0)
	ctx.Backend.Clip(false)
}

// groupNode is used for <g>, <a> and <switch> elements
type groupNode struct {
	nodeBase
	isSwitch bool
}

func (n *groupNode) boundingBoxCore(ctx *Context) svgpath.Rect { return childrenBoundingBox(n, ctx) }

func (n *groupNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *groupNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *groupNode) renderCore(ctx *Context) error {
	if !n.isSwitch {
		return renderChildren(n, ctx)
	}
	// only the first displayed child of a switch is rendered
	for _, child := range n.children {
		if _, ok := child.(nonRendered); ok || isDisplayNone(child, ctx) {
			continue
		}
		if _, ok := child.(*voidNode); ok {
			continue
		}
		return render(child, ctx)
	}
	return nil
}

// defsNode holds content only rendered by reference
type defsNode struct{ nodeBase }

func (defsNode) nonRendered() {}

func (n *defsNode) boundingBoxCore(*Context) svgpath.Rect { return svgpath.Rect{} }

func (n *defsNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *defsNode) isVisible(bool, *Context) bool { return false }

func (n *defsNode) renderCore(*Context) error { return nil }

// symbolNode is only rendered when instanced by a <use> element,
// which provides its viewport transform.
type symbolNode struct{ nodeBase }

func (n *symbolNode) viewBox(ctx *Context) (svgpath.Rect, bool) {
	v, ok := ctx.prop(n.elem, "viewbox")
	if !ok {
		return svgpath.Rect{}, false
	}
	vb, err := svgdom.ParseViewBox(v)
	return vb, err == nil
}

func (n *symbolNode) boundingBoxCore(ctx *Context) svgpath.Rect { return childrenBoundingBox(n, ctx) }

func (n *symbolNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *symbolNode) isVisible(parentVisible bool, ctx *Context) bool {
	if ctx.instancing != Node(n) {
		return false
	}
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *symbolNode) renderCore(ctx *Context) error {
	ctx.instancing = nil
	if vb, ok := n.viewBox(ctx); ok {
		ctx.Viewport = svgdom.Viewport{W: vb.W, H: vb.H}
	}
	return renderChildren(n, ctx)
}

// voidNode is used for unsupported elements, and for
// elements without rendering (title, desc, style, ...)
type voidNode struct{ nodeBase }

func (n *voidNode) boundingBoxCore(*Context) svgpath.Rect { return svgpath.Rect{} }

func (n *voidNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *voidNode) isVisible(bool, *Context) bool { return false }

func (n *voidNode) renderCore(*Context) error { return nil }
