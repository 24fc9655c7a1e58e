package svgdraw

import (
	"fmt"
	"math"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"golang.org/x/net/html"
)

// Node is an element of the rendering tree. There is
// one implementation per category of SVG element.
type Node interface {
	base() *nodeBase

	// boundingBoxCore returns the extent of the node in its
	// own coordinates (before the node transform is applied).
	boundingBoxCore(ctx *Context) svgpath.Rect
	// nodeTransformCore returns the transform implied by the node,
	// applied before the `transform` attribute.
	nodeTransformCore(ctx *Context) svgpath.Matrix2D
	// renderCore draws the node, assuming the context has
	// been set up by render.
	renderCore(ctx *Context) error
	isVisible(parentVisible bool, ctx *Context) bool
}

// nodeBase is embedded in every node
type nodeBase struct {
	elem     *html.Node
	children []Node
	parent   Node // nil for the root
}

func (nb *nodeBase) base() *nodeBase { return nb }

// Element returns the source element of the node.
func Element(n Node) *html.Node { return n.base().elem }

// nonRendered is implemented by the nodes only
// drawn when referenced (gradients, patterns, clip paths, markers, defs)
type nonRendered interface {
	nonRendered()
}

// computeNodeTransform returns the node transform, followed by
// the `transform` attribute.
func computeNodeTransform(n Node, ctx *Context) svgpath.Matrix2D {
	m := n.nodeTransformCore(ctx)
	if v, ok := ctx.prop(n.base().elem, "transform"); ok {
		t, err := svgdom.ParseTransform(v)
		if err != nil {
			ctx.logger().Debug("invalid transform", "value", v, "err", err)
		} else {
			m = t.Mult(m)
		}
	}
	return m
}

// attributesContext returns the context of `n`, without
// emitting any backend call.
func attributesContext(n Node, parent *Context) *Context {
	ctx := parent.clone()
	ctx.parseAttributes(n.base().elem)
	return ctx
}

// getBoundingBox returns the bounding box of `n` in the
// coordinates of its parent, or the zero box if `n` is not displayed.
func getBoundingBox(n Node, parent *Context) svgpath.Rect {
	if isDisplayNone(n, parent) {
		return svgpath.Rect{}
	}
	ctx := attributesContext(n, parent)
	return n.boundingBoxCore(ctx).Transform(computeNodeTransform(n, ctx))
}

// objectBoundingBox returns the geometry of `n`, ignoring
// the stroke, as used for the objectBoundingBox units.
func objectBoundingBox(n Node, ctx *Context) svgpath.Rect {
	if s, ok := n.(shape); ok {
		return s.path(ctx).BoundingBox()
	}
	if t, ok := n.(*textNode); ok {
		return t.boundingBoxCore(ctx)
	}
	return n.boundingBoxCore(ctx)
}

// childrenBoundingBox merges the boxes of the children
func childrenBoundingBox(n Node, ctx *Context) svgpath.Rect {
	var out svgpath.Rect
	for _, child := range n.base().children {
		out = out.Union(getBoundingBox(child, ctx))
	}
	return out
}

// addLineWidth pads `box` to include the stroke
func addLineWidth(box svgpath.Rect, st *AttributeState) svgpath.Rect {
	if box.IsZero() || st.Stroke == nil || st.StrokeWidth == 0 {
		return box
	}
	w := st.StrokeWidth
	if st.MiterLimit != 0 {
		w *= 0.5 / math.Sin(math.Pi/12)
	}
	return box.Inflate(w / 2)
}

func isDisplayNone(n Node, ctx *Context) bool {
	v, ok := ctx.prop(n.base().elem, "display")
	return ok && v == "none"
}

// svgNodeIsVisible handles the display and visibility properties
func svgNodeIsVisible(n Node, parentVisible bool, ctx *Context) bool {
	if isDisplayNone(n, ctx) {
		return false
	}
	visible := parentVisible
	if v, ok := ctx.prop(n.base().elem, "visibility"); ok {
		visible = v == "visible"
	}
	return visible
}

// svgNodeAndChildrenVisible returns true if the node or
// one of its descendants is visible.
func svgNodeAndChildrenVisible(n Node, parentVisible bool, ctx *Context) bool {
	if isDisplayNone(n, ctx) {
		return false
	}
	visible := svgNodeIsVisible(n, parentVisible, ctx)
	for _, child := range n.base().children {
		if child.isVisible(visible, ctx) {
			return true
		}
	}
	return visible
}

// render draws `n` and its children, using and updating
// a copy of the parent context.
func render(n Node, parent *Context) error {
	if _, ok := n.(nonRendered); ok {
		return nil
	}
	if err := parent.goCtx.Err(); err != nil {
		return err
	}
	if !n.isVisible(parent.Attributes.Visibility == "visible", parent) {
		return nil
	}

	ctx := attributesContext(n, parent)
	nt := computeNodeTransform(n, ctx)
	elem := n.base().elem

	clipped := false
	if !parent.InClipPath {
		if v, ok := ctx.prop(elem, "clip-path"); ok && v != "none" {
			id, _, _ := svgdom.ParseURL(v)
			clip, ok := ctx.Refs.Get(id).(*clipPathNode)
			if !ok || !clip.isVisible(true, ctx) {
				// invalid references disable the rendering
				return nil
			}
			clipCtx, err := ctx.withReference(id)
			if err != nil {
				return ctx.referenceFailed(id, err)
			}
			ctx.Backend.Save()
			clipped = true
			if err := clip.apply(n, clipCtx, nt); err != nil {
				ctx.Backend.Restore()
				return fmt.Errorf("clip-path %q: %w", id, err)
			}
		}
	}

	_, isSymbol := n.(*symbolNode)
	saved := !parent.InClipPath && !isSymbol
	if saved {
		ctx.Backend.Save()
	}
	if parent.InClipPath {
		ctx.clipTransform = ctx.clipTransform.Mult(nt)
	} else {
		if !nt.IsIdentity() {
			ctx.Backend.Transform(nt)
		}
		ctx.Transform = ctx.Transform.Mult(nt)
		ctx.applyAttributes(&parent.Attributes, n)
	}

	err := n.renderCore(ctx)

	if saved {
		ctx.Backend.Restore()
	}
	if clipped {
		ctx.Backend.Restore()
	}
	return err
}

// renderChildren renders the children of `n`, in document order
func renderChildren(n Node, ctx *Context) error {
	for _, child := range n.base().children {
		if err := render(child, ctx); err != nil {
			return err
		}
	}
	return nil
}
