package svgdraw

import (
	"errors"
	"math"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

// shape is implemented by the basic geometric elements
type shape interface {
	Node
	// path returns the outline of the shape, or nil
	// if the shape is invalid or empty.
	path(ctx *Context) svgpath.Path
}

// emitPath sends the segments of `p` to the backend
func emitPath(b Backend, p svgpath.Path) {
	for _, op := range p {
		switch op := op.(type) {
		case svgpath.MoveTo:
			b.MoveTo(op.X, op.Y)
		case svgpath.LineTo:
			b.LineTo(op.X, op.Y)
		case svgpath.CubicTo:
			b.CurveTo(op[0].X, op[0].Y, op[1].X, op[1].Y, op[2].X, op[2].Y)
		case svgpath.Close:
			b.ClosePath()
		}
	}
}

func isValidSize(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }

func shapeBoundingBox(s shape, ctx *Context) svgpath.Rect {
	return addLineWidth(s.path(ctx).BoundingBox(), &ctx.Attributes)
}

// preparePaint selects the gradients and patterns, returning
// the operation restricted to the paints actually available.
func (ctx *Context) preparePaint(n Node, op PaintOp) PaintOp {
	st := &ctx.Attributes
	fill := op == PaintFill || op == PaintFillStroke
	stroke := op == PaintStroke || op == PaintFillStroke
	var box svgpath.Rect
	if _, isColor := st.Fill.(ColorFill); fill && st.Fill != nil && !isColor {
		box = objectBoundingBox(n, ctx)
		fill = st.Fill.apply(ctx, box, false)
	}
	if _, isColor := st.Stroke.(ColorFill); stroke && st.Stroke != nil && !isColor {
		if box.IsZero() {
			box = objectBoundingBox(n, ctx)
		}
		stroke = st.Stroke.apply(ctx, box, true)
	}
	switch {
	case fill && stroke:
		return PaintFillStroke
	case fill:
		return PaintFill
	case stroke:
		return PaintStroke
	default:
		return PaintDiscard
	}
}

// drawShape emits the geometry of a shape, and paints it.
// `emit` may be provided to use a specialized backend primitive.
func drawShape(s shape, ctx *Context, emit func()) {
	if ctx.InClipPath {
		if ctx.clipRule != nil {
			*ctx.clipRule = ctx.Attributes.ClipEvenOdd
		}
		emitPath(ctx.Backend, s.path(ctx).Transform(ctx.clipTransform))
		return
	}
	op := ctx.paintOp()
	if op == PaintDiscard {
		return
	}
	p := s.path(ctx)
	if len(p) == 0 {
		return
	}
	op = ctx.preparePaint(s, op)
	if emit != nil {
		emit()
	} else {
		emitPath(ctx.Backend, p)
	}
	ctx.Backend.Paint(op, ctx.Attributes.FillEvenOdd)
}

type rectNode struct{ nodeBase }

func (n *rectNode) geometry(ctx *Context) (x, y, w, h, rx, ry float64) {
	x = ctx.length(n.elem, "x", svgdom.WidthPercentage, 0)
	y = ctx.length(n.elem, "y", svgdom.HeightPercentage, 0)
	w = ctx.length(n.elem, "width", svgdom.WidthPercentage, 0)
	h = ctx.length(n.elem, "height", svgdom.HeightPercentage, 0)
	rx = ctx.length(n.elem, "rx", svgdom.WidthPercentage, -1)
	ry = ctx.length(n.elem, "ry", svgdom.HeightPercentage, -1)
	if rx < 0 {
		rx = ry
	}
	if ry < 0 {
		ry = rx
	}
	rx, ry = math.Min(math.Max(rx, 0), w/2), math.Min(math.Max(ry, 0), h/2)
	return
}

func (n *rectNode) path(ctx *Context) svgpath.Path {
	x, y, w, h, rx, ry := n.geometry(ctx)
	if !isValidSize(w) || !isValidSize(h) {
		return nil
	}
	return svgpath.RoundedRect(x, y, w, h, rx, ry)
}

func (n *rectNode) boundingBoxCore(ctx *Context) svgpath.Rect { return shapeBoundingBox(n, ctx) }

func (n *rectNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *rectNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *rectNode) renderCore(ctx *Context) error {
	drawShape(n, ctx, func() {
		x, y, w, h, rx, ry := n.geometry(ctx)
		ctx.Backend.RoundedRect(x, y, w, h, rx, ry)
	})
	return nil
}

// ellipseNode is used for circle and ellipse elements
type ellipseNode struct {
	nodeBase
	circle bool
}

func (n *ellipseNode) radii(ctx *Context) (rx, ry float64) {
	if n.circle {
		r := ctx.length(n.elem, "r", svgdom.DiagPercentage, 0)
		return r, r
	}
	rx = ctx.length(n.elem, "rx", svgdom.WidthPercentage, -1)
	ry = ctx.length(n.elem, "ry", svgdom.HeightPercentage, -1)
	// auto
	if rx < 0 {
		rx = ry
	}
	if ry < 0 {
		ry = rx
	}
	return rx, ry
}

func (n *ellipseNode) path(ctx *Context) svgpath.Path {
	rx, ry := n.radii(ctx)
	if !isValidSize(rx) || !isValidSize(ry) {
		return nil
	}
	cx := ctx.length(n.elem, "cx", svgdom.WidthPercentage, 0)
	cy := ctx.length(n.elem, "cy", svgdom.HeightPercentage, 0)
	return svgpath.Ellipse(cx, cy, rx, ry)
}

func (n *ellipseNode) boundingBoxCore(ctx *Context) svgpath.Rect { return shapeBoundingBox(n, ctx) }

func (n *ellipseNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *ellipseNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *ellipseNode) renderCore(ctx *Context) error {
	drawShape(n, ctx, nil)
	return nil
}

type lineNode struct{ nodeBase }

func (n *lineNode) points(ctx *Context) (x1, y1, x2, y2 float64) {
	x1 = ctx.length(n.elem, "x1", svgdom.WidthPercentage, 0)
	y1 = ctx.length(n.elem, "y1", svgdom.HeightPercentage, 0)
	x2 = ctx.length(n.elem, "x2", svgdom.WidthPercentage, 0)
	y2 = ctx.length(n.elem, "y2", svgdom.HeightPercentage, 0)
	return
}

func (n *lineNode) path(ctx *Context) svgpath.Path {
	x1, y1, x2, y2 := n.points(ctx)
	return svgpath.Polyline([]float64{x1, y1, x2, y2}, false)
}

func (n *lineNode) boundingBoxCore(ctx *Context) svgpath.Rect { return shapeBoundingBox(n, ctx) }

func (n *lineNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *lineNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *lineNode) renderCore(ctx *Context) error {
	if ctx.InClipPath {
		drawShape(n, ctx, nil)
		return nil
	}
	st := &ctx.Attributes
	if (st.Stroke != nil || ctx.withinUse) && st.StrokeWidth != 0 {
		op := PaintStroke
		if st.Stroke != nil {
			op = ctx.preparePaint(n, PaintStroke)
		}
		if op != PaintDiscard {
			x1, y1, x2, y2 := n.points(ctx)
			ctx.Backend.Line(x1, y1, x2, y2)
			ctx.Backend.Paint(op, false)
		}
	}
	return drawMarkers(n, ctx, n.path(ctx))
}

// polyNode is used for polygon and polyline elements
type polyNode struct {
	nodeBase
	closed bool
}

func (n *polyNode) path(ctx *Context) svgpath.Path {
	v, ok := ctx.prop(n.elem, "points")
	if !ok {
		return nil
	}
	coords, err := svgpath.ParseNumbers(v)
	if err != nil {
		ctx.logger().Debug("invalid points", "value", v, "err", err)
		return nil
	}
	return svgpath.Polyline(coords, n.closed)
}

func (n *polyNode) boundingBoxCore(ctx *Context) svgpath.Rect { return shapeBoundingBox(n, ctx) }

func (n *polyNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *polyNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *polyNode) renderCore(ctx *Context) error {
	drawShape(n, ctx, nil)
	if ctx.InClipPath {
		return nil
	}
	return drawMarkers(n, ctx, n.path(ctx))
}

type pathNode struct {
	nodeBase

	parsed bool
	cache  svgpath.Path
	err    error
}

func (n *pathNode) parse(ctx *Context) (svgpath.Path, error) {
	if n.parsed {
		return n.cache, n.err
	}
	n.parsed = true
	d, ok := ctx.prop(n.elem, "d")
	if !ok {
		return nil, nil
	}
	n.cache, n.err = svgpath.ParsePathData(d, ctx.Options.ArcExpander)
	if n.err != nil && !errors.Is(n.err, svgpath.ErrArcUnsupported) {
		ctx.logger().Debug("invalid path data", "err", n.err)
		n.cache, n.err = nil, nil
	}
	return n.cache, n.err
}

func (n *pathNode) path(ctx *Context) svgpath.Path {
	p, _ := n.parse(ctx)
	return p
}

func (n *pathNode) boundingBoxCore(ctx *Context) svgpath.Rect { return shapeBoundingBox(n, ctx) }

func (n *pathNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *pathNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeIsVisible(n, parentVisible, ctx)
}

func (n *pathNode) renderCore(ctx *Context) error {
	p, err := n.parse(ctx)
	if err != nil {
		return err
	}
	drawShape(n, ctx, nil)
	if ctx.InClipPath {
		return nil
	}
	return drawMarkers(n, ctx, p)
}
