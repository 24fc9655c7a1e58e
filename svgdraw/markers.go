package svgdraw

import (
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

type markerNode struct{ nodeBase }

func (markerNode) nonRendered() {}

func (n *markerNode) boundingBoxCore(ctx *Context) svgpath.Rect { return svgpath.Rect{} }

func (n *markerNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *markerNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *markerNode) renderCore(ctx *Context) error { return nil }

// viewport returns the size of the marker viewport and
// the mapping from the marker content to the viewport
func (n *markerNode) viewport(ctx *Context) (w, h float64, vbT svgpath.Matrix2D, vb svgpath.Rect, hasVB bool) {
	w = ctx.length(n.elem, "markerwidth", svgdom.WidthPercentage, 3)
	h = ctx.length(n.elem, "markerheight", svgdom.HeightPercentage, 3)
	vbT = svgpath.Identity
	if v, ok := ctx.prop(n.elem, "viewbox"); ok {
		var err error
		if vb, err = svgdom.ParseViewBox(v); err == nil {
			hasVB = true
			aspect := svgdom.ParseAspectRatio(svgdom.AttrValue(n.elem, "preserveaspectratio"))
			vbT = aspect.ViewBoxTransform(vb, 0, 0, w, h)
		}
	}
	return
}

// orientation returns the rotation of the marker, in radians, given the
// angle of the path at the vertex.
func (n *markerNode) orientation(pathAngle float64, isStart bool) float64 {
	orient := strings.TrimSpace(svgdom.AttrValue(n.elem, "orient"))
	switch orient {
	case "auto":
		return pathAngle
	case "auto-start-reverse":
		if isStart {
			return pathAngle + math.Pi
		}
		return pathAngle
	}
	unit := 1.
	switch {
	case strings.HasSuffix(orient, "deg"):
		orient = strings.TrimSuffix(orient, "deg")
	case strings.HasSuffix(orient, "rad"):
		orient, unit = strings.TrimSuffix(orient, "rad"), 180/math.Pi
	case strings.HasSuffix(orient, "grad"):
		orient, unit = strings.TrimSuffix(orient, "grad"), 0.9
	case strings.HasSuffix(orient, "turn"):
		orient, unit = strings.TrimSuffix(orient, "turn"), 360
	}
	deg, err := strconv.ParseFloat(orient, 64)
	if err != nil {
		return 0
	}
	return deg * unit * math.Pi / 180
}

// renderContent draws the children of the marker, in its own space
func (n *markerNode) renderContent(ctx *Context) error {
	ctx.applyDefaults()
	mctx := attributesContext(n, ctx)
	mctx.applyAttributes(&ctx.Attributes, n)
	return renderChildren(n, mctx)
}

// place draws the marker at the vertex.
func (n *markerNode) place(ctx *Context, id string, v svgpath.Vertex, pathAngle float64, isStart bool) error {
	w, h, vbT, vb, hasVB := n.viewport(ctx)
	if !isValidSize(w) || !isValidSize(h) {
		return nil
	}
	scale := ctx.Attributes.StrokeWidth
	if svgdom.AttrValue(n.elem, "markerunits") == "userSpaceOnUse" {
		scale = 1
	}
	refX := ctx.length(n.elem, "refx", svgdom.WidthPercentage, 0)
	refY := ctx.length(n.elem, "refy", svgdom.HeightPercentage, 0)
	ref := vbT.Apply(svgpath.Point{X: refX, Y: refY})

	_, key, err := ctx.Refs.GetRendered(id, nil, func(_ Node, key string) error {
		formCtx, err := ctx.formContext(id, false)
		if err != nil {
			return err
		}
		formCtx.Viewport = svgdom.Viewport{W: w, H: h}
		fallback := svgpath.Rect{W: w, H: h}
		if hasVB {
			formCtx.Viewport = svgdom.Viewport{W: vb.W, H: vb.H}
			fallback = vb
		}
		mctx := attributesContext(n, formCtx)
		bbox := formBox(childrenBoundingBox(n, mctx), fallback)
		return ctx.Backend.DefineForm(key, bbox, func() error { return n.renderContent(formCtx) })
	})
	if err != nil {
		return ctx.referenceFailed(id, err)
	}

	placement := svgpath.Identity.Translate(v.X, v.Y).
		Rotate(n.orientation(pathAngle, isStart)).
		Scale(scale, scale)
	b := ctx.Backend
	b.Save()
	defer b.Restore()
	b.Transform(placement)
	if overflow, _ := ctx.prop(n.elem, "overflow"); overflow != "visible" && overflow != "auto" {
		b.RoundedRect(-ref.X, -ref.Y, w, h, 0, 0)
		b.Clip(false)
	}
	b.Transform(svgpath.Identity.Translate(-ref.X, -ref.Y).Mult(vbT))
	return b.PlaceForm(key)
}

// bisector returns the mean direction of two angles
func bisector(in, out float64) float64 {
	d := out - in
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return in + d/2
}

// drawMarkers places the start, mid and end markers
// on the vertices of `p`.
func drawMarkers(n Node, ctx *Context, p svgpath.Path) error {
	st := &ctx.Attributes
	if st.MarkerStart == "" && st.MarkerMid == "" && st.MarkerEnd == "" {
		return nil
	}
	vertices := p.Vertices()
	placeOne := func(id string, v svgpath.Vertex, angle float64, isStart bool) error {
		if id == "" {
			return nil
		}
		marker, ok := ctx.Refs.Get(id).(*markerNode)
		if !ok {
			return nil
		}
		return marker.place(ctx, id, v, angle, isStart)
	}
	for i, v := range vertices {
		var err error
		if i == 0 {
			err = placeOne(st.MarkerStart, v, v.Out, true)
		}
		if err == nil && i != 0 && i != len(vertices)-1 {
			err = placeOne(st.MarkerMid, v, bisector(v.In, v.Out), false)
		}
		if err == nil && i == len(vertices)-1 {
			err = placeOne(st.MarkerEnd, v, v.In, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// formBox enlarges the estimated extent of a form, to account for strokes
// and other approximations.
func formBox(box, fallback svgpath.Rect) svgpath.Rect {
	if box.IsZero() {
		box = fallback
	}
	return svgpath.Rect{X: box.X - box.W/2, Y: box.Y - box.H/2, W: 2 * box.W, H: 2 * box.H}
}
