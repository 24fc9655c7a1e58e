package svgdraw

import (
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"golang.org/x/net/html"
)

// textRun is a piece of text sharing the same attributes
type textRun struct {
	text    string
	ctx     *Context // attributes of the run
	dx      float64  // shift applied before the run
	y       float64
	visible bool
}

// TextChunk is a sequence of runs laid out together, and aligned
// as a whole according to the text-anchor of the element which
// started the chunk.
type TextChunk struct {
	x      float64
	anchor string
	runs   []textRun
}

// NewTextChunk starts a chunk at `x`.
func NewTextChunk(x float64, anchor string) *TextChunk {
	return &TextChunk{x: x, anchor: anchor}
}

// Add appends a run, drawn with the attributes of `ctx`.
func (tc *TextChunk) Add(text string, ctx *Context, dx, y float64) {
	tc.runs = append(tc.runs, textRun{
		text:    text,
		ctx:     ctx,
		dx:      dx,
		y:       y,
		visible: ctx.Attributes.Visibility == "visible",
	})
}

// layout returns the start of each run, before alignment,
// and the end of the chunk.
func (tc *TextChunk) layout(measure *TextMeasure) ([]float64, float64) {
	xs := make([]float64, len(tc.runs))
	x := tc.x
	for i, run := range tc.runs {
		x += run.dx
		xs[i] = x
		x += measure.Measure(run.text, run.ctx.Attributes.Font())
	}
	return xs, x
}

func anchorShift(anchor string, width float64) float64 {
	switch anchor {
	case "middle":
		return width / 2
	case "end":
		return width
	default:
		return 0
	}
}

// Put draws the runs and returns the x coordinate
// where the following text starts.
// `parent` is the context of the enclosing text element.
func (tc *TextChunk) Put(parent *Context) float64 {
	xs, end := tc.layout(parent.Measure)
	shift := anchorShift(tc.anchor, end-tc.x)
	for i, run := range tc.runs {
		if run.visible {
			run.draw(parent, xs[i]-shift)
		}
	}
	return end - shift
}

func baselineShift(st *AttributeState) float64 {
	switch st.AlignmentBaseline {
	case "middle", "central":
		return 0.35 * st.FontSize
	case "hanging", "before-edge", "text-before-edge":
		return 0.8 * st.FontSize
	case "after-edge", "text-after-edge", "ideographic":
		return -0.2 * st.FontSize
	default:
		return 0
	}
}

func (run textRun) draw(parent *Context, x float64) {
	ctx, st := run.ctx, &run.ctx.Attributes
	b := ctx.Backend
	b.Save()
	defer b.Restore()

	ctx.applyAttributes(&parent.Attributes, nil)
	// gradients and patterns are approximated by a plain color
	fill, stroke := st.Fill != nil, st.Stroke != nil && st.StrokeWidth != 0
	if _, isColor := st.Fill.(ColorFill); fill && !isColor {
		c, _ := solidColor(st.Fill)
		b.SetFillColor(ColorFill{Color: c}.opaque())
	}
	if _, isColor := st.Stroke.(ColorFill); stroke && !isColor {
		c, _ := solidColor(st.Stroke)
		b.SetStrokeColor(ColorFill{Color: c}.opaque())
	}

	var mode TextRenderMode
	switch {
	case ctx.withinUse, fill && stroke:
		mode = TextFillStroke
	case fill:
		mode = TextFill
	case stroke:
		mode = TextStroke
	default:
		mode = TextInvisible
	}
	b.Text(run.text, x, run.y+baselineShift(st), TextOptions{Font: st.Font(), Mode: mode})
}

// collapseSpaces applies the default xml:space handling
func collapseSpaces(s string) string {
	s = strings.NewReplacer("\n", "", "\r", "", "\t", " ").Replace(s)
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' {
			if space {
				continue
			}
			space = true
		} else {
			space = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func preserveSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
}

// firstLength returns the first value of a list of lengths,
// as used by the x, y, dx and dy attributes of text elements.
func firstLength(ctx *Context, elem *html.Node, name string, ref svgdom.PercentageReference) (float64, bool) {
	v, ok := ctx.prop(elem, name)
	if !ok {
		return 0, false
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	if len(fields) == 0 {
		return 0, false
	}
	l, err := svgdom.ParseLength(fields[0], ctx.Viewport.Ref(ref), ctx.Attributes.FontSize)
	if err != nil {
		return 0, false
	}
	return l, true
}

// textLayout walks the content of a text element
type textLayout struct {
	root  *Context // context of the text element
	chunk *TextChunk
	y     float64
	dx    float64 // pending shift
	// true at the start of the text or after a space,
	// so that leading spaces are dropped
	afterSpace bool
}

func (tl *textLayout) addText(s string, ctx *Context) {
	if ctx.Attributes.XMLSpace == "preserve" {
		s = preserveSpaces(s)
	} else {
		s = collapseSpaces(s)
		if tl.afterSpace {
			s = strings.TrimLeft(s, " ")
		}
	}
	if s == "" {
		return
	}
	tl.afterSpace = strings.HasSuffix(s, " ")
	tl.chunk.Add(s, ctx, tl.dx, tl.y)
	tl.dx = 0
}

// trimEnd removes the trailing space of the last run
func (tl *textLayout) trimEnd() {
	runs := tl.chunk.runs
	if len(runs) == 0 {
		return
	}
	last := &runs[len(runs)-1]
	if last.ctx.Attributes.XMLSpace != "preserve" {
		last.text = strings.TrimRight(last.text, " ")
	}
	if last.text == "" {
		tl.chunk.runs = runs[:len(runs)-1]
	}
}

func (tl *textLayout) walk(n Node, ctx *Context) {
	children := n.base().children
	i := 0
	for c := n.base().elem.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			tl.addText(c.Data, ctx)
		case html.ElementNode:
			if i >= len(children) {
				continue
			}
			child := children[i]
			i++
			if _, ok := child.(*tspanNode); !ok || isDisplayNone(child, ctx) {
				continue
			}
			childCtx := attributesContext(child, ctx)
			tl.position(child.base().elem, childCtx)
			tl.walk(child, childCtx)
		}
	}
}

// position handles the positioning attributes of a tspan:
// absolute coordinates start a new chunk.
func (tl *textLayout) position(elem *html.Node, ctx *Context) {
	x, hasX := firstLength(ctx, elem, "x", svgdom.WidthPercentage)
	y, hasY := firstLength(ctx, elem, "y", svgdom.HeightPercentage)
	if hasX || hasY {
		end := tl.chunk.Put(tl.root)
		if !hasX {
			x = end
		}
		if hasY {
			tl.y = y
		}
		tl.chunk = NewTextChunk(x+tl.dx, ctx.Attributes.TextAnchor)
		tl.dx = 0
	}
	if dx, ok := firstLength(ctx, elem, "dx", svgdom.WidthPercentage); ok {
		tl.dx += dx
	}
	if dy, ok := firstLength(ctx, elem, "dy", svgdom.HeightPercentage); ok {
		tl.y += dy
	}
}

// textNode is a <text> element; its content is made
// of character data and tspan elements.
type textNode struct{ nodeBase }

func (n *textNode) origin(ctx *Context) (x, y float64) {
	x, _ = firstLength(ctx, n.elem, "x", svgdom.WidthPercentage)
	y, _ = firstLength(ctx, n.elem, "y", svgdom.HeightPercentage)
	dx, _ := firstLength(ctx, n.elem, "dx", svgdom.WidthPercentage)
	dy, _ := firstLength(ctx, n.elem, "dy", svgdom.HeightPercentage)
	return x + dx, y + dy
}

// boundingBoxCore approximates the extent of the text with
// its advance and the font size.
func (n *textNode) boundingBoxCore(ctx *Context) svgpath.Rect {
	st := &ctx.Attributes
	content := collapseSpaces(strings.TrimSpace(svgdom.TextContent(n.elem)))
	if content == "" || ctx.Measure == nil {
		return svgpath.Rect{}
	}
	x, y := n.origin(ctx)
	width := ctx.Measure.Measure(content, st.Font())
	y += baselineShift(st)
	return svgpath.Rect{
		X: x - anchorShift(st.TextAnchor, width),
		Y: y - 0.8*st.FontSize,
		W: width,
		H: st.FontSize,
	}
}

func (n *textNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *textNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *textNode) renderCore(ctx *Context) error {
	if ctx.InClipPath {
		return nil
	}
	x, y := n.origin(ctx)
	tl := textLayout{root: ctx, chunk: NewTextChunk(x, ctx.Attributes.TextAnchor), y: y, afterSpace: true}
	tl.walk(n, ctx)
	tl.trimEnd()
	tl.chunk.Put(ctx)
	return nil
}

// tspanNode is only rendered through its enclosing text element
type tspanNode struct{ nodeBase }

func (n *tspanNode) boundingBoxCore(*Context) svgpath.Rect { return svgpath.Rect{} }

func (n *tspanNode) nodeTransformCore(*Context) svgpath.Matrix2D { return svgpath.Identity }

func (n *tspanNode) isVisible(parentVisible bool, ctx *Context) bool {
	return svgNodeAndChildrenVisible(n, parentVisible, ctx)
}

func (n *tspanNode) renderCore(*Context) error { return nil }
