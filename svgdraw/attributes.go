package svgdraw

import (
	"image/color"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"golang.org/x/net/html"
)

// AttributeState stores the presentation attributes
// inherited by an element. It is copied (see Clone) for
// each element, so that children never modify their parent state.
type AttributeState struct {
	Fill, Stroke Fill // nil means none

	FillOpacity, StrokeOpacity float64
	// Opacity is the product of the `opacity` of the element
	// and its ancestors.
	Opacity float64

	StrokeWidth float64
	LineCap     CapMode
	LineJoin    JoinMode
	MiterLimit  float64
	DashArray   []float64 // nil for solid lines
	DashOffset  float64

	FontFamily        string // resolved, lower case
	FontSize          float64
	FontStyle         string // normal, italic or oblique
	FontWeight        string
	TextAnchor        string // start, middle or end
	AlignmentBaseline string

	Visibility string // visible, hidden or collapse
	XMLSpace   string // default or preserve

	// Color is the value of `currentColor`
	Color color.NRGBA

	FillEvenOdd, ClipEvenOdd bool

	// ids of the referenced markers
	MarkerStart, MarkerMid, MarkerEnd string
}

// DefaultAttributeState returns the initial state of
// a conversion: black fill, no stroke, 1 unit wide butt/miter lines
// and a 16 units "times" font.
func DefaultAttributeState() AttributeState {
	return AttributeState{
		Fill:              ColorFill{Color: color.NRGBA{A: 0xff}},
		FillOpacity:       1,
		StrokeOpacity:     1,
		Opacity:           1,
		StrokeWidth:       1,
		LineCap:           ButtCap,
		LineJoin:          Miter,
		MiterLimit:        4,
		FontFamily:        "times",
		FontSize:          16,
		FontStyle:         "normal",
		FontWeight:        "normal",
		TextAnchor:        "start",
		AlignmentBaseline: "baseline",
		Visibility:        "visible",
		XMLSpace:          "default",
		Color:             color.NRGBA{A: 0xff},
	}
}

// Clone returns a deep copy of the state.
func (as AttributeState) Clone() AttributeState {
	out := as
	out.DashArray = slices.Clone(as.DashArray)
	return out
}

// Font returns the font selected by the state.
func (as *AttributeState) Font() Font {
	return Font{Family: as.FontFamily, Style: as.fontStyle(), Size: as.FontSize}
}

func (as *AttributeState) fontStyle() FontStyle {
	var fs FontStyle
	if as.FontStyle == "italic" || as.FontStyle == "oblique" {
		fs |= Italic
	}
	switch as.FontWeight {
	case "bold", "bolder":
		fs |= Bold
	default:
		if w, err := strconv.Atoi(as.FontWeight); err == nil && w >= 600 {
			fs |= Bold
		}
	}
	return fs
}

// alias used when the backend does not provide a family
var fontAliases = map[string]string{
	"sans-serif":      "helvetica",
	"arial":           "helvetica",
	"verdana":         "helvetica",
	"system-ui":       "helvetica",
	"monospace":       "courier",
	"fixed":           "courier",
	"terminal":        "courier",
	"courier new":     "courier",
	"serif":           "times",
	"cursive":         "times",
	"fantasy":         "times",
	"times new roman": "times",
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9,
	"x-small":  10,
	"small":    13,
	"medium":   16,
	"large":    18,
	"x-large":  24,
	"xx-large": 32,
}

var (
	capModes = map[string]CapMode{
		"butt":   ButtCap,
		"round":  RoundCap,
		"square": SquareCap,
	}
	joinModes = map[string]JoinMode{
		"miter":      Miter,
		"round":      Round,
		"bevel":      Bevel,
		"miter-clip": MiterClip,
		"arcs":       Arc,
	}
)

func parseOpacity(v string) (float64, bool) {
	f, err := svgdom.ParseFraction(v)
	if err != nil {
		return 0, false
	}
	return math.Max(0, math.Min(1, f)), true
}

// parseAttributes reads the presentation attributes of `elem` into
// the state of `ctx`. Absent attributes keep their inherited value.
func (ctx *Context) parseAttributes(elem *html.Node) {
	st := &ctx.Attributes
	prop := func(name string) (string, bool) { return ctx.prop(elem, name) }

	if v, ok := prop("color"); ok {
		if c, err := svgdom.ParseColor(v, st.Color); err == nil {
			st.Color = c
		}
	}

	// font size first, since em lengths depend on it
	if v, ok := prop("font-size"); ok {
		if size, ok := parseFontSize(v, st.FontSize); ok {
			st.FontSize = size
		}
	}
	if v, ok := prop("font-style"); ok {
		st.FontStyle = strings.ToLower(v)
	}
	if v, ok := prop("font-weight"); ok {
		st.FontWeight = strings.ToLower(v)
	}
	if v, ok := prop("font-family"); ok {
		st.FontFamily = ctx.resolveFontFamily(v)
	}
	if v, ok := prop("text-anchor"); ok {
		st.TextAnchor = v
	}
	if v, ok := prop("alignment-baseline"); ok {
		st.AlignmentBaseline = v
	} else if v, ok := prop("dominant-baseline"); ok {
		st.AlignmentBaseline = v
	}
	if v, ok := prop("visibility"); ok {
		st.Visibility = v
	}
	if v, ok := svgdom.Attr(elem, "xml:space"); ok {
		st.XMLSpace = v
	}

	if v, ok := prop("fill"); ok {
		st.Fill = ctx.parseFill(v)
	}
	if v, ok := prop("stroke"); ok {
		st.Stroke = ctx.parseFill(v)
	}
	if v, ok := prop("fill-opacity"); ok {
		if f, ok := parseOpacity(v); ok {
			st.FillOpacity = f
		}
	}
	if v, ok := prop("stroke-opacity"); ok {
		if f, ok := parseOpacity(v); ok {
			st.StrokeOpacity = f
		}
	}
	if v, ok := prop("opacity"); ok {
		if f, ok := parseOpacity(v); ok {
			st.Opacity *= f
		}
	}
	if v, ok := prop("fill-rule"); ok {
		st.FillEvenOdd = v == "evenodd"
	}
	if v, ok := prop("clip-rule"); ok {
		st.ClipEvenOdd = v == "evenodd"
	}

	if v, ok := prop("stroke-width"); ok {
		if w, err := svgdom.ParseLength(v, ctx.Viewport.Ref(svgdom.DiagPercentage), st.FontSize); err == nil {
			st.StrokeWidth = math.Abs(w)
		}
	}
	if v, ok := prop("stroke-linecap"); ok {
		if c, ok := capModes[v]; ok {
			st.LineCap = c
		}
	}
	if v, ok := prop("stroke-linejoin"); ok {
		if j, ok := joinModes[v]; ok {
			st.LineJoin = j
		}
	}
	if v, ok := prop("stroke-miterlimit"); ok {
		if m, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && m >= 1 {
			st.MiterLimit = m
		}
	}
	if v, ok := prop("stroke-dasharray"); ok {
		st.DashArray = ctx.parseDashArray(v)
		st.DashOffset = 0
		if st.DashArray != nil {
			if v, ok := prop("stroke-dashoffset"); ok {
				if off, err := svgdom.ParseLength(v, ctx.Viewport.Ref(svgdom.DiagPercentage), st.FontSize); err == nil {
					st.DashOffset = off
				}
			}
		}
	}

	if v, ok := prop("marker"); ok {
		id := markerRef(v)
		st.MarkerStart, st.MarkerMid, st.MarkerEnd = id, id, id
	}
	if v, ok := prop("marker-start"); ok {
		st.MarkerStart = markerRef(v)
	}
	if v, ok := prop("marker-mid"); ok {
		st.MarkerMid = markerRef(v)
	}
	if v, ok := prop("marker-end"); ok {
		st.MarkerEnd = markerRef(v)
	}
}

func markerRef(v string) string {
	id, _, _ := svgdom.ParseURL(v)
	return id
}

func parseFontSize(v string, parentSize float64) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if size, ok := fontSizeKeywords[v]; ok {
		return size, true
	}
	switch v {
	case "larger":
		return parentSize * 1.2, true
	case "smaller":
		return parentSize / 1.2, true
	}
	size, err := svgdom.ParseLength(v, parentSize, parentSize)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

// parseDashArray returns nil for solid lines.
func (ctx *Context) parseDashArray(v string) []float64 {
	v = strings.TrimSpace(v)
	if v == "none" || v == "" {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	dashes := make([]float64, 0, 2*len(fields))
	allZeros := true
	for _, field := range fields {
		d, err := svgdom.ParseLength(field, ctx.Viewport.Ref(svgdom.DiagPercentage), ctx.Attributes.FontSize)
		if err != nil || d < 0 {
			return nil
		}
		if d != 0 {
			allZeros = false
		}
		dashes = append(dashes, d)
	}
	if allZeros {
		return nil
	}
	if len(dashes)%2 == 1 {
		dashes = append(dashes, dashes...)
	}
	return dashes
}

// resolveFontFamily returns the first family of the list
// supported by the backend, either directly or through an alias.
func (ctx *Context) resolveFontFamily(v string) string {
	style := ctx.Attributes.fontStyle()
	for _, name := range svgdom.ParseFontFamily(v) {
		name = strings.ToLower(name)
		if ctx.Backend.HasFont(name, style) {
			return name
		}
		if alias, ok := fontAliases[name]; ok {
			return alias
		}
	}
	return ctx.Options.DefaultFontFamily
}

func paintAlpha(f Fill) float64 {
	if c, ok := f.(ColorFill); ok {
		return float64(c.Color.A) / 0xff
	}
	return 1
}

// applyAttributes emits the backend calls required to
// go from the `parent` state to the state of `ctx`.
// Opacity is always computed, since it depends on the paint.
func (ctx *Context) applyAttributes(parent *AttributeState, n Node) {
	b, st := ctx.Backend, &ctx.Attributes

	if st.Fill != parent.Fill {
		if c, ok := st.Fill.(ColorFill); ok {
			b.SetFillColor(c.opaque())
		}
	}
	if st.Stroke != parent.Stroke {
		if c, ok := st.Stroke.(ColorFill); ok {
			b.SetStrokeColor(c.opaque())
		}
	}
	if st.StrokeWidth != parent.StrokeWidth {
		b.SetLineWidth(st.StrokeWidth)
	}
	if st.LineCap != parent.LineCap {
		b.SetLineCap(st.LineCap)
	}
	if st.LineJoin != parent.LineJoin {
		b.SetLineJoin(st.LineJoin)
	}
	if st.MiterLimit != parent.MiterLimit {
		b.SetMiterLimit(st.MiterLimit)
	}
	if !slices.Equal(st.DashArray, parent.DashArray) || st.DashOffset != parent.DashOffset {
		b.SetDash(st.DashArray, st.DashOffset)
	}

	fillAlpha := st.FillOpacity * paintAlpha(st.Fill) * st.Opacity
	strokeAlpha := st.StrokeOpacity * paintAlpha(st.Stroke) * st.Opacity
	emit := fillAlpha < 1 || strokeAlpha < 1 || ctx.alpha != [2]float64{fillAlpha, strokeAlpha}
	if _, isUse := n.(*useNode); isUse {
		// the content of the instanced element inherits
		// its paint through the graphics state
		emit = true
		if st.Fill == nil {
			fillAlpha = 0
		}
		if st.Stroke == nil {
			strokeAlpha = 0
		}
	} else if ctx.withinUse {
		if st.Fill == nil {
			fillAlpha = 0
		}
		if st.Stroke == nil {
			strokeAlpha = 0
		}
		if st.Fill != parent.Fill || st.Stroke != parent.Stroke {
			emit = true
		}
	}
	if emit {
		b.SetOpacity(fillAlpha, strokeAlpha)
		ctx.alpha = [2]float64{fillAlpha, strokeAlpha}
	}
}

// applyDefaults initializes the backend state so that
// it matches `st`.
func (ctx *Context) applyDefaults() {
	b, st := ctx.Backend, &ctx.Attributes
	if c, ok := st.Fill.(ColorFill); ok {
		b.SetFillColor(c.opaque())
	}
	if c, ok := st.Stroke.(ColorFill); ok {
		b.SetStrokeColor(c.opaque())
	}
	b.SetLineWidth(st.StrokeWidth)
	b.SetLineCap(st.LineCap)
	b.SetLineJoin(st.LineJoin)
	b.SetMiterLimit(st.MiterLimit)
	b.SetDash(st.DashArray, st.DashOffset)
	ctx.alpha = [2]float64{1, 1}
}

// paintOp returns the painting operation for the current state.
func (ctx *Context) paintOp() PaintOp {
	st := &ctx.Attributes
	fill := st.Fill != nil
	stroke := st.Stroke != nil && st.StrokeWidth != 0
	if ctx.withinUse {
		// the paint of instanced content may be provided by the use element
		if st.StrokeWidth == 0 {
			return PaintFill
		}
		return PaintFillStroke
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
