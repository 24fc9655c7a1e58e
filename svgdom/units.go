package svgdom

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgpath"
)

// PercentageReference selects the viewport dimension
// used to resolve a percentage length.
type PercentageReference uint8

const (
	WidthPercentage PercentageReference = iota
	HeightPercentage
	DiagPercentage
)

// Viewport is the size of the nearest viewport,
// used to resolve percentages.
type Viewport struct{ W, H float64 }

// Ref returns the length corresponding to 100%
func (vp Viewport) Ref(ref PercentageReference) float64 {
	switch ref {
	case WidthPercentage:
		return vp.W
	case HeightPercentage:
		return vp.H
	default:
		return math.Sqrt((vp.W*vp.W + vp.H*vp.H) / 2)
	}
}

// absolute units, in user units (CSS pixels)
var unitFactors = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 4. / 3,
	"pc": 16,
	"mm": 96 / 25.4,
	"cm": 96 / 2.54,
	"in": 96,
	"q":  96 / 25.4 / 4,
}

// ParseLength parses a length with its optional unit.
// `percentRef` is the length corresponding to 100% and `fontSize`
// is used for 'em' and 'ex'.
func ParseLength(s string, percentRef, fontSize float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errParamMismatch
	}
	i := len(s)
	for i > 0 && (s[i-1] == '%' || ('a' <= s[i-1] && s[i-1] <= 'z') || ('A' <= s[i-1] && s[i-1] <= 'Z')) {
		i--
	}
	num, unit := s[:i], strings.ToLower(s[i:])
	// exponents are not units
	if strings.HasPrefix(unit, "e") && unit != "em" && unit != "ex" {
		num, unit = s, ""
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", s, errParamMismatch)
	}
	switch unit {
	case "%":
		return f * percentRef / 100, nil
	case "em":
		return f * fontSize, nil
	case "ex":
		return f * fontSize / 2, nil
	}
	factor, ok := unitFactors[unit]
	if !ok {
		return 0, fmt.Errorf("unsupported unit %q: %w", unit, errParamMismatch)
	}
	return f * factor, nil
}

// ParseFraction parses a number or a percentage, returning
// a value where 100% is 1, as used by gradient offsets and opacities.
func ParseFraction(v string) (f float64, err error) {
	v = strings.TrimSpace(v)
	d := 1.0
	if strings.HasSuffix(v, "%") {
		d = 100
		v = strings.TrimSuffix(v, "%")
	}
	f, err = strconv.ParseFloat(v, 64)
	f /= d
	return
}

// ParseViewBox parses the viewBox attribute. Negative
// sizes are invalid.
func ParseViewBox(s string) (svgpath.Rect, error) {
	points, err := svgpath.ParseNumbers(s)
	if err != nil {
		return svgpath.Rect{}, err
	}
	if len(points) != 4 || points[2] < 0 || points[3] < 0 {
		return svgpath.Rect{}, fmt.Errorf("invalid viewBox %q: %w", s, errParamMismatch)
	}
	return svgpath.Rect{X: points[0], Y: points[1], W: points[2], H: points[3]}, nil
}

// ParseFontFamily splits a CSS font-family list into
// unquoted family names.
func ParseFontFamily(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.Trim(strings.TrimSpace(name), `"'`)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// ParseURL parses a paint or reference value of the form
// url(#id) [fallback]. It returns false if `s` is not an url.
func ParseURL(s string) (id, fallback string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "url(") {
		return "", "", false
	}
	end := strings.IndexByte(s, ')')
	if end == -1 {
		return "", "", false
	}
	target := strings.Trim(strings.TrimSpace(s[4:end]), `"'`)
	return strings.TrimPrefix(target, "#"), strings.TrimSpace(s[end+1:]), true
}

// ParseHref returns the local id targeted by an href
// attribute, or false for external references.
func ParseHref(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") || len(s) == 1 {
		return "", false
	}
	return s[1:], true
}

// AspectRatio is the parsed preserveAspectRatio attribute.
type AspectRatio struct {
	// AlignX and AlignY are 0 (min), 0.5 (mid) or 1 (max)
	AlignX, AlignY float64
	None           bool // do not preserve the aspect ratio
	Slice          bool // 'slice' instead of 'meet'
}

// DefaultAspectRatio is xMidYMid meet
var DefaultAspectRatio = AspectRatio{AlignX: 0.5, AlignY: 0.5}

// ParseAspectRatio parses the preserveAspectRatio attribute,
// returning DefaultAspectRatio for invalid values.
func ParseAspectRatio(s string) AspectRatio {
	fields := strings.Fields(s)
	if len(fields) > 0 && fields[0] == "defer" {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return DefaultAspectRatio
	}
	out := DefaultAspectRatio
	if fields[0] == "none" {
		out.None = true
	} else {
		align := fields[0]
		if len(align) != 8 {
			return DefaultAspectRatio
		}
		var ok1, ok2 bool
		out.AlignX, ok1 = alignValues[strings.ToLower(align[1:4])]
		out.AlignY, ok2 = alignValues[strings.ToLower(align[5:8])]
		if !ok1 || !ok2 {
			return DefaultAspectRatio
		}
	}
	if len(fields) > 1 && fields[1] == "slice" {
		out.Slice = true
	}
	return out
}

var alignValues = map[string]float64{"min": 0, "mid": 0.5, "max": 1}

// ViewBoxTransform returns the matrix mapping the viewBox
// to the viewport (x, y, width, height).
func (a AspectRatio) ViewBoxTransform(viewBox svgpath.Rect, x, y, width, height float64) svgpath.Matrix2D {
	if viewBox.W <= 0 || viewBox.H <= 0 {
		return svgpath.Identity.Translate(x, y)
	}
	sx, sy := width/viewBox.W, height/viewBox.H
	if !a.None {
		if a.Slice {
			sx = math.Max(sx, sy)
		} else {
			sx = math.Min(sx, sy)
		}
		sy = sx
	}
	tx := x - viewBox.X*sx + a.AlignX*(width-viewBox.W*sx)
	ty := y - viewBox.Y*sy + a.AlignY*(height-viewBox.H*sy)
	if a.None {
		tx, ty = x-viewBox.X*sx, y-viewBox.Y*sy
	}
	return svgpath.Matrix2D{A: sx, D: sy, E: tx, F: ty}
}
