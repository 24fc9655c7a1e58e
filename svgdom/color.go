package svgdom

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

var errParamMismatch = errors.New("param mismatch")

// ParseColorNum reads the SVG color string e.g. #FBD9BD, also
// accepting the short and alpha forms #FBD, #FBDA and #FBD9BDAA.
func ParseColorNum(colorStr string) (color.NRGBA, error) {
	colorStr = strings.TrimPrefix(colorStr, "#")
	switch len(colorStr) {
	case 3, 4:
		// SVG specs say duplicate characters in case of 3 digit hex number
		var b strings.Builder
		for i := 0; i < len(colorStr); i++ {
			b.WriteByte(colorStr[i])
			b.WriteByte(colorStr[i])
		}
		colorStr = b.String()
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", colorStr, errParamMismatch)
	}
	out := color.NRGBA{A: 0xFF}
	for i, c := range []*uint8{&out.R, &out.G, &out.B, &out.A} {
		if 2*i+2 > len(colorStr) {
			break
		}
		t, err := strconv.ParseUint(colorStr[2*i:2*i+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, err
		}
		*c = uint8(t)
	}
	return out, nil
}

// ParseColor parses an SVG color string in all forms
// including all SVG1.1 names, obtained from the colornames package,
// rgb(), rgba(), hsl(), hsla() and the `transparent` keyword.
// `currentColor` resolves to `current`.
// `none` and paint server references are not handled here.
func ParseColor(colorStr string, current color.NRGBA) (color.NRGBA, error) {
	colorStr = strings.TrimSpace(colorStr)
	v := strings.ToLower(colorStr)
	switch v {
	case "":
		return color.NRGBA{}, errParamMismatch
	case "currentcolor":
		return current, nil
	case "transparent":
		return color.NRGBA{}, nil
	}
	if cn, ok := colornames.Map[v]; ok {
		return color.NRGBA{cn.R, cn.G, cn.B, cn.A}, nil
	}
	if v[0] == '#' {
		return ParseColorNum(v)
	}
	open := strings.IndexByte(v, '(')
	if open == -1 || !strings.HasSuffix(v, ")") {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", colorStr, errParamMismatch)
	}
	fn, args := strings.TrimSpace(v[:open]), splitColorArgs(v[open+1:len(v)-1])
	if len(args) != 3 && len(args) != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", colorStr, errParamMismatch)
	}
	alpha := 1.
	if len(args) == 4 {
		var err error
		alpha, err = parseAlpha(args[3])
		if err != nil {
			return color.NRGBA{}, err
		}
	}
	switch fn {
	case "rgb", "rgba":
		var cvals [3]uint8
		for i := range cvals {
			c, err := parseColorValue(args[i])
			if err != nil {
				return color.NRGBA{}, err
			}
			cvals[i] = c
		}
		return color.NRGBA{cvals[0], cvals[1], cvals[2], uint8(math.Round(alpha * 0xFF))}, nil
	case "hsl", "hsla":
		h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
		if err != nil {
			return color.NRGBA{}, err
		}
		s, err := parsePercent(args[1])
		if err != nil {
			return color.NRGBA{}, err
		}
		l, err := parsePercent(args[2])
		if err != nil {
			return color.NRGBA{}, err
		}
		r, g, b := hslToRGB(h, s, l)
		return color.NRGBA{r, g, b, uint8(math.Round(alpha * 0xFF))}, nil
	}
	return color.NRGBA{}, fmt.Errorf("unsupported color function %q: %w", fn, errParamMismatch)
}

// splitColorArgs supports both the legacy comma syntax and
// the space separated one, with an optional '/ alpha'
func splitColorArgs(s string) []string {
	s = strings.ReplaceAll(s, "/", " ")
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
}

func parseColorValue(v string) (uint8, error) {
	if strings.HasSuffix(v, "%") {
		n, err := strconv.ParseFloat(strings.TrimSpace(v[:len(v)-1]), 64)
		if err != nil {
			return 0, err
		}
		return uint8(math.Round(clamp01(n/100) * 0xFF)), nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	return uint8(math.Round(math.Max(0, math.Min(255, n)))), nil
}

func parsePercent(v string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	return clamp01(n / 100), err
}

func parseAlpha(v string) (float64, error) {
	if strings.HasSuffix(v, "%") {
		return parsePercent(v)
	}
	n, err := strconv.ParseFloat(v, 64)
	return clamp01(n), err
}

func clamp01(f float64) float64 { return math.Max(0, math.Min(1, f)) }

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2
	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf = c, x
	case h < 120:
		rf, gf = x, c
	case h < 180:
		gf, bf = c, x
	case h < 240:
		gf, bf = x, c
	case h < 300:
		rf, bf = x, c
	default:
		rf, bf = c, x
	}
	to8 := func(f float64) uint8 { return uint8(math.Round(clamp01(f+m) * 0xFF)) }
	return to8(rf), to8(gf), to8(bf)
}
