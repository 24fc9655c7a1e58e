package svgpath

import (
	"image/color"
	"math"
)

// GradientUnits is the type for gradient, pattern and clip units
type GradientUnits byte

// SVG bounds paremater constants
const (
	ObjectBoundingBox GradientUnits = iota
	UserSpaceOnUse
)

// SpreadMethod is the type for spread parameters
type SpreadMethod byte

// SVG spread parameter constants
const (
	PadSpread SpreadMethod = iota
	ReflectSpread
	RepeatSpread
)

const epsilonF = 1e-5

// GradStop represents a stop in the SVG 2.0 gradient specification.
// The stop opacity is merged into the alpha channel of `Color`.
type GradStop struct {
	Offset float64
	Color  color.NRGBA
}

// Gradient holds a resolved SVG gradient, ready to be painted:
// coordinates are expressed in the gradient space, which is mapped
// to user space by `Matrix`.
type Gradient struct {
	Direction GradientDirecter
	Stops     []GradStop
	Matrix    Matrix2D
	Spread    SpreadMethod
}

// GradientDirecter is either Linear or Radial
type GradientDirecter interface {
	isRadial() bool
}

// Linear stores x1, y1, x2, y2
type Linear [4]float64

func (Linear) isRadial() bool { return false }

// Radial stores cx, cy, fx, fy, r, fr
type Radial [6]float64

func (Radial) isRadial() bool { return true }

// IsRadial returns true for radial gradients.
func (g Gradient) IsRadial() bool { return g.Direction != nil && g.Direction.isRadial() }

// NormalizeStops clamps the offsets in [0, 1] and makes them
// non decreasing, as required by the SVG specification.
func NormalizeStops(stops []GradStop) []GradStop {
	out := make([]GradStop, len(stops))
	last := 0.
	for i, s := range stops {
		s.Offset = math.Max(last, math.Min(1, math.Max(0, s.Offset)))
		last = s.Offset
		out[i] = s
	}
	return out
}

// ColorAt interpolates the stops at `t`, which is assumed
// to have already been mapped according to the spread method.
func ColorAt(stops []GradStop, t float64) color.NRGBA {
	if len(stops) == 0 {
		return color.NRGBA{}
	}
	if t <= stops[0].Offset {
		return stops[0].Color
	}
	for i := 1; i < len(stops); i++ {
		s0, s1 := stops[i-1], stops[i]
		if t > s1.Offset {
			continue
		}
		d := s1.Offset - s0.Offset
		if d < epsilonF {
			return s1.Color
		}
		u := (t - s0.Offset) / d
		lerp := func(a, b uint8) uint8 { return uint8(math.Round(float64(a) + u*(float64(b)-float64(a)))) }
		return color.NRGBA{
			lerp(s0.Color.R, s1.Color.R),
			lerp(s0.Color.G, s1.Color.G),
			lerp(s0.Color.B, s1.Color.B),
			lerp(s0.Color.A, s1.Color.A),
		}
	}
	return stops[len(stops)-1].Color
}

// Spread maps an arbitrary parameter into [0, 1]
func (s SpreadMethod) Spread(t float64) float64 {
	switch s {
	case RepeatSpread:
		t -= math.Floor(t)
	case ReflectSpread:
		t = math.Mod(math.Abs(t), 2)
		if t > 1 {
			t = 2 - t
		}
	default:
		t = math.Max(0, math.Min(1, t))
	}
	return t
}
