// Implements an abstract representation of
// svg paths, which can then be consumed
// by painting backends.
package svgpath

import (
	"fmt"
	"math"
	"strings"
)

// Point is a 2D point, in user space.
type Point struct{ X, Y float64 }

// Add returns p + q
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mul scales the vector p by k
func (p Point) Mul(k float64) Point { return Point{p.X * k, p.Y * k} }

// Rect is an axis aligned rectangle, with its
// upper left corner at (X, Y).
type Rect struct{ X, Y, W, H float64 }

// IsZero returns true for the [0,0,0,0] box, used
// by hidden or empty elements.
func (r Rect) IsZero() bool { return r == Rect{} }

// Union returns the smallest rectangle containing both boxes.
// Zero boxes are ignored.
func (r Rect) Union(other Rect) Rect {
	if r.IsZero() {
		return other
	}
	if other.IsZero() {
		return r
	}
	minX, minY := math.Min(r.X, other.X), math.Min(r.Y, other.Y)
	maxX := math.Max(r.X+r.W, other.X+other.W)
	maxY := math.Max(r.Y+r.H, other.Y+other.H)
	return Rect{minX, minY, maxX - minX, maxY - minY}
}

// Transform returns the bounding box of the transformed rectangle.
func (r Rect) Transform(m Matrix2D) Rect {
	if r.IsZero() {
		return r
	}
	var b bbox
	b.init()
	for _, p := range [4]Point{{r.X, r.Y}, {r.X + r.W, r.Y}, {r.X + r.W, r.Y + r.H}, {r.X, r.Y + r.H}} {
		b.add(m.Apply(p))
	}
	return b.rect()
}

// Inflate grows the rectangle by `d` on each side.
func (r Rect) Inflate(d float64) Rect {
	return Rect{r.X - d, r.Y - d, r.W + 2*d, r.H + 2*d}
}

type pathCommand uint8

// Human readable path constants
const (
	pathMoveTo pathCommand = iota
	pathLineTo
	pathCubicTo
	pathClose
)

// Operation groups the different path segments.
// Quadratic curves are elevated to cubic ones when
// the path is built.
type Operation interface {
	command() pathCommand
}

type MoveTo Point

type LineTo Point

// CubicTo stores the two control points and the end point.
type CubicTo [3]Point

type Close struct{}

func (MoveTo) command() pathCommand  { return pathMoveTo }
func (LineTo) command() pathCommand  { return pathLineTo }
func (CubicTo) command() pathCommand { return pathCubicTo }
func (Close) command() pathCommand   { return pathClose }

// Path describes a sequence of basic SVG operations.
// Higher-level shapes may be reduced to a path.
type Path []Operation

// ToSVGPath returns a string representation of the path
func (p Path) ToSVGPath() string {
	chunks := make([]string, len(p))
	for i, op := range p {
		switch op := op.(type) {
		case MoveTo:
			chunks[i] = fmt.Sprintf("M%4.3f,%4.3f", op.X, op.Y)
		case LineTo:
			chunks[i] = fmt.Sprintf("L%4.3f,%4.3f", op.X, op.Y)
		case CubicTo:
			chunks[i] = fmt.Sprintf("C%4.3f,%4.3f,%4.3f,%4.3f,%4.3f,%4.3f", op[0].X, op[0].Y,
				op[1].X, op[1].Y, op[2].X, op[2].Y)
		case Close:
			chunks[i] = "Z"
		}
	}
	return strings.Join(chunks, " ")
}

// String returns a readable representation of a Path.
func (p Path) String() string {
	return p.ToSVGPath()
}

// Clear zeros the path slice
func (p *Path) Clear() {
	*p = (*p)[:0]
}

// Start starts a new curve at the given point.
func (p *Path) Start(a Point) {
	*p = append(*p, MoveTo(a))
}

// Line adds a linear segment to the current curve.
func (p *Path) Line(b Point) {
	*p = append(*p, LineTo(b))
}

// QuadBezier adds a quadratic segment starting at `a`,
// elevated to a cubic one.
func (p *Path) QuadBezier(a, b, c Point) {
	c1, c2 := QuadToCubic(a, b, c)
	*p = append(*p, CubicTo{c1, c2, c})
}

// CubeBezier adds a cubic segment to the current curve.
func (p *Path) CubeBezier(b, c, d Point) {
	*p = append(*p, CubicTo{b, c, d})
}

// Stop joins the ends of the path
func (p *Path) Stop(closeLoop bool) {
	if closeLoop {
		*p = append(*p, Close{})
	}
}

// QuadToCubic returns the control points of the cubic curve
// equivalent to the quadratic curve (p0, p1, p2).
func QuadToCubic(p0, p1, p2 Point) (c1, c2 Point) {
	c1 = p0.Add(p1.Sub(p0).Mul(2. / 3))
	c2 = p2.Add(p1.Sub(p2).Mul(2. / 3))
	return c1, c2
}

// Transform returns a new path with all its points
// mapped by `m`.
func (p Path) Transform(m Matrix2D) Path {
	out := make(Path, len(p))
	for i, op := range p {
		switch op := op.(type) {
		case MoveTo:
			out[i] = MoveTo(m.Apply(Point(op)))
		case LineTo:
			out[i] = LineTo(m.Apply(Point(op)))
		case CubicTo:
			out[i] = CubicTo{m.Apply(op[0]), m.Apply(op[1]), m.Apply(op[2])}
		case Close:
			out[i] = op
		}
	}
	return out
}

// Vertex is an end point of a path segment, with
// the incoming and outgoing tangent directions (in radians),
// as used to place markers.
type Vertex struct {
	Point
	In, Out float64
}

// Vertices returns the end points of the segments of the path,
// with their tangent angles.
// When a segment is degenerate, the tangent of the adjacent segment is used.
func (p Path) Vertices() []Vertex {
	var (
		out        []Vertex
		current    Point
		start      Point
		startIndex = -1
	)
	angle := func(from, to Point) (float64, bool) {
		if from == to {
			return 0, false
		}
		return math.Atan2(to.Y-from.Y, to.X-from.X), true
	}
	for _, op := range p {
		switch op := op.(type) {
		case MoveTo:
			current, start = Point(op), Point(op)
			out = append(out, Vertex{Point: current})
			startIndex = len(out) - 1
		case LineTo:
			a, _ := angle(current, Point(op))
			if len(out) > 0 {
				out[len(out)-1].Out = a
			}
			current = Point(op)
			out = append(out, Vertex{Point: current, In: a, Out: a})
		case CubicTo:
			aOut, ok := angle(current, op[0])
			if !ok {
				aOut, ok = angle(current, op[1])
				if !ok {
					aOut, _ = angle(current, op[2])
				}
			}
			aIn, ok := angle(op[1], op[2])
			if !ok {
				aIn, ok = angle(op[0], op[2])
				if !ok {
					aIn, _ = angle(current, op[2])
				}
			}
			if len(out) > 0 {
				out[len(out)-1].Out = aOut
			}
			current = op[2]
			out = append(out, Vertex{Point: current, In: aIn, Out: aIn})
		case Close:
			a, ok := angle(current, start)
			if len(out) > 0 && ok {
				out[len(out)-1].Out = a
			}
			if !ok && len(out) > 0 {
				a = out[len(out)-1].In
			}
			var firstOut float64
			if startIndex >= 0 {
				firstOut = out[startIndex].Out
				out[startIndex].In = a
			}
			current = start
			out = append(out, Vertex{Point: start, In: a, Out: firstOut})
		}
	}
	return out
}
