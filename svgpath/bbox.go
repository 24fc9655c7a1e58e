package svgpath

import "math"

// compute the bouding box of a path, needed when using
// paint servers with objectBoundingBox units

type line [2]Point

func (l line) criticalPoints() (tX, tY []float64) {
	return nil, nil
}

func (l line) evaluateCurve(t float64) (x, y float64) {
	return bezierLine(l[0].X, l[1].X, t), bezierLine(l[0].Y, l[1].Y, t)
}

func bezierLine(p0, p1, t float64) float64 {
	return (p1-p0)*t + p0
}

type cubicBezier [4]Point

func (cu cubicBezier) criticalPoints() (tX, tY []float64) {
	aX, bX, cX := cubicDerivative(cu[0].X, cu[1].X, cu[2].X, cu[3].X)
	aY, bY, cY := cubicDerivative(cu[0].Y, cu[1].Y, cu[2].Y, cu[3].Y)
	return quadraticRoots(aX, bX, cX), quadraticRoots(aY, bY, cY)
}

func (cu cubicBezier) evaluateCurve(t float64) (x, y float64) {
	return bezierSpline(cu[0].X, cu[1].X, cu[2].X, cu[3].X, t), bezierSpline(cu[0].Y, cu[1].Y, cu[2].Y, cu[3].Y, t)
}

// cubic polinomial
// x = At^3 + Bt^2 + Ct + D
// where A,B,C,D:
// A = p3 -3 * p2 + 3 * p1 - p0
// B = 3 * p2 - 6 * p1 +3 * p0
// C = 3 * p1 - 3 * p0
// D = p0
func bezierSpline(p0, p1, p2, p3, t float64) float64 {
	return (p3-3*p2+3*p1-p0)*t*t*t +
		(3*p2-6*p1+3*p0)*t*t +
		(3*p1-3*p0)*t +
		(p0)
}

// X' = (3*p3-9*p2+9*p1-3*p0)t^2 + (6*p2-12*p1+6*p0)t + (3*p1-3*p0)
// taken as aX^2 + bX + c  a,b and c are:
func cubicDerivative(p0, p1, p2, p3 float64) (a, b, c float64) {
	return 3*p3 - 9*p2 + 9*p1 - 3*p0, 6*p2 - 12*p1 + 6*p0, 3*p1 - 3*p0
}

// handle the case where a = 0
func linearRoots(a, b float64) []float64 {
	if a == 0 {
		return nil
	}
	return []float64{-b / a}
}

func quadraticRoots(a, b, c float64) []float64 {
	if a == 0 {
		return linearRoots(b, c)
	}
	d := b*b - 4*a*c
	if d < 0 {
		return nil
	}
	if d == 0 {
		return []float64{-b / (2 * a)}
	}
	sq := math.Sqrt(d)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}

type bezier interface {
	// compute the t zeroing the derivative
	criticalPoints() (tX, tY []float64)
	// compute the point a time t
	evaluateCurve(t float64) (x, y float64)
}

// bbox accumulates points
type bbox struct {
	minX, minY, maxX, maxY float64
}

func (b *bbox) init() {
	b.minX, b.minY = math.Inf(1), math.Inf(1)
	b.maxX, b.maxY = math.Inf(-1), math.Inf(-1)
}

func (b *bbox) add(p Point) {
	b.minX = math.Min(p.X, b.minX)
	b.minY = math.Min(p.Y, b.minY)
	b.maxX = math.Max(p.X, b.maxX)
	b.maxY = math.Max(p.Y, b.maxY)
}

func (b bbox) isEmpty() bool { return b.minX > b.maxX }

func (b bbox) rect() Rect {
	if b.isEmpty() {
		return Rect{}
	}
	return Rect{b.minX, b.minY, b.maxX - b.minX, b.maxY - b.minY}
}

func (b *bbox) addCurve(curve bezier) {
	resX, resY := curve.criticalPoints()
	// add begin and end point
	for _, t := range append(append(resX, 0, 1), resY...) {
		// filter invalid value
		if !(0 <= t && t <= 1) {
			continue
		}
		x, y := curve.evaluateCurve(t)
		b.add(Point{x, y})
	}
}

// BoundingBox returns the exact extent of the path,
// taking into account the curves extrema.
// An empty path has a zero bounding box.
func (p Path) BoundingBox() Rect {
	var (
		b              bbox
		current, start Point
	)
	b.init()
	for _, op := range p {
		switch op := op.(type) {
		case MoveTo:
			current, start = Point(op), Point(op)
			b.add(current)
		case LineTo:
			b.addCurve(line{current, Point(op)})
			current = Point(op)
		case CubicTo:
			b.addCurve(cubicBezier{current, op[0], op[1], op[2]})
			current = op[2]
		case Close:
			current = start
		}
	}
	return b.rect()
}

// ControlBox returns the extent of all the points of the path,
// control points included. It is cheaper than BoundingBox and
// always contains it.
func (p Path) ControlBox() Rect {
	var b bbox
	b.init()
	for _, op := range p {
		switch op := op.(type) {
		case MoveTo:
			b.add(Point(op))
		case LineTo:
			b.add(Point(op))
		case CubicTo:
			b.add(op[0])
			b.add(op[1])
			b.add(op[2])
		}
	}
	return b.rect()
}
