package svgpath

import (
	"math"
)

// This file implements the transformation from
// high level shapes to their path equivalent

// Kappa is the distance, relative to the radius, of the control
// points used to approximate a quarter of circle by a cubic bezier curve.
var Kappa = 4 * (math.Sqrt2 - 1) / 3

// maxDx is the maximum radians a cubic splice is allowed to span
// in ellipse parametric when approximating an off-axis ellipse.
const maxDx float64 = math.Pi / 8

// Ellipse returns a closed path of four cubic bezier curves
// approximating the ellipse centered at (cx, cy).
func Ellipse(cx, cy, rx, ry float64) Path {
	ox, oy := rx*Kappa, ry*Kappa
	var p Path
	p.Start(Point{cx + rx, cy})
	p.CubeBezier(Point{cx + rx, cy + oy}, Point{cx + ox, cy + ry}, Point{cx, cy + ry})
	p.CubeBezier(Point{cx - ox, cy + ry}, Point{cx - rx, cy + oy}, Point{cx - rx, cy})
	p.CubeBezier(Point{cx - rx, cy - oy}, Point{cx - ox, cy - ry}, Point{cx, cy - ry})
	p.CubeBezier(Point{cx + ox, cy - ry}, Point{cx + rx, cy - oy}, Point{cx + rx, cy})
	p.Stop(true)
	return p
}

// RoundedRect returns the outline of a rectangle
// with corners rounded by elliptic quarters of radii rx and ry.
// Radii are clamped to half the sides.
func RoundedRect(x, y, w, h, rx, ry float64) Path {
	rx, ry = math.Min(math.Max(rx, 0), w/2), math.Min(math.Max(ry, 0), h/2)
	var p Path
	if rx == 0 || ry == 0 {
		p.Start(Point{x, y})
		p.Line(Point{x + w, y})
		p.Line(Point{x + w, y + h})
		p.Line(Point{x, y + h})
		p.Stop(true)
		return p
	}
	ox, oy := rx*Kappa, ry*Kappa
	p.Start(Point{x + rx, y})
	p.Line(Point{x + w - rx, y})
	p.CubeBezier(Point{x + w - rx + ox, y}, Point{x + w, y + ry - oy}, Point{x + w, y + ry})
	p.Line(Point{x + w, y + h - ry})
	p.CubeBezier(Point{x + w, y + h - ry + oy}, Point{x + w - rx + ox, y + h}, Point{x + w - rx, y + h})
	p.Line(Point{x + rx, y + h})
	p.CubeBezier(Point{x + rx - ox, y + h}, Point{x, y + h - ry + oy}, Point{x, y + h - ry})
	p.Line(Point{x, y + ry})
	p.CubeBezier(Point{x, y + ry - oy}, Point{x + rx - ox, y}, Point{x + rx, y})
	p.Stop(true)
	return p
}

// Polyline returns the path joining the given coordinates
// (x0, y0, x1, y1, ...), closed if `closed` is true.
// A trailing odd coordinate is ignored.
func Polyline(coords []float64, closed bool) Path {
	if len(coords) < 2 {
		return nil
	}
	var p Path
	p.Start(Point{coords[0], coords[1]})
	for i := 2; i+1 < len(coords); i += 2 {
		p.Line(Point{coords[i], coords[i+1]})
	}
	p.Stop(closed)
	return p
}

// ArcExpander converts an SVG elliptical arc command into cubic bezier
// segments appended to the path. `from` is the current point, `to` the arc end point,
// `rotation` is in degrees.
type ArcExpander interface {
	ExpandArc(p *Path, from Point, rx, ry, rotation float64, largeArc, sweep bool, to Point)
}

// ArcExpanderFunc is a function implementing ArcExpander
type ArcExpanderFunc func(p *Path, from Point, rx, ry, rotation float64, largeArc, sweep bool, to Point)

func (f ArcExpanderFunc) ExpandArc(p *Path, from Point, rx, ry, rotation float64, largeArc, sweep bool, to Point) {
	f(p, from, rx, ry, rotation, largeArc, sweep, to)
}

// DefaultArcExpander approximates arcs by the method of L. Maisonobe.
var DefaultArcExpander ArcExpander = ArcExpanderFunc(expandArc)

func expandArc(p *Path, from Point, rx, ry, rotation float64, largeArc, sweep bool, to Point) {
	if from == to {
		return
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 {
		p.Line(to)
		return
	}
	cx, cy := findEllipseCenter(&rx, &ry, rotation*math.Pi/180, from.X, from.Y, to.X, to.Y, !sweep, !largeArc)
	p.addArc([]float64{rx, ry, rotation, b2f(largeArc), b2f(sweep), to.X, to.Y}, cx, cy, from.X, from.Y)
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// addArc adds an arc to the path
func (p *Path) addArc(points []float64, cx, cy, px, py float64) (lx, ly float64) {
	rotX := points[2] * math.Pi / 180 // Convert degress to radians
	largeArc := points[3] != 0
	sweep := points[4] != 0
	startAngle := math.Atan2(py-cy, px-cx) - rotX
	endAngle := math.Atan2(points[6]-cy, points[5]-cx) - rotX
	deltaTheta := endAngle - startAngle
	arcBig := math.Abs(deltaTheta) > math.Pi

	// Approximate ellipse using cubic bezeir splines
	etaStart := math.Atan2(math.Sin(startAngle)/points[1], math.Cos(startAngle)/points[0])
	etaEnd := math.Atan2(math.Sin(endAngle)/points[1], math.Cos(endAngle)/points[0])
	deltaEta := etaEnd - etaStart
	if arcBig != largeArc {
		if deltaEta < 0 {
			deltaEta += math.Pi * 2
		} else {
			deltaEta -= math.Pi * 2
		}
	}
	// This check might be needed if the center point of the elipse is
	// at the midpoint of the start and end lines.
	if deltaEta < 0 && sweep {
		deltaEta += math.Pi * 2
	} else if deltaEta >= 0 && !sweep {
		deltaEta -= math.Pi * 2
	}

	// Round up to determine number of cubic splines to approximate bezier curve
	segs := int(math.Abs(deltaEta)/maxDx) + 1
	dEta := deltaEta / float64(segs) // span of each segment
	// Approximate the ellipse using a set of cubic bezier curves by the method of
	// L. Maisonobe, "Drawing an elliptical arc using polylines, quadratic
	// or cubic Bezier curves", 2003
	// https://www.spaceroots.org/documents/elllipse/elliptical-arc.pdf
	tde := math.Tan(dEta / 2)
	alpha := math.Sin(dEta) * (math.Sqrt(4+3*tde*tde) - 1) / 3 // Math is fun!
	lx, ly = px, py
	sinTheta, cosTheta := math.Sin(rotX), math.Cos(rotX)
	ldx, ldy := ellipsePrime(points[0], points[1], sinTheta, cosTheta, etaStart)
	for i := 1; i <= segs; i++ {
		eta := etaStart + dEta*float64(i)
		var px, py float64
		if i == segs {
			px, py = points[5], points[6] // Just makes the end point exact; no roundoff error
		} else {
			px, py = ellipsePointAt(points[0], points[1], sinTheta, cosTheta, eta, cx, cy)
		}
		dx, dy := ellipsePrime(points[0], points[1], sinTheta, cosTheta, eta)
		p.CubeBezier(Point{lx + alpha*ldx, ly + alpha*ldy},
			Point{px - alpha*dx, py - alpha*dy}, Point{px, py})
		lx, ly, ldx, ldy = px, py, dx, dy
	}
	return lx, ly
}

// ellipsePrime gives tangent vectors for parameterized elipse; a, b, radii, eta parameter
func ellipsePrime(a, b, sinTheta, cosTheta, eta float64) (px, py float64) {
	bCosEta := b * math.Cos(eta)
	aSinEta := a * math.Sin(eta)
	px = -aSinEta*cosTheta - bCosEta*sinTheta
	py = -aSinEta*sinTheta + bCosEta*cosTheta
	return
}

// ellipsePointAt gives points for parameterized elipse; a, b, radii, eta parameter, center cx, cy
func ellipsePointAt(a, b, sinTheta, cosTheta, eta, cx, cy float64) (px, py float64) {
	aCosEta := a * math.Cos(eta)
	bSinEta := b * math.Sin(eta)
	px = cx + aCosEta*cosTheta - bSinEta*sinTheta
	py = cy + aCosEta*sinTheta + bSinEta*cosTheta
	return
}

// findEllipseCenter locates the center of the Ellipse if it exists. If it does not exist,
// the radius values will be increased minimally for a solution to be possible
// while preserving the ra to rb ratio.  ra and rb arguments are pointers that can be
// checked after the call to see if the values changed. This method uses coordinate transformations
// to reduce the problem to finding the center of a circle that includes the origin
// and an arbitrary point. The center of the circle is then transformed
// back to the original coordinates and returned.
func findEllipseCenter(ra, rb *float64, rotX, startX, startY, endX, endY float64, sweep, smallArc bool) (cx, cy float64) {
	cos, sin := math.Cos(rotX), math.Sin(rotX)

	// Move origin to start point
	nx, ny := endX-startX, endY-startY

	// Rotate ellipse x-axis to coordinate x-axis
	nx, ny = nx*cos+ny*sin, -nx*sin+ny*cos
	// Scale X dimension so that ra = rb
	nx *= *rb / *ra // Now the ellipse is a circle radius rb; therefore foci and center coincide

	midX, midY := nx/2, ny/2
	midlenSq := midX*midX + midY*midY

	var hr float64
	if *rb**rb < midlenSq {
		// Requested ellipse does not exist; scale ra, rb to fit. Length of
		// span is greater than max width of ellipse, must scale *ra, *rb
		nrb := math.Sqrt(midlenSq)
		if *ra == *rb {
			*ra = nrb // prevents roundoff
		} else {
			*ra = *ra * nrb / *rb
		}
		*rb = nrb
	} else {
		hr = math.Sqrt(*rb**rb-midlenSq) / math.Sqrt(midlenSq)
	}
	// Notice that if hr is zero, both answers are the same.
	if (sweep && smallArc) || (!sweep && !smallArc) {
		cx = midX + midY*hr
		cy = midY - midX*hr
	} else {
		cx = midX - midY*hr
		cy = midY + midX*hr
	}

	// reverse scale
	cx *= *ra / *rb
	//Reverse rotate and translate back to original coordinates
	return cx*cos - cy*sin + startX, cx*sin + cy*cos + startY
}
