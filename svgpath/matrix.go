package svgpath

import "math"

// Matrix2D represents an SVG style affine matrix,
// mapping (x, y) to (A*x + C*y + E, B*x + D*y + F).
type Matrix2D struct {
	A, B, C, D, E, F float64
}

// Identity is the neutral transformation.
var Identity = Matrix2D{1, 0, 0, 1, 0, 0}

// Mult returns a * b : the resulting transformation
// applies `b` first and then `a`.
func (a Matrix2D) Mult(b Matrix2D) Matrix2D {
	return Matrix2D{
		A: a.A*b.A + a.C*b.B,
		B: a.B*b.A + a.D*b.B,
		C: a.A*b.C + a.C*b.D,
		D: a.B*b.C + a.D*b.D,
		E: a.A*b.E + a.C*b.F + a.E,
		F: a.B*b.E + a.D*b.F + a.F,
	}
}

// Determinant returns AD - BC.
func (a Matrix2D) Determinant() float64 { return a.A*a.D - a.B*a.C }

// IsInvertible returns false for degenerate matrices,
// which for instance result from scale(0).
func (a Matrix2D) IsInvertible() bool {
	det := a.Determinant()
	return det != 0 && !math.IsNaN(det) && !math.IsInf(det, 0)
}

// Invert returns the inverse matrix, or Identity
// if `a` is not invertible.
func (a Matrix2D) Invert() Matrix2D {
	det := a.Determinant()
	if det == 0 {
		return Identity
	}
	return Matrix2D{
		A: a.D / det,
		B: -a.B / det,
		C: -a.C / det,
		D: a.A / det,
		E: (a.C*a.F - a.D*a.E) / det,
		F: (a.B*a.E - a.A*a.F) / det,
	}
}

// Transform applies the matrix to the point (x1, y1).
func (a Matrix2D) Transform(x1, y1 float64) (x2, y2 float64) {
	return a.A*x1 + a.C*y1 + a.E, a.B*x1 + a.D*y1 + a.F
}

// TransformVector applies the linear part of the matrix,
// ignoring the translation.
func (a Matrix2D) TransformVector(x1, y1 float64) (x2, y2 float64) {
	return a.A*x1 + a.C*y1, a.B*x1 + a.D*y1
}

// Apply transforms the point.
func (a Matrix2D) Apply(p Point) Point {
	x, y := a.Transform(p.X, p.Y)
	return Point{x, y}
}

// Scale post-multiplies by a scaling.
func (a Matrix2D) Scale(x, y float64) Matrix2D {
	return a.Mult(Matrix2D{A: x, D: y})
}

// SkewY post-multiplies by a vertical skew of `theta` radians.
func (a Matrix2D) SkewY(theta float64) Matrix2D {
	return a.Mult(Matrix2D{A: 1, B: math.Tan(theta), D: 1})
}

// SkewX post-multiplies by an horizontal skew of `theta` radians.
func (a Matrix2D) SkewX(theta float64) Matrix2D {
	return a.Mult(Matrix2D{A: 1, C: math.Tan(theta), D: 1})
}

// Translate post-multiplies by a translation.
func (a Matrix2D) Translate(x, y float64) Matrix2D {
	return a.Mult(Matrix2D{A: 1, D: 1, E: x, F: y})
}

// Rotate post-multiplies by a rotation of `theta` radians.
func (a Matrix2D) Rotate(theta float64) Matrix2D {
	s, c := math.Sincos(theta)
	return a.Mult(Matrix2D{A: c, B: s, C: -s, D: c})
}

// ScaleFactor returns the geometric mean of the scaling
// along both axis, used to convert lengths such as a line width.
func (a Matrix2D) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(a.Determinant()))
}

// IsIdentity returns true if `a` is the neutral transformation.
func (a Matrix2D) IsIdentity() bool { return a == Identity }
