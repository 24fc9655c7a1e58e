package svgpath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumbers(t *testing.T) {
	for _, test := range []struct {
		input    string
		expected []float64
	}{
		{"", nil},
		{"1 2 3", []float64{1, 2, 3}},
		{"1,2,3", []float64{1, 2, 3}},
		{" 10, 20 ,30 ", []float64{10, 20, 30}},
		{"1-2", []float64{1, -2}},
		{"0.5.5", []float64{0.5, 0.5}},
		{"1e2-3", []float64{100, -3}},
		{"-1.5e-1", []float64{-0.15}},
		{"+4", []float64{4}},
	} {
		got, err := ParseNumbers(test.input)
		require.NoError(t, err, test.input)
		if len(test.expected) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.InDeltaSlice(t, test.expected, got, 1e-9, test.input)
	}

	_, err := ParseNumbers("1 2 x")
	assert.Error(t, err)
}

func TestParsePathLines(t *testing.T) {
	p, err := ParsePathData("M 10 10 L 20 10 H 30 V 40 h -10 v -5 Z", nil)
	require.NoError(t, err)
	assert.Equal(t, Path{
		MoveTo{10, 10},
		LineTo{20, 10},
		LineTo{30, 10},
		LineTo{30, 40},
		LineTo{20, 40},
		LineTo{20, 35},
		Close{},
	}, p)
}

func TestParsePathImplicitCommands(t *testing.T) {
	// extra pairs after a moveto are linetos
	p, err := ParsePathData("m10 10 5 0 0 5z m 1 1 l1 1", nil)
	require.NoError(t, err)
	assert.Equal(t, Path{
		MoveTo{10, 10},
		LineTo{15, 10},
		LineTo{15, 15},
		Close{},
		MoveTo{11, 11},
		LineTo{12, 12},
	}, p)

	// drawing after a close starts a new sub-path
	p, err = ParsePathData("M0 0 L 5 0 Z L 0 5", nil)
	require.NoError(t, err)
	assert.Equal(t, Path{
		MoveTo{0, 0},
		LineTo{5, 0},
		Close{},
		MoveTo{0, 0},
		LineTo{0, 5},
	}, p)
}

func TestParsePathQuadratic(t *testing.T) {
	p, err := ParsePathData("M0 0 Q 3 3 6 0 T 12 0", nil)
	require.NoError(t, err)
	require.Len(t, p, 3)

	c1, c2 := QuadToCubic(Point{0, 0}, Point{3, 3}, Point{6, 0})
	assert.Equal(t, CubicTo{c1, c2, {6, 0}}, p[1])

	// the control point of T is the reflection of (3, 3) around (6, 0)
	c1, c2 = QuadToCubic(Point{6, 0}, Point{9, -3}, Point{12, 0})
	assert.Equal(t, CubicTo{c1, c2, {12, 0}}, p[2])
}

func TestParsePathSmoothCubic(t *testing.T) {
	p, err := ParsePathData("M0 0 C 1 2 3 2 4 0 S 7 -2 8 0", nil)
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.Equal(t, CubicTo{{5, -2}, {7, -2}, {8, 0}}, p[2])

	// without a previous cubic, the first control point is the current point
	p, err = ParsePathData("M1 1 s 2 2 4 0", nil)
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, CubicTo{{1, 1}, {3, 3}, {5, 1}}, p[1])

	// T after a cubic collapses to the current point
	p, err = ParsePathData("M0 0 C 1 2 3 2 4 0 T 8 0", nil)
	require.NoError(t, err)
	c1, c2 := QuadToCubic(Point{4, 0}, Point{4, 0}, Point{8, 0})
	assert.Equal(t, CubicTo{c1, c2, {8, 0}}, p[2])
}

func TestParsePathRelativeCubic(t *testing.T) {
	p, err := ParsePathData("M10 10 c 1 1 2 2 3 3 1 1 2 2 3 3", nil)
	require.NoError(t, err)
	assert.Equal(t, Path{
		MoveTo{10, 10},
		CubicTo{{11, 11}, {12, 12}, {13, 13}},
		CubicTo{{14, 14}, {15, 15}, {16, 16}},
	}, p)
}

func TestParsePathArcs(t *testing.T) {
	_, err := ParsePathData("M0 0 A 5 5 0 0 1 10 0", nil)
	assert.True(t, errors.Is(err, ErrArcUnsupported))

	p, err := ParsePathData("M0 0 A 5 5 0 0 1 10 0", DefaultArcExpander)
	require.NoError(t, err)
	require.Greater(t, len(p), 1)
	last, ok := p[len(p)-1].(CubicTo)
	require.True(t, ok)
	assert.Equal(t, Point{10, 0}, last[2])
	// a half circle of radius 5, sweeping through positive y
	box := p.BoundingBox()
	assert.InDelta(t, 5, box.H, 0.05)

	// compact flags
	p2, err := ParsePathData("M0 0 a5 5 0 0110 0", DefaultArcExpander)
	require.NoError(t, err)
	assert.Equal(t, p, p2)

	var calls int
	counter := ArcExpanderFunc(func(p *Path, from Point, rx, ry, rotation float64, largeArc, sweep bool, to Point) {
		calls++
		assert.Equal(t, Point{1, 1}, from)
		assert.Equal(t, Point{4, 5}, to)
		assert.True(t, largeArc)
		assert.False(t, sweep)
		p.Line(to)
	})
	_, err = ParsePathData("M1 1 a 2 3 30 1 0 3 4", counter)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestParsePathInvalid(t *testing.T) {
	for _, d := range []string{
		"M 10",
		"L 10 10 20",
		"M 0 0 Z 5",
		"10 10 L 20 20",
		"M 0 0 X 2",
		"M 0 0 A 1 1 0 2 0 3 3",
	} {
		p, err := ParsePathData(d, DefaultArcExpander)
		assert.Error(t, err, d)
		assert.Nil(t, p, d)
	}
}

func TestToSVGPath(t *testing.T) {
	p, err := ParsePathData("M1 2L3 4Z", nil)
	require.NoError(t, err)
	assert.Equal(t, "M1.000,2.000 L3.000,4.000 Z", p.String())
}
