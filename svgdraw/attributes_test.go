package svgdraw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashArray(t *testing.T) {
	ctx := &Context{Attributes: DefaultAttributeState()}
	for _, test := range []struct {
		value    string
		expected []float64
	}{
		{"none", nil},
		{"", nil},
		{"5", []float64{5, 5}},
		{"5, 10", []float64{5, 10}},
		{"1 2 3", []float64{1, 2, 3, 1, 2, 3}},
		{"0 0", nil},
		{"5 -1", nil},
		{"5 abc", nil},
	} {
		assert.Equal(t, test.expected, ctx.parseDashArray(test.value), test.value)
	}
}

func TestFontStyle(t *testing.T) {
	st := DefaultAttributeState()
	assert.Equal(t, Regular, st.fontStyle())
	st.FontWeight = "600"
	assert.Equal(t, Bold, st.fontStyle())
	st.FontWeight = "bolder"
	st.FontStyle = "oblique"
	assert.Equal(t, Bold|Italic, st.fontStyle())
	st.FontWeight = "300"
	assert.Equal(t, Italic, st.fontStyle())
}

func TestStrokeAttributes(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g stroke="red" stroke-linecap="round" stroke-linejoin="bevel" stroke-dasharray="4 2" stroke-dashoffset="1">
			<path d="M0 0 L10 10" stroke-miterlimit="0.5"/>
		</g>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assert.Equal(t, PaintFillStroke, rec.paints[0].op)
	assert.Contains(t, rec.ops, "line-cap RoundCap")
	assert.Contains(t, rec.ops, "line-join Bevel")
	assert.Contains(t, rec.ops, "dash [4 2] 1")
	// invalid miter limits are ignored
	assert.Equal(t, 1, rec.count("miter-limit"))
}

func TestNoRedundantState(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g fill="red">
			<rect width="1" height="1"/>
			<rect width="1" height="1"/>
		</g>
	</svg>`)

	// once for the defaults, once for the group
	assert.Equal(t, 2, rec.count("fill-color"))
	assert.Equal(t, 1, rec.count("line-width"))
}
