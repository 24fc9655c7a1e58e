package svgdraw

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextAnchor(t *testing.T) {
	// the recorder measures 8 units per glyph at size 16
	for _, test := range []struct {
		anchor string
		x      float64
	}{
		{"start", 100},
		{"middle", 88},
		{"end", 76},
	} {
		rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
			<text x="100" y="50" text-anchor="`+test.anchor+`">abc</text>
		</svg>`)
		require.Len(t, rec.texts, 1)
		assert.Equal(t, "abc", rec.texts[0].text)
		assert.InDelta(t, test.x, rec.texts[0].x, 1e-9, test.anchor)
		assert.InDelta(t, 50, rec.texts[0].y, 1e-9)
		assert.Equal(t, TextFill, rec.texts[0].opts.Mode)
	}
}

func TestTextWhitespace(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text x="0" y="10">
			Hello   <tspan fill="red">world</tspan>
		</text>
	</svg>`)

	require.Len(t, rec.texts, 2)
	assert.Equal(t, "Hello ", rec.texts[0].text)
	assert.Equal(t, "world", rec.texts[1].text)
	assert.InDelta(t, 48, rec.texts[1].x, 1e-9)
	assert.Equal(t, red, rec.texts[1].fill)

	rec = mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text xml:space="preserve">a	 b</text>
	</svg>`)
	require.Len(t, rec.texts, 1)
	assert.Equal(t, "a  b", rec.texts[0].text)
}

func TestTextChunks(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text x="10" y="20">ab<tspan x="100" y="40" text-anchor="end">cd</tspan><tspan dx="5">e</tspan></text>
	</svg>`)

	require.Len(t, rec.texts, 3)
	assert.InDelta(t, 10, rec.texts[0].x, 1e-9)
	// the second chunk ("cd" and "e") is aligned as a whole
	assert.InDelta(t, 100-(16+5+8), rec.texts[1].x, 1e-9)
	assert.InDelta(t, 40, rec.texts[1].y, 1e-9)
	assert.InDelta(t, 100-8, rec.texts[2].x, 1e-9)
	assert.InDelta(t, 40, rec.texts[2].y, 1e-9)
}

func TestTextRenderMode(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text fill="none" stroke="blue">a</text>
		<text stroke="blue">b</text>
		<text fill="none">c</text>
		<text visibility="hidden">d</text>
	</svg>`)

	require.Len(t, rec.texts, 3)
	assert.Equal(t, TextStroke, rec.texts[0].opts.Mode)
	assert.Equal(t, TextFillStroke, rec.texts[1].opts.Mode)
	assert.Equal(t, TextInvisible, rec.texts[2].opts.Mode)
}

func TestTextFont(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text font-family="'Unknown Font', Arial" font-weight="700" font-style="italic" font-size="2em">a</text>
		<text font-family="Unknown">b</text>
		<text font-family="courier" font-size="larger">c</text>
	</svg>`)

	require.Len(t, rec.texts, 3)
	assert.Equal(t, Font{Family: "helvetica", Style: Bold | Italic, Size: 32}, rec.texts[0].opts.Font)
	assert.Equal(t, "times", rec.texts[1].opts.Font.Family)
	assert.InDelta(t, 16*1.2, rec.texts[2].opts.Font.Size, 1e-9)
}

func TestTextBaseline(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text y="100" dominant-baseline="middle" font-size="10">a</text>
		<text y="100" alignment-baseline="hanging" font-size="10">a</text>
	</svg>`)

	require.Len(t, rec.texts, 2)
	assert.InDelta(t, 103.5, rec.texts[0].y, 1e-9)
	assert.InDelta(t, 108, rec.texts[1].y, 1e-9)
}

func TestTextGradientFallback(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<linearGradient id="g"><stop offset="0" stop-color="red"/><stop offset="1" stop-color="red"/></linearGradient>
		<text fill="url(#g)">a</text>
	</svg>`)

	require.Len(t, rec.texts, 1)
	assert.Equal(t, red, rec.texts[0].fill)
	assert.Empty(t, rec.shadings)
}

func TestMeasureStrategy(t *testing.T) {
	logger := log.New(io.Discard)
	constant := func(w float64) MeasureFunc {
		return func(string, Font) (float64, bool) { return w, true }
	}

	tm := NewTextMeasure(constant(100), constant(100.05), logger)
	assert.True(t, tm.UsesFast("times"))
	assert.Equal(t, 100., tm.Measure("a", Font{Family: "times", Size: 12}))

	tm = NewTextMeasure(constant(100), constant(101), logger)
	assert.False(t, tm.UsesFast("times"))
	assert.Equal(t, 101., tm.Measure("a", Font{Family: "times", Size: 12}))

	unsupported := func(string, Font) (float64, bool) { return 0, false }
	tm = NewTextMeasure(unsupported, constant(7), logger)
	assert.False(t, tm.UsesFast("times"))

	tm = NewTextMeasure(nil, constant(7), logger)
	assert.Equal(t, 7., tm.Measure("a", Font{Family: "go", Size: 12}))
}

func TestFontFaces(t *testing.T) {
	ff := NewFontFaces()

	w, ok := ff.Measure("mmmm", Font{Family: "go mono", Size: 10})
	require.True(t, ok)
	w1, _ := ff.Measure("m", Font{Family: "go mono", Size: 10})
	assert.InDelta(t, 4*w1, w, 1e-9)
	assert.Greater(t, w1, 0.)

	wide, _ := ff.Measure("mmmm", Font{Family: "go", Size: 10})
	narrow, _ := ff.Measure("iiii", Font{Family: "go", Size: 10})
	assert.Greater(t, wide, narrow)

	// bold is used when available
	_, ok = ff.Measure("a", Font{Family: "go", Style: Bold, Size: 10})
	assert.True(t, ok)

	_, ok = ff.Measure("a", Font{Family: "unknown", Size: 10})
	assert.False(t, ok)

	assert.Error(t, ff.Register("broken", Regular, []byte("not a font")))
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, " a b ", collapseSpaces(" a \t\t b  "))
	assert.Equal(t, "ab", collapseSpaces("a\nb"))
	assert.Equal(t, "a   b", preserveSpaces("a\n\t b"))
}
