package svgdraw

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

func assertRectInDelta(t *testing.T, expected, got svgpath.Rect) {
	t.Helper()
	assert.InDelta(t, expected.X, got.X, 1e-6, "X")
	assert.InDelta(t, expected.Y, got.Y, 1e-6, "Y")
	assert.InDelta(t, expected.W, got.W, 1e-6, "W")
	assert.InDelta(t, expected.H, got.H, 1e-6, "H")
}

func TestRect(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50">
		<rect x="10" y="10" width="30" height="20" fill="red" stroke="blue" stroke-width="2"/>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assert.Equal(t, PaintFillStroke, rec.paints[0].op)
	assertRectInDelta(t, svgpath.Rect{X: 10, Y: 10, W: 30, H: 20}, rec.paints[0].bbox)
	assert.Equal(t, red, rec.fill)
	assert.Equal(t, blue, rec.stroke)
	assert.Equal(t, 2., rec.lineWidth)
	assert.Contains(t, rec.ops, "rect 10 10 30 20 0 0")
}

func TestGroupTransform(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g transform="translate(10,20)"><circle r="10"/></g>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assert.Equal(t, PaintFill, rec.paints[0].op)
	assertRectInDelta(t, svgpath.Rect{X: 0, Y: 10, W: 20, H: 20}, rec.paints[0].bbox)
}

func TestTransformOrder(t *testing.T) {
	// the rightmost transform is applied first
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" transform="translate(100,0) scale(2)"/>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assertRectInDelta(t, svgpath.Rect{X: 100, Y: 0, W: 20, H: 20}, rec.paints[0].bbox)
}

func TestScaledCircle(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g transform="translate(10,20) scale(2)"><circle cx="0" cy="0" r="5"/></g>
	</svg>`)

	require.Len(t, rec.paints, 1)
	// centered on (10, 20), with radius 10
	assertRectInDelta(t, svgpath.Rect{X: 0, Y: 10, W: 20, H: 20}, rec.paints[0].bbox)
}

func TestUsePositionThenTransform(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><rect id="r" width="5" height="5"/></defs>
		<use href="#r" x="10" transform="scale(2)"/>
	</svg>`)

	require.Len(t, rec.placedCTM, 1)
	origin := rec.placedCTM[0].Apply(svgpath.Point{})
	assert.InDelta(t, 20, origin.X, 1e-9)
	assert.InDelta(t, 0, origin.Y, 1e-9)
	assert.InDelta(t, 2, rec.placedCTM[0].A, 1e-9)
}

func TestNestedViewBoxTransform(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<svg x="10" width="20" height="20" viewBox="0 0 10 10" transform="translate(100,0)">
			<rect width="10" height="10"/>
		</svg>
	</svg>`)

	require.Len(t, rec.paints, 1)
	// the viewBox is mapped to the viewport, then translated
	assertRectInDelta(t, svgpath.Rect{X: 110, Y: 0, W: 20, H: 20}, rec.paints[0].bbox)
}

func TestNestedSvgClip(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<svg x="10" y="20" width="50" height="50" viewBox="0 0 10 10">
			<rect width="20" height="20"/>
		</svg>
	</svg>`)

	assert.Equal(t, 1, rec.clips)
	assert.Contains(t, rec.ops, "rect 0 0 10 10 0 0")
	require.Len(t, rec.paints, 1)
	assertRectInDelta(t, svgpath.Rect{X: 10, Y: 20, W: 100, H: 100}, rec.paints[0].bbox)

	for _, overflow := range []string{"visible", "auto"} {
		rec = mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
			<svg width="50" height="50" overflow="`+overflow+`"><rect width="100" height="100"/></svg>
		</svg>`)
		assert.Zero(t, rec.clips, overflow)
		assert.Len(t, rec.paints, 1)
	}

	// the outermost element is not clipped
	rec = mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="100" height="100"/></svg>`)
	assert.Zero(t, rec.clips)
}

func TestDefaultSessionsDiffer(t *testing.T) {
	first, second := Options{}.withDefaults(), Options{}.withDefaults()
	assert.NotEmpty(t, first.Session)
	assert.NotEqual(t, first.Session, second.Session)
}

func TestViewBox(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 100 100">
		<rect width="50" height="50"/>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assertRectInDelta(t, svgpath.Rect{W: 100, H: 100}, rec.paints[0].bbox)
}

func TestConvertPosition(t *testing.T) {
	opts := quietOptions()
	opts.X, opts.Y = 50, 60
	rec, err := convertString(t, `<svg xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/></svg>`, opts)
	require.NoError(t, err)

	require.Len(t, rec.paints, 1)
	assertRectInDelta(t, svgpath.Rect{X: 50, Y: 60, W: 10, H: 10}, rec.paints[0].bbox)
}

func TestHiddenElements(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" display="none"/>
		<g style="display:none"><rect width="10" height="10"/></g>
		<rect width="10" height="10" visibility="hidden"/>
		<rect width="0" height="10"/>
		<rect width="10" height="-5"/>
		<circle r="-1"/>
		<ellipse rx="0" ry="4"/>
		<rect width="10" height="10" fill="none"/>
		<defs><rect width="10" height="10"/></defs>
	</svg>`)

	assert.Empty(t, rec.paints)
}

func TestVisibleChildOfHiddenGroup(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g visibility="hidden">
			<rect width="10" height="10"/>
			<rect width="20" height="20" visibility="visible"/>
		</g>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assertRectInDelta(t, svgpath.Rect{W: 20, H: 20}, rec.paints[0].bbox)
}

func TestOpacityCompounds(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g opacity="0.5"><g opacity="0.5">
			<rect width="10" height="10" opacity="0.5"/>
		</g></g>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assert.InDelta(t, 0.125, rec.opacity[0], 1e-9)
	assert.InDelta(t, 0.125, rec.opacity[1], 1e-9)
}

func TestColorAlphaOpacity(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" fill="rgba(255,0,0,0.5)" fill-opacity="0.5"/>
	</svg>`)

	assert.Equal(t, red, rec.fill)
	assert.InDelta(t, 0.25, rec.opacity[0], 0.01)
}

func TestGradientStops(t *testing.T) {
	t.Run("no stops", func(t *testing.T) {
		rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
			<defs><linearGradient id="g"/></defs>
			<rect width="10" height="10" fill="url(#g)"/>
		</svg>`)
		assert.Empty(t, rec.paints)
		assert.Empty(t, rec.shadings)
	})

	t.Run("one stop", func(t *testing.T) {
		rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
			<defs><linearGradient id="g"><stop offset="0.3" stop-color="red" stop-opacity="0.5"/></linearGradient></defs>
			<rect width="10" height="10" fill="url(#g)"/>
		</svg>`)
		require.Len(t, rec.paints, 1)
		assert.Equal(t, red, rec.fill)
		assert.InDelta(t, 0.5, rec.opacity[0], 0.01)
		assert.Empty(t, rec.shadings)
	})

	t.Run("two stops", func(t *testing.T) {
		rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
			<defs><linearGradient id="g">
				<stop offset="0" stop-color="red"/>
				<stop offset="1" stop-color="blue"/>
			</linearGradient></defs>
			<rect x="10" y="10" width="20" height="10" fill="url(#g)"/>
		</svg>`)
		require.Len(t, rec.paints, 1)
		require.Len(t, rec.shadings, 1)
		assert.Equal(t, 1, rec.count("fill-pattern"))
		for _, grad := range rec.shadings {
			assert.Len(t, grad.Stops, 2)
			// objectBoundingBox units map the unit square to the rect
			p := grad.Matrix.Apply(svgpath.Point{X: 1, Y: 1})
			assert.InDelta(t, 30, p.X, 1e-9)
			assert.InDelta(t, 20, p.Y, 1e-9)
		}
	})

	t.Run("inherited stops", func(t *testing.T) {
		rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
			<defs>
				<linearGradient id="base"><stop offset="0" stop-color="red"/><stop offset="1" stop-color="blue"/></linearGradient>
				<radialGradient id="g" href="#base" r="0.25"/>
			</defs>
			<rect width="10" height="10" fill="url(#g)"/>
		</svg>`)
		require.Len(t, rec.shadings, 1)
		for _, grad := range rec.shadings {
			require.True(t, grad.IsRadial())
			assert.InDelta(t, 0.25, grad.Direction.(svgpath.Radial)[4], 1e-9)
		}
	})
}

func TestGradientOnDegenerateBox(t *testing.T) {
	// a horizontal line has no height: the gradient is dropped
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><linearGradient id="g"><stop offset="0" stop-color="red"/><stop offset="1" stop-color="blue"/></linearGradient></defs>
		<line x1="0" y1="5" x2="10" y2="5" stroke="url(#g)"/>
	</svg>`)
	assert.Empty(t, rec.shadings)
	assert.Empty(t, rec.paints)
}

func TestPaintFallback(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" fill="url(#missing) red"/>
	</svg>`)
	require.Len(t, rec.paints, 1)
	assert.Equal(t, red, rec.fill)
}

func TestUseRendersOnce(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><rect id="r" width="10" height="10"/></defs>
		<use href="#r"/>
		<use href="#r" x="20"/>
	</svg>`)

	require.Len(t, rec.forms, 1)
	require.Len(t, rec.placed, 2)
	assert.Equal(t, rec.forms[0], rec.placed[0])
	assert.Equal(t, rec.forms[0], rec.placed[1])
	assert.Len(t, rec.paints, 1)
}

func TestUseFillVariants(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><path id="p" d="M0 0 L10 0 L10 10 Z"/></defs>
		<use href="#p" fill="red"/>
		<use href="#p" fill="blue"/>
		<use href="#p" fill="red" x="5"/>
	</svg>`)

	assert.Len(t, rec.forms, 2)
	assert.Len(t, rec.placed, 3)
}

func TestSymbol(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<symbol id="s" viewBox="0 0 10 10"><rect width="10" height="10"/></symbol>
		<use href="#s" width="100" height="100"/>
	</svg>`)

	// the symbol itself is not drawn
	require.Len(t, rec.forms, 1)
	require.Len(t, rec.placedCTM, 1)
	assert.InDelta(t, 10, rec.placedCTM[0].A, 1e-9)
	assert.InDelta(t, 10, rec.placedCTM[0].D, 1e-9)
}

func TestReferenceCycle(t *testing.T) {
	const svg = `<svg xmlns="http://www.w3.org/2000/svg">
		<g id="a"><rect width="10" height="10"/><use href="#a"/></g>
	</svg>`

	rec, err := convertString(t, svg, quietOptions())
	require.NoError(t, err)
	assert.Len(t, rec.paints, 2) // the group, and its first instance

	opts := quietOptions()
	opts.ErrorMode = StrictErrorMode
	_, err = convertString(t, svg, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReferenceCycle))
}

func TestUnsupportedElement(t *testing.T) {
	const svg = `<svg xmlns="http://www.w3.org/2000/svg"><foreignObject/><rect width="1" height="1"/></svg>`

	rec, err := convertString(t, svg, quietOptions())
	require.NoError(t, err)
	assert.Len(t, rec.paints, 1)

	opts := quietOptions()
	opts.ErrorMode = StrictErrorMode
	_, err = convertString(t, svg, opts)
	assert.Error(t, err)
}

func TestArcsDisabled(t *testing.T) {
	opts := quietOptions()
	opts.DisableArcs = true
	_, err := convertString(t, `<svg xmlns="http://www.w3.org/2000/svg"><path d="M0 0 A5 5 0 0 1 10 0"/></svg>`, opts)
	assert.True(t, errors.Is(err, svgpath.ErrArcUnsupported))
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ConvertReader(ctx, strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"><rect width="1" height="1"/></svg>`),
		newRecorder(), quietOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClipPath(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<clipPath id="c"><circle cx="5" cy="5" r="5"/></clipPath>
		<rect width="10" height="10" clip-path="url(#c)"/>
		<rect width="10" height="10" clip-path="url(#missing)"/>
	</svg>`)

	assert.Equal(t, 1, rec.clips)
	// the clip path geometry is not painted, and the
	// element with an invalid reference is skipped
	assert.Len(t, rec.paints, 1)
}

func TestMarkers(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<marker id="m" markerWidth="4" markerHeight="4" orient="auto"><circle r="1"/></marker>
		<path d="M0 0 L10 0 L20 10" stroke="black" fill="none"
			marker-start="url(#m)" marker-mid="url(#m)" marker-end="url(#m)"/>
	</svg>`)

	assert.Len(t, rec.forms, 1)
	assert.Len(t, rec.placed, 3)
}

func TestPattern(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<pattern id="p" width="0.5" height="0.5"><rect width="2" height="2" fill="red"/></pattern>
		<rect width="10" height="20" fill="url(#p)"/>
		<rect width="10" height="20" fill="url(#p)"/>
	</svg>`)

	assert.Len(t, rec.forms, 1)
	require.Len(t, rec.patterns, 2)
	for _, pattern := range rec.patterns {
		assert.Equal(t, rec.forms[0], pattern.Form)
		assert.InDelta(t, 5, pattern.Width, 1e-9)
		assert.InDelta(t, 10, pattern.Height, 1e-9)
	}
}

func TestStyleSheet(t *testing.T) {
	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<style>.warn { fill: red } #big { stroke-width: 4px; stroke: blue }</style>
		<rect class="warn" id="big" width="10" height="10" fill="green"/>
	</svg>`)

	require.Len(t, rec.paints, 1)
	assert.Equal(t, red, rec.fill)
	assert.Equal(t, 4., rec.lineWidth)
}

func TestImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 1))))
	pixels := base64.StdEncoding.EncodeToString(buf.Bytes())

	rec := mustConvert(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<image width="10" height="20" href="data:image/png;base64,`+pixels+`"/>
		<image width="10" height="20" href="http://example.com/image.png"/>
	</svg>`)

	require.Len(t, rec.images, 1)
	assert.Equal(t, "png", rec.images[0].Format)
	assert.Equal(t, 2, rec.images[0].Width)
	assert.Equal(t, 1, rec.images[0].Height)
	// meet: the image is scaled by 5 and centered vertically
	assert.InDelta(t, 5, rec.imageCTM[0].A, 1e-9)
	assert.InDelta(t, 7.5, rec.imageCTM[0].F, 1e-9)
}

func TestDocumentSize(t *testing.T) {
	for _, test := range []struct {
		svg  string
		opts Options
		w, h float64
	}{
		{`<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"/>`, Options{}, 200, 100},
		{`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 30"/>`, Options{}, 40, 30},
		{`<svg xmlns="http://www.w3.org/2000/svg" width="80" viewBox="0 0 40 30"/>`, Options{}, 80, 60},
		{`<svg xmlns="http://www.w3.org/2000/svg" width="50%" height="10"/>`, Options{}, 300, 10},
		{`<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"/>`, Options{Width: 20, Height: 30}, 20, 30},
	} {
		doc, err := svgdom.Parse(strings.NewReader(test.svg))
		require.NoError(t, err)
		test.opts.Logger = quietOptions().Logger
		w, h, err := DocumentSize(doc, test.opts, 600, 800)
		require.NoError(t, err)
		assert.InDelta(t, test.w, w, 1e-9, test.svg)
		assert.InDelta(t, test.h, h, 1e-9, test.svg)
	}

	_, _, err := DocumentSize(nil, Options{}, 600, 800)
	assert.ErrorIs(t, err, svgdom.ErrInvalidDocument)
}
