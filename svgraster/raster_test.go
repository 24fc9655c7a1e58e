package svgraster

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOptions() Options {
	return Options{Convert: svgdraw.Options{Logger: log.New(io.Discard), Session: "test"}}
}

func saveToPngFile(t *testing.T, name string, m image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll("testdata_out", 0o755))
	f, err := os.Create(filepath.Join("testdata_out", name+".png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, m))
}

// renderString rasterizes the SVG and saves the result
// in testdata_out/<name>.png
func renderString(t *testing.T, name, svg string, opts Options) *image.RGBA {
	t.Helper()
	img, err := RasterSVGToImage(context.Background(), strings.NewReader(svg), opts)
	require.NoError(t, err)
	saveToPngFile(t, name, img)
	return img
}

func assertColor(t *testing.T, expected color.NRGBA, img image.Image, x, y int) {
	t.Helper()
	got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	assert.InDelta(t, expected.R, got.R, 5, "R at (%d, %d)", x, y)
	assert.InDelta(t, expected.G, got.G, 5, "G at (%d, %d)", x, y)
	assert.InDelta(t, expected.B, got.B, 5, "B at (%d, %d)", x, y)
	assert.InDelta(t, expected.A, got.A, 5, "A at (%d, %d)", x, y)
}

var (
	transparent = color.NRGBA{}
	red         = color.NRGBA{R: 0xff, A: 0xff}
	blue        = color.NRGBA{B: 0xff, A: 0xff}
	black       = color.NRGBA{A: 0xff}
	white       = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func TestRect(t *testing.T) {
	img := renderString(t, "rect", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<rect x="10" y="10" width="40" height="40" fill="red"/>
	</svg>`, quietOptions())

	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assertColor(t, red, img, 30, 30)
	assertColor(t, transparent, img, 5, 5)
	assertColor(t, transparent, img, 60, 60)
}

func TestScale(t *testing.T) {
	opts := quietOptions()
	opts.Scale = 2
	img := renderString(t, "scale", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50">
		<rect x="10" y="10" width="40" height="20" fill="blue"/>
	</svg>`, opts)

	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	assertColor(t, blue, img, 90, 50)
	assertColor(t, transparent, img, 110, 50)
}

func TestStroke(t *testing.T) {
	img := renderString(t, "stroke", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<line x1="10" y1="50" x2="90" y2="50" stroke="black" stroke-width="4"/>
		<line x1="10" y1="80" x2="90" y2="80" stroke="black" stroke-width="4" stroke-dasharray="10 10"/>
	</svg>`, quietOptions())

	assertColor(t, black, img, 50, 50)
	assertColor(t, transparent, img, 50, 45)
	// dashes
	assertColor(t, black, img, 15, 80)
	assertColor(t, transparent, img, 25, 80)
}

func TestOpacity(t *testing.T) {
	opts := quietOptions()
	opts.Background = color.White
	img := renderString(t, "opacity", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<rect width="50" height="50" fill="red" fill-opacity="0.5"/>
	</svg>`, opts)

	assertColor(t, color.NRGBA{R: 0xff, G: 0x80, B: 0x80, A: 0xff}, img, 25, 25)
	assertColor(t, white, img, 75, 75)
}

func TestClipPath(t *testing.T) {
	img := renderString(t, "clip", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<clipPath id="c"><circle cx="50" cy="50" r="40"/></clipPath>
		<rect width="100" height="100" fill="red" clip-path="url(#c)"/>
	</svg>`, quietOptions())

	assertColor(t, red, img, 50, 50)
	assertColor(t, transparent, img, 12, 12)
	assertColor(t, transparent, img, 95, 50)
}

func TestLinearGradient(t *testing.T) {
	img := renderString(t, "linear_gradient", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<linearGradient id="g" gradientUnits="userSpaceOnUse" x1="0" y1="0" x2="100" y2="0">
			<stop offset="0" stop-color="red"/>
			<stop offset="1" stop-color="blue"/>
		</linearGradient>
		<rect width="100" height="100" fill="url(#g)"/>
	</svg>`, quietOptions())

	assertColor(t, red, img, 0, 50)
	assertColor(t, blue, img, 99, 50)
	assertColor(t, color.NRGBA{R: 0x80, B: 0x80, A: 0xff}, img, 50, 10)
}

func TestGradientParams(t *testing.T) {
	linear := linearParam(svgpath.Linear{10, 0, 20, 0})
	tv, ok := linear(svgpath.Point{X: 15, Y: 42})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, tv, 1e-9)
	assert.Nil(t, linearParam(svgpath.Linear{10, 10, 10, 10}))

	radial := radialParam(svgpath.Radial{50, 50, 50, 50, 50, 0})
	for _, test := range []struct {
		p        svgpath.Point
		expected float64
	}{
		{svgpath.Point{X: 50, Y: 50}, 0},
		{svgpath.Point{X: 75, Y: 50}, 0.5},
		{svgpath.Point{X: 50, Y: 0}, 1},
		{svgpath.Point{X: 150, Y: 50}, 2},
	} {
		tv, ok := radial(test.p)
		assert.True(t, ok)
		assert.InDelta(t, test.expected, tv, 1e-9)
	}

	// focal point on the left of the center
	focal := radialParam(svgpath.Radial{50, 50, 25, 50, 50, 0})
	tv, ok = focal(svgpath.Point{X: 25, Y: 50})
	assert.True(t, ok)
	assert.InDelta(t, 0, tv, 1e-9)
	tv, ok = focal(svgpath.Point{X: 100, Y: 50})
	assert.True(t, ok)
	assert.InDelta(t, 1, tv, 1e-9)

	assert.Nil(t, radialParam(svgpath.Radial{50, 50, 50, 50, 0, 0}))
}

func TestRadialGradient(t *testing.T) {
	img := renderString(t, "radial_gradient", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<radialGradient id="g">
			<stop offset="0" stop-color="white"/>
			<stop offset="1" stop-color="black"/>
		</radialGradient>
		<rect width="100" height="100" fill="url(#g)"/>
	</svg>`, quietOptions())

	assertColor(t, white, img, 50, 50)
	assertColor(t, black, img, 1, 1)
}

func TestPattern(t *testing.T) {
	img := renderString(t, "pattern", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<pattern id="p" patternUnits="userSpaceOnUse" width="10" height="10">
			<circle cx="5" cy="5" r="4" fill="red"/>
		</pattern>
		<rect width="30" height="30" fill="url(#p)"/>
	</svg>`, quietOptions())

	assertColor(t, red, img, 5, 5)
	assertColor(t, red, img, 25, 25)
	assertColor(t, transparent, img, 0, 0)
	assertColor(t, transparent, img, 35, 35)
}

func TestUse(t *testing.T) {
	img := renderString(t, "use", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<defs><rect id="r" width="10" height="10"/></defs>
		<use href="#r" fill="red"/>
		<use href="#r" x="50" fill="blue"/>
	</svg>`, quietOptions())

	assertColor(t, red, img, 5, 5)
	assertColor(t, blue, img, 55, 5)
	assertColor(t, transparent, img, 25, 5)
}

func TestText(t *testing.T) {
	img := renderString(t, "text", `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="50">
		<text x="10" y="35" font-family="Helvetica" font-size="30">Hello</text>
	</svg>`, quietOptions())

	painted := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			painted++
		}
	}
	assert.Greater(t, painted, 100)
	// nothing above the ascent
	assertColor(t, transparent, img, 50, 2)
}

func TestFonts(t *testing.T) {
	b := New(image.NewRGBA(image.Rect(0, 0, 10, 10)))
	assert.True(t, b.HasFont("Helvetica", svgdraw.Regular))
	assert.True(t, b.HasFont("go mono", svgdraw.Bold))
	assert.False(t, b.HasFont("unknown", svgdraw.Regular))

	small := b.MeasureText("Hello", svgdraw.Font{Family: "times", Size: 10})
	large := b.MeasureText("Hello", svgdraw.Font{Family: "times", Size: 20})
	assert.Greater(t, small, 0.)
	assert.InDelta(t, 2*small, large, 0.5)

	assert.Error(t, b.AddFont("broken", svgdraw.Regular, []byte("not a font")))
}

func TestImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		src.Set(i%2, i/2, red)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	href := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	img := renderString(t, "image", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<image href="`+href+`" x="10" y="10" width="20" height="20"/>
	</svg>`, quietOptions())

	assertColor(t, red, img, 20, 20)
	assertColor(t, transparent, img, 50, 50)
}

func TestUnbalancedRestore(t *testing.T) {
	b := New(image.NewRGBA(image.Rect(0, 0, 10, 10)))
	b.Save()
	b.Restore()
	assert.NoError(t, b.Err())
	b.Restore()
	assert.Error(t, b.Err())
}

func TestInvalidDocument(t *testing.T) {
	_, err := RasterSVGToImage(context.Background(), strings.NewReader("<html></html>"), quietOptions())
	assert.Error(t, err)
}
