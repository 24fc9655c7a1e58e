package svgpdf

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
	"regexp"
	"strings"
	"testing"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/charmbracelet/log"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func parse(t *testing.T, svg string) *svgdom.Document {
	t.Helper()
	doc, err := svgdom.Parse(strings.NewReader(svg))
	require.NoError(t, err)
	return doc
}

func quietOptions() Options {
	return Options{
		NoCompression: true,
		Convert:       svgdraw.Options{Logger: log.New(io.Discard), Session: "test"},
	}
}

// renderString returns the uncompressed PDF file,
// also saved in testdata_out/<name>.pdf
func renderString(t *testing.T, name, svg string, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(context.Background(), parse(t, svg), &buf, opts))

	require.NoError(t, os.MkdirAll("testdata_out", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("testdata_out", name+".pdf"), buf.Bytes(), 0o644))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "%PDF-"))
	return out
}

func countMatches(pattern, s string) int {
	return len(regexp.MustCompile(pattern).FindAllStringIndex(s, -1))
}

func TestFmtNum(t *testing.T) {
	for _, test := range []struct {
		v        float64
		expected string
	}{
		{2, "2"},
		{1.5, "1.5"},
		{-3.25, "-3.25"},
		{0.123456, "0.12346"},
		{-0.000001, "0"},
		{100, "100"},
	} {
		assert.Equal(t, test.expected, fmtNum(test.v))
	}
}

func TestTransformFlip(t *testing.T) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	b := New(pdf)

	w, h := b.PageSize()
	assert.InDelta(t, 595.28, w, 1e-9)
	assert.InDelta(t, 841.89, h, 1e-9)

	b.Save()
	b.Transform(svgpath.Identity.Translate(10, 20))
	b.Transform(svgpath.Identity.Scale(2, 2))
	assert.Equal(t, svgpath.Matrix2D{A: 2, D: 2, E: 10, F: 20}, b.CTM())
	b.Restore()
	assert.Equal(t, svgpath.Identity, b.CTM())
	require.NoError(t, b.Err())

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	out := buf.String()
	assert.Contains(t, out, "1 0 0 1 10 -20 cm")
	assert.Contains(t, out, "2 0 0 2 0 -841.89 cm")
}

func TestUnbalancedRestore(t *testing.T) {
	b := New(gofpdf.New("P", "pt", "A4", ""))
	b.Restore()
	assert.Error(t, b.Err())
}

func TestPageFitsDrawing(t *testing.T) {
	opts := quietOptions()
	opts.Margin = 10
	pdf, err := Draw(context.Background(), parse(t, `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"/>`), opts)
	require.NoError(t, err)
	w, h := pdf.GetPageSize()
	assert.InDelta(t, 220, w, 1e-9)
	assert.InDelta(t, 120, h, 1e-9)

	opts.PageWidth, opts.PageHeight = 300, 400
	pdf, err = Draw(context.Background(), parse(t, `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"/>`), opts)
	require.NoError(t, err)
	w, h = pdf.GetPageSize()
	assert.InDelta(t, 300, w, 1e-9)
	assert.InDelta(t, 400, h, 1e-9)
}

func TestShapes(t *testing.T) {
	out := renderString(t, "shapes", `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200">
		<rect x="10" y="10" width="50" height="30" fill="red" stroke="blue" stroke-width="2"/>
		<rect x="70" y="10" width="50" height="30" rx="5" fill="green"/>
		<circle cx="50" cy="100" r="20" fill="none" stroke="black" stroke-dasharray="4 2"/>
		<path d="M100 100 L150 150 L100 150 Z" fill-rule="evenodd"/>
	</svg>`, quietOptions())

	// the first rectangle is filled and stroked at once
	assert.Contains(t, out, "10 190 50 -30 re\nB")
	assert.Contains(t, out, "f*")
	assert.Contains(t, out, "[4 2] 0 d")
}

func TestOpacity(t *testing.T) {
	out := renderString(t, "opacity", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<rect width="50" height="50" fill="red" fill-opacity="0.5" stroke="blue" stroke-opacity="0.25"/>
	</svg>`, quietOptions())

	// fill and stroke are painted separately
	assert.Contains(t, out, "/ca 0.500 /CA 0.500")
	assert.Contains(t, out, "/ca 0.250 /CA 0.250")
	assert.Equal(t, 0, countMatches(`(?m)^B$`, out))
}

func TestTemplates(t *testing.T) {
	const svg = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<defs><rect id="r" width="10" height="10"/></defs>
		<use href="#r"/>
		<use href="#r" x="20"/>
		<use href="#r" x="40"/>
	</svg>`
	out := renderString(t, "templates", svg, quietOptions())
	assert.Equal(t, 3, countMatches(`/TPL\w+ Do Q`, out))

	opts := quietOptions()
	opts.DisableTemplates = true
	out = renderString(t, "templates_disabled", svg, opts)
	assert.Equal(t, 0, countMatches(`/TPL\w+ Do Q`, out))
	assert.Equal(t, 3, strings.Count(out, "0 100 10 -10 re"))
}

func TestTemplateWithTransparency(t *testing.T) {
	// the content requires a graphics state resource: it is replayed
	out := renderString(t, "templates_alpha", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<defs><g id="g" opacity="0.5"><rect width="10" height="10"/></g></defs>
		<use href="#g"/>
		<use href="#g" x="20"/>
	</svg>`, quietOptions())
	assert.Equal(t, 0, countMatches(`/TPL\w+ Do Q`, out))
	assert.Contains(t, out, "/ca 0.500")
}

func TestLinearGradient(t *testing.T) {
	out := renderString(t, "linear_gradient", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<linearGradient id="g" gradientUnits="userSpaceOnUse" x1="0" y1="0" x2="100" y2="0">
			<stop offset="0" stop-color="red"/>
			<stop offset="0.5" stop-color="blue"/>
			<stop offset="1" stop-color="green"/>
		</linearGradient>
		<rect width="100" height="100" fill="url(#g)"/>
	</svg>`, quietOptions())

	// one shading per pair of stops
	assert.Equal(t, 2, countMatches(`/Sh\d+ sh`, out))
	assert.Contains(t, out, "/ShadingType 2")
}

func TestRepeatedGradient(t *testing.T) {
	out := renderString(t, "repeated_gradient", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<linearGradient id="g" gradientUnits="userSpaceOnUse" x1="0" y1="0" x2="25" y2="0" spreadMethod="reflect">
			<stop offset="0" stop-color="red"/>
			<stop offset="1" stop-color="blue"/>
		</linearGradient>
		<rect width="100" height="100" fill="url(#g)"/>
	</svg>`, quietOptions())

	assert.Equal(t, 4, countMatches(`/Sh\d+ sh`, out))
}

func TestRadialGradient(t *testing.T) {
	out := renderString(t, "radial_gradient", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<radialGradient id="g">
			<stop offset="0" stop-color="white"/>
			<stop offset="1" stop-color="black"/>
		</radialGradient>
		<radialGradient id="h" spreadMethod="repeat" r="0.2">
			<stop offset="0" stop-color="white"/>
			<stop offset="0.5" stop-color="red"/>
			<stop offset="1" stop-color="black"/>
		</radialGradient>
		<rect width="50" height="50" fill="url(#g)"/>
		<rect x="50" width="50" height="50" fill="url(#h)"/>
	</svg>`, quietOptions())

	// the second gradient is approximated by circles
	assert.Equal(t, 1, countMatches(`/Sh\d+ sh`, out))
	assert.Contains(t, out, "/ShadingType 3")
}

func TestPattern(t *testing.T) {
	out := renderString(t, "pattern", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<pattern id="p" patternUnits="userSpaceOnUse" width="10" height="10">
			<circle cx="5" cy="5" r="4" fill="red"/>
		</pattern>
		<rect width="30" height="30" fill="url(#p)"/>
	</svg>`, quietOptions())

	assert.Equal(t, 9, countMatches(`/TPL\w+ Do Q`, out))
}

func TestText(t *testing.T) {
	out := renderString(t, "text", `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100">
		<text x="10" y="50" font-family="Helvetica" font-weight="bold" fill="blue">Hello</text>
		<text x="10" y="80" font-family="Courier" fill="none" stroke="red">World</text>
	</svg>`, quietOptions())

	assert.Contains(t, out, "(Hello) Tj")
	assert.Contains(t, out, "/BaseFont /Helvetica-Bold")
	assert.Contains(t, out, "/BaseFont /Courier")
	assert.Contains(t, out, "1 Tr")
}

func TestMeasureText(t *testing.T) {
	b := New(gofpdf.New("P", "pt", "A4", ""))
	small := b.MeasureText("Hello", svgdraw.Font{Family: "helvetica", Size: 10})
	large := b.MeasureText("Hello", svgdraw.Font{Family: "helvetica", Size: 20})
	assert.Greater(t, small, 0.)
	assert.InDelta(t, 2*small, large, 1e-9)

	mono := b.MeasureText("iiii", svgdraw.Font{Family: "courier", Size: 10})
	assert.InDelta(t, 4*6, mono, 1e-9) // courier glyphs are 600/1000 em wide
}

func TestAddFont(t *testing.T) {
	b := New(gofpdf.New("P", "pt", "A4", ""))
	assert.Error(t, b.AddFont("broken", svgdraw.Regular, []byte("not a font")))
	assert.False(t, b.HasFont("broken", svgdraw.Regular))

	require.NoError(t, b.AddFont("Go", svgdraw.Regular, goregular.TTF))
	assert.True(t, b.HasFont("go", svgdraw.Regular))
	assert.True(t, b.HasFont("go", svgdraw.Bold)) // falls back to regular
	assert.True(t, b.HasFont("times", svgdraw.Italic))
	assert.False(t, b.HasFont("unknown", svgdraw.Regular))

	family, style, utf8 := b.selectFont(svgdraw.Font{Family: "go", Style: svgdraw.Bold})
	assert.Equal(t, "go", family)
	assert.Equal(t, "", style)
	assert.True(t, utf8)
	require.NoError(t, b.Err())
}

func TestImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.NRGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	href := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	out := renderString(t, "image", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<image href="`+href+`" width="20" height="20"/>
		<image href="`+href+`" x="50" width="20" height="20"/>
	</svg>`, quietOptions())

	// the image is embedded once
	assert.Equal(t, 1, strings.Count(out, "/Subtype /Image"))
	assert.Equal(t, 2, countMatches(`/I\w+ Do Q`, out))
}

func TestUnsupportedImage(t *testing.T) {
	b := New(gofpdf.New("P", "pt", "A4", ""))
	err := b.Image(svgdraw.ImageSource{URL: "http://example.com/a.png"}, 0, 0, 10, 10)
	assert.ErrorIs(t, err, svgdraw.ErrUnsupportedImage)

	err = b.Image(svgdraw.ImageSource{Data: []byte("garbage"), Format: "png"}, 0, 0, 10, 10)
	assert.Error(t, err)
	// the document is still usable
	assert.NoError(t, b.Err())
}

func TestClipPath(t *testing.T) {
	out := renderString(t, "clip", `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
		<clipPath id="c"><circle cx="50" cy="50" r="40"/></clipPath>
		<rect width="100" height="100" fill="red" clip-path="url(#c)"/>
	</svg>`, quietOptions())
	assert.Contains(t, out, "W n")
}

func TestRenderSVGToPDF(t *testing.T) {
	require.NoError(t, os.MkdirAll("testdata_out", 0o755))
	err := RenderSVGToPDF(context.Background(), strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">
		<rect width="5" height="5"/>
	</svg>`), "testdata_out/file.pdf", quietOptions())
	require.NoError(t, err)

	err = RenderSVGToPDF(context.Background(), strings.NewReader("not svg"), "testdata_out/invalid.pdf", quietOptions())
	assert.Error(t, err)
}
