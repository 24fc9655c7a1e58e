package svgdraw

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// MeasureFunc returns the advance of `text`, or false
// if the font is not supported.
type MeasureFunc func(text string, font Font) (float64, bool)

const (
	measurePangram = "The quick brown fox jumps over the lazy dog 0123456789"
	measureEpsilon = 0.1
)

// TextMeasure measures text runs, choosing for each family between
// a fast, approximate method and an exact one.
// The choice is made on the first measurement of a family, by comparing
// both methods on a reference string: if they agree, the fast one
// is used for the rest of the conversion.
type TextMeasure struct {
	fast, exact MeasureFunc
	useFast     map[string]bool
	logger      *log.Logger
}

// NewTextMeasure returns a measure using the given methods. `exact` is
// required; `fast` may be nil.
func NewTextMeasure(fast, exact MeasureFunc, logger *log.Logger) *TextMeasure {
	if logger == nil {
		logger = log.Default()
	}
	return &TextMeasure{fast: fast, exact: exact, useFast: make(map[string]bool), logger: logger}
}

func (tm *TextMeasure) decide(family string) bool {
	if tm.fast == nil {
		return false
	}
	ref := Font{Family: family, Size: 16}
	fast, okFast := tm.fast(measurePangram, ref)
	exact, okExact := tm.exact(measurePangram, ref)
	use := okFast && (!okExact || math.Abs(fast-exact) < measureEpsilon)
	tm.logger.Debug("text measure strategy", "family", family, "fast", use, "delta", math.Abs(fast-exact))
	return use
}

// UsesFast returns true if the fast method is selected for `family`.
func (tm *TextMeasure) UsesFast(family string) bool {
	use, ok := tm.useFast[family]
	if !ok {
		use = tm.decide(family)
		tm.useFast[family] = use
	}
	return use
}

// Measure returns the advance of `text` with the given font.
func (tm *TextMeasure) Measure(text string, f Font) float64 {
	if tm.UsesFast(f.Family) {
		if w, ok := tm.fast(text, f); ok {
			return w
		}
	}
	w, _ := tm.exact(text, f)
	return w
}

type faceKey struct {
	family string
	style  FontStyle
}

type sizedFaceKey struct {
	faceKey
	size float64
}

// FontFaces is a collection of TrueType/OpenType fonts,
// used to measure text with per glyph advances (without kerning).
type FontFaces struct {
	fonts map[faceKey]*opentype.Font
	faces map[sizedFaceKey]font.Face
}

// NewFontFaces returns a collection with the Go fonts, registered
// as "go" and "go mono".
func NewFontFaces() *FontFaces {
	ff := &FontFaces{fonts: make(map[faceKey]*opentype.Font), faces: make(map[sizedFaceKey]font.Face)}
	for _, f := range [...]struct {
		family string
		style  FontStyle
		ttf    []byte
	}{
		{"go", Regular, goregular.TTF},
		{"go", Bold, gobold.TTF},
		{"go", Italic, goitalic.TTF},
		{"go", Bold | Italic, gobolditalic.TTF},
		{"go mono", Regular, gomono.TTF},
		{"go mono", Bold, gomonobold.TTF},
		{"go mono", Italic, gomonoitalic.TTF},
		{"go mono", Bold | Italic, gomonobolditalic.TTF},
	} {
		if err := ff.Register(f.family, f.style, f.ttf); err != nil {
			panic(err) // the Go fonts are valid
		}
	}
	return ff
}

// Register adds a font file for the given family and style.
func (ff *FontFaces) Register(family string, style FontStyle, ttf []byte) error {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("parsing font %q: %w", family, err)
	}
	ff.fonts[faceKey{family, style}] = f
	return nil
}

// Font returns the font for `family` and `style`, falling back
// to the regular style.
func (ff *FontFaces) Font(family string, style FontStyle) (*opentype.Font, bool) {
	if f, ok := ff.fonts[faceKey{family, style}]; ok {
		return f, true
	}
	f, ok := ff.fonts[faceKey{family, Regular}]
	return f, ok
}

func (ff *FontFaces) face(family string, style FontStyle, size float64) (font.Face, bool) {
	key := sizedFaceKey{faceKey{family, style}, size}
	if face, ok := ff.faces[key]; ok {
		return face, true
	}
	f, ok := ff.Font(family, style)
	if !ok {
		return nil, false
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, false
	}
	ff.faces[key] = face
	return face, true
}

// Measure sums the glyph advances of `text`. It implements MeasureFunc.
func (ff *FontFaces) Measure(text string, f Font) (float64, bool) {
	if f.Size <= 0 {
		return 0, true
	}
	face, ok := ff.face(f.Family, f.Style, f.Size)
	if !ok {
		return 0, false
	}
	var total float64
	for _, r := range text {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			adv, _ = face.GlyphAdvance('?')
		}
		total += float64(adv) / 64
	}
	return total, true
}
