// Given a parsed SVG document, implements how to
// draw it on a page.
// This requires a backend implementing the actual draw operations,
// such as a rasterizer to output .png images or a pdf writer.
//
// The document is first converted to a tree of nodes, one per element,
// which are then rendered recursively, propagating an inherited
// attribute state. Referenced content (gradients, patterns, markers,
// clip paths and `use` targets) is resolved lazily and rendered at most once.
package svgdraw

import (
	"errors"
	"image/color"

	"github.com/benoitkugler/svg2pdf/svgpath"
)

// ErrUnsupportedImage may be returned by backends which can't embed
// a given image source.
var ErrUnsupportedImage = errors.New("unsupported image source")

// Backend knows how to do the actual draw operations
// but doesn't need any SVG knowledge.
// Coordinates are expressed in the current user space, which is
// modified by `Transform` and scoped by `Save` and `Restore`.
//
// Path construction methods accumulate a path which is consumed
// by `Paint` or `Clip`.
type Backend interface {
	// Save pushes the current graphics state (transformation, paint, line style,
	// opacity and clipping area)
	Save()
	// Restore pops the graphics state saved by the matching `Save` call
	Restore()
	// Transform concatenates `m` to the current transformation,
	// so that `m` is applied first.
	Transform(m svgpath.Matrix2D)
	// CTM returns the current transformation matrix, mapping
	// the user space to the page space.
	CTM() svgpath.Matrix2D
	// PageSize returns the dimensions of the drawing area, in page space.
	PageSize() (width, height float64)

	SetFillColor(c color.NRGBA)
	SetStrokeColor(c color.NRGBA)
	// SetFillPattern selects a shading or a tiling pattern
	// previously registered with `key`.
	SetFillPattern(key string)
	SetStrokePattern(key string)
	SetLineWidth(width float64)
	SetLineCap(c CapMode)
	SetLineJoin(j JoinMode)
	SetMiterLimit(limit float64)
	// SetDash sets the dash pattern; an empty `dashes` means solid lines.
	SetDash(dashes []float64, offset float64)
	// SetOpacity sets the alpha used for filling and stroking operations.
	SetOpacity(fill, stroke float64)

	MoveTo(x, y float64)
	LineTo(x, y float64)
	CurveTo(x1, y1, x2, y2, x3, y3 float64)
	ClosePath()
	// RoundedRect adds a closed rectangle, with rounded corners if rx or ry is positive.
	RoundedRect(x, y, width, height, rx, ry float64)
	// Line adds a segment from (x1, y1) to (x2, y2)
	Line(x1, y1, x2, y2 float64)

	// Paint consumes the current path
	Paint(op PaintOp, evenOdd bool)
	// Clip intersects the clipping area with the current path, and discards it.
	Clip(evenOdd bool)

	// DefineForm registers reusable content under `key`. `content` draws
	// it, in form space. `bbox` is an estimation of the extent of the content.
	// Backends may call `content` several times.
	DefineForm(key string, bbox svgpath.Rect, content func() error) error
	// PlaceForm draws the content registered with `key`, with the current
	// transformation applied to the form space.
	PlaceForm(key string) error
	// AddShading registers a gradient, whose matrix maps the
	// gradient space to the page space.
	AddShading(key string, gradient svgpath.Gradient)
	// AddTilingPattern registers a pattern made of a form.
	AddTilingPattern(key string, pattern TilingPattern)

	// HasFont returns true if the family is available in the given style.
	HasFont(family string, style FontStyle) bool
	// MeasureText returns the advance of `text`, in user space.
	MeasureText(text string, font Font) float64
	// Text draws `text` with its baseline origin at (x, y), using
	// the current fill and stroke paint.
	Text(text string, x, y float64, opts TextOptions)
	// Image draws the image in the (x, y, width, height) rectangle.
	Image(src ImageSource, x, y, width, height float64) error

	// Err returns the first error encountered by the backend
	Err() error
}

// PaintOp selects the painting operation
// applied to the current path.
type PaintOp uint8

const (
	PaintDiscard PaintOp = iota
	PaintFill
	PaintStroke
	PaintFillStroke
)

func (op PaintOp) String() string {
	switch op {
	case PaintDiscard:
		return "Discard"
	case PaintFill:
		return "Fill"
	case PaintStroke:
		return "Stroke"
	case PaintFillStroke:
		return "FillStroke"
	default:
		return "<unknown PaintOp>"
	}
}

// JoinMode type to specify how segments join.
type JoinMode uint8

// JoinMode constants determine how stroke segments bridge the gap at a join
const (
	Miter JoinMode = iota
	Round
	Bevel
	MiterClip // New in SVG2
	Arc       // New in SVG2
)

func (s JoinMode) String() string {
	switch s {
	case Round:
		return "Round"
	case Bevel:
		return "Bevel"
	case Miter:
		return "Miter"
	case MiterClip:
		return "MiterClip"
	case Arc:
		return "Arc"
	default:
		return "<unknown JoinMode>"
	}
}

// CapMode defines how to draw caps on the ends of lines
type CapMode uint8

const (
	ButtCap CapMode = iota
	RoundCap
	SquareCap
)

func (c CapMode) String() string {
	switch c {
	case ButtCap:
		return "ButtCap"
	case SquareCap:
		return "SquareCap"
	case RoundCap:
		return "RoundCap"
	default:
		return "<unknown CapMode>"
	}
}

// FontStyle is a combination of the Bold and Italic flags.
type FontStyle uint8

const (
	Bold FontStyle = 1 << iota
	Italic

	Regular FontStyle = 0
)

// String returns the style using the usual "", "B", "I", "BI" notation.
func (fs FontStyle) String() string {
	s := ""
	if fs&Bold != 0 {
		s += "B"
	}
	if fs&Italic != 0 {
		s += "I"
	}
	return s
}

// Font is a resolved font selection.
type Font struct {
	Family string // lower case
	Style  FontStyle
	Size   float64 // in user space units
}

// TextRenderMode selects how glyphs are painted.
type TextRenderMode uint8

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
)

// TextOptions controls how a text run is drawn.
type TextOptions struct {
	Font Font
	Mode TextRenderMode
}

// TilingPattern is a form repeated on a grid.
type TilingPattern struct {
	Form string // key of the form used as tile
	// Matrix maps the tile space to the page space. In tile space,
	// the tiles are placed at (i * Width, j * Height)
	Matrix        svgpath.Matrix2D
	Width, Height float64
	// Content maps the form space to the tile space
	Content svgpath.Matrix2D
}

// ImageSource is the content of an `image` element.
// When Data is empty, only URL is known.
type ImageSource struct {
	Data   []byte
	Format string // "png", "jpeg" or "gif", as returned by image.DecodeConfig
	URL    string
	// intrinsic size, in pixels
	Width, Height int
}
