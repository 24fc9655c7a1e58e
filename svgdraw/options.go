package svgdraw

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/charmbracelet/log"
)

// ErrorMode is the for setting how the parser reacts to unparsed elements
type ErrorMode uint8

const (
	// IgnoreErrorMode skips unparsed SVG elements
	IgnoreErrorMode ErrorMode = iota
	// WarnErrorMode outputs a warning when an unparsed SVG element is found
	WarnErrorMode
	// StrictErrorMode causes a error when an unparsed SVG element is found
	StrictErrorMode
)

func (m ErrorMode) String() string {
	switch m {
	case IgnoreErrorMode:
		return "ignore"
	case WarnErrorMode:
		return "warn"
	case StrictErrorMode:
		return "strict"
	default:
		return "<unknown ErrorMode>"
	}
}

// ParseErrorMode is the inverse of ErrorMode.String
func ParseErrorMode(s string) (ErrorMode, bool) {
	switch s {
	case "ignore":
		return IgnoreErrorMode, true
	case "warn", "":
		return WarnErrorMode, true
	case "strict":
		return StrictErrorMode, true
	default:
		return 0, false
	}
}

// DefaultMaxReferenceDepth is the default value of Options.MaxReferenceDepth
const DefaultMaxReferenceDepth = 32

// Options parametrizes a conversion.
type Options struct {
	// X, Y is the position of the upper left corner of the
	// drawing, in page space.
	X, Y float64
	// Width and Height override the size of the outermost element,
	// when positive.
	Width, Height float64

	// LoadExternalStyleSheets enables network fetching of the sheets referenced by
	// <link rel="stylesheet"> and <?xml-stylesheet?>.
	LoadExternalStyleSheets bool
	HTTPClient              *http.Client // defaults to http.DefaultClient

	ErrorMode ErrorMode
	Logger    *log.Logger // defaults to log.Default()

	// ArcExpander converts arc commands of path data.
	// If nil, svgpath.DefaultArcExpander is used. Set DisableArcs
	// to reject paths with arcs.
	ArcExpander svgpath.ArcExpander
	DisableArcs bool

	// MaxReferenceDepth bounds the nesting of references
	// (use, pattern, marker, clip-path) (default to 32).
	MaxReferenceDepth int

	// DefaultFontFamily is used when no family can be resolved (default to "times")
	DefaultFontFamily string

	// Faces are used for the fast text measurement.
	// If nil, NewFontFaces() is used.
	Faces *FontFaces

	// Session scopes the keys of the objects registered on the backend.
	// It must be unique among the conversions targeting the same backend.
	// If empty, a process wide unique key is used.
	Session string
}

var sessionCounter atomic.Uint64

func (opts Options) withDefaults() Options {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.ArcExpander == nil && !opts.DisableArcs {
		opts.ArcExpander = svgpath.DefaultArcExpander
	}
	if opts.MaxReferenceDepth <= 0 {
		opts.MaxReferenceDepth = DefaultMaxReferenceDepth
	}
	if opts.DefaultFontFamily == "" {
		opts.DefaultFontFamily = "times"
	}
	if opts.Faces == nil {
		opts.Faces = NewFontFaces()
	}
	if opts.Session == "" {
		opts.Session = "s" + strconv.FormatUint(sessionCounter.Add(1), 36)
	}
	return opts
}
