package svgdraw

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

// Context is the state inherited by an element during rendering.
// It is cloned for each element: the attribute state is copied, while
// the backend, the references handler, the stylesheets and the text
// measure are shared by the whole conversion.
type Context struct {
	Backend    Backend
	Attributes AttributeState
	// Transform maps the current user space to the
	// space of the outermost element.
	Transform svgpath.Matrix2D
	// InClipPath is true when rendering the content of a clipPath:
	// only the geometry is emitted.
	InClipPath bool

	Refs     *ReferencesHandler
	Styles   *svgdom.StyleSheets
	Measure  *TextMeasure
	Viewport svgdom.Viewport
	Options  *Options

	// maps the geometry of clip path content to the
	// user space of the clipped element
	clipTransform svgpath.Matrix2D
	// fill rule of the clip path being rendered
	clipRule *bool

	// true for the content of a form instanced by a use element
	withinUse bool
	// the symbol being instanced
	instancing Node
	// fill and stroke alpha of the backend graphics state
	alpha [2]float64
	// ids of the references being resolved
	refChain []string

	goCtx context.Context
}

func (ctx *Context) clone() *Context {
	out := *ctx
	out.Attributes = ctx.Attributes.Clone()
	return &out
}

func (ctx *Context) logger() *log.Logger { return ctx.Options.Logger }

// prop returns the CSS property `name` of the element,
// ignoring the "inherit" keyword.
func (ctx *Context) prop(elem *html.Node, name string) (string, bool) {
	v, ok := ctx.Styles.Property(elem, name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" || v == "inherit" {
		return "", false
	}
	return v, true
}

// length parses the attribute `name` as a length, returning `def`
// if it is absent or invalid.
func (ctx *Context) length(elem *html.Node, name string, ref svgdom.PercentageReference, def float64) float64 {
	v, ok := ctx.prop(elem, name)
	if !ok {
		return def
	}
	l, err := svgdom.ParseLength(v, ctx.Viewport.Ref(ref), ctx.Attributes.FontSize)
	if err != nil {
		return def
	}
	return l
}

// withReference returns a copy of `ctx` used to resolve `id`,
// or an error wrapping ErrReferenceCycle.
func (ctx *Context) withReference(id string) (*Context, error) {
	if slices.Contains(ctx.refChain, id) || len(ctx.refChain) >= ctx.Options.MaxReferenceDepth {
		chain := append(slices.Clip(ctx.refChain), id)
		return nil, fmt.Errorf("%w: %s", ErrReferenceCycle, strings.Join(chain, " -> "))
	}
	out := ctx.clone()
	out.refChain = append(slices.Clip(ctx.refChain), id)
	return out, nil
}

// formContext returns a fresh context used to render referenced
// content in its own space, starting from the default attributes.
func (ctx *Context) formContext(id string, withinUse bool) (*Context, error) {
	ref, err := ctx.withReference(id)
	if err != nil {
		return nil, err
	}
	attrs := DefaultAttributeState()
	attrs.FontFamily = ctx.Options.DefaultFontFamily
	return &Context{
		Backend:    ctx.Backend,
		Attributes: attrs,
		Transform:  svgpath.Identity,
		Refs:       ctx.Refs,
		Styles:     ctx.Styles,
		Measure:    ctx.Measure,
		Viewport:   ctx.Viewport,
		Options:    ctx.Options,
		withinUse:  withinUse,
		alpha:      [2]float64{1, 1},
		refChain:   ref.refChain,
		goCtx:      ctx.goCtx,
	}, nil
}

// referenceFailed handles an error returned while resolving `id`:
// cycles are logged and skipped, unless in strict mode.
func (ctx *Context) referenceFailed(id string, err error) error {
	if !errors.Is(err, ErrReferenceCycle) || ctx.Options.ErrorMode == StrictErrorMode {
		return err
	}
	if ctx.Options.ErrorMode == WarnErrorMode {
		ctx.logger().Warn("skipping reference", "id", id, "err", err)
	}
	return nil
}

// warn logs according to the error mode
func (ctx *Context) warn(msg string, keyvals ...any) {
	if ctx.Options.ErrorMode != IgnoreErrorMode {
		ctx.logger().Warn(msg, keyvals...)
	}
}
