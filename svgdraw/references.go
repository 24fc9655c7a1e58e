package svgdraw

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrReferenceCycle is returned when a reference (use, clip-path, pattern, marker)
// is encountered while it is being resolved, or when references are too deeply nested.
var ErrReferenceCycle = errors.New("reference cycle")

// ReferencesHandler resolves the `url(#id)` and `href` references of
// a document, and makes sure the referenced content is only
// rendered once on the backend.
// It is scoped to one conversion.
type ReferencesHandler struct {
	session string
	nodes   map[string]Node // keyed by escaped id

	rendered   map[string]Node
	inProgress map[string]bool
	seq        int
}

// NewReferencesHandler returns a handler for the given nodes, indexed by their id.
// `session` is used as prefix for the keys, so that conversions sharing a backend
// do not collide.
func NewReferencesHandler(session string, nodes map[string]Node) *ReferencesHandler {
	rh := &ReferencesHandler{
		session:    session,
		nodes:      make(map[string]Node, len(nodes)),
		rendered:   make(map[string]Node),
		inProgress: make(map[string]bool),
	}
	for id, node := range nodes {
		rh.nodes[cssEscape(id)] = node
	}
	return rh
}

// Get returns the node with the given id, or nil.
func (rh *ReferencesHandler) Get(id string) Node { return rh.nodes[cssEscape(id)] }

// Key returns the key identifying the rendering of `id` with
// the (optional) paint color.
func (rh *ReferencesHandler) Key(id string, paint *color.NRGBA) string {
	key := rh.session + ":" + cssEscape(id)
	if paint != nil {
		key += fmt.Sprintf(":%d,%d,%d,%d", paint.R, paint.G, paint.B, paint.A)
	}
	return key
}

// GetRendered resolves `id` and calls `render` the first time the pair (id, paint)
// is requested. `render` receives the key to use for the backend objects.
// Failed renderings are not cached.
// ErrReferenceCycle is returned if `id` is requested while being rendered.
func (rh *ReferencesHandler) GetRendered(id string, paint *color.NRGBA, render func(node Node, key string) error) (Node, string, error) {
	key := rh.Key(id, paint)
	if node, ok := rh.rendered[key]; ok {
		return node, key, nil
	}
	node := rh.Get(id)
	if node == nil {
		return nil, key, fmt.Errorf("unknown reference %q", id)
	}
	escaped := cssEscape(id)
	if rh.inProgress[escaped] {
		return nil, key, fmt.Errorf("%w: %s", ErrReferenceCycle, id)
	}
	rh.inProgress[escaped] = true
	err := render(node, key)
	delete(rh.inProgress, escaped)
	if err != nil {
		return nil, key, err
	}
	rh.rendered[key] = node
	return node, key, nil
}

// uniqueKey returns a new key derived from `key`, for backend
// objects depending on the referencing element.
func (rh *ReferencesHandler) uniqueKey(key string) string {
	rh.seq++
	return key + "#" + strconv.Itoa(rh.seq)
}

// cssEscape escapes an identifier as done by CSS.escape()
func cssEscape(id string) string {
	var b strings.Builder
	for i, r := range id {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f,
			i == 0 && r >= '0' && r <= '9',
			i == 1 && r >= '0' && r <= '9' && id[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(id) == 1:
			b.WriteString("\\-")
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
