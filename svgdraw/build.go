package svgdraw

import (
	"fmt"

	"github.com/benoitkugler/svg2pdf/svgdom"
	"golang.org/x/net/html"
)

type nodeFunc func(nb nodeBase) Node

// element names are lower cased by svgdom
var nodeFuncs = map[string]nodeFunc{
	"svg":            func(nb nodeBase) Node { return &svgNode{nb} },
	"g":              func(nb nodeBase) Node { return &groupNode{nodeBase: nb} },
	"a":              func(nb nodeBase) Node { return &groupNode{nodeBase: nb} },
	"switch":         func(nb nodeBase) Node { return &groupNode{nodeBase: nb, isSwitch: true} },
	"symbol":         func(nb nodeBase) Node { return &symbolNode{nb} },
	"defs":           func(nb nodeBase) Node { return &defsNode{nb} },
	"rect":           func(nb nodeBase) Node { return &rectNode{nb} },
	"circle":         func(nb nodeBase) Node { return &ellipseNode{nodeBase: nb, circle: true} },
	"ellipse":        func(nb nodeBase) Node { return &ellipseNode{nodeBase: nb} },
	"line":           func(nb nodeBase) Node { return &lineNode{nb} },
	"polyline":       func(nb nodeBase) Node { return &polyNode{nodeBase: nb} },
	"polygon":        func(nb nodeBase) Node { return &polyNode{nodeBase: nb, closed: true} },
	"path":           func(nb nodeBase) Node { return &pathNode{nodeBase: nb} },
	"text":           func(nb nodeBase) Node { return &textNode{nb} },
	"tspan":          func(nb nodeBase) Node { return &tspanNode{nb} },
	"image":          func(nb nodeBase) Node { return &imageNode{nb} },
	"use":            func(nb nodeBase) Node { return &useNode{nb} },
	"lineargradient": func(nb nodeBase) Node { return &gradientNode{nodeBase: nb, resolved: map[string]gradientData{}} },
	"radialgradient": func(nb nodeBase) Node {
		return &gradientNode{nodeBase: nb, radial: true, resolved: map[string]gradientData{}}
	},
	"pattern":  func(nb nodeBase) Node { return &patternNode{nb} },
	"clippath": func(nb nodeBase) Node { return &clipPathNode{nb} },
	"marker":   func(nb nodeBase) Node { return &markerNode{nb} },
}

// elements without graphical output, silently ignored
var passiveElements = map[string]bool{
	"title":    true,
	"desc":     true,
	"metadata": true,
	"style":    true,
	"stop":     true,
	"script":   true,
	"link":     true,
}

type treeBuilder struct {
	opts   *Options
	byElem map[*html.Node]Node
}

// buildTree creates the rendering tree of the document,
// returning the nodes indexed by id.
func buildTree(doc *svgdom.Document, opts *Options) (Node, map[string]Node, error) {
	tb := treeBuilder{opts: opts, byElem: make(map[*html.Node]Node)}
	root, err := tb.build(doc.Root)
	if err != nil {
		return nil, nil, err
	}
	ids := make(map[string]Node, len(doc.IDs()))
	for id, elem := range doc.IDs() {
		if node, ok := tb.byElem[elem]; ok {
			ids[id] = node
		}
	}
	return root, ids, nil
}

func (tb *treeBuilder) build(elem *html.Node) (Node, error) {
	nb := nodeBase{elem: elem}
	for c := elem.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		child, err := tb.build(c)
		if err != nil {
			return nil, err
		}
		nb.children = append(nb.children, child)
	}

	var node Node
	if fn, ok := nodeFuncs[elem.Data]; ok {
		node = fn(nb)
	} else {
		if !passiveElements[elem.Data] {
			switch tb.opts.ErrorMode {
			case StrictErrorMode:
				return nil, fmt.Errorf("unsupported svg element <%s>", elem.Data)
			case WarnErrorMode:
				tb.opts.Logger.Warn("skipping unsupported element", "element", elem.Data)
			}
		}
		node = &voidNode{nb}
	}
	for _, child := range node.base().children {
		child.base().parent = node
	}
	tb.byElem[elem] = node
	return node, nil
}
