// Package svgdom parses SVG files into a DOM tree and
// provides the style resolution needed to render it:
// CSS stylesheets, inline styles, presentation attributes,
// and the parsing of the common attribute microsyntaxes
// (colors, lengths, transforms).
//
// The tree is made of golang.org/x/net/html nodes, so that
// CSS selectors may be matched with cascadia. Element names and attribute keys
// are stored lower cased.
package svgdom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrInvalidDocument is returned when the input has no <svg> root element.
var ErrInvalidDocument = errors.New("invalid svg document")

const (
	xlinkURL = "http://www.w3.org/1999/xlink"
	xmlURL   = "http://www.w3.org/XML/1998/namespace"
)

// Document is a parsed SVG file.
type Document struct {
	// Root is the outermost <svg> element.
	Root *html.Node

	// StyleSheetLinks are the href of the <?xml-stylesheet?>
	// processing instructions, in document order.
	StyleSheetLinks []string

	byID map[string]*html.Node
}

// Parse reads an SVG document from the given stream. The input encoding
// is detected from the XML declaration.
func Parse(stream io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(stream)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	root := &html.Node{Type: html.DocumentNode}
	doc := &Document{byID: make(map[string]*html.Node)}
	current := root
	for {
		t, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("parsing svg: %w", err)
		}
		// Inspect the type of the XML token
		switch se := t.(type) {
		case xml.StartElement:
			n := &html.Node{
				Type: html.ElementNode,
				Data: strings.ToLower(se.Name.Local),
				Attr: convertAttrs(se.Attr),
			}
			current.AppendChild(n)
			current = n
			if id := AttrValue(n, "id"); id != "" {
				if _, has := doc.byID[id]; !has { // first wins
					doc.byID[id] = n
				}
			}
		case xml.EndElement:
			if current.Parent != nil {
				current = current.Parent
			}
		case xml.CharData:
			if current.Type == html.ElementNode {
				current.AppendChild(&html.Node{Type: html.TextNode, Data: string(se)})
			}
		case xml.ProcInst:
			if se.Target == "xml-stylesheet" {
				if href := procInstAttr(string(se.Inst), "href"); href != "" {
					doc.StyleSheetLinks = append(doc.StyleSheetLinks, href)
				}
			}
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if c.Data != "svg" {
				return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrInvalidDocument, c.Data)
			}
			doc.Root = c
			return doc, nil
		}
	}
	return nil, ErrInvalidDocument
}

// ParseFile reads the document from the named file.
func ParseFile(filename string) (*Document, error) {
	fin, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fin.Close()
	return Parse(fin)
}

// GetElementByID returns the first element with the given id, or nil.
func (doc *Document) GetElementByID(id string) *html.Node {
	return doc.byID[id]
}

// IDs returns the id -> element map of the document.
// The map must not be modified.
func (doc *Document) IDs() map[string]*html.Node { return doc.byID }

func convertAttrs(attrs []xml.Attr) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(attr.Name.Local)
		switch attr.Name.Space {
		case "xmlns":
			continue
		case xmlURL, "xml":
			key = "xml:" + key
		case "":
			if key == "xmlns" {
				continue
			}
		case xlinkURL, "xlink":
			// href is looked up regardless of its namespace
		}
		out = append(out, html.Attribute{Key: key, Val: attr.Value})
	}
	return out
}

// procInstAttr extracts a pseudo attribute of a processing instruction,
// such as href="style.css"
func procInstAttr(inst, name string) string {
	for _, field := range strings.Fields(inst) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 || kv[0] != name {
			continue
		}
		return strings.Trim(kv[1], `"'`)
	}
	return ""
}

// AttrValue returns the value of the attribute `key`, or an empty string.
func AttrValue(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// Attr returns the value of the attribute `key`, and true if it is present.
// Keys are case insensitive.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Href returns the target of the (xlink:)href attribute.
func Href(n *html.Node) string { return AttrValue(n, "href") }

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// TextContent returns the concatenation of the text nodes
// of the subtree rooted at n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			} else {
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// Walk calls fn on every element of the subtree, in document order.
func Walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}
