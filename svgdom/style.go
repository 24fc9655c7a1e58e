package svgdom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

// FetchTimeout bounds the download of one external stylesheet.
const FetchTimeout = 5 * time.Second

// maxSheetSize limits the size of external stylesheets
const maxSheetSize = 1 << 22

type styleRule struct {
	sel   cascadia.Sel
	decls []*css.Declaration
	order int
}

type styleDecl struct {
	value       string
	important   bool
	specificity cascadia.Specificity
	order       int
}

// wins returns true if d has precedence over other
func (d styleDecl) wins(other styleDecl) bool {
	if d.important != other.important {
		return d.important
	}
	if d.specificity != other.specificity {
		return other.specificity.Less(d.specificity)
	}
	return d.order > other.order // later rules win ties
}

// StyleSheets resolves CSS properties for the elements
// of a document. Values are looked up, in this order, in the inline `style`
// attribute, in the matching stylesheet rules and in the presentation attributes.
// A StyleSheets is not safe for concurrent use.
type StyleSheets struct {
	rules []styleRule

	matched map[*html.Node]map[string]styleDecl
	inline  map[*html.Node]map[string]string

	logger *log.Logger
}

// LoadOptions parametrizes how stylesheets are collected.
type LoadOptions struct {
	// External enables the download of the sheets referenced by
	// <?xml-stylesheet?> and <link rel="stylesheet">.
	External bool
	// Client is used to fetch external sheets, defaulting to http.DefaultClient.
	Client *http.Client
	// Logger defaults to log.Default()
	Logger *log.Logger
}

// NewStyleSheets returns an empty resolver, to which sheets
// may be added with AddSheet.
func NewStyleSheets(logger *log.Logger) *StyleSheets {
	if logger == nil {
		logger = log.Default()
	}
	return &StyleSheets{
		matched: make(map[*html.Node]map[string]styleDecl),
		inline:  make(map[*html.Node]map[string]string),
		logger:  logger,
	}
}

// LoadStyleSheets collects the <style> elements of the document, and,
// if enabled, the external sheets. Download failures are logged and the sheet
// is omitted.
func LoadStyleSheets(ctx context.Context, doc *Document, opts LoadOptions) *StyleSheets {
	s := NewStyleSheets(opts.Logger)

	var links []string
	if opts.External {
		links = append(links, doc.StyleSheetLinks...)
	}
	Walk(doc.Root, func(n *html.Node) {
		switch n.Data {
		case "style":
			if t := AttrValue(n, "type"); t != "" && t != "text/css" {
				return
			}
			if err := s.AddSheet(TextContent(n)); err != nil {
				s.logger.Warn("invalid stylesheet", "err", err)
			}
		case "link":
			if opts.External && strings.EqualFold(AttrValue(n, "rel"), "stylesheet") {
				if href := Href(n); href != "" {
					links = append(links, href)
				}
			}
		}
	})

	if len(links) == 0 {
		return s
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	for _, href := range links {
		text, err := fetchSheet(ctx, client, href)
		if err != nil {
			s.logger.Warn("skipping external stylesheet", "href", href, "err", err)
			continue
		}
		if err = s.AddSheet(text); err != nil {
			s.logger.Warn("invalid external stylesheet", "href", href, "err", err)
		}
	}
	return s
}

func fetchSheet(ctx context.Context, client *http.Client, href string) (string, error) {
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return "", fmt.Errorf("unsupported stylesheet location %q", href)
	}
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetSize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AddSheet parses a CSS stylesheet and appends its rules.
// Rules nested in @media blocks are included, other at-rules are ignored.
// Invalid selectors are skipped.
func (s *StyleSheets) AddSheet(text string) error {
	sheet, err := parser.Parse(text)
	if err != nil {
		return fmt.Errorf("parsing stylesheet: %w", err)
	}
	s.addRules(sheet.Rules)
	// invalidate the matching cache
	s.matched = make(map[*html.Node]map[string]styleDecl)
	return nil
}

func (s *StyleSheets) addRules(rules []*css.Rule) {
	for _, rule := range rules {
		if rule.Kind == css.AtRule {
			if rule.Name == "@media" {
				s.addRules(rule.Rules)
			}
			continue
		}
		for _, selector := range rule.Selectors {
			sel, err := cascadia.Parse(selector)
			if err != nil {
				s.logger.Debug("unsupported css selector", "selector", selector, "err", err)
				continue
			}
			s.rules = append(s.rules, styleRule{sel: sel, decls: rule.Declarations, order: len(s.rules)})
		}
	}
}

// match returns the winning stylesheet declarations for n
func (s *StyleSheets) match(n *html.Node) map[string]styleDecl {
	if m, ok := s.matched[n]; ok {
		return m
	}
	m := make(map[string]styleDecl)
	for _, rule := range s.rules {
		if !rule.sel.Match(n) {
			continue
		}
		spec := rule.sel.Specificity()
		for i, decl := range rule.decls {
			d := styleDecl{
				value:       decl.Value,
				important:   decl.Important,
				specificity: spec,
				order:       rule.order<<16 + i,
			}
			name := strings.ToLower(decl.Property)
			if old, has := m[name]; !has || d.wins(old) {
				m[name] = d
			}
		}
	}
	s.matched[n] = m
	return m
}

// inlineStyle returns the parsed `style` attribute of n
func (s *StyleSheets) inlineStyle(n *html.Node) map[string]string {
	if m, ok := s.inline[n]; ok {
		return m
	}
	m := make(map[string]string)
	if style, ok := Attr(n, "style"); ok {
		// the last declaration must be terminated
		decls, err := parser.ParseDeclarations(strings.TrimRight(style, "; \t\r\n") + ";")
		if err != nil {
			s.logger.Debug("invalid inline style", "style", style, "err", err)
		}
		for _, decl := range decls {
			if decl.Property != "" {
				m[strings.ToLower(decl.Property)] = decl.Value
			}
		}
	}
	s.inline[n] = m
	return m
}

// StyleRule returns the value of the most specific stylesheet declaration
// matching n for the property `name`, ignoring inline styles and attributes.
func (s *StyleSheets) StyleRule(n *html.Node, name string) (string, bool) {
	d, ok := s.match(n)[strings.ToLower(name)]
	return d.value, ok
}

// Property resolves the value of the property `name` for n, looking
// at inline style, stylesheets and attributes, in this order.
// var() references are substituted.
func (s *StyleSheets) Property(n *html.Node, name string) (string, bool) {
	v, ok := s.raw(n, name)
	if !ok {
		return "", false
	}
	if strings.Contains(v, "var(") {
		v = s.substituteVars(n, v, 0)
	}
	return strings.TrimSpace(v), true
}

func (s *StyleSheets) raw(n *html.Node, name string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	name = strings.ToLower(name)
	if v, ok := s.inlineStyle(n)[name]; ok {
		return v, true
	}
	if v, ok := s.StyleRule(n, name); ok {
		return v, true
	}
	return Attr(n, name)
}

// customProperty looks for a custom property on n and its ancestors,
// since they are inherited.
func (s *StyleSheets) customProperty(n *html.Node, name string) (string, bool) {
	for ; n != nil; n = n.Parent {
		if v, ok := s.raw(n, name); ok {
			return v, true
		}
	}
	return "", false
}

const maxVarDepth = 16

// substituteVars replaces the var(--name, fallback) expressions of v
func (s *StyleSheets) substituteVars(n *html.Node, v string, depth int) string {
	if depth > maxVarDepth {
		return ""
	}
	var out strings.Builder
	for {
		start := strings.Index(v, "var(")
		if start == -1 {
			out.WriteString(v)
			break
		}
		out.WriteString(v[:start])
		// find the matching parenthesis
		level, end := 0, -1
		for i := start + 3; i < len(v); i++ {
			if v[i] == '(' {
				level++
			} else if v[i] == ')' {
				level--
				if level == 0 {
					end = i
					break
				}
			}
		}
		if end == -1 { // unbalanced
			break
		}
		args := v[start+4 : end]
		name, fallback := args, ""
		if i := strings.IndexByte(args, ','); i != -1 {
			name, fallback = args[:i], args[i+1:]
		}
		value, ok := s.customProperty(n, strings.TrimSpace(name))
		if !ok {
			value = fallback
		}
		out.WriteString(s.substituteVars(n, strings.TrimSpace(value), depth+1))
		v = v[end+1:]
	}
	return out.String()
}
