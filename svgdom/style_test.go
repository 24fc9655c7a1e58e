package svgdom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestPropertyPrecedence(t *testing.T) {
	doc := parseString(t, `<svg>
	<style>
		rect { fill: blue; stroke: green }
		.c { fill: yellow }
		#r { fill: orange }
		rect { stroke: black }
		.imp { stroke-width: 4 !important }
		#r { stroke-width: 2 }
		@media print { circle { fill: purple } }
		a:hover { fill: pink }
	</style>
	<rect id="r" class="c imp" fill="red" opacity="0.5" style="stroke-dasharray: 1 2"/>
	<rect id="s" fill="red" style="fill: white"/>
	<circle/>
	</svg>`)
	sheets := LoadStyleSheets(context.Background(), doc, LoadOptions{})

	r, s := doc.GetElementByID("r"), doc.GetElementByID("s")
	for _, test := range []struct {
		name, expected string
	}{
		{"fill", "orange"},           // id beats class and tag
		{"stroke", "black"},          // later rules win ties
		{"stroke-width", "4"},        // important first
		{"opacity", "0.5"},           // attribute
		{"stroke-dasharray", "1 2"},  // inline style
		{"FILL", "orange"},           // case insensitive
	} {
		v, ok := sheets.Property(r, test.name)
		assert.True(t, ok, test.name)
		assert.Equal(t, test.expected, v, test.name)
	}

	// inline beats stylesheets and attributes
	v, _ := sheets.Property(s, "fill")
	assert.Equal(t, "white", v)

	_, ok := sheets.Property(r, "font-size")
	assert.False(t, ok)

	circle := Children(doc.Root)[3]
	v, _ = sheets.Property(circle, "fill")
	assert.Equal(t, "purple", v)
}

func TestVarSubstitution(t *testing.T) {
	doc := parseString(t, `<svg style="--main: #ff0000; --alias: var(--main)">
	<style>
		g { --width: 3 }
		rect { stroke-width: var(--width); fill: var(--alias); stroke: var(--missing, blue) }
	</style>
	<g><rect id="r" style="--self: var(--self)" color="var(--self, green)"/></g>
	</svg>`)
	sheets := LoadStyleSheets(context.Background(), doc, LoadOptions{})
	r := doc.GetElementByID("r")

	for name, expected := range map[string]string{
		"stroke-width": "3",
		"fill":         "#ff0000",
		"stroke":       "blue",
		"color":        "",
	} {
		v, ok := sheets.Property(r, name)
		assert.True(t, ok)
		assert.Equal(t, expected, v, name)
	}
}

func TestExternalSheets(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/ok.css" {
			fmt.Fprint(w, "rect { fill: green }")
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	input := fmt.Sprintf(`<?xml-stylesheet href="%s/missing.css"?>
	<svg><link rel="stylesheet" href="%s/ok.css"/><link rel="stylesheet" href="relative.css"/><rect id="r"/></svg>`,
		server.URL, server.URL)
	doc := parseString(t, input)
	r := doc.GetElementByID("r")

	// disabled by default
	sheets := LoadStyleSheets(context.Background(), doc, LoadOptions{})
	_, ok := sheets.Property(r, "fill")
	assert.False(t, ok)
	assert.Equal(t, int32(0), calls.Load())

	// failures are swallowed
	sheets = LoadStyleSheets(context.Background(), doc, LoadOptions{External: true, Client: server.Client()})
	v, ok := sheets.Property(r, "fill")
	assert.True(t, ok)
	assert.Equal(t, "green", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidInlineStyle(t *testing.T) {
	doc := parseString(t, `<svg><rect id="r" style="fill: red;; stroke" stroke="blue"/></svg>`)
	sheets := NewStyleSheets(nil)
	r := doc.GetElementByID("r")
	// the invalid style is dropped
	_, ok := sheets.Property(r, "fill")
	assert.False(t, ok)
	v, ok := sheets.Property(r, "stroke")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)
}
