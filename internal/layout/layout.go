// Package layout answers the two rendering questions the granularity
// selector asks about an element: is it visible, and how wide is it.
//
// A browser would answer from computed style. Server-side there is no
// layout engine, so Static approximates from tag semantics and inline
// style declarations, parsed with douceur.
package layout

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Oracle reports visibility and rendered width for elements.
type Oracle interface {
	// Hidden reports whether n renders nothing (display:none and friends).
	Hidden(n *html.Node) bool
	// Width returns the estimated rendered width of n in CSS pixels.
	Width(n *html.Node) float64
	// ViewportWidth returns the width of the viewport in CSS pixels.
	ViewportWidth() float64
}

const (
	// DefaultViewportWidth is a common desktop viewport.
	DefaultViewportWidth = 1280.0
	// DefaultGlyphWidth is the average advance of one character.
	DefaultGlyphWidth = 8.0
	// rootFontSize converts em/rem lengths.
	rootFontSize = 16.0
)

// Static is an Oracle that derives answers from markup alone.
type Static struct {
	Viewport   float64
	GlyphWidth float64
}

// NewStatic returns a Static oracle with the given viewport width.
// Non-positive widths fall back to DefaultViewportWidth.
func NewStatic(viewport float64) *Static {
	if viewport <= 0 {
		viewport = DefaultViewportWidth
	}
	return &Static{Viewport: viewport, GlyphWidth: DefaultGlyphWidth}
}

// ViewportWidth implements Oracle.
func (s *Static) ViewportWidth() float64 {
	return s.Viewport
}

var neverRendered = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
}

// Hidden implements Oracle. Only the element's own state is inspected;
// callers that care about hidden ancestors walk the chain themselves.
func (s *Static) Hidden(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if neverRendered[n.DataAtom] {
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			decls := declarations(a.Val)
			if v, ok := decls["display"]; ok && v == "none" {
				return true
			}
			if v, ok := decls["visibility"]; ok && (v == "hidden" || v == "collapse") {
				return true
			}
		}
	}
	return false
}

// Width implements Oracle.
func (s *Static) Width(n *html.Node) float64 {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.Html, atom.Body:
		return s.Viewport
	}

	parentWidth := s.Viewport
	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		parentWidth = s.Width(n.Parent)
	}

	width := parentWidth
	if IsPhrasing(n) {
		width = min(parentWidth, float64(textLength(n))*s.glyph())
	}

	decls := declarations(attr(n, "style"))
	if v, ok := decls["width"]; ok {
		if w, ok := resolveLength(v, parentWidth); ok {
			width = w
		}
	}
	if v, ok := decls["max-width"]; ok {
		if w, ok := resolveLength(v, parentWidth); ok && w < width {
			width = w
		}
	}
	return width
}

func (s *Static) glyph() float64 {
	if s.GlyphWidth <= 0 {
		return DefaultGlyphWidth
	}
	return s.GlyphWidth
}

var phrasing = map[atom.Atom]bool{
	atom.A:      true,
	atom.Abbr:   true,
	atom.B:      true,
	atom.Bdi:    true,
	atom.Bdo:    true,
	atom.Br:     true,
	atom.Cite:   true,
	atom.Code:   true,
	atom.Data:   true,
	atom.Dfn:    true,
	atom.Em:     true,
	atom.I:      true,
	atom.Kbd:    true,
	atom.Label:  true,
	atom.Mark:   true,
	atom.Q:      true,
	atom.S:      true,
	atom.Samp:   true,
	atom.Small:  true,
	atom.Span:   true,
	atom.Strong: true,
	atom.Sub:    true,
	atom.Sup:    true,
	atom.Time:   true,
	atom.U:      true,
	atom.Var:    true,
	atom.Wbr:    true,
}

// IsPhrasing reports whether n lays out inline by default.
func IsPhrasing(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if v, ok := declarations(attr(n, "style"))["display"]; ok {
		return strings.HasPrefix(v, "inline")
	}
	return phrasing[n.DataAtom]
}

// declarations parses an inline style attribute into lower-cased
// property/value pairs. Unparseable input yields an empty map.
func declarations(style string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(style) == "" {
		return out
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return out
	}
	for _, d := range decls {
		out[strings.ToLower(d.Property)] = strings.ToLower(strings.TrimSpace(d.Value))
	}
	return out
}

func resolveLength(v string, parent float64) (float64, bool) {
	var unit string
	for _, u := range []string{"px", "rem", "em", "%"} {
		if strings.HasSuffix(v, u) {
			unit = u
			v = strings.TrimSuffix(v, u)
			break
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	switch unit {
	case "%":
		return parent * f / 100, true
	case "em", "rem":
		return f * rootFontSize, true
	default:
		return f, true
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textLength(n *html.Node) int {
	total := 0
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			total += utf8.RuneCountInString(strings.TrimSpace(c.Data))
			return
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return total
}
