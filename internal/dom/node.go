package dom

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Attr returns the value of the attribute key and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// GetAttr returns the value of the attribute key, or "".
func GetAttr(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// HasAttr reports whether the attribute key is present.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets or overwrites an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

// Classes returns the element's class list.
func Classes(n *html.Node) []string {
	return strings.Fields(GetAttr(n, "class"))
}

// HasClass reports whether the element carries class name.
func HasClass(n *html.Node, name string) bool {
	return slices.Contains(Classes(n), name)
}

// AddClass appends name to the class list if missing.
func AddClass(n *html.Node, name string) {
	classes := Classes(n)
	if slices.Contains(classes, name) {
		return
	}
	SetAttr(n, "class", strings.Join(append(classes, name), " "))
}

// RemoveClass drops name from the class list. The attribute is removed
// when the list becomes empty.
func RemoveClass(n *html.Node, name string) {
	classes := slices.DeleteFunc(Classes(n), func(c string) bool { return c == name })
	if len(classes) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(classes, " "))
}

// ElementChildren returns the element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// ChildCount returns the number of child nodes of any type.
func ChildCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// FindFirst returns the first node in document order for which match is true.
func FindFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every element under and including root in document order.
// Returning false from fn skips the element's descendants.
func Walk(root *html.Node, fn func(*html.Node) bool) {
	if root.Type == html.ElementNode || root.Type == html.DocumentNode {
		if root.Type == html.ElementNode && !fn(root) {
			return
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode || c.Type == html.DocumentNode {
			Walk(c, fn)
		}
	}
}

// TextContent concatenates the text nodes under n. Element subtrees for
// which skip returns true contribute nothing. skip may be nil.
func TextContent(n *html.Node, skip func(*html.Node) bool) string {
	var sb strings.Builder
	collectText(n, skip, &sb)
	return sb.String()
}

func collectText(n *html.Node, skip func(*html.Node) bool, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skip != nil && skip(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, skip, sb)
	}
}

// OuterHTML serializes n and its subtree.
func OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render <%s>: %w", n.Data, err)
	}
	return buf.String(), nil
}

// ParseFragment parses markup as it would be parsed inside context.
// A nil or non-element context is treated as <body>.
func ParseFragment(context *html.Node, markup string) ([]*html.Node, error) {
	if !IsElement(context) {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	return nodes, nil
}

// NewElement creates a detached element with the given tag and attributes.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
