package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when an edit targets a node that has no parent.
var ErrDetached = errors.New("node is not attached to a parent")

// Op is the kind of structural mutation delivered to observers.
type Op string

const (
	// OpInsert means nodes were added under Target.
	OpInsert Op = "insert"

	// OpRemove means nodes were removed from Target.
	OpRemove Op = "remove"

	// OpReplace means Removed was swapped for Added under Target.
	OpReplace Op = "replace"
)

// MutationRecord describes one structural change to the tree.
type MutationRecord struct {
	Op      Op
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// HasAddedNodes reports whether any record in recs added nodes.
func HasAddedNodes(recs []MutationRecord) bool {
	for _, r := range recs {
		if len(r.Added) > 0 {
			return true
		}
	}
	return false
}

// Observer receives mutation records. Notify is called synchronously from
// inside the mutating call, so implementations must not edit the document.
type Observer interface {
	Notify(records []MutationRecord)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(records []MutationRecord)

// Notify calls f(records).
func (f ObserverFunc) Notify(records []MutationRecord) {
	f(records)
}

// Document is a parsed HTML page that reports its own structural edits.
type Document struct {
	root      *html.Node
	observers map[int]Observer
	nextID    int
}

// Parse reads a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{
		root:      root,
		observers: make(map[int]Observer),
	}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element. html.Parse always synthesizes one, so this
// only falls back to the root for hand-built trees.
func (d *Document) Body() *html.Node {
	if body := FindFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	}); body != nil {
		return body
	}
	return d.root
}

// Head returns the head element, or nil.
func (d *Document) Head() *html.Node {
	return FindFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Head
	})
}

// Observe registers o and returns a function that unregisters it.
func (d *Document) Observe(o Observer) (cancel func()) {
	id := d.nextID
	d.nextID++
	d.observers[id] = o
	return func() {
		delete(d.observers, id)
	}
}

// Contains reports whether n is attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// Replace swaps old for the given nodes, in order, at old's position.
// The replacement nodes must be detached.
func (d *Document) Replace(old *html.Node, replacements ...*html.Node) error {
	parent := old.Parent
	if parent == nil {
		return ErrDetached
	}
	for _, n := range replacements {
		if n.Parent != nil || n.PrevSibling != nil || n.NextSibling != nil {
			return fmt.Errorf("replacement <%s> is already attached", n.Data)
		}
	}

	for _, n := range replacements {
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)

	d.notify(MutationRecord{
		Op:      OpReplace,
		Target:  parent,
		Added:   replacements,
		Removed: []*html.Node{old},
	})
	return nil
}

// AppendHTML parses markup in the context of parent and appends the result.
// It returns the appended top-level nodes.
func (d *Document) AppendHTML(parent *html.Node, markup string) ([]*html.Node, error) {
	if parent == nil {
		return nil, ErrDetached
	}
	nodes, err := ParseFragment(parent, markup)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.notify(MutationRecord{Op: OpInsert, Target: parent, Added: nodes})
	return nodes, nil
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) error {
	parent := n.Parent
	if parent == nil {
		return ErrDetached
	}
	parent.RemoveChild(n)
	d.notify(MutationRecord{Op: OpRemove, Target: parent, Removed: []*html.Node{n}})
	return nil
}

// Render writes the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// HTML returns the serialized document. Render errors yield an empty string.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) notify(rec MutationRecord) {
	if len(d.observers) == 0 {
		return
	}
	recs := []MutationRecord{rec}
	for _, o := range d.observers {
		o.Notify(recs)
	}
}
