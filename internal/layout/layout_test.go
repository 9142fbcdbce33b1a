package layout

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func find(t *testing.T, markup, id string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if found == nil {
		t.Fatalf("element #%s not found", id)
	}
	return found
}

func TestStaticHidden(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
		want   bool
	}{
		{name: "plain paragraph", markup: `<p id="x">a</p>`, want: false},
		{name: "hidden attribute", markup: `<p id="x" hidden>a</p>`, want: true},
		{name: "display none", markup: `<p id="x" style="color: red; display: none">a</p>`, want: true},
		{name: "visibility hidden", markup: `<p id="x" style="visibility:hidden">a</p>`, want: true},
		{name: "display block", markup: `<p id="x" style="display:block">a</p>`, want: false},
		{name: "noscript", markup: `<noscript id="x">a</noscript>`, want: true},
	}

	oracle := NewStatic(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := oracle.Hidden(find(t, tt.markup, "x")); got != tt.want {
				t.Errorf("Hidden() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStaticWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
		want   float64
	}{
		{name: "block fills viewport", markup: `<div id="x">text</div>`, want: 1000},
		{name: "percentage of parent", markup: `<div style="width: 500px"><p id="x" style="width:50%">t</p></div>`, want: 250},
		{name: "max width caps", markup: `<div id="x" style="max-width: 40em">t</div>`, want: 640},
		{name: "inline sized by text", markup: `<p><span id="x">abcd</span></p>`, want: 32},
		{name: "inline capped by parent", markup: `<div style="width:10px"><span id="x">abcdef</span></div>`, want: 10},
	}

	oracle := NewStatic(1000)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := oracle.Width(find(t, tt.markup, "x")); got != tt.want {
				t.Errorf("Width() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPhrasing(t *testing.T) {
	t.Parallel()

	if !IsPhrasing(find(t, `<em id="x">a</em>`, "x")) {
		t.Error("IsPhrasing(<em>) = false")
	}
	if IsPhrasing(find(t, `<div id="x">a</div>`, "x")) {
		t.Error("IsPhrasing(<div>) = true")
	}
	if !IsPhrasing(find(t, `<div id="x" style="display:inline-block">a</div>`, "x")) {
		t.Error("IsPhrasing(inline-block div) = false")
	}
}
