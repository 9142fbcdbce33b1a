package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/extract"
	"github.com/nao1215/spoilerguard/internal/layout"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// CandidateSelector lists the elements whose text is classified.
	CandidateSelector = "p, li, span, div, td, h1, h2, h3, h4, h5, h6, blockquote, dd, figcaption"

	// DefaultMinChunkLength is the shortest text run or sentence that is
	// worth a classifier round trip.
	DefaultMinChunkLength = 10

	// DefaultMaxChildren is the largest child count a non-inline element
	// may have and still be replaced.
	DefaultMaxChildren = 3
)

// Chunk is one sentence and the element that would be redacted for it.
type Chunk struct {
	Element *html.Node
	Text    string
}

// Marks is the view of session state the collector needs.
type Marks interface {
	IsProcessed(n *html.Node) bool
}

// Collector gathers classifier chunks from a document.
type Collector struct {
	Blacklist   *Blacklist
	Oracle      layout.Oracle
	Marks       Marks
	MinLength   int
	MaxChildren int
	// MaxChunks caps the number of chunks per collection. Zero means no cap.
	MaxChunks int
}

// NewCollector returns a Collector with default limits.
func NewCollector(blacklist *Blacklist, oracle layout.Oracle, marks Marks) *Collector {
	return &Collector{
		Blacklist:   blacklist,
		Oracle:      oracle,
		Marks:       marks,
		MinLength:   DefaultMinChunkLength,
		MaxChildren: DefaultMaxChildren,
	}
}

var replaceableInline = map[atom.Atom]bool{
	atom.Span:   true,
	atom.A:      true,
	atom.Em:     true,
	atom.Strong: true,
	atom.B:      true,
	atom.I:      true,
}

// Collect returns the chunks under root in document order.
func (c *Collector) Collect(root *html.Node) []Chunk {
	var chunks []Chunk
	doc := goquery.NewDocumentFromNode(root)
	doc.Find(CandidateSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		el := sel.Get(0)
		if !c.usable(el) {
			return true
		}
		for t := el.FirstChild; t != nil; t = t.NextSibling {
			if t.Type != html.TextNode {
				continue
			}
			run := strings.TrimSpace(t.Data)
			if len([]rune(run)) < c.MinLength {
				continue
			}
			for _, s := range SplitSentences(run, c.MinLength) {
				chunks = append(chunks, Chunk{Element: el, Text: s})
				if c.MaxChunks > 0 && len(chunks) >= c.MaxChunks {
					return false
				}
			}
		}
		return true
	})
	return chunks
}

func (c *Collector) usable(el *html.Node) bool {
	if !replaceableInline[el.DataAtom] && dom.ChildCount(el) > c.MaxChildren {
		return false
	}
	if c.Blacklist != nil && c.Blacklist.Matches(el) {
		return false
	}
	for p := el; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if extract.Marked(p) || extract.IsFormElement(p) {
			return false
		}
		if c.Marks != nil && c.Marks.IsProcessed(p) {
			return false
		}
		if c.Oracle != nil && c.Oracle.Hidden(p) {
			return false
		}
	}
	return true
}
