package redact

import (
	"fmt"
	"strconv"

	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/model"
	"golang.org/x/net/html"
)

const (
	// KeywordLabel is shown on placeholders created by keyword matches.
	KeywordLabel = "🛑 STOP! SPOILERS AHEAD 🛑"
	// ClassifierLabel is shown on placeholders created by the classifier.
	ClassifierLabel = "🛑 SPOILERS AHEAD (AI) 🛑"
)

// ColorScheme is a placeholder background/foreground pair.
type ColorScheme struct {
	Background string
	Text       string
}

// Palette is the set of schemes placeholders are painted with.
var Palette = []ColorScheme{
	{Background: "#d81b60", Text: "#ffffff"},
	{Background: "#8e24aa", Text: "#ffffff"},
	{Background: "#5e35b1", Text: "#ffffff"},
	{Background: "#3949ab", Text: "#ffffff"},
	{Background: "#1e88e5", Text: "#ffffff"},
	{Background: "#00897b", Text: "#ffffff"},
	{Background: "#43a047", Text: "#ffffff"},
	{Background: "#e53935", Text: "#ffffff"},
	{Background: "#f4511e", Text: "#ffffff"},
	{Background: "#6d4c41", Text: "#ffffff"},
}

func (s ColorScheme) style(inline bool) string {
	style := fmt.Sprintf(
		"background-color: %s; color: %s; padding: 2px 8px; border-radius: 3px; "+
			"cursor: pointer; position: relative; z-index: 1",
		s.Background, s.Text)
	if inline {
		style += "; margin: 2px 0; display: inline-block"
	}
	return style
}

// structural maps elements that only parse inside a specific parent to the
// element chain a placeholder needs to take their place. A bare span there
// would be moved out of the table or list by any HTML parser.
var structural = map[string][]string{
	"td":      {"td"},
	"th":      {"th"},
	"tr":      {"tr", "td"},
	"thead":   {"thead", "tr", "td"},
	"tbody":   {"tbody", "tr", "td"},
	"tfoot":   {"tfoot", "tr", "td"},
	"caption": {"caption"},
	"li":      {"li"},
	"dt":      {"dt"},
	"dd":      {"dd"},
}

func newPlaceholder(rec model.RedactionRecord, scheme ColorScheme, target *html.Node) *html.Node {
	label := KeywordLabel
	if rec.Source == model.SourceClassifier {
		label = ClassifierLabel
	}
	title := "Click to reveal spoiler"
	if rec.HasKeyword() {
		title = fmt.Sprintf("Click to reveal spoiler (matched: %s)", rec.MatchedKeyword)
	}
	attrs := []html.Attribute{
		{Key: "class", Val: model.ClassBlocked},
		{Key: model.AttrSpoilerID, Val: rec.ID},
		{Key: model.AttrSource, Val: string(rec.Source)},
		{Key: "title", Val: title},
	}

	chain, ok := structural[target.Data]
	if !ok {
		span := dom.NewElement("span", append(attrs, html.Attribute{Key: "style", Val: scheme.style(true)})...)
		span.AppendChild(dom.NewText(label))
		return span
	}

	root := dom.NewElement(chain[0], attrs...)
	inner := root
	for _, tag := range chain[1:] {
		child := dom.NewElement(tag)
		inner.AppendChild(child)
		inner = child
	}
	if n := columns(target); n > 1 && (inner.Data == "td" || inner.Data == "th") {
		dom.SetAttr(inner, "colspan", strconv.Itoa(n))
	}
	dom.SetAttr(inner, "style", scheme.style(false))
	inner.AppendChild(dom.NewText(label))
	return root
}

// columns returns how many table columns n spans, or 0 when unknown.
func columns(n *html.Node) int {
	switch n.Data {
	case "td", "th":
		v, _ := strconv.Atoi(dom.GetAttr(n, "colspan"))
		return v
	case "tr":
		cells := 0
		for _, c := range dom.ElementChildren(n) {
			if c.Data == "td" || c.Data == "th" {
				cells++
			}
		}
		return cells
	case "thead", "tbody", "tfoot":
		for _, c := range dom.ElementChildren(n) {
			if c.Data == "tr" {
				return columns(c)
			}
		}
	}
	return 0
}
