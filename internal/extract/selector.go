// Package extract walks a document and picks the smallest element that can
// be safely swapped for a placeholder whenever its text matches a keyword.
package extract

import (
	"iter"
	"log/slog"
	"strings"

	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/keyword"
	"github.com/nao1215/spoilerguard/internal/layout"
	"github.com/nao1215/spoilerguard/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// DefaultWidthRatio is the share of the viewport above which an element
	// counts as page-wide.
	DefaultWidthRatio = 0.7
	// DefaultMaxChildren is the largest number of child nodes an element may
	// have and still be replaced as a whole.
	DefaultMaxChildren = 5
)

// Skip reasons reported through WithSkipHook.
const (
	ReasonTooManyChildren = "too many children"
	ReasonOverWide        = "over-wide container"
	ReasonHoldsBlocked    = "contains a placeholder"
)

// Match is a replacement target and the keyword that selected it.
type Match struct {
	Element *html.Node
	Keyword string
}

// Marks is the view of session state the selector needs.
type Marks interface {
	IsProcessed(n *html.Node) bool
	IsClean(n *html.Node) bool
	MarkClean(n *html.Node)
}

// Selector is the granularity selector.
type Selector struct {
	matcher     *keyword.Matcher
	oracle      layout.Oracle
	marks       Marks
	widthRatio  float64
	maxChildren int
	onSkip      func(n *html.Node, reason string)
	logger      *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithWidthRatio overrides DefaultWidthRatio. Values outside (0, 1] are
// ignored.
func WithWidthRatio(r float64) Option {
	return func(s *Selector) {
		if r > 0 && r <= 1 {
			s.widthRatio = r
		}
	}
}

// WithMaxChildren overrides DefaultMaxChildren.
func WithMaxChildren(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxChildren = n
		}
	}
}

// WithSkipHook registers a callback for matched elements that were
// rejected as replacement targets.
func WithSkipHook(fn func(n *html.Node, reason string)) Option {
	return func(s *Selector) {
		s.onSkip = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSelector returns a Selector.
func NewSelector(matcher *keyword.Matcher, oracle layout.Oracle, marks Marks, opts ...Option) *Selector {
	s := &Selector{
		matcher:     matcher,
		oracle:      oracle,
		marks:       marks,
		widthRatio:  DefaultWidthRatio,
		maxChildren: DefaultMaxChildren,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	// smallInline elements are accepted as soon as their text matches.
	smallInline = map[atom.Atom]bool{
		atom.Span:   true,
		atom.A:      true,
		atom.Em:     true,
		atom.Strong: true,
		atom.B:      true,
		atom.I:      true,
		atom.Mark:   true,
		atom.Code:   true,
	}

	formTags = map[atom.Atom]bool{
		atom.Input:    true,
		atom.Textarea: true,
		atom.Select:   true,
		atom.Option:   true,
		atom.Button:   true,
		atom.Form:     true,
	}

	skipTags = map[atom.Atom]bool{
		atom.Script:   true,
		atom.Style:    true,
		atom.Noscript: true,
		atom.Template: true,
		atom.Svg:      true,
		atom.Math:     true,
		atom.Iframe:   true,
		atom.Object:   true,
		atom.Canvas:   true,
		atom.Head:     true,
		atom.Title:    true,
	}

	// neverTarget elements are descended into but never replaced.
	neverTarget = map[atom.Atom]bool{
		atom.Html: true,
		atom.Head: true,
		atom.Body: true,
	}
)

// Select yields replacement targets under root, in document order. active
// must already be filtered by keyword.Matcher.Active.
//
// The sequence is lazy. The consumer may replace each yielded element
// before resuming; the walk has already moved past it by then.
func (s *Selector) Select(root *html.Node, active []string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		if root == nil || len(active) == 0 || insideForm(root) {
			return
		}
		s.visit(root, active, yield)
	}
}

// visit returns whether any target was yielded under (or at) n and whether
// the consumer wants more.
func (s *Selector) visit(n *html.Node, active []string, yield func(Match) bool) (found, more bool) {
	if !s.eligible(n) {
		return false, true
	}

	text := s.Text(n)
	if strings.TrimSpace(text) == "" {
		s.marks.MarkClean(n)
		return false, true
	}
	kw, ok := s.matcher.MatchActive(text, active)
	if !ok {
		s.marks.MarkClean(n)
		return false, true
	}

	if smallInline[n.DataAtom] {
		return true, yield(Match{Element: n, Keyword: kw})
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			f, cont := s.visit(c, active, yield)
			found = found || f
			if !cont {
				return found, false
			}
		}
		c = next
	}
	if found {
		return true, true
	}

	if reason, ok := s.rejects(n); ok {
		if reason != "" {
			s.skipped(n, reason)
		}
		s.marks.MarkClean(n)
		return false, true
	}
	return true, yield(Match{Element: n, Keyword: kw})
}

// rejects reports whether a matched element with no matching descendant
// must still not be replaced, and why.
func (s *Selector) rejects(n *html.Node) (string, bool) {
	if neverTarget[n.DataAtom] {
		return "", true
	}
	if holdsPlaceholder(n) {
		return ReasonHoldsBlocked, true
	}
	if dom.ChildCount(n) > s.maxChildren {
		return ReasonTooManyChildren, true
	}
	if s.oracle.Width(n) > s.widthRatio*s.oracle.ViewportWidth() && !allPhrasing(n) {
		return ReasonOverWide, true
	}
	return "", false
}

func (s *Selector) eligible(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if skipTags[n.DataAtom] || formTags[n.DataAtom] {
		return false
	}
	if Marked(n) || s.marks.IsProcessed(n) || s.marks.IsClean(n) {
		return false
	}
	return !s.oracle.Hidden(n)
}

// Text returns the aggregate text of n that is visible to matching:
// script-like, hidden and already handled subtrees contribute nothing.
// Block boundaries become spaces so that adjacent blocks cannot fuse two
// words into one.
func (s *Selector) Text(n *html.Node) string {
	var sb strings.Builder
	s.collect(n, &sb)
	return sb.String()
}

func (s *Selector) collect(n *html.Node, sb *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			if skipTags[c.DataAtom] || formTags[c.DataAtom] || Marked(c) || s.marks.IsProcessed(c) || s.oracle.Hidden(c) {
				continue
			}
			block := !layout.IsPhrasing(c)
			if block {
				sb.WriteByte(' ')
			}
			s.collect(c, sb)
			if block {
				sb.WriteByte(' ')
			}
		}
	}
}

func (s *Selector) skipped(n *html.Node, reason string) {
	s.logger.Debug("matched element not replaceable", "tag", n.Data, "reason", reason)
	if s.onSkip != nil {
		s.onSkip(n, reason)
	}
}

// Marked reports whether n carries one of the engine's own markers: it is
// a placeholder, revealed content, or opted out of processing.
func Marked(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if dom.HasAttr(n, model.AttrNoProcess) || dom.HasAttr(n, model.AttrSpoilerID) {
		return true
	}
	for _, c := range dom.Classes(n) {
		switch c {
		case model.ClassBlocked, model.ClassRevealed, model.ClassProcessed:
			return true
		}
	}
	return false
}

// IsFormElement reports whether n is a form control or a form.
func IsFormElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && formTags[n.DataAtom]
}

func insideForm(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if IsFormElement(p) {
			return true
		}
	}
	return false
}

func holdsPlaceholder(n *html.Node) bool {
	return dom.FindFirst(n, func(c *html.Node) bool {
		return c != n && c.Type == html.ElementNode && dom.HasClass(c, model.ClassBlocked)
	}) != nil
}

func allPhrasing(n *html.Node) bool {
	for _, c := range dom.ElementChildren(n) {
		if !layout.IsPhrasing(c) {
			return false
		}
	}
	return true
}
