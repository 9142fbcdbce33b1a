package classifier

import (
	"log/slog"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DefaultBlacklist lists the structural chrome the classifier never sees.
var DefaultBlacklist = []string{
	"header", "nav", ".nav", ".navigation", ".menu",
	"footer", ".footer",
	"button", "input", "select", "textarea",
	".sidebar", "aside", ".logo", ".branding",
	"form", ".form", ".toolbar", ".controls",
	".comments-form", ".comment-form", ".search", ".search-form",
	".pagination", ".pager", ".breadcrumb", ".breadcrumbs",
	".social", ".share",
	"#header", "#footer", "#nav", "#menu",
	"[role=navigation]", "[role=banner]", "[role=search]",
}

// blacklistDepth is how many ancestors are checked besides the element.
const blacklistDepth = 5

// Blacklist matches elements that belong to page chrome.
type Blacklist struct {
	selectors []cascadia.Selector
}

// NewBlacklist compiles selectors. Invalid selectors are logged and
// skipped.
func NewBlacklist(selectors []string, logger *slog.Logger) *Blacklist {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Blacklist{}
	for _, s := range selectors {
		sel, err := cascadia.Compile(s)
		if err != nil {
			logger.Warn("skipping invalid blacklist selector", "selector", s, "error", err)
			continue
		}
		b.selectors = append(b.selectors, sel)
	}
	return b
}

// Len returns the number of usable selectors.
func (b *Blacklist) Len() int {
	return len(b.selectors)
}

// Matches reports whether n or one of its closest ancestors is blacklisted.
func (b *Blacklist) Matches(n *html.Node) bool {
	depth := 0
	for p := n; p != nil && depth <= blacklistDepth; p = p.Parent {
		if p.Type != html.ElementNode {
			break
		}
		for _, sel := range b.selectors {
			if sel.Match(p) {
				return true
			}
		}
		depth++
	}
	return false
}
