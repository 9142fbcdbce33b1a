package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ignorer reports whether a keyword has been switched off for the session.
type Ignorer interface {
	IsIgnored(keyword string) bool
}

const (
	// DefaultFuzzyThreshold is the similarity a word window needs to count
	// as a fuzzy hit.
	DefaultFuzzyThreshold = 0.8

	boundary = `[^\p{L}\p{N}_]`
)

// Matcher tests text against keyword lists. Compiled patterns are cached,
// so a Matcher is cheap to reuse and safe for concurrent use.
type Matcher struct {
	minLength int
	fuzzy     bool
	threshold float64
	plurals   bool
	logger    *slog.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithFuzzy enables approximate matching after exact matching fails.
// Thresholds outside (0, 1] fall back to DefaultFuzzyThreshold.
func WithFuzzy(threshold float64) Option {
	return func(m *Matcher) {
		if threshold <= 0 || threshold > 1 {
			threshold = DefaultFuzzyThreshold
		}
		m.fuzzy = true
		m.threshold = threshold
	}
}

// WithPluralSuffixes lets "keyword" also match "keywords" and "keywordes".
func WithPluralSuffixes() Option {
	return func(m *Matcher) {
		m.plurals = true
	}
}

// WithMinLength raises the minimum keyword length. Values below MinLength
// are ignored.
func WithMinLength(n int) Option {
	return func(m *Matcher) {
		if n > MinLength {
			m.minLength = n
		}
	}
}

// WithLogger sets the logger used to report skipped keywords.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher returns an exact, word-boundary matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		minLength: MinLength,
		threshold: DefaultFuzzyThreshold,
		logger:    slog.Default(),
		patterns:  make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active returns the keywords eligible for matching: normalized, long
// enough, and not ignored. Input order is preserved.
func (m *Matcher) Active(keywords []string, ignorer Ignorer) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range NormalizeList(keywords) {
		if utf8.RuneCountInString(k) < m.minLength {
			continue
		}
		if ignorer != nil && ignorer.IsIgnored(k) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Match returns the first keyword, in input order, that occurs in text as
// a whole word. When no exact hit exists and fuzzy matching is enabled,
// the first keyword with a close enough word window is returned.
func (m *Matcher) Match(text string, keywords []string, ignorer Ignorer) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	active := m.Active(keywords, ignorer)
	return m.MatchActive(text, active)
}

// MatchActive is Match for a list already filtered by Active.
func (m *Matcher) MatchActive(text string, active []string) (string, bool) {
	if strings.TrimSpace(text) == "" || len(active) == 0 {
		return "", false
	}
	for _, k := range active {
		re := m.pattern(k)
		if re == nil {
			continue
		}
		if re.MatchString(text) {
			return k, true
		}
	}
	if m.fuzzy {
		return m.matchFuzzy(text, active)
	}
	return "", false
}

func (m *Matcher) pattern(k string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.patterns[k]; ok {
		return re
	}
	expr := `(?i)(?:^|` + boundary + `)` + regexp.QuoteMeta(k)
	if m.plurals {
		expr += `(?:s|es)?`
	}
	expr += `(?:` + boundary + `|$)`

	re, err := regexp.Compile(expr)
	if err != nil {
		m.logger.Warn("skipping keyword with invalid pattern", "keyword", k, "error", err)
		re = nil
	}
	m.patterns[k] = re
	return re
}

func (m *Matcher) matchFuzzy(text string, active []string) (string, bool) {
	tokens := words(text)
	if len(tokens) == 0 {
		return "", false
	}
	for _, k := range active {
		kw := words(k)
		n := len(kw)
		if n == 0 || n > len(tokens) {
			continue
		}
		target := strings.Join(kw, " ")
		for i := 0; i+n <= len(tokens); i++ {
			window := Normalize(strings.Join(tokens[i:i+n], " "))
			if Similarity(window, target) >= m.threshold {
				return k, true
			}
		}
	}
	return "", false
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)), measured
// in runes. Identical strings score 1; two empty strings score 0.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
}
