// Package session holds the mutable state of one page load: which
// elements were already evaluated, which placeholders are live, and which
// keywords the reader switched off.
//
// State is not safe for concurrent use. The engine owns one State and
// touches it only while holding its document lock, pairing each state
// change with the DOM edit it describes.
package session

import (
	"errors"
	"fmt"

	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/keyword"
	"github.com/nao1215/spoilerguard/internal/model"
	"golang.org/x/net/html"
)

// ErrDuplicateRecord is returned when a record id is already live.
var ErrDuplicateRecord = errors.New("redaction record already exists")

// Entry ties a RedactionRecord to the placeholder node standing in for it.
type Entry struct {
	Record      model.RedactionRecord
	Placeholder *html.Node
}

// State is the per-page session.
type State struct {
	pageURL       string
	mode          model.DetectionMode
	keywordDigest string

	processed map[*html.Node]struct{}
	clean     map[*html.Node]struct{}

	records map[string]*Entry
	order   []string

	ignored *keyword.Set
}

// New returns an empty session for pageURL using the default mode.
func New(pageURL string) *State {
	s := &State{mode: model.DefaultDetectionMode}
	s.Reset(pageURL)
	return s
}

// Reset drops everything tied to the previous page. The detection mode
// survives since it is a user preference, not page state.
func (s *State) Reset(pageURL string) {
	s.pageURL = pageURL
	s.keywordDigest = ""
	s.processed = make(map[*html.Node]struct{})
	s.clean = make(map[*html.Node]struct{})
	s.records = make(map[string]*Entry)
	s.order = nil
	s.ignored = keyword.NewSet()
}

// PageURL returns the URL the session was started for.
func (s *State) PageURL() string {
	return s.pageURL
}

// Mode returns the current detection mode.
func (s *State) Mode() model.DetectionMode {
	return s.mode
}

// SetMode stores mode and reports whether it changed.
func (s *State) SetMode(mode model.DetectionMode) bool {
	if s.mode == mode {
		return false
	}
	s.mode = mode
	return true
}

// SetKeywordDigest stores the fingerprint of the active keyword list and
// reports whether it differs from the previous one.
func (s *State) SetKeywordDigest(digest string) bool {
	if s.keywordDigest == digest {
		return false
	}
	s.keywordDigest = digest
	return true
}

// MarkProcessed records that n was matched and must never be evaluated
// again.
func (s *State) MarkProcessed(n *html.Node) {
	s.processed[n] = struct{}{}
	delete(s.clean, n)
}

// IsProcessed reports whether n carries a processed mark.
func (s *State) IsProcessed(n *html.Node) bool {
	_, ok := s.processed[n]
	return ok
}

// MarkClean records that n was evaluated against the current keywords and
// nothing matched.
func (s *State) MarkClean(n *html.Node) {
	s.clean[n] = struct{}{}
}

// IsClean reports whether n carries a clean mark.
func (s *State) IsClean(n *html.Node) bool {
	_, ok := s.clean[n]
	return ok
}

// ClearClean drops every clean mark. Used when the keyword list or the
// detection mode changes, because a no-match verdict no longer holds.
func (s *State) ClearClean() {
	clear(s.clean)
}

// Invalidate removes clean marks from n and all its ancestors: their
// aggregate text changed.
func (s *State) Invalidate(n *html.Node) {
	for p := n; p != nil; p = p.Parent {
		delete(s.clean, p)
	}
}

// Notify invalidates clean marks along the path of every mutation. It
// satisfies dom.Observer.
func (s *State) Notify(records []dom.MutationRecord) {
	for _, r := range records {
		s.Invalidate(r.Target)
	}
}

// CleanCount returns the number of clean marks, for diagnostics.
func (s *State) CleanCount() int {
	return len(s.clean)
}

// AddRecord registers a live placeholder.
func (s *State) AddRecord(rec model.RedactionRecord, placeholder *html.Node) error {
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ID)
	}
	s.records[rec.ID] = &Entry{Record: rec, Placeholder: placeholder}
	s.order = append(s.order, rec.ID)
	return nil
}

// Entry looks up a live placeholder by id.
func (s *State) Entry(id string) (*Entry, bool) {
	e, ok := s.records[id]
	return e, ok
}

// DeleteRecord removes and returns a live entry.
func (s *State) DeleteRecord(id string) (*Entry, bool) {
	e, ok := s.records[id]
	if !ok {
		return nil, false
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return e, true
}

// Records returns the live records in creation order.
func (s *State) Records() []model.RedactionRecord {
	out := make([]model.RedactionRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Record)
	}
	return out
}

// RecordIDs returns the live record ids in creation order.
func (s *State) RecordIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// RecordCount returns the number of live placeholders.
func (s *State) RecordCount() int {
	return len(s.records)
}

// Ignored returns the session's ignored keyword set.
func (s *State) Ignored() *keyword.Set {
	return s.ignored
}

// IgnoreKeyword adds k to the ignored set and reports whether it was new.
func (s *State) IgnoreKeyword(k string) bool {
	return s.ignored.Add(k)
}

// SetIgnored replaces the ignored set.
func (s *State) SetIgnored(list []string) {
	s.ignored = keyword.NewSet(list...)
}
