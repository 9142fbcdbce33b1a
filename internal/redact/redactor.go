// Package redact swaps matched elements for placeholders and puts them
// back on request.
package redact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/session"
	"golang.org/x/net/html"
)

// ErrPlaceholderGone is returned when a record's placeholder is no longer
// attached to the document. The record is dropped regardless.
var ErrPlaceholderGone = errors.New("placeholder is no longer in the document")

// IgnoreSink persists the session's ignored keywords.
type IgnoreSink interface {
	PersistIgnoredKeywords(ctx context.Context, pageURL string, keywords []string)
}

// Redactor performs reversible placeholder substitution on one document.
// Callers must serialize access together with the document.
type Redactor struct {
	doc    *dom.Document
	state  *session.State
	sink   IgnoreSink
	pick   func(n int) int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithIgnoreSink sets where ignored keywords are persisted on reveal.
func WithIgnoreSink(sink IgnoreSink) Option {
	return func(r *Redactor) {
		r.sink = sink
	}
}

// WithPicker replaces the random palette picker. pick receives the palette
// size and returns an index.
func WithPicker(pick func(n int) int) Option {
	return func(r *Redactor) {
		if pick != nil {
			r.pick = pick
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Redactor) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Redactor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a Redactor editing doc and recording into state.
func New(doc *dom.Document, state *session.State, opts ...Option) *Redactor {
	r := &Redactor{
		doc:    doc,
		state:  state,
		pick:   rand.IntN,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redact replaces el with a placeholder and returns the record that can
// bring it back. keyword may be empty for classifier hits.
func (r *Redactor) Redact(el *html.Node, keyword string, fromClassifier bool) (model.RedactionRecord, error) {
	if el == nil || el.Parent == nil {
		return model.RedactionRecord{}, dom.ErrDetached
	}

	markup, err := dom.OuterHTML(el)
	if err != nil {
		return model.RedactionRecord{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return model.RedactionRecord{}, fmt.Errorf("failed to generate spoiler id: %w", err)
	}

	source := model.SourceKeyword
	if fromClassifier {
		source = model.SourceClassifier
	}
	rec := model.RedactionRecord{
		ID:             "spoiler-" + id.String(),
		OriginalMarkup: markup,
		MatchedKeyword: keyword,
		Source:         source,
		CreatedAt:      r.now(),
	}
	placeholder := newPlaceholder(rec, Palette[r.pick(len(Palette))], el)

	if err := r.state.AddRecord(rec, placeholder); err != nil {
		return model.RedactionRecord{}, err
	}
	if err := r.doc.Replace(el, placeholder); err != nil {
		r.state.DeleteRecord(rec.ID)
		return model.RedactionRecord{}, err
	}
	r.state.MarkProcessed(el)

	r.logger.Debug("redacted element", "id", rec.ID, "tag", el.Data, "source", rec.Source, "keyword", keyword)
	return rec, nil
}

// Reveal puts the original content of placeholder id back, marks it so no
// later scan touches it, and stops blocking the keyword that matched it.
// Unknown or already revealed ids are a no-op and return ok == false.
func (r *Redactor) Reveal(ctx context.Context, id string) (model.RedactionRecord, bool, error) {
	entry, ok := r.state.DeleteRecord(id)
	if !ok {
		return model.RedactionRecord{}, false, nil
	}
	rec := entry.Record

	if err := r.restore(entry, true); err != nil {
		return rec, true, err
	}

	if rec.HasKeyword() && r.state.IgnoreKeyword(rec.MatchedKeyword) {
		r.logger.Info("keyword ignored for this page", "keyword", rec.MatchedKeyword)
		if r.sink != nil {
			r.sink.PersistIgnoredKeywords(ctx, r.state.PageURL(), r.state.Ignored().List())
		}
	}
	return rec, true, nil
}

// Restore puts the original content of placeholder id back without the
// revealed markers or ignore-list side effects, so the content is
// evaluated again by the next scan.
func (r *Redactor) Restore(id string) (model.RedactionRecord, bool, error) {
	entry, ok := r.state.DeleteRecord(id)
	if !ok {
		return model.RedactionRecord{}, false, nil
	}
	return entry.Record, true, r.restore(entry, false)
}

// RestoreSource restores every live placeholder created by source.
// Failures are logged and do not stop the remaining restores.
func (r *Redactor) RestoreSource(source model.Source) []model.RedactionRecord {
	var restored []model.RedactionRecord
	for _, rec := range r.state.Records() {
		if rec.Source != source {
			continue
		}
		if _, _, err := r.Restore(rec.ID); err != nil {
			r.logger.Warn("failed to restore placeholder", "id", rec.ID, "error", err)
			continue
		}
		restored = append(restored, rec)
	}
	return restored
}

func (r *Redactor) restore(entry *session.Entry, revealed bool) error {
	placeholder := entry.Placeholder
	if !r.doc.Contains(placeholder) {
		return fmt.Errorf("%w: %s", ErrPlaceholderGone, entry.Record.ID)
	}

	nodes, err := dom.ParseFragment(placeholder.Parent, entry.Record.OriginalMarkup)
	if err != nil {
		return fmt.Errorf("failed to rebuild %s: %w", entry.Record.ID, err)
	}
	if revealed {
		for _, n := range nodes {
			r.markRevealed(n, true)
		}
	}
	if err := r.doc.Replace(placeholder, nodes...); err != nil {
		return fmt.Errorf("failed to restore %s: %w", entry.Record.ID, err)
	}
	return nil
}

func (r *Redactor) markRevealed(n *html.Node, top bool) {
	if n.Type == html.ElementNode {
		dom.SetAttr(n, model.AttrNoProcess, "true")
		if top {
			dom.AddClass(n, model.ClassRevealed)
		}
		r.state.MarkProcessed(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.markRevealed(c, false)
	}
}
