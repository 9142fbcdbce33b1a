package session

import (
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/model"
	"golang.org/x/net/html"
)

func TestStateRecords(t *testing.T) {
	t.Parallel()

	s := New("https://example.com/a")
	p1, p2 := dom.NewElement("span"), dom.NewElement("span")

	if err := s.AddRecord(model.RedactionRecord{ID: "one"}, p1); err != nil {
		t.Fatalf("AddRecord() error = %v", err)
	}
	if err := s.AddRecord(model.RedactionRecord{ID: "two"}, p2); err != nil {
		t.Fatalf("AddRecord() error = %v", err)
	}
	if err := s.AddRecord(model.RedactionRecord{ID: "one"}, p1); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("AddRecord(duplicate) error = %v, want ErrDuplicateRecord", err)
	}

	if got := s.RecordIDs(); !slices.Equal(got, []string{"one", "two"}) {
		t.Errorf("RecordIDs() = %v", got)
	}

	e, ok := s.DeleteRecord("one")
	if !ok || e.Placeholder != p1 {
		t.Fatalf("DeleteRecord() = (%v, %v)", e, ok)
	}
	if _, ok := s.DeleteRecord("one"); ok {
		t.Error("second DeleteRecord() succeeded")
	}
	if s.RecordCount() != 1 || s.Records()[0].ID != "two" {
		t.Errorf("Records() = %v", s.Records())
	}
}

func TestStateCleanInvalidation(t *testing.T) {
	t.Parallel()

	doc, err := dom.ParseString(`<div id="outer"><p id="inner">text</p></div><p id="other">x</p>`)
	if err != nil {
		t.Fatal(err)
	}
	s := New("")
	cancel := doc.Observe(s)
	defer cancel()

	outer := dom.FindFirst(doc.Root(), func(n *html.Node) bool { return dom.GetAttr(n, "id") == "outer" })
	inner := outer.FirstChild
	other := dom.FindFirst(doc.Root(), func(n *html.Node) bool { return dom.GetAttr(n, "id") == "other" })
	for _, n := range []*html.Node{outer, inner, other} {
		s.MarkClean(n)
	}

	if _, err := doc.AppendHTML(inner, `<b>new</b>`); err != nil {
		t.Fatal(err)
	}

	if s.IsClean(inner) || s.IsClean(outer) {
		t.Error("mutation did not invalidate the ancestor path")
	}
	if !s.IsClean(other) {
		t.Error("mutation invalidated an unrelated sibling")
	}

	s.ClearClean()
	if s.CleanCount() != 0 {
		t.Errorf("CleanCount() = %d after ClearClean", s.CleanCount())
	}
}

func TestStateProcessedOverridesClean(t *testing.T) {
	t.Parallel()

	s := New("")
	n := dom.NewElement("p")
	s.MarkClean(n)
	s.MarkProcessed(n)
	if s.IsClean(n) || !s.IsProcessed(n) {
		t.Error("MarkProcessed() did not replace the clean mark")
	}
}

func TestStateReset(t *testing.T) {
	t.Parallel()

	s := New("https://example.com/a")
	s.SetMode(model.ModeKeywordsOnly)
	s.IgnoreKeyword("Ending")
	s.MarkProcessed(dom.NewElement("p"))
	s.SetKeywordDigest("abc")
	if err := s.AddRecord(model.RedactionRecord{ID: "x"}, dom.NewElement("span")); err != nil {
		t.Fatal(err)
	}

	s.Reset("https://example.com/b")

	if s.PageURL() != "https://example.com/b" {
		t.Errorf("PageURL() = %q", s.PageURL())
	}
	if s.RecordCount() != 0 || s.Ignored().Len() != 0 {
		t.Error("Reset() kept page state")
	}
	if s.Mode() != model.ModeKeywordsOnly {
		t.Errorf("Reset() changed the mode to %q", s.Mode())
	}
	if !s.SetKeywordDigest("abc") {
		t.Error("Reset() kept the keyword digest")
	}
}
