package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/spoilerguard/internal/classifier"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/source"
	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/nao1215/spoilerguard/internal/watch"
)

// memStore is an in-memory keyword store speaking the message protocol.
type memStore struct {
	mu         sync.Mutex
	keywords   []string
	ignored    []string
	ignoredURL string
	mode       string
	requests   []string
}

func (m *memStore) Send(_ context.Context, req store.Request) (store.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req.Action)

	switch req.Action {
	case store.ActionGetKeywords:
		return store.Response{Success: true, Keywords: append([]string{}, m.keywords...)}, nil
	case store.ActionGetIgnoredKeywords:
		return store.Response{Success: true, PageURL: m.ignoredURL, IgnoredKeywords: append([]string{}, m.ignored...)}, nil
	case store.ActionSetIgnoredKeywords:
		m.ignoredURL, m.ignored = req.PageURL, req.IgnoredKeywords
		return store.Response{Success: true}, nil
	case store.ActionClearIgnoredKeywords:
		m.ignoredURL, m.ignored = "", nil
		return store.Response{Success: true}, nil
	case store.ActionGetDetectionMode:
		return store.Response{Success: true, DetectionMode: m.mode}, nil
	case store.ActionSetDetectionMode:
		m.mode = req.DetectionMode
		return store.Response{Success: true}, nil
	default:
		return store.Response{}, store.ErrUnknownAction
	}
}

func (m *memStore) ignoredState() (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignoredURL, append([]string{}, m.ignored...)
}

// fakeClassifier flags every text containing one of its words.
type fakeClassifier struct {
	words []string
	err   error
	calls int
}

func (f *fakeClassifier) Classify(_ context.Context, texts []string) ([]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]bool, len(texts))
	for i, t := range texts {
		for _, w := range f.words {
			if strings.Contains(t, w) {
				out[i] = true
			}
		}
	}
	return out, nil
}

const pageURL = "https://example.com/forum/thread-1"

func newEngine(t *testing.T, markup string, st *memStore, opts Options) *Engine {
	t.Helper()

	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	opts.Batch.Delay = -1
	if opts.Watch.Debounce == 0 {
		opts.Watch = watch.Options{Debounce: 5 * time.Millisecond, Settle: 5 * time.Millisecond}
	}
	return New(doc, source.New(st, nil), opts)
}

func TestEngineLoad(t *testing.T) {
	t.Parallel()

	t.Run("redacts the villain paragraph and reveals it", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"Alex"}}
		e := newEngine(t, `<html><body><p>The villain is revealed to be Alex</p></body></html>`, st, Options{})

		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if len(report.Redactions) != 1 {
			t.Fatalf("expected 1 redaction, got %d", len(report.Redactions))
		}
		rec := report.Redactions[0]
		if rec.MatchedKeyword != "alex" || rec.Source != model.SourceKeyword {
			t.Errorf("unexpected record: %+v", rec)
		}
		if !strings.HasPrefix(rec.OriginalMarkup, "<p>") {
			t.Errorf("expected the paragraph to be redacted, got %q", rec.OriginalMarkup)
		}
		if got := e.HTML(); strings.Contains(got, "villain") || !strings.Contains(got, model.ClassBlocked) {
			t.Errorf("placeholder missing from document: %s", got)
		}

		_, ok, err := e.Reveal(context.Background(), rec.ID)
		if err != nil || !ok {
			t.Fatalf("Reveal() = %v, %v", ok, err)
		}
		if got := e.HTML(); !strings.Contains(got, "The villain is revealed to be Alex") {
			t.Errorf("original text not restored: %s", got)
		}
		if ignored := e.Ignored(); len(ignored) != 1 || ignored[0] != "alex" {
			t.Errorf("Ignored() = %v, want [alex]", ignored)
		}
		gotURL, gotIgnored := st.ignoredState()
		if gotURL != pageURL || len(gotIgnored) != 1 || gotIgnored[0] != "alex" {
			t.Errorf("store ignore list = %q %v", gotURL, gotIgnored)
		}
		if len(e.Records()) != 0 {
			t.Errorf("expected no live records after reveal, got %d", len(e.Records()))
		}
	})

	t.Run("second reveal is a no-op", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"alex"}}
		e := newEngine(t, `<body><p>The villain is revealed to be Alex</p></body>`, st, Options{})
		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		id := report.Redactions[0].ID
		if _, ok, _ := e.Reveal(context.Background(), id); !ok {
			t.Fatal("first reveal failed")
		}
		before := e.HTML()
		if _, ok, err := e.Reveal(context.Background(), id); ok || err != nil {
			t.Errorf("second Reveal() = %v, %v, want false, nil", ok, err)
		}
		if e.HTML() != before {
			t.Error("second reveal changed the document")
		}
	})

	t.Run("rescan is idempotent", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"dies", "ending"}}
		e := newEngine(t, `<body>
			<div><p>The hero dies in the final battle</p><p>Nothing to see here</p></div>
			<ul><li>The ending is sad</li><li>Weather is fine</li></ul>
		</body>`, st, Options{})

		first, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(first.Redactions) != 2 {
			t.Fatalf("expected 2 redactions, got %d", len(first.Redactions))
		}
		html := e.HTML()

		second, err := e.Scan(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(second.Redactions) != 0 {
			t.Errorf("second pass redacted %d elements", len(second.Redactions))
		}
		if e.HTML() != html {
			t.Error("second pass changed the document")
		}
	})

	t.Run("ignored keyword is never redacted", func(t *testing.T) {
		t.Parallel()

		st := &memStore{
			keywords:   []string{"ending"},
			ignored:    []string{"ending"},
			ignoredURL: pageURL,
		}
		e := newEngine(t, `<body><p>The ending is sad</p></body>`, st, Options{})
		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Redactions) != 0 {
			t.Errorf("ignored keyword was redacted: %+v", report.Redactions)
		}
		if len(report.KeywordsActive) != 0 {
			t.Errorf("KeywordsActive = %v, want empty", report.KeywordsActive)
		}
	})

	t.Run("ignore list is cleared on a new page", func(t *testing.T) {
		t.Parallel()

		st := &memStore{
			keywords:   []string{"ending"},
			ignored:    []string{"ending"},
			ignoredURL: "https://example.com/other",
		}
		e := newEngine(t, `<body><p>The ending is sad</p></body>`, st, Options{})
		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Redactions) != 1 {
			t.Errorf("expected redaction after navigation, got %d", len(report.Redactions))
		}
		if u, kws := st.ignoredState(); u != "" || len(kws) != 0 {
			t.Errorf("store ignore list not cleared: %q %v", u, kws)
		}
	})

	t.Run("short keywords never match", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"al", "x"}}
		e := newEngine(t, `<body><p>al x al x</p></body>`, st, Options{})
		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Redactions) != 0 {
			t.Errorf("short keyword matched: %+v", report.Redactions)
		}
	})

	t.Run("skip domains are not scanned", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"alex"}}
		e := newEngine(t, `<body><p>Alex wins</p></body>`, st, Options{})
		report, err := e.Load(context.Background(), "https://en.wikipedia.org/wiki/Alex")
		if err != nil {
			t.Fatal(err)
		}
		if !report.Skipped || len(report.Redactions) != 0 {
			t.Errorf("report = %+v, want skipped without redactions", report)
		}
	})
}

func TestEngineNavigate(t *testing.T) {
	t.Parallel()

	st := &memStore{keywords: []string{"alex"}}
	e := newEngine(t, `<body><p>Alex wins the cup</p></body>`, st, Options{})
	report, err := e.Load(context.Background(), pageURL)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Reveal(context.Background(), report.Redactions[0].ID); err != nil {
		t.Fatal(err)
	}

	t.Run("reload keeps the ignore list", func(t *testing.T) {
		doc, err := dom.ParseString(`<body><p>Alex wins the cup</p></body>`)
		if err != nil {
			t.Fatal(err)
		}
		report, err := e.Navigate(context.Background(), pageURL, doc)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Redactions) != 0 {
			t.Errorf("reload redacted an ignored keyword")
		}
	})

	t.Run("new page starts over", func(t *testing.T) {
		doc, err := dom.ParseString(`<body><p>Alex wins the cup</p></body>`)
		if err != nil {
			t.Fatal(err)
		}
		report, err := e.Navigate(context.Background(), "https://example.com/forum/thread-2", doc)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Redactions) != 1 {
			t.Errorf("expected 1 redaction on the new page, got %d", len(report.Redactions))
		}
		if len(e.Ignored()) != 0 {
			t.Errorf("Ignored() = %v, want empty", e.Ignored())
		}
	})
}

func TestEngineClassifier(t *testing.T) {
	t.Parallel()

	const markup = `<body>
		<p>Alex wins the cup in the end</p>
		<p>The captain was killed in the storm.</p>
		<p>Tickets go on sale next Monday morning.</p>
	</body>`

	t.Run("mode switch restores only classifier redactions", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"alex"}, mode: "both"}
		fc := &fakeClassifier{words: []string{"killed"}}
		e := newEngine(t, markup, st, Options{Classifier: fc})

		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if report.CountBySource(model.SourceKeyword) != 1 || report.CountBySource(model.SourceClassifier) != 1 {
			t.Fatalf("unexpected redactions: %+v", report.Redactions)
		}

		modeReport, err := e.SetMode(context.Background(), model.ModeKeywordsOnly)
		if err != nil {
			t.Fatal(err)
		}
		if len(modeReport.Restored) != 1 {
			t.Errorf("expected 1 restored placeholder, got %v", modeReport.Restored)
		}
		records := e.Records()
		if len(records) != 1 || records[0].Source != model.SourceKeyword {
			t.Errorf("remaining records = %+v", records)
		}
		html := e.HTML()
		if !strings.Contains(html, "The captain was killed in the storm.") {
			t.Errorf("classifier content not restored: %s", html)
		}
		if strings.Contains(html, "Alex wins") {
			t.Errorf("keyword redaction was restored: %s", html)
		}
		if st.mode != "keywords" {
			t.Errorf("mode not persisted, got %q", st.mode)
		}
	})

	t.Run("api mode leaves keyword matches alone", func(t *testing.T) {
		t.Parallel()

		st := &memStore{keywords: []string{"alex"}, mode: "api"}
		fc := &fakeClassifier{words: []string{"killed"}}
		e := newEngine(t, markup, st, Options{Classifier: fc})

		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if report.CountBySource(model.SourceKeyword) != 0 || report.CountBySource(model.SourceClassifier) != 1 {
			t.Errorf("unexpected redactions: %+v", report.Redactions)
		}
	})

	t.Run("classifier failure fails open", func(t *testing.T) {
		t.Parallel()

		st := &memStore{mode: "api"}
		fc := &fakeClassifier{err: errors.New("connection refused")}
		e := newEngine(t, markup, st, Options{Classifier: fc})

		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Redactions) != 0 {
			t.Errorf("failed batch redacted content: %+v", report.Redactions)
		}
		if report.ClassifierBatches != 1 || report.ClassifierFailures != 1 {
			t.Errorf("batches = %d failures = %d", report.ClassifierBatches, report.ClassifierFailures)
		}
	})

	t.Run("cached verdicts skip the network", func(t *testing.T) {
		t.Parallel()

		st := &memStore{mode: "api"}
		fc := &fakeClassifier{}
		cache := classifier.NewCache(nil, nil)
		cache.Put(context.Background(), map[string]bool{
			"Alex wins the cup in the end":            false,
			"The captain was killed in the storm.":    true,
			"Tickets go on sale next Monday morning.": false,
		})
		e := newEngine(t, markup, st, Options{Classifier: fc, Cache: cache})

		report, err := e.Load(context.Background(), pageURL)
		if err != nil {
			t.Fatal(err)
		}
		if fc.calls != 0 {
			t.Errorf("classifier called %d times", fc.calls)
		}
		if report.CountBySource(model.SourceClassifier) != 1 {
			t.Errorf("unexpected redactions: %+v", report.Redactions)
		}
	})
}

func TestEngineWatch(t *testing.T) {
	t.Parallel()

	st := &memStore{keywords: []string{"alex"}}
	e := newEngine(t, `<body><p>Nothing yet</p></body>`, st, Options{})
	if _, err := e.Load(context.Background(), pageURL); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx) }()

	if err := e.AppendHTML(`<div><p>Late comment: Alex betrays everyone</p></div>`); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(e.Records()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(e.Records()) != 1 {
		t.Fatalf("appended content was not redacted, records = %d", len(e.Records()))
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() = %v, want context.Canceled", err)
	}
	if stats := e.WatcherStats(); stats.Dispatched == 0 {
		t.Errorf("watcher never dispatched: %+v", stats)
	}
}

func TestEngineSetModeInvalid(t *testing.T) {
	t.Parallel()

	e := newEngine(t, `<body></body>`, &memStore{}, Options{})
	if _, err := e.SetMode(context.Background(), "everything"); !errors.Is(err, model.ErrInvalidDetectionMode) {
		t.Errorf("SetMode() error = %v, want ErrInvalidDetectionMode", err)
	}
}

func TestSkipDomain(t *testing.T) {
	t.Parallel()

	e := newEngine(t, `<body></body>`, &memStore{}, Options{})
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com/nao1215", true},
		{"https://en.wikipedia.org/wiki/Go", true},
		{"https://docs.google.com/document/d/1", true},
		{"https://notgithub.com/", false},
		{"https://example.com/", false},
		{"file:///tmp/page.html", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			if got := e.skipDomain(tt.url); got != tt.want {
				t.Errorf("skipDomain(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

// gatedClassifier blocks every call once gate is set, until gate closes.
type gatedClassifier struct {
	fakeClassifier
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (g *gatedClassifier) Classify(ctx context.Context, texts []string) ([]bool, error) {
	if g.gate != nil {
		g.once.Do(func() { close(g.started) })
		<-g.gate
	}
	return g.fakeClassifier.Classify(ctx, texts)
}

func TestEngineSetModeDuringScan(t *testing.T) {
	t.Parallel()

	const markup = `<body>
		<p>Alex wins the cup in the end</p>
		<p>The captain was killed in the storm.</p>
	</body>`

	st := &memStore{keywords: []string{"alex"}, mode: "both"}
	gc := &gatedClassifier{fakeClassifier: fakeClassifier{words: []string{"killed"}}}
	e := newEngine(t, markup, st, Options{Classifier: gc})

	if _, err := e.Load(context.Background(), pageURL); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	gc.gate = make(chan struct{})
	gc.started = make(chan struct{})
	if err := e.AppendHTML(`<p>Later the first mate was killed as well.</p>`); err != nil {
		t.Fatalf("AppendHTML() error: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := e.Scan(context.Background())
		done <- err
	}()
	<-gc.started

	report, err := e.SetMode(context.Background(), model.ModeKeywordsOnly)
	if !errors.Is(err, watch.ErrBusy) {
		t.Fatalf("SetMode() error = %v, want watch.ErrBusy", err)
	}
	if report == nil || len(report.Restored) != 1 {
		t.Fatalf("SetMode() report = %+v, want the restored classifier placeholder", report)
	}
	if e.Mode() != model.ModeKeywordsOnly {
		t.Errorf("Mode() = %q", e.Mode())
	}

	close(gc.gate)
	if err := <-done; err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if _, err := e.Scan(context.Background()); err != nil {
		t.Errorf("Scan() after the switch error = %v", err)
	}
}

func TestEngineResetIgnored(t *testing.T) {
	t.Parallel()

	st := &memStore{keywords: []string{"Alex"}}
	e := newEngine(t, `<html><body><p>The villain is revealed to be Alex</p></body></html>`, st, Options{})

	report, err := e.Load(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(report.Redactions) != 1 {
		t.Fatalf("expected 1 redaction, got %d", len(report.Redactions))
	}
	if _, found, err := e.Reveal(context.Background(), report.Redactions[0].ID); err != nil || !found {
		t.Fatalf("Reveal() = %v, %v", found, err)
	}

	if err := e.AppendHTML(`<p>Alex is back for the sequel.</p>`); err != nil {
		t.Fatalf("AppendHTML() error: %v", err)
	}
	report, err = e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(report.Redactions) != 0 {
		t.Fatalf("ignored keyword redacted: %+v", report.Redactions)
	}

	report, err = e.ResetIgnored(context.Background())
	if err != nil {
		t.Fatalf("ResetIgnored() error: %v", err)
	}
	if len(report.Redactions) != 1 || !strings.Contains(report.Redactions[0].OriginalMarkup, "sequel") {
		t.Errorf("ResetIgnored() redactions = %+v, want the new paragraph only", report.Redactions)
	}
	if len(e.Ignored()) != 0 {
		t.Errorf("Ignored() = %v, want empty", e.Ignored())
	}
	if _, ignored := st.ignoredState(); len(ignored) != 0 {
		t.Errorf("store ignored = %v, want cleared", ignored)
	}
}
