package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/spoilerguard/internal/classifier"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/extract"
	"github.com/nao1215/spoilerguard/internal/keyword"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/pipeline"
	"github.com/nao1215/spoilerguard/internal/redact"
	"github.com/nao1215/spoilerguard/internal/session"
	"github.com/nao1215/spoilerguard/internal/source"
	"github.com/nao1215/spoilerguard/internal/watch"
	"golang.org/x/net/html"
)

// Pass triggers, used as report and metric labels.
const (
	TriggerLoad     = "load"
	TriggerManual   = "manual"
	TriggerMutation = "mutation"
	TriggerMode     = "mode"
)

// Step names.
const (
	StepKeywords   = "keywords"
	StepClassifier = "classifier"
)

// ErrNoBody is returned by AppendHTML when the document has no body.
var ErrNoBody = errors.New("document has no body")

// Engine detects and redacts spoilers in one document at a time.
// It is safe for concurrent use.
type Engine struct {
	opts Options

	src       *source.Adapter
	watcher   *watch.Watcher
	batcher   *classifier.Batcher
	collector *classifier.Collector
	selector  *extract.Selector

	// mu guards everything below and the document itself.
	mu        sync.Mutex
	doc       *dom.Document
	state     *session.State
	redactor  *redact.Redactor
	unobserve func()
	skipped   bool
	last      *model.ScanReport

	// pendingIgnore holds an ignore list captured during Reveal, persisted
	// once the lock is released.
	pendingIgnore *ignoreUpdate
}

type ignoreUpdate struct {
	pageURL  string
	keywords []string
}

// New returns an Engine for doc reading keywords through src. Call Load
// before anything else.
func New(doc *dom.Document, src *source.Adapter, opts Options) *Engine {
	opts.defaults()

	e := &Engine{
		opts:    opts,
		src:     src,
		watcher: watch.New(opts.Watch),
		state:   session.New(""),
	}

	var selOpts []extract.Option
	if opts.WidthRatio > 0 {
		selOpts = append(selOpts, extract.WithWidthRatio(opts.WidthRatio))
	}
	if opts.MaxChildren > 0 {
		selOpts = append(selOpts, extract.WithMaxChildren(opts.MaxChildren))
	}
	selOpts = append(selOpts, extract.WithLogger(opts.Logger))
	e.selector = extract.NewSelector(opts.Matcher, opts.Oracle, e.state, selOpts...)

	e.collector = classifier.NewCollector(opts.Blacklist, opts.Oracle, e.state)
	e.collector.MaxChunks = opts.MaxChunks
	if opts.Classifier != nil {
		batch := opts.Batch
		onBatch := batch.OnBatch
		batch.OnBatch = func(outcome string) {
			opts.Metrics.Batch(outcome)
			if onBatch != nil {
				onBatch(outcome)
			}
		}
		e.batcher = classifier.NewBatcher(opts.Classifier, opts.Cache, batch)
	}

	e.attach(doc)
	return e
}

// attach must be called with mu held, or before the engine is shared.
func (e *Engine) attach(doc *dom.Document) {
	if e.unobserve != nil {
		e.unobserve()
	}
	e.doc = doc
	e.redactor = redact.New(doc, e.state,
		redact.WithIgnoreSink(ignoreSinkFunc(e.captureIgnore)),
		redact.WithLogger(e.opts.Logger),
	)
	stopState := doc.Observe(e.state)
	stopWatch := doc.Observe(e.watcher)
	e.unobserve = func() {
		stopState()
		stopWatch()
	}
}

type ignoreSinkFunc func(ctx context.Context, pageURL string, keywords []string)

func (f ignoreSinkFunc) PersistIgnoredKeywords(ctx context.Context, pageURL string, keywords []string) {
	f(ctx, pageURL, keywords)
}

// captureIgnore runs under mu, from inside Reveal.
func (e *Engine) captureIgnore(_ context.Context, pageURL string, keywords []string) {
	e.pendingIgnore = &ignoreUpdate{pageURL: pageURL, keywords: keywords}
}

// Load starts a page session for pageURL and runs the first pass.
//
// The persisted ignore list survives only a reload of the same URL: when
// it was collected on another page it is cleared from the store too.
func (e *Engine) Load(ctx context.Context, pageURL string) (*model.ScanReport, error) {
	storedURL, ignored := e.src.IgnoredKeywords(ctx)
	mode := e.src.DetectionMode(ctx)
	sameURL := storedURL != "" && storedURL == pageURL

	e.mu.Lock()
	e.state.Reset(pageURL)
	e.state.SetMode(mode)
	if sameURL {
		e.state.SetIgnored(ignored)
	}
	skipped := e.skipDomain(pageURL)
	e.skipped = skipped
	e.mu.Unlock()

	if !sameURL && (storedURL != "" || len(ignored) > 0) {
		e.opts.Logger.Debug("new page, clearing ignored keywords", "previous", storedURL, "page", pageURL)
		e.src.ClearIgnoredKeywords(ctx)
	}

	e.opts.Logger.Info("page loaded", "page", pageURL, "mode", mode, "ignored", len(ignored), "skipped", skipped)
	return e.run(ctx, TriggerLoad)
}

// Navigate replaces the document and starts a new session for pageURL.
func (e *Engine) Navigate(ctx context.Context, pageURL string, doc *dom.Document) (*model.ScanReport, error) {
	e.mu.Lock()
	e.attach(doc)
	e.mu.Unlock()
	return e.Load(ctx, pageURL)
}

// Scan runs one full pass over the document. It returns watch.ErrBusy
// when another pass is running; the request is then picked up by Watch.
func (e *Engine) Scan(ctx context.Context) (*model.ScanReport, error) {
	return e.run(ctx, TriggerManual)
}

func (e *Engine) run(ctx context.Context, trigger string) (*model.ScanReport, error) {
	var report *model.ScanReport
	err := e.watcher.RunScan(ctx, func(ctx context.Context) error {
		var err error
		report, err = e.scan(ctx, trigger)
		return err
	})
	return report, err
}

// Watch re-scans the document whenever content is added from outside the
// engine, until ctx is done.
func (e *Engine) Watch(ctx context.Context) error {
	return e.watcher.Run(ctx, func(ctx context.Context) error {
		_, err := e.scan(ctx, TriggerMutation)
		return err
	})
}

// scan runs in the watcher's Scanning state.
func (e *Engine) scan(ctx context.Context, trigger string) (*model.ScanReport, error) {
	e.mu.Lock()
	report := model.NewScanReport(e.state.PageURL(), e.state.Mode())
	skipped := e.skipped
	e.mu.Unlock()

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		e.opts.Metrics.ObserveScan(trigger, report.Duration)

		e.mu.Lock()
		e.last = report
		e.mu.Unlock()
		if e.opts.OnReport != nil {
			e.opts.OnReport(report)
		}
	}()

	if skipped {
		report.Skipped = true
		return report, nil
	}

	p := pipeline.New(pipeline.WithLogger(e.opts.Logger), pipeline.WithContinueOnError(true))
	if report.Mode.AllowsKeywords() {
		p.AddStep(pipeline.StepFunc{StepName: StepKeywords, Fn: e.keywordStep})
	}
	if report.Mode.AllowsClassifier() && e.batcher != nil {
		p.AddStep(pipeline.StepFunc{StepName: StepClassifier, Fn: e.classifierStep})
	}

	err := p.Execute(ctx, report)
	e.opts.Logger.Debug("scan finished",
		"trigger", trigger,
		"page", report.PageURL,
		"redactions", len(report.Redactions),
		"steps", report.PerformedSteps,
	)
	return report, err
}

func (e *Engine) keywordStep(ctx context.Context, report *model.ScanReport) error {
	keywords := e.src.Keywords(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.SetKeywordDigest(keyword.Digest(keywords)) {
		e.state.ClearClean()
	}
	report.IgnoredKeywords = e.state.Ignored().List()
	active := e.opts.Matcher.Active(keywords, e.state.Ignored())
	report.KeywordsActive = active
	if len(active) == 0 {
		return nil
	}

	body := e.doc.Body()
	for m := range e.selector.Select(body, active) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.redact(report, m.Element, m.Keyword, false)
	}
	return nil
}

func (e *Engine) classifierStep(ctx context.Context, report *model.ScanReport) error {
	e.mu.Lock()
	chunks := e.collector.Collect(e.doc.Body())
	e.mu.Unlock()
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	res := e.batcher.Run(ctx, texts, func(verdicts map[string]bool) {
		e.mu.Lock()
		defer e.mu.Unlock()
		for _, c := range chunks {
			if !verdicts[c.Text] || !e.redactable(c.Element) {
				continue
			}
			e.redact(report, c.Element, "", true)
		}
	})
	report.ClassifierBatches += res.Batches
	report.ClassifierFailures += res.Failures
	return ctx.Err()
}

// redactable reports whether a classifier hit can still be replaced.
// Must be called with mu held.
func (e *Engine) redactable(el *html.Node) bool {
	if !e.doc.Contains(el) || e.state.IsProcessed(el) || extract.Marked(el) {
		return false
	}
	return dom.FindFirst(el, func(n *html.Node) bool {
		return dom.HasClass(n, model.ClassBlocked)
	}) == nil
}

// redact must be called with mu held. Failures skip the element.
func (e *Engine) redact(report *model.ScanReport, el *html.Node, kw string, fromClassifier bool) {
	var (
		rec model.RedactionRecord
		err error
	)
	e.watcher.Mutate(func() {
		rec, err = e.redactor.Redact(el, kw, fromClassifier)
	})
	if err != nil {
		e.opts.Logger.Warn("failed to redact element", "tag", el.Data, "error", err)
		return
	}
	report.Redactions = append(report.Redactions, rec)
	e.opts.Metrics.Redacted(rec.Source)
}

// Reveal restores placeholder id and stops blocking its keyword for this
// page. Unknown ids are a no-op and return ok == false.
func (e *Engine) Reveal(ctx context.Context, id string) (model.RedactionRecord, bool, error) {
	e.mu.Lock()
	var (
		rec model.RedactionRecord
		ok  bool
		err error
	)
	e.watcher.Mutate(func() {
		rec, ok, err = e.redactor.Reveal(ctx, id)
	})
	pending := e.pendingIgnore
	e.pendingIgnore = nil
	e.mu.Unlock()

	if pending != nil {
		e.src.PersistIgnoredKeywords(ctx, pending.pageURL, pending.keywords)
	}
	if ok {
		e.opts.Metrics.Revealed()
		e.opts.Logger.Info("spoiler revealed", "id", id, "keyword", rec.MatchedKeyword, "source", rec.Source)
	}
	return rec, ok, err
}

// SetMode persists mode, restores placeholders whose source the new mode
// excludes, and re-evaluates the document from scratch. The returned
// report lists the restored ids.
func (e *Engine) SetMode(ctx context.Context, mode model.DetectionMode) (*model.ScanReport, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidDetectionMode, mode)
	}
	e.src.SetDetectionMode(ctx, mode)

	e.mu.Lock()
	e.state.SetMode(mode)
	var restored []model.RedactionRecord
	for _, src := range []model.Source{model.SourceKeyword, model.SourceClassifier} {
		if mode.Allows(src) {
			continue
		}
		e.watcher.Mutate(func() {
			restored = append(restored, e.redactor.RestoreSource(src)...)
		})
	}
	e.state.ClearClean()
	e.mu.Unlock()

	for _, rec := range restored {
		e.opts.Metrics.Restored(rec.Source)
	}
	e.opts.Logger.Info("detection mode changed", "mode", mode, "restored", len(restored))

	report, err := e.run(ctx, TriggerMode)
	if errors.Is(err, watch.ErrBusy) {
		// The rescan is pending; report what the switch already restored.
		report = e.pendingReport()
	}
	if report != nil {
		for _, rec := range restored {
			report.Restored = append(report.Restored, rec.ID)
		}
	}
	return report, err
}

// ResetIgnored forgets every ignored keyword for this page and rescans so
// that content left visible for those keywords is redacted again.
// Revealed content stays revealed. Like Scan, it returns watch.ErrBusy
// together with an empty report when the rescan had to be queued.
func (e *Engine) ResetIgnored(ctx context.Context) (*model.ScanReport, error) {
	e.mu.Lock()
	e.state.SetIgnored(nil)
	e.state.ClearClean()
	e.mu.Unlock()
	e.src.ClearIgnoredKeywords(ctx)

	report, err := e.run(ctx, TriggerManual)
	if errors.Is(err, watch.ErrBusy) {
		report = e.pendingReport()
	}
	return report, err
}

func (e *Engine) pendingReport() *model.ScanReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.NewScanReport(e.state.PageURL(), e.state.Mode())
}

// AppendHTML adds markup to the end of the body as outside content would.
// The watcher sees the change like any other page mutation.
func (e *Engine) AppendHTML(markup string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	body := e.doc.Body()
	if body == nil {
		return ErrNoBody
	}
	_, err := e.doc.AppendHTML(body, markup)
	return err
}

// HTML returns the current document markup.
func (e *Engine) HTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.HTML()
}

// Records returns the live redaction records in creation order.
func (e *Engine) Records() []model.RedactionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Records()
}

// Ignored returns the page's ignored keywords.
func (e *Engine) Ignored() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Ignored().List()
}

// Mode returns the detection mode in effect.
func (e *Engine) Mode() model.DetectionMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Mode()
}

// PageURL returns the URL of the current session.
func (e *Engine) PageURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PageURL()
}

// LastReport returns the report of the most recent pass, or nil.
func (e *Engine) LastReport() *model.ScanReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// WatcherStats returns the mutation watcher counters.
func (e *Engine) WatcherStats() watch.Stats {
	return e.watcher.Stats()
}

func (e *Engine) skipDomain(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range e.opts.SkipDomains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
