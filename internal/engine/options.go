package engine

import (
	"log/slog"

	"github.com/nao1215/spoilerguard/internal/classifier"
	"github.com/nao1215/spoilerguard/internal/keyword"
	"github.com/nao1215/spoilerguard/internal/layout"
	"github.com/nao1215/spoilerguard/internal/metrics"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/watch"
)

// DefaultSkipDomains are hosts that are never scanned. Subdomains match.
var DefaultSkipDomains = []string{
	"wikipedia.org",
	"docs.google.com",
	"github.com",
	"stackoverflow.com",
}

// Options configures an Engine. The zero value scans with keywords only,
// the static layout model and default limits.
type Options struct {
	// Matcher decides keyword matches. Default: keyword.NewMatcher().
	Matcher *keyword.Matcher

	// Oracle answers layout questions. Default: layout.NewStatic(0).
	Oracle layout.Oracle

	// WidthRatio and MaxChildren tune the granularity selector.
	// Zero keeps the selector defaults.
	WidthRatio  float64
	MaxChildren int

	// Classifier is the remote spoiler classifier. When nil the
	// classifier step never runs.
	Classifier classifier.Classifier

	// Cache holds classifier verdicts. Default: an in-memory cache.
	Cache *classifier.Cache

	// Batch tunes classifier batching.
	Batch classifier.BatchOptions

	// Blacklist excludes structural containers from classification.
	// Default: classifier.DefaultBlacklist.
	Blacklist *classifier.Blacklist

	// MaxChunks caps classifier chunks per pass. Zero means no cap.
	MaxChunks int

	// SkipDomains replaces DefaultSkipDomains when non-nil.
	SkipDomains []string

	// Watch tunes the mutation watcher.
	Watch watch.Options

	// Metrics receives engine instruments. May be nil.
	Metrics *metrics.Metrics

	// OnReport is called after every pass, including passes started by
	// the watcher.
	OnReport func(report *model.ScanReport)

	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Matcher == nil {
		o.Matcher = keyword.NewMatcher(keyword.WithLogger(o.Logger))
	}
	if o.Oracle == nil {
		o.Oracle = layout.NewStatic(0)
	}
	if o.Cache == nil {
		o.Cache = classifier.NewCache(nil, o.Logger)
	}
	if o.Batch.Logger == nil {
		o.Batch.Logger = o.Logger
	}
	if o.Blacklist == nil {
		o.Blacklist = classifier.NewBlacklist(classifier.DefaultBlacklist, o.Logger)
	}
	if o.SkipDomains == nil {
		o.SkipDomains = DefaultSkipDomains
	}
	if o.Watch.Logger == nil {
		o.Watch.Logger = o.Logger
	}
}
