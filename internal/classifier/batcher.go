package classifier

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultBatchSize is how many chunks go into one request.
	DefaultBatchSize = 20
	// DefaultBatchDelay is the pause between two requests.
	DefaultBatchDelay = 300 * time.Millisecond
)

// Batch outcomes reported through BatchOptions.OnBatch.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeCached  = "cached"
)

// Classifier returns one verdict per text.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]bool, error)
}

// BatchOptions tunes a Batcher.
type BatchOptions struct {
	// Size is the number of chunks per request. Default: 20.
	Size int
	// Delay is the pause between requests. Default: 300ms. Negative
	// values disable the pause.
	Delay time.Duration
	// Timeout bounds each request. Default: 10s.
	Timeout time.Duration
	// OnBatch observes every batch outcome.
	OnBatch func(outcome string)
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *BatchOptions) defaults() {
	if o.Size <= 0 {
		o.Size = DefaultBatchSize
	}
	switch {
	case o.Delay == 0:
		o.Delay = DefaultBatchDelay
	case o.Delay < 0:
		o.Delay = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result summarizes one Run.
type Result struct {
	Chunks   int
	Cached   int
	Batches  int
	Failures int
	Spoilers int
}

// Batcher sends chunks to a Classifier with bounded request rate.
type Batcher struct {
	client Classifier
	cache  *Cache
	opts   BatchOptions
}

// NewBatcher returns a Batcher. cache may be nil.
func NewBatcher(client Classifier, cache *Cache, opts BatchOptions) *Batcher {
	opts.defaults()
	if cache == nil {
		cache = NewCache(nil, opts.Logger)
	}
	return &Batcher{client: client, cache: cache, opts: opts}
}

// Run classifies texts. apply is called with the verdicts of each batch as
// soon as that batch is cached, and once up front for cached verdicts.
// Failed batches are not cached and their texts count as non-spoilers.
func (b *Batcher) Run(ctx context.Context, texts []string, apply func(verdicts map[string]bool)) Result {
	res := Result{}
	pending := make([]string, 0, len(texts))
	cached := make(map[string]bool)
	seen := make(map[string]struct{}, len(texts))

	for _, t := range texts {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		res.Chunks++
		if v, ok := b.cache.Get(ctx, t); ok {
			cached[t] = v
			continue
		}
		pending = append(pending, t)
	}

	if len(cached) > 0 {
		res.Cached = len(cached)
		res.Spoilers += countTrue(cached)
		b.observe(OutcomeCached)
		apply(cached)
	}

	for start := 0; start < len(pending); start += b.opts.Size {
		if start > 0 && !b.pause(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		end := min(start+b.opts.Size, len(pending))
		batch := pending[start:end]
		res.Batches++

		verdicts, err := b.classify(ctx, batch)
		if err != nil {
			res.Failures++
			b.observe(OutcomeFailure)
			b.opts.Logger.Warn("classifier batch failed, treating as non-spoiler",
				"batch", res.Batches, "size", len(batch), "error", err)
			continue
		}

		b.cache.Put(ctx, verdicts)
		res.Spoilers += countTrue(verdicts)
		b.observe(OutcomeSuccess)
		apply(verdicts)
	}
	return res
}

func (b *Batcher) classify(ctx context.Context, batch []string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	got, err := b.client.Classify(ctx, batch)
	if err != nil {
		return nil, err
	}
	verdicts := make(map[string]bool, len(batch))
	for i, t := range batch {
		verdicts[t] = i < len(got) && got[i]
	}
	return verdicts, nil
}

func (b *Batcher) pause(ctx context.Context) bool {
	if b.opts.Delay == 0 {
		return true
	}
	timer := time.NewTimer(b.opts.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (b *Batcher) observe(outcome string) {
	if b.opts.OnBatch != nil {
		b.opts.OnBatch(outcome)
	}
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
