// Package watch turns document mutation notifications into re-scans
// without ever reacting to the engine's own edits.
//
// The watcher is an explicit state machine:
//
//	Idle -> Scanning -> (Mutating -> Scanning)* -> Settling -> Idle
//	Idle -> Mutating -> Settling -> Idle
//
// Mutation records that arrive while Mutating are the engine's own edits
// and are dropped. Records that arrive while Scanning or Settling are
// remembered and dispatched once the watcher is Idle again. Only an Idle
// watcher dispatches.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/spoilerguard/internal/dom"
)

// ErrBusy is returned by RunScan when a scan is already running. The
// request is remembered and dispatched when the watcher becomes Idle.
var ErrBusy = errors.New("scan already in progress")

// State is the watcher's lifecycle state.
type State int32

const (
	// Idle watchers dispatch new content immediately.
	Idle State = iota
	// Scanning means a scan is evaluating the document.
	Scanning
	// Mutating means the engine is editing the document.
	Mutating
	// Settling is the quiet period after the engine's own edits.
	Settling
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Mutating:
		return "mutating"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

const (
	// DefaultDebounce is how long the watcher waits for more mutations
	// before dispatching a scan.
	DefaultDebounce = 50 * time.Millisecond
	// DefaultSettle is the quiet period after the engine's own edits.
	DefaultSettle = 100 * time.Millisecond
)

// Options tunes the watcher.
type Options struct {
	// Debounce is the dispatch window. Default: 50ms.
	Debounce time.Duration
	// Settle is the delay after an edit before mutations dispatch again.
	// Default: 100ms.
	Settle time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Ignored    int64 `json:"ignored"`
	Deferred   int64 `json:"deferred"`
	Scans      int64 `json:"scans"`
}

// Watcher is safe for concurrent use.
type Watcher struct {
	opts Options

	mu       sync.Mutex
	state    State
	scanning bool // owned by RunScan
	editing  int  // Mutate calls in flight
	pending  bool
	mutated  bool
	gen      uint64

	kick chan struct{}

	dispatched atomic.Int64
	ignored    atomic.Int64
	deferred   atomic.Int64
	scans      atomic.Int64
}

// New returns an Idle watcher.
func New(opts Options) *Watcher {
	opts.defaults()
	return &Watcher{
		opts: opts,
		kick: make(chan struct{}, 1),
	}
}

// State returns the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Dispatched: w.dispatched.Load(),
		Ignored:    w.ignored.Load(),
		Deferred:   w.deferred.Load(),
		Scans:      w.scans.Load(),
	}
}

// Notify implements dom.Observer. Only batches that added nodes matter.
func (w *Watcher) Notify(records []dom.MutationRecord) {
	if !dom.HasAddedNodes(records) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Mutating:
		w.ignored.Add(1)
	case Scanning, Settling:
		w.pending = true
		w.deferred.Add(1)
	default:
		w.signal()
	}
}

// Mutate runs fn as one engine edit. Mutation records produced by fn are
// ignored. An edit that outlives the scan it started in settles like an
// edit made outside a scan.
func (w *Watcher) Mutate(fn func()) {
	w.mu.Lock()
	w.editing++
	w.state = Mutating
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.editing--
		switch {
		case w.editing > 0:
		case w.scanning:
			w.state = Scanning
			w.mutated = true
		default:
			w.settle()
		}
	}()

	fn()
}

// RunScan runs fn in the Scanning state. If fn edited the document the
// watcher settles afterwards, otherwise it returns to Idle directly.
func (w *Watcher) RunScan(ctx context.Context, fn func(ctx context.Context) error) error {
	w.mu.Lock()
	if w.scanning || w.editing > 0 {
		w.pending = true
		w.mu.Unlock()
		return ErrBusy
	}
	w.scanning = true
	w.state = Scanning
	w.mutated = false
	w.gen++ // a scan supersedes any settle timer
	w.mu.Unlock()

	w.scans.Add(1)
	defer func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.scanning = false
		switch {
		case w.editing > 0:
			// The edit still running settles when it finishes.
		case w.mutated:
			w.settle()
		default:
			w.idle()
		}
	}()

	return fn(ctx)
}

// Run dispatches scan whenever new content arrives while Idle, until ctx
// is done. Notifications within the debounce window collapse into one scan.
func (w *Watcher) Run(ctx context.Context, scan func(ctx context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.kick:
		}

		if err := w.debounce(ctx); err != nil {
			return err
		}

		w.dispatched.Add(1)
		err := w.RunScan(ctx, scan)
		switch {
		case errors.Is(err, ErrBusy):
			w.opts.Logger.Debug("scan dispatch deferred", "reason", err)
		case err != nil:
			w.opts.Logger.Warn("mutation scan failed", "error", err)
		}
	}
}

func (w *Watcher) debounce(ctx context.Context) error {
	timer := time.NewTimer(w.opts.Debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.kick:
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			return nil
		}
	}
}

// settle must be called with mu held.
func (w *Watcher) settle() {
	w.state = Settling
	w.gen++
	gen := w.gen
	time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.state == Settling && w.gen == gen {
			w.idle()
		}
	})
}

// idle must be called with mu held.
func (w *Watcher) idle() {
	w.state = Idle
	if w.pending {
		w.pending = false
		w.signal()
	}
}

// signal must be called with mu held.
func (w *Watcher) signal() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}
