package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/spoilerguard/internal/dom"
	"golang.org/x/net/html"
)

var added = []dom.MutationRecord{{Op: dom.OpInsert, Added: []*html.Node{dom.NewElement("p")}}}

func newTestWatcher() *Watcher {
	return New(Options{Debounce: 5 * time.Millisecond, Settle: 20 * time.Millisecond})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startRun(t *testing.T, w *Watcher, scans *atomic.Int64) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			scans.Add(1)
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	})
}

func TestWatcherDispatchesWhenIdle(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	var scans atomic.Int64
	startRun(t, w, &scans)

	w.Notify(added)
	w.Notify(added)
	w.Notify(added)

	waitFor(t, "one scan", func() bool { return scans.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := scans.Load(); got != 1 {
		t.Errorf("scans = %d, want notifications inside the debounce window to collapse into 1", got)
	}
}

func TestWatcherIgnoresOwnEdits(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	var scans atomic.Int64
	startRun(t, w, &scans)

	w.Mutate(func() {
		if w.State() != Mutating {
			t.Errorf("State() = %v inside Mutate", w.State())
		}
		w.Notify(added)
	})
	if w.State() != Settling {
		t.Errorf("State() = %v after Mutate, want settling", w.State())
	}

	waitFor(t, "idle", func() bool { return w.State() == Idle })
	time.Sleep(30 * time.Millisecond)
	if scans.Load() != 0 {
		t.Errorf("scans = %d, own edits triggered a rescan", scans.Load())
	}
	if w.Stats().Ignored != 1 {
		t.Errorf("Stats().Ignored = %d, want 1", w.Stats().Ignored)
	}
}

func TestWatcherDefersDuringScan(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	var scans atomic.Int64
	startRun(t, w, &scans)

	err := w.RunScan(context.Background(), func(context.Context) error {
		w.Notify(added)
		if scans.Load() != 0 {
			t.Error("scan dispatched while scanning")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}

	waitFor(t, "deferred scan", func() bool { return scans.Load() == 1 })
	if w.Stats().Deferred != 1 {
		t.Errorf("Stats().Deferred = %d, want 1", w.Stats().Deferred)
	}
}

func TestWatcherScanWithEditsSettles(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	err := w.RunScan(context.Background(), func(context.Context) error {
		w.Mutate(func() { w.Notify(added) })
		if w.State() != Scanning {
			t.Errorf("State() = %v after Mutate inside scan", w.State())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if w.State() != Settling {
		t.Errorf("State() = %v, want settling", w.State())
	}
	waitFor(t, "idle", func() bool { return w.State() == Idle })
}

func TestWatcherRunScanBusy(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = w.RunScan(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := w.RunScan(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrBusy) {
		t.Errorf("RunScan() error = %v, want ErrBusy", err)
	}
	close(release)
	waitFor(t, "idle", func() bool { return w.State() == Idle })
}

func TestWatcherEditOutlivesScan(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	release := make(chan struct{})
	started := make(chan struct{})
	scanDone := make(chan error, 1)
	go func() {
		scanDone <- w.RunScan(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	w.Mutate(func() {
		close(release)
		if err := <-scanDone; err != nil {
			t.Errorf("RunScan() error = %v", err)
		}
		if w.State() != Mutating {
			t.Errorf("State() = %v after the scan ended mid-edit, want mutating", w.State())
		}
		w.Notify(added)
	})

	if got := w.State(); got != Settling {
		t.Errorf("State() = %v after the edit, want settling", got)
	}
	if w.Stats().Ignored != 1 {
		t.Errorf("Stats().Ignored = %d, want the edit's own records ignored", w.Stats().Ignored)
	}
	waitFor(t, "idle", func() bool { return w.State() == Idle })

	if err := w.RunScan(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("RunScan() after the edit error = %v", err)
	}
	if got := w.State(); got != Idle {
		t.Errorf("State() = %v, want idle", got)
	}
}

func TestWatcherIgnoresRemovals(t *testing.T) {
	t.Parallel()

	w := newTestWatcher()
	w.Notify([]dom.MutationRecord{{Op: dom.OpRemove, Removed: []*html.Node{dom.NewElement("p")}}})
	select {
	case <-w.kick:
		t.Error("removal-only batch dispatched a scan")
	default:
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{Idle: "idle", Scanning: "scanning", Mutating: "mutating", Settling: "settling", State(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
