package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClassifier marks texts containing "spoiler" and fails or hangs on
// batches whose first text carries a trigger word.
type fakeClassifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeClassifier) Classify(ctx context.Context, texts []string) ([]bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()

	switch {
	case strings.HasPrefix(texts[0], "fail"):
		return nil, errors.New("boom")
	case strings.HasPrefix(texts[0], "hang"):
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([]bool, len(texts))
	for i, t := range texts {
		out[i] = strings.Contains(t, "spoiler")
	}
	return out, nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func collectVerdicts(all map[string]bool) func(map[string]bool) {
	return func(v map[string]bool) {
		for k, s := range v {
			all[k] = s
		}
	}
}

func TestBatcherBatchesSequentially(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	var outcomes []string
	b := NewBatcher(fc, nil, BatchOptions{Size: 2, Delay: time.Millisecond, OnBatch: func(o string) { outcomes = append(outcomes, o) }})

	texts := []string{"a spoiler", "b", "c", "a spoiler", "d spoiler"}
	got := map[string]bool{}
	res := b.Run(context.Background(), texts, collectVerdicts(got))

	if fc.callCount() != 2 {
		t.Errorf("classifier called %d times, want 2", fc.callCount())
	}
	if res.Chunks != 4 || res.Batches != 2 || res.Spoilers != 2 || res.Failures != 0 {
		t.Errorf("Run() = %+v", res)
	}
	if !got["a spoiler"] || got["b"] || !got["d spoiler"] {
		t.Errorf("verdicts = %v", got)
	}
	if strings.Join(outcomes, ",") != "success,success" {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestBatcherFailOpen(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	cache := NewCache(nil, nil)
	b := NewBatcher(fc, cache, BatchOptions{Size: 2, Delay: -1})

	got := map[string]bool{}
	res := b.Run(context.Background(), []string{"fail spoiler", "x spoiler", "ok spoiler", "y"}, collectVerdicts(got))

	if res.Failures != 1 || res.Batches != 2 {
		t.Errorf("Run() = %+v", res)
	}
	if _, ok := got["fail spoiler"]; ok {
		t.Error("failed batch produced verdicts")
	}
	if !got["ok spoiler"] {
		t.Error("batch after a failure was not applied")
	}
	if _, ok := cache.Get(context.Background(), "x spoiler"); ok {
		t.Error("failed batch was cached")
	}
	if v, ok := cache.Get(context.Background(), "ok spoiler"); !ok || !v {
		t.Error("successful batch was not cached")
	}
}

func TestBatcherTimeout(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	b := NewBatcher(fc, nil, BatchOptions{Size: 1, Delay: -1, Timeout: 20 * time.Millisecond})

	got := map[string]bool{}
	start := time.Now()
	res := b.Run(context.Background(), []string{"hang spoiler", "next spoiler"}, collectVerdicts(got))

	if time.Since(start) > time.Second {
		t.Error("timed out batch blocked the run")
	}
	if res.Failures != 1 || !got["next spoiler"] {
		t.Errorf("Run() = %+v, verdicts = %v", res, got)
	}
	if _, ok := got["hang spoiler"]; ok {
		t.Error("timed out chunk received a verdict")
	}
}

func TestBatcherUsesCache(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	cache := NewCache(nil, nil)
	cache.Put(context.Background(), map[string]bool{"known spoiler": true})
	b := NewBatcher(fc, cache, BatchOptions{})

	var applied []map[string]bool
	res := b.Run(context.Background(), []string{"known spoiler"}, func(v map[string]bool) { applied = append(applied, v) })

	if fc.callCount() != 0 {
		t.Error("cached text was sent to the classifier")
	}
	if res.Cached != 1 || res.Spoilers != 1 || len(applied) != 1 {
		t.Errorf("Run() = %+v, applied %d times", res, len(applied))
	}
}

func TestBatcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	fc := &fakeClassifier{}
	b := NewBatcher(fc, nil, BatchOptions{Size: 1, Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	texts := make([]string, 5)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res := b.Run(ctx, texts, func(map[string]bool) {})
	if res.Batches != 1 {
		t.Errorf("Run() sent %d batches after cancel, want 1", res.Batches)
	}
}

type memPersistent struct {
	mu sync.Mutex
	m  map[string]bool
}

func (p *memPersistent) Verdict(_ context.Context, text string) (bool, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[text]
	return v, ok, nil
}

func (p *memPersistent) StoreVerdicts(_ context.Context, verdicts map[string]bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range verdicts {
		p.m[k] = v
	}
	return nil
}

func TestCachePersistentBacking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := &memPersistent{m: map[string]bool{"old": true}}
	c := NewCache(backing, nil)

	if v, ok := c.Get(ctx, "old"); !ok || !v {
		t.Error("Get() missed the persistent entry")
	}
	c.Put(ctx, map[string]bool{"new": false})
	if _, ok := backing.m["new"]; !ok {
		t.Error("Put() did not reach the backing store")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}
