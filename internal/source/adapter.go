// Package source is the engine's only view of the keyword store. It
// speaks the request/response message protocol and never lets a store
// failure reach the detection pipeline: errors are logged and degrade to
// "no keywords" or a no-op.
package source

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/store"
)

// Messenger delivers a request to the keyword store.
type Messenger interface {
	Send(ctx context.Context, req store.Request) (store.Response, error)
}

// Adapter wraps a Messenger with the calls the engine needs.
type Adapter struct {
	messenger Messenger
	logger    *slog.Logger

	mu   sync.Mutex
	last []string
}

// New returns an Adapter.
func New(m Messenger, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{messenger: m, logger: logger}
}

// Keywords returns the active keyword list, or an empty list when the
// store is unavailable.
func (a *Adapter) Keywords(ctx context.Context) []string {
	resp, err := a.send(ctx, store.Request{Action: store.ActionGetKeywords})
	if err != nil {
		return []string{}
	}
	kws := resp.Keywords
	if kws == nil {
		kws = []string{}
	}

	a.mu.Lock()
	a.last = append([]string(nil), kws...)
	a.mu.Unlock()
	return kws
}

// LastKeywords returns the list from the most recent successful Keywords
// call.
func (a *Adapter) LastKeywords() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.last...)
}

// IgnoredKeywords returns the persisted ignore list and the page it was
// collected on.
func (a *Adapter) IgnoredKeywords(ctx context.Context) (pageURL string, keywords []string) {
	resp, err := a.send(ctx, store.Request{Action: store.ActionGetIgnoredKeywords})
	if err != nil {
		return "", nil
	}
	return resp.PageURL, resp.IgnoredKeywords
}

// PersistIgnoredKeywords stores the session's ignore list for pageURL.
func (a *Adapter) PersistIgnoredKeywords(ctx context.Context, pageURL string, keywords []string) {
	_, _ = a.send(ctx, store.Request{
		Action:          store.ActionSetIgnoredKeywords,
		PageURL:         pageURL,
		IgnoredKeywords: keywords,
	})
}

// ClearIgnoredKeywords drops the persisted ignore list.
func (a *Adapter) ClearIgnoredKeywords(ctx context.Context) {
	_, _ = a.send(ctx, store.Request{Action: store.ActionClearIgnoredKeywords})
}

// DetectionMode returns the persisted mode, or the default on error.
func (a *Adapter) DetectionMode(ctx context.Context) model.DetectionMode {
	resp, err := a.send(ctx, store.Request{Action: store.ActionGetDetectionMode})
	if err != nil {
		return model.DefaultDetectionMode
	}
	mode, err := model.ParseDetectionMode(resp.DetectionMode)
	if err != nil {
		a.logger.Warn("stored detection mode is invalid, using default", "mode", resp.DetectionMode)
		return model.DefaultDetectionMode
	}
	return mode
}

// SetDetectionMode persists mode.
func (a *Adapter) SetDetectionMode(ctx context.Context, mode model.DetectionMode) {
	_, _ = a.send(ctx, store.Request{Action: store.ActionSetDetectionMode, DetectionMode: mode.String()})
}

func (a *Adapter) send(ctx context.Context, req store.Request) (store.Response, error) {
	if a.messenger == nil {
		return store.Response{}, errNoMessenger
	}
	resp, err := a.messenger.Send(ctx, req)
	if err != nil {
		a.logger.Warn("keyword store request failed", "action", req.Action, "error", err)
		return store.Response{}, err
	}
	return resp, nil
}
