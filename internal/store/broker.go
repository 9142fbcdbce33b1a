package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/spoilerguard/internal/model"
)

// Actions understood by Broker.Send.
const (
	ActionGetKeywords          = "getKeywords"
	ActionAddKeywords          = "addKeywords"
	ActionRemoveKeyword        = "removeKeyword"
	ActionSetKeywords          = "setKeywords"
	ActionGetIgnoredKeywords   = "getIgnoredKeywords"
	ActionSetIgnoredKeywords   = "setIgnoredKeywords"
	ActionClearIgnoredKeywords = "clearIgnoredKeywords"
	ActionGetDetectionMode     = "getDetectionMode"
	ActionSetDetectionMode     = "setDetectionMode"
)

// ErrUnknownAction is returned for requests with an unsupported action.
var ErrUnknownAction = errors.New("unknown action")

// Request is one message sent to the keyword store.
type Request struct {
	Action          string   `json:"action"`
	Keyword         string   `json:"keyword,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	IgnoredKeywords []string `json:"ignoredKeywords,omitempty"`
	PageURL         string   `json:"pageUrl,omitempty"`
	DetectionMode   string   `json:"detectionMode,omitempty"`
}

// Response is the store's reply. Empty keyword lists are omitted from the
// JSON form; Go callers always see a non-nil slice for get actions.
type Response struct {
	Success         bool     `json:"success"`
	Keywords        []string `json:"keywords,omitempty"`
	IgnoredKeywords []string `json:"ignoredKeywords,omitempty"`
	PageURL         string   `json:"pageUrl,omitempty"`
	DetectionMode   string   `json:"detectionMode,omitempty"`
	Changed         int      `json:"changed,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Broker relays request/response messages to a DB.
type Broker struct {
	db     *DB
	logger *slog.Logger
}

// NewBroker returns a Broker backed by db.
func NewBroker(db *DB, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{db: db, logger: logger}
}

// Send handles one request. Store failures are returned as errors and
// also described in Response.Error so that relays can forward them.
func (b *Broker) Send(ctx context.Context, req Request) (Response, error) {
	resp, err := b.dispatch(ctx, req)
	if err != nil {
		b.logger.Debug("store request failed", "action", req.Action, "error", err)
		return Response{Success: false, Error: err.Error()}, err
	}
	resp.Success = true
	return resp, nil
}

func (b *Broker) dispatch(ctx context.Context, req Request) (Response, error) {
	switch req.Action {
	case ActionGetKeywords:
		kws, err := b.db.Keywords(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Keywords: nonNil(kws)}, nil

	case ActionAddKeywords:
		list := req.Keywords
		if req.Keyword != "" {
			list = append(list, req.Keyword)
		}
		n, err := b.db.AddKeywords(ctx, list)
		if err != nil {
			return Response{}, err
		}
		return Response{Changed: n}, nil

	case ActionRemoveKeyword:
		ok, err := b.db.RemoveKeyword(ctx, req.Keyword)
		if err != nil {
			return Response{}, err
		}
		if ok {
			return Response{Changed: 1}, nil
		}
		return Response{}, nil

	case ActionSetKeywords:
		if err := b.db.SetKeywords(ctx, req.Keywords); err != nil {
			return Response{}, err
		}
		return Response{Changed: len(req.Keywords)}, nil

	case ActionGetIgnoredKeywords:
		ign, err := b.db.IgnoredKeywords(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{IgnoredKeywords: nonNil(ign.Keywords), PageURL: ign.PageURL}, nil

	case ActionSetIgnoredKeywords:
		if err := b.db.SetIgnoredKeywords(ctx, req.PageURL, req.IgnoredKeywords); err != nil {
			return Response{}, err
		}
		return Response{Changed: len(req.IgnoredKeywords)}, nil

	case ActionClearIgnoredKeywords:
		if err := b.db.ClearIgnoredKeywords(ctx); err != nil {
			return Response{}, err
		}
		return Response{}, nil

	case ActionGetDetectionMode:
		mode, err := b.db.DetectionMode(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{DetectionMode: mode.String()}, nil

	case ActionSetDetectionMode:
		mode, err := model.ParseDetectionMode(req.DetectionMode)
		if err != nil {
			return Response{}, err
		}
		if err := b.db.SetDetectionMode(ctx, mode); err != nil {
			return Response{}, err
		}
		return Response{DetectionMode: mode.String()}, nil

	default:
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
