package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nao1215/spoilerguard/internal/store"
)

var errNoMessenger = errors.New("no keyword store configured")

// HTTPMessenger relays store messages to a running `spoilerguard serve`
// instance through its /api/messages endpoint.
type HTTPMessenger struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPMessenger returns an HTTPMessenger with a bounded client.
func NewHTTPMessenger(endpoint string) *HTTPMessenger {
	return &HTTPMessenger{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send implements Messenger.
func (h *HTTPMessenger) Send(ctx context.Context, req store.Request) (store.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return store.Response{}, fmt.Errorf("failed to encode message: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return store.Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		return store.Response{}, fmt.Errorf("failed to reach keyword store: %w", err)
	}
	defer resp.Body.Close()

	var out store.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return store.Response{}, fmt.Errorf("failed to decode store response: %w", err)
	}
	if !out.Success {
		return out, fmt.Errorf("keyword store rejected %s: %s", req.Action, out.Error)
	}
	return out, nil
}
