package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/fetch"
	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/nao1215/spoilerguard/internal/watch"
	"golang.org/x/net/html"
)

//go:embed static/reveal.js
var revealScript []byte

// SessionHeader carries the session id of a /view response.
const SessionHeader = "X-Spoilerguard-Session"

// SessionView is the JSON form of a page session.
type SessionView struct {
	ID         string                  `json:"id"`
	PageURL    string                  `json:"page_url"`
	Mode       model.DetectionMode     `json:"mode"`
	Ignored    []string                `json:"ignored_keywords"`
	Records    []model.RedactionRecord `json:"redactions"`
	LastReport *model.ScanReport       `json:"last_report,omitempty"`
	Watcher    watch.Stats             `json:"watcher"`
	CreatedAt  time.Time               `json:"created_at"`
}

// RevealResponse is returned by the reveal endpoint.
type RevealResponse struct {
	Record model.RedactionRecord `json:"record"`
	Markup string                `json:"markup"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type contentRequest struct {
	HTML string `json:"html"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleRevealScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(revealScript)
}

// handleMessage relays one keyword store message.
// POST /api/messages
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req store.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, store.Response{Error: err.Error()})
		return
	}
	// Failures travel in the response body, as the message protocol expects.
	resp, _ := s.broker.Send(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// handleView loads a page, redacts it and returns it with the reveal
// script attached.
// GET /view?url=
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	// Pages served here share the proxy's origin, so local files stay off
	// limits to them.
	if !fetch.IsRemote(target) {
		writeError(w, http.StatusBadRequest, "only http and https pages can be viewed")
		return
	}

	page, err := s.loader.Load(r.Context(), target)
	if err != nil {
		s.logger.Warn("failed to load page", "url", target, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	doc, err := dom.Parse(bytes.NewReader(page.Body))
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to parse %s: %v", page.URL, err))
		return
	}

	eng := s.newEngine(doc, s.src)
	report, err := eng.Load(r.Context(), page.URL)
	if err != nil {
		s.logger.Warn("scan finished with errors", "url", page.URL, "error", err)
	}
	ps := s.open(eng)
	if report != nil {
		s.logger.Info("page served",
			"session", ps.id,
			"url", page.URL,
			"redactions", len(report.Redactions),
			"skipped", report.Skipped,
		)
	}

	out, err := decorate(eng.HTML(), page.URL, origin(r), ps.id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(SessionHeader, ps.id)
	_, _ = w.Write([]byte(out))
}

// handleSession describes a session.
// GET /sessions/{sessionID}
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ps, ok := s.session(w, r)
	if !ok {
		return
	}
	eng := ps.engine
	writeJSON(w, http.StatusOK, SessionView{
		ID:         ps.id,
		PageURL:    eng.PageURL(),
		Mode:       eng.Mode(),
		Ignored:    nonNil(eng.Ignored()),
		Records:    eng.Records(),
		LastReport: eng.LastReport(),
		Watcher:    eng.WatcherStats(),
		CreatedAt:  ps.created,
	})
}

// DELETE /sessions/{sessionID}
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.closeSession(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReveal restores one placeholder.
// POST /sessions/{sessionID}/reveal/{spoilerID}
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	ps, ok := s.session(w, r)
	if !ok {
		return
	}
	rec, found, err := ps.engine.Reveal(r.Context(), chi.URLParam(r, "spoilerID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "spoiler not found")
		return
	}
	writeJSON(w, http.StatusOK, RevealResponse{Record: rec, Markup: rec.OriginalMarkup})
}

// handleMode switches the detection mode and rescans.
// POST /sessions/{sessionID}/mode
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	ps, ok := s.session(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := model.ParseDetectionMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := ps.engine.SetMode(r.Context(), mode)
	writeScanResult(w, report, err)
}

// handleContent appends markup to the page, like a script would. The
// session's watcher picks the change up.
// POST /sessions/{sessionID}/content
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	ps, ok := s.session(w, r)
	if !ok {
		return
	}
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ps.engine.AppendHTML(req.HTML); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleReset forgets the ignored keywords of the session's page and
// rescans it.
// POST /sessions/{sessionID}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ps, ok := s.session(w, r)
	if !ok {
		return
	}
	report, err := ps.engine.ResetIgnored(r.Context())
	writeScanResult(w, report, err)
}

// writeScanResult answers 202 when the rescan was queued behind a running
// scan, 200 with the report otherwise.
func writeScanResult(w http.ResponseWriter, report *model.ScanReport, err error) {
	switch {
	case errors.Is(err, watch.ErrBusy):
		writeJSON(w, http.StatusAccepted, report)
	case err != nil && report == nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*pageSession, bool) {
	ps, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return ps, ok
}

// decorate renders a copy of the redacted page with a <base> element so
// relative links resolve against the original URL, and the reveal script.
// The script is addressed absolutely because <base> rebinds relative URLs.
func decorate(markup, pageURL, proxyOrigin, sessionID string) (string, error) {
	doc, err := dom.ParseString(markup)
	if err != nil {
		return "", err
	}
	if head := doc.Head(); head != nil {
		base := dom.NewElement("base", html.Attribute{Key: "href", Val: pageURL})
		head.InsertBefore(base, head.FirstChild)
	}
	if body := doc.Body(); body != nil {
		script := dom.NewElement("script",
			html.Attribute{Key: "src", Val: proxyOrigin + "/static/reveal.js"},
			html.Attribute{Key: "data-endpoint", Val: proxyOrigin},
			html.Attribute{Key: "data-session", Val: sessionID},
			html.Attribute{Key: model.AttrNoProcess, Val: "true"},
		)
		body.AppendChild(script)
	}
	return doc.HTML(), nil
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
