//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package oauth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-agent-console/log"
)

// Default callback routes.
const (
	DefaultRedirectPath = "/oauth/callback"
	DefaultCompletePath = "/oauth/complete"
)

const closePage = `<!DOCTYPE html><html><body><p>Authorization received. You can close this window.</p>` +
	`<script>window.close();</script></body></html>`

type callbackOptions struct {
	redirectPath string
	completePath string
}

// CallbackOption configures a CallbackHandler.
type CallbackOption func(*callbackOptions)

// WithRedirectPath sets the route the authorization server redirects to.
func WithRedirectPath(path string) CallbackOption {
	return func(o *callbackOptions) {
		o.redirectPath = path
	}
}

// WithCompletePath sets the route that accepts forwarded completions.
func WithCompletePath(path string) CallbackOption {
	return func(o *callbackOptions) {
		o.completePath = path
	}
}

// CallbackHandler is the same origin redirect target of the handshake.
//
//	GET  <redirect path>  delivers the full request URL
//	POST <complete path>  delivers {"authResponseUrl": ...} sent from the
//	                      page named by the request's Origin header
type CallbackHandler struct {
	mailbox      *Mailbox
	origin       string
	redirectPath string
	router       *mux.Router
}

// NewCallbackHandler creates a handler serving on origin, e.g.
// "http://localhost:8765", that delivers completions to mailbox.
func NewCallbackHandler(mailbox *Mailbox, origin string, opts ...CallbackOption) *CallbackHandler {
	o := callbackOptions{redirectPath: DefaultRedirectPath, completePath: DefaultCompletePath}
	for _, opt := range opts {
		opt(&o)
	}
	h := &CallbackHandler{
		mailbox:      mailbox,
		origin:       originOf(strings.TrimRight(origin, "/")),
		redirectPath: o.redirectPath,
		router:       mux.NewRouter(),
	}
	h.router.HandleFunc(o.redirectPath, h.handleRedirect).Methods(http.MethodGet)
	h.router.HandleFunc(o.completePath, h.handleComplete).Methods(http.MethodPost)
	return h
}

// RedirectURI is the URI to hand to the authorization server.
func (h *CallbackHandler) RedirectURI() string {
	return h.origin + h.redirectPath
}

// Origin is the origin completions must come from.
func (h *CallbackHandler) Origin() string {
	return h.origin
}

// ServeHTTP implements http.Handler.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *CallbackHandler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	c := Completion{Origin: h.origin, AuthResponseURL: h.origin + r.URL.RequestURI()}
	if !h.mailbox.Deliver(c) {
		http.Error(w, "no authorization in progress", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(closePage))
}

type completeRequest struct {
	AuthResponseURL string `json:"authResponseUrl"`
}

func (h *CallbackHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AuthResponseURL == "" {
		http.Error(w, "authResponseUrl is required", http.StatusBadRequest)
		return
	}
	origin := r.Header.Get("Origin")
	log.Debugf("oauth: completion forwarded from %q", origin)
	if !h.mailbox.Deliver(Completion{Origin: origin, AuthResponseURL: req.AuthResponseURL}) {
		http.Error(w, "no authorization in progress", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
