//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package oauth coordinates the OAuth handshake a long running tool call
// can request: it opens the authorization page, waits for the redirect to
// come back to the console and builds the function response carrying the
// exchanged credential.
package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

var (
	// ErrOpenFailed is returned when the authorization page could not be opened.
	ErrOpenFailed = errors.New("oauth: could not open authorization page")
	// ErrOriginMismatch is returned when a completion comes from a foreign origin.
	ErrOriginMismatch = errors.New("oauth: completion origin mismatch")
	// ErrTimeout is returned when no completion arrives in time.
	ErrTimeout = errors.New("oauth: timed out waiting for authorization")
	// ErrBusy is returned when another handshake is already waiting.
	ErrBusy = errors.New("oauth: handshake already in progress")
	// ErrNotOAuth is returned for calls without an authorization URI.
	ErrNotOAuth = errors.New("oauth: call does not request an oauth exchange")
)

const redirectParam = "redirect_uri"

// RewriteRedirect sets the redirect_uri query parameter of authURI.
func RewriteRedirect(authURI, redirectURI string) (string, error) {
	u, err := url.Parse(authURI)
	if err != nil {
		return "", fmt.Errorf("oauth: parse auth uri: %w", err)
	}
	q := u.Query()
	q.Set(redirectParam, redirectURI)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Result is the outcome of a successful handshake.
type Result struct {
	// AuthResponseURI is the full redirect URL including the authorization code.
	AuthResponseURI string
	// RedirectURI is the redirect URI the authorization page was given.
	RedirectURI string
}

// BuildAuthResponse builds the function response that hands the exchanged
// credential back to the agent. The response is the call's authConfig with
// exchangedAuthCredential.oauth2.authResponseUri and redirectUri filled in.
func BuildAuthResponse(call tooltrack.PendingCall, res Result) (*genai.FunctionResponse, error) {
	cfg, err := deepCopy(call.AuthConfig)
	if err != nil {
		return nil, fmt.Errorf("oauth: copy auth config: %w", err)
	}
	oauth2, ok := tooltrack.Lookup(cfg, "exchangedAuthCredential", "oauth2").(map[string]any)
	if !ok {
		return nil, ErrNotOAuth
	}
	oauth2["authResponseUri"] = res.AuthResponseURI
	oauth2["redirectUri"] = res.RedirectURI
	return &genai.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: cfg,
	}, nil
}

func deepCopy(m map[string]any) (map[string]any, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// originOf returns scheme://host of a URL.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
