//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package console

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/oauth"
	"trpc.group/trpc-go/trpc-agent-console/session"
	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

// Authorizer runs the OAuth handshake of a pending credential request.
// *oauth.Coordinator implements it.
type Authorizer interface {
	Authorize(ctx context.Context, call tooltrack.PendingCall) (oauth.Result, error)
}

// HandoffListener is notified when a run registers long running calls.
type HandoffListener func(tooltrack.Handoff)

type options struct {
	streaming        bool
	logger           log.Logger
	store            session.Store
	fetcher          artifact.Fetcher
	authorizer       Authorizer
	poolSize         int
	artifactListener []artifact.Listener
	handoffListener  []HandoffListener
}

// Option configures a Console.
type Option func(*options)

// WithStreaming selects whether runs stream text deltas. Default true.
func WithStreaming(streaming bool) Option {
	return func(o *options) {
		o.streaming = streaming
	}
}

// WithLogger sets the console logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSessionStore sets where Replay loads sessions from. Default is the
// agent server itself.
func WithSessionStore(s session.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithFetcher sets where artifacts are fetched from. Default is the
// agent server itself.
func WithFetcher(f artifact.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithAuthorizer enables OAuth handshakes for credential requests.
// Without one, credential requests are left pending.
func WithAuthorizer(a Authorizer) Option {
	return func(o *options) {
		o.authorizer = a
	}
}

// WithHydratorPoolSize sets the number of concurrent artifact fetches.
func WithHydratorPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithArtifactListener registers a listener for hydrated artifacts.
func WithArtifactListener(l artifact.Listener) Option {
	return func(o *options) {
		o.artifactListener = append(o.artifactListener, l)
	}
}

// WithHandoffListener registers a listener for long running call handoffs.
func WithHandoffListener(l HandoffListener) Option {
	return func(o *options) {
		o.handoffListener = append(o.handoffListener, l)
	}
}
