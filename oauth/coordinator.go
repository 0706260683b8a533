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
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

type coordinatorOptions struct {
	timeout time.Duration
}

// Option configures a Coordinator.
type Option func(*coordinatorOptions)

// WithTimeout bounds the wait for a completion. Zero, the default, waits
// until the context is done.
func WithTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) {
		o.timeout = d
	}
}

// Coordinator runs one handshake at a time.
type Coordinator struct {
	opener      Opener
	mailbox     *Mailbox
	origin      string
	redirectURI string
	timeout     time.Duration
}

// NewCoordinator creates a Coordinator. Completions are accepted only
// from origin and the authorization page redirects to redirectURI.
func NewCoordinator(opener Opener, mailbox *Mailbox, origin, redirectURI string, opts ...Option) *Coordinator {
	o := coordinatorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator{
		opener:      opener,
		mailbox:     mailbox,
		origin:      originOf(origin),
		redirectURI: redirectURI,
		timeout:     o.timeout,
	}
}

// NewCallbackCoordinator wires a Coordinator to a CallbackHandler.
func NewCallbackCoordinator(opener Opener, h *CallbackHandler, opts ...Option) *Coordinator {
	return NewCoordinator(opener, h.mailbox, h.Origin(), h.RedirectURI(), opts...)
}

// Authorize runs the handshake for call: it rewrites the redirect, opens
// the authorization page and waits for exactly one completion.
func (c *Coordinator) Authorize(ctx context.Context, call tooltrack.PendingCall) (res Result, err error) {
	ctx, span := itelemetry.StartSpan(ctx, itelemetry.SpanAuthorize,
		attribute.String(itelemetry.KeyFunctionCall, call.ID),
		attribute.String(itelemetry.KeyEventID, call.EventID),
	)
	defer func() {
		itelemetry.IncOAuthHandshake(ctx, itelemetry.Outcome(err))
		itelemetry.EndSpan(span, err)
	}()

	authURI := call.AuthURI()
	if authURI == "" {
		return Result{}, ErrNotOAuth
	}
	target, err := RewriteRedirect(authURI, c.redirectURI)
	if err != nil {
		return Result{}, err
	}

	done, cancel, err := c.mailbox.Expect()
	if err != nil {
		return Result{}, err
	}
	defer cancel()

	if err := c.opener.Open(ctx, target); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	log.InfofContext(ctx, "oauth: waiting for authorization of call %s", call.ID)

	if c.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, c.timeout, ErrTimeout)
		defer stop()
	}
	select {
	case comp := <-done:
		if originOf(comp.Origin) != c.origin {
			return Result{}, fmt.Errorf("%w: got %q, want %q", ErrOriginMismatch, comp.Origin, c.origin)
		}
		return Result{AuthResponseURI: comp.AuthResponseURL, RedirectURI: c.redirectURI}, nil
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, ErrTimeout) {
			return Result{}, ErrTimeout
		}
		return Result{}, ctx.Err()
	}
}
