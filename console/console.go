//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package console drives agent runs for one session at a time: it sends
// run requests, feeds the returned event stream into the conversation,
// hydrates announced artifacts and completes OAuth and user handoffs.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/client"
	"trpc.group/trpc-go/trpc-agent-console/conversation"
	"trpc.group/trpc-go/trpc-agent-console/event"
	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/oauth"
	"trpc.group/trpc-go/trpc-agent-console/session"
	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

var (
	// ErrNoPendingCall is returned by Respond and Authorize for an unknown call id.
	ErrNoPendingCall = errors.New("console: no pending call")
	// ErrNoAuthorizer is returned by Authorize when no Authorizer is configured.
	ErrNoAuthorizer = errors.New("console: no authorizer configured")
)

// Console is the session controller. Runs are serialised: at most one
// event stream is consumed at a time.
type Console struct {
	client     *client.Client
	store      session.Store
	authorizer Authorizer
	logger     log.Logger
	handoffs   []HandoffListener

	rec      *conversation.Reconstructor
	hydrator *artifact.Hydrator

	// hydrateCtx outlives single runs; Close cancels it.
	hydrateCtx    context.Context
	cancelHydrate context.CancelFunc

	runMu sync.Mutex

	mu  sync.RWMutex
	key session.Key
}

// New creates a Console talking to the agent server behind c for the
// session key.
func New(c *client.Client, key session.Key, opts ...Option) (*Console, error) {
	if c == nil {
		return nil, errors.New("console: client is nil")
	}
	o := options{
		streaming: true,
		logger:    log.Default,
		poolSize:  artifact.DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = c
	}
	if o.fetcher == nil {
		o.fetcher = c
	}

	rec := conversation.New(conversation.WithStreaming(o.streaming))
	hopts := []artifact.HydratorOption{artifact.WithPoolSize(o.poolSize)}
	for _, l := range o.artifactListener {
		hopts = append(hopts, artifact.WithListener(l))
	}
	hydrator, err := artifact.NewHydrator(o.fetcher, rec, hopts...)
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	hydrateCtx, cancel := context.WithCancel(context.Background())
	return &Console{
		client:        c,
		store:         o.store,
		authorizer:    o.authorizer,
		logger:        o.logger,
		handoffs:      o.handoffListener,
		rec:           rec,
		hydrator:      hydrator,
		hydrateCtx:    hydrateCtx,
		cancelHydrate: cancel,
		key:           key,
	}, nil
}

// Session returns the current session key.
func (c *Console) Session() session.Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// Messages returns a snapshot of the conversation.
func (c *Console) Messages() []conversation.Message {
	return c.rec.Messages()
}

// Artifacts returns the hydrated artifacts of the current session.
func (c *Console) Artifacts() []artifact.Record {
	return c.hydrator.Records()
}

// Pending returns the unresolved long running calls.
func (c *Console) Pending() []tooltrack.PendingCall {
	return c.rec.Pending()
}

// Conversation exposes the underlying reconstructor for read access.
func (c *Console) Conversation() *conversation.Reconstructor {
	return c.rec
}

// SetStreaming switches the mode used by subsequent runs.
func (c *Console) SetStreaming(streaming bool) {
	c.rec.SetStreaming(streaming)
}

// Wait blocks until every scheduled artifact hydration has finished.
func (c *Console) Wait() {
	c.hydrator.Wait()
}

// Close cancels in-flight hydrations and releases the worker pool.
func (c *Console) Close() {
	c.cancelHydrate()
	c.hydrator.Close()
}

// Run sends text as a new user message and consumes the run. Credential
// requests are authorized and resubmitted before Run returns when an
// Authorizer is configured.
func (c *Console) Run(ctx context.Context, text string) (err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	key := c.Session()
	ctx, span := itelemetry.StartSpan(ctx, itelemetry.SpanRun, sessionAttrs(key)...)
	defer func() { itelemetry.EndSpan(span, err) }()

	c.rec.AppendUserPart(ctx, event.NewText(text, false))
	return c.drive(ctx, key, c.newRequest(key, genai.NewContentFromText(text, genai.RoleUser), ""))
}

// Respond answers a long running call with response and consumes the
// continuation run.
func (c *Console) Respond(ctx context.Context, callID string, response map[string]any) (err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	call, ok := c.rec.PendingCall(callID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPendingCall, callID)
	}
	key := c.Session()
	ctx, span := itelemetry.StartSpan(ctx, itelemetry.SpanRun,
		append(sessionAttrs(key), attribute.String(itelemetry.KeyFunctionCall, callID))...)
	defer func() { itelemetry.EndSpan(span, err) }()

	resp := &genai.FunctionResponse{ID: call.ID, Name: call.Name, Response: response}
	c.rec.ResolvePending(call.ID)
	c.rec.AppendUserPart(ctx, event.NewFunctionResponse(resp))
	return c.drive(ctx, key, c.newRequest(key, functionResponseContent(resp), call.EventID))
}

// Authorize retries the OAuth handshake of a pending credential request.
func (c *Console) Authorize(ctx context.Context, callID string) (err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.authorizer == nil {
		return ErrNoAuthorizer
	}
	call, ok := c.rec.PendingCall(callID)
	if !ok || !call.IsOAuth() {
		return fmt.Errorf("%w: %s", ErrNoPendingCall, callID)
	}
	key := c.Session()
	ctx, span := itelemetry.StartSpan(ctx, itelemetry.SpanRun,
		append(sessionAttrs(key), attribute.String(itelemetry.KeyFunctionCall, callID))...)
	defer func() { itelemetry.EndSpan(span, err) }()

	req, err := c.authorize(ctx, key, call)
	if err != nil {
		return err
	}
	return c.drive(ctx, key, req)
}

// Replay rebuilds the conversation from the stored session, processing
// its frames like a live non-streaming run.
func (c *Console) Replay(ctx context.Context) (err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	key := c.Session()
	ctx, span := itelemetry.StartSpan(ctx, itelemetry.SpanReplay, sessionAttrs(key)...)
	defer func() { itelemetry.EndSpan(span, err) }()

	sess, err := c.store.GetSession(ctx, key)
	if err != nil {
		return fmt.Errorf("console: load session %s: %w", key.SessionID, err)
	}
	c.rec.Reset()
	c.hydrator.ResetRecords()
	for _, f := range sess.GetEvents() {
		res := c.rec.ProcessHistorical(ctx, f)
		c.hydrate(key, res.Placeholders)
	}
	c.rec.CloseOpen()
	c.logger.Debugf("console: replayed %d events of session %s", len(sess.Events), key.SessionID)
	return nil
}

// SwitchSession selects another session and wipes the conversation.
// Hydrations still in flight for the previous session are discarded.
func (c *Console) SwitchSession(key session.Key) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	c.rec.Reset()
	c.hydrator.ResetRecords()
}

// NewSession creates a session on the agent server and switches to it.
func (c *Console) NewSession(ctx context.Context, state map[string]any) (*session.Session, error) {
	key := c.Session()
	sess, err := c.client.CreateSession(ctx, key.AppName, key.UserID, state)
	if err != nil {
		return nil, fmt.Errorf("console: create session: %w", err)
	}
	c.SwitchSession(sess.Key())
	return sess, nil
}

// drive consumes req and every follow-up it produces.
func (c *Console) drive(ctx context.Context, key session.Key, req *client.RunRequest) error {
	for req != nil {
		next, err := c.consume(ctx, key, req)
		if err != nil {
			return err
		}
		req = next
	}
	return nil
}

// consume runs one request to the end of its stream. It returns the OAuth
// follow-up request when the run asked for credentials.
func (c *Console) consume(ctx context.Context, key session.Key, req *client.RunRequest) (*client.RunRequest, error) {
	rs, err := c.client.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("console: start run: %w", err)
	}
	defer rs.Close()

	var handoff tooltrack.Handoff
	for {
		f, err := rs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.rec.CloseOpen()
			return nil, fmt.Errorf("console: read run: %w", err)
		}
		res := c.rec.Process(ctx, f)
		c.hydrate(key, res.Placeholders)
		if res.Handoff.Kind != tooltrack.HandoffNone {
			handoff = res.Handoff
			for _, l := range c.handoffs {
				l(res.Handoff)
			}
		}
	}
	c.rec.CloseOpen()

	if handoff.Kind != tooltrack.HandoffOAuth {
		return nil, nil
	}
	if c.authorizer == nil {
		c.logger.Infof("console: credential request %s left pending, no authorizer", handoff.Call.ID)
		return nil, nil
	}
	return c.authorize(ctx, key, handoff.Call)
}

// authorize runs the handshake and builds the follow-up request. A failed
// handshake leaves the call pending.
func (c *Console) authorize(ctx context.Context, key session.Key, call tooltrack.PendingCall) (*client.RunRequest, error) {
	res, err := c.authorizer.Authorize(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("console: authorize %s: %w", call.ID, err)
	}
	resp, err := oauth.BuildAuthResponse(call, res)
	if err != nil {
		return nil, fmt.Errorf("console: authorize %s: %w", call.ID, err)
	}
	c.rec.ResolvePending(call.ID)
	return c.newRequest(key, functionResponseContent(resp), call.EventID), nil
}

func (c *Console) hydrate(key session.Key, placeholders []artifact.Placeholder) {
	if len(placeholders) == 0 {
		return
	}
	info := artifact.SessionInfo{AppName: key.AppName, UserID: key.UserID, SessionID: key.SessionID}
	c.hydrator.Hydrate(c.hydrateCtx, info, placeholders)
}

func (c *Console) newRequest(key session.Key, content *genai.Content, functionCallEventID string) *client.RunRequest {
	return &client.RunRequest{
		AppName:             key.AppName,
		UserID:              key.UserID,
		SessionID:           key.SessionID,
		NewMessage:          content,
		Streaming:           c.rec.Streaming(),
		FunctionCallEventID: functionCallEventID,
	}
}

func functionResponseContent(resp *genai.FunctionResponse) *genai.Content {
	return &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{FunctionResponse: resp}},
	}
}

func sessionAttrs(key session.Key) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(itelemetry.KeyAppName, key.AppName),
		attribute.String(itelemetry.KeyUserID, key.UserID),
		attribute.String(itelemetry.KeySessionID, key.SessionID),
	}
}
