//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package conversation rebuilds the ordered message list of a session from
// the frames of its event stream.
package conversation

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/event"
	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-console/ledger"
	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

const noOpen = -1

type options struct {
	streaming bool
}

// Option configures a Reconstructor.
type Option func(*options)

// WithStreaming selects streaming mode, where text deltas from
// consecutive frames are appended to one open message.
func WithStreaming(streaming bool) Option {
	return func(o *options) {
		o.streaming = streaming
	}
}

// Result describes the effects of one processed frame.
type Result struct {
	// Parts are the classified parts of the frame.
	Parts []event.ClassifiedPart
	// Handoff is set when the frame registered long running calls.
	Handoff tooltrack.Handoff
	// Placeholders are the artifact messages appended for the frame.
	Placeholders []artifact.Placeholder
}

// Reconstructor is the message state machine. It owns the message list,
// the ledger and the pending tool calls; all methods are safe for
// concurrent use and readers get snapshots.
//
// In streaming mode at most one text message is open. A text part with
// the same role and thought flag appends to it; a text part identical to
// the accumulated text is the final echo of the streamed deltas and closes
// it. Any other part closes it first.
type Reconstructor struct {
	mu         sync.RWMutex
	streaming  bool
	messages   []*Message
	open       int
	generation uint64
	ledger     *ledger.Ledger
	tracker    *tooltrack.Tracker
}

// New creates a Reconstructor. Streaming mode is on by default.
func New(opts ...Option) *Reconstructor {
	o := options{streaming: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Reconstructor{
		streaming: o.streaming,
		open:      noOpen,
		ledger:    ledger.New(),
		tracker:   tooltrack.New(),
	}
}

// frameState tracks per frame bookkeeping.
type frameState struct {
	renderedAttached bool
}

// Process classifies f and applies it to the conversation.
func (r *Reconstructor) Process(ctx context.Context, f *event.Frame) Result {
	return r.process(ctx, f, r.Streaming())
}

// ProcessHistorical applies a stored frame. Stored frames are complete, so
// they are always processed in non-streaming mode.
func (r *Reconstructor) ProcessHistorical(ctx context.Context, f *event.Frame) Result {
	return r.process(ctx, f, false)
}

func (r *Reconstructor) process(ctx context.Context, f *event.Frame, streaming bool) Result {
	if f == nil {
		return Result{}
	}
	parts := event.Classify(ctx, f)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ledger.RecordFrame(f)
	var st frameState
	for _, p := range parts {
		var idx int
		if _, ok := p.Text(); ok {
			idx = r.applyText(ctx, p, streaming, &st)
		} else {
			r.close()
			idx = r.appendMessage(ctx, p.Role(), &Message{Part: p.Part, EventID: p.EventID}, p, &st)
			m := r.messages[idx]
			m.EvalStatus = p.EvalStatus
			m.ActualInvocationToolUses = p.ActualInvocationToolUses
			m.ExpectedInvocationToolUses = p.ExpectedInvocationToolUses
		}
		r.ledger.RecordPart(p, idx)
	}

	res := Result{Parts: parts}
	res.Handoff = r.tracker.Observe(f, parts)

	if f.ErrorMessage != "" {
		r.close()
		r.appendMessage(ctx, event.RoleBot, &Message{
			Error:   &ErrorPayload{Code: f.ErrorCode, Message: f.ErrorMessage},
			EventID: f.ID,
		}, event.ClassifiedPart{RenderedContent: f.RenderedContent()}, &st)
	}

	for _, e := range artifact.Entries(f.ArtifactDelta()) {
		r.close()
		idx := r.appendMessage(ctx, f.Role(), &Message{
			Attachment: artifact.NewPlaceholder(e),
			EventID:    f.ID,
		}, event.ClassifiedPart{}, &st)
		res.Placeholders = append(res.Placeholders, artifact.Placeholder{
			Index:      idx,
			Generation: r.generation,
			Entry:      e,
		})
	}

	if !streaming {
		r.close()
	}
	return res
}

// applyText runs the text transitions and returns the index of the
// message the part contributed to.
func (r *Reconstructor) applyText(ctx context.Context, p event.ClassifiedPart, streaming bool, st *frameState) int {
	t, _ := p.Text()
	if r.open != noOpen {
		m := r.messages[r.open]
		cur, _ := m.Text()
		switch {
		case m.Role != p.Role() || cur.Thought != t.Thought:
			r.close()
		case streaming && t.Text == cur.Text:
			// Final echo of the streamed deltas.
			idx := r.open
			m.EventID = p.EventID
			r.attachRendered(m, p, st)
			r.close()
			return idx
		case streaming:
			cur.Text += t.Text
			r.attachRendered(m, p, st)
			return r.open
		default:
			// Non-streaming: parts of the same frame are combined.
			cur.Text += StripMarkers(t.Text)
			r.attachRendered(m, p, st)
			return r.open
		}
	}
	idx := r.appendMessage(ctx, p.Role(), &Message{
		Part:    event.NewText(StripMarkers(t.Text), t.Thought),
		EventID: p.EventID,
	}, p, st)
	r.open = idx
	return idx
}

func (r *Reconstructor) appendMessage(ctx context.Context, role string, m *Message, p event.ClassifiedPart, st *frameState) int {
	m.Role = role
	r.attachRendered(m, p, st)
	r.messages = append(r.messages, m)
	itelemetry.IncMessagesEmitted(ctx, m.Kind())
	return len(r.messages) - 1
}

func (r *Reconstructor) attachRendered(m *Message, p event.ClassifiedPart, st *frameState) {
	if st.renderedAttached || p.RenderedContent == "" {
		return
	}
	m.RenderedContent = p.RenderedContent
	st.renderedAttached = true
}

func (r *Reconstructor) close() {
	r.open = noOpen
}

// AppendUserPart appends a locally authored user message, closing any
// open message first. It returns the message index.
func (r *Reconstructor) AppendUserPart(ctx context.Context, part event.Part) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.close()
	var st frameState
	return r.appendMessage(ctx, event.RoleUser, &Message{Part: part}, event.ClassifiedPart{}, &st)
}

// CloseOpen closes the open streaming message, if any.
func (r *Reconstructor) CloseOpen() {
	r.mu.Lock()
	r.close()
	r.mu.Unlock()
}

// PatchAttachment replaces the placeholder at index with a. It reports
// false when generation is stale or index is not a pending placeholder.
func (r *Reconstructor) PatchAttachment(generation uint64, index int, a artifact.Attachment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation || index < 0 || index >= len(r.messages) {
		return false
	}
	m := r.messages[index]
	if m.Attachment == nil || !m.Attachment.Pending() {
		return false
	}
	m.Attachment = &a
	return true
}

// Reset wipes messages, ledger and pending calls and starts a new
// generation. It returns the new generation.
func (r *Reconstructor) Reset() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.open = noOpen
	r.ledger.Reset()
	r.tracker.Reset()
	r.generation++
	return r.generation
}

// SetStreaming switches between streaming and non-streaming mode.
func (r *Reconstructor) SetStreaming(streaming bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !streaming {
		r.close()
	}
	r.streaming = streaming
}

// Streaming reports the current mode.
func (r *Reconstructor) Streaming() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streaming
}

// Generation returns the current generation.
func (r *Reconstructor) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Messages returns a snapshot of the message list.
func (r *Reconstructor) Messages() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.clone())
	}
	return out
}

// Message returns a snapshot of the message at index.
func (r *Reconstructor) Message(index int) (Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.messages) {
		return Message{}, false
	}
	return r.messages[index].clone(), true
}

// Len returns the number of messages.
func (r *Reconstructor) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// OpenIndex returns the index of the open streaming message.
func (r *Reconstructor) OpenIndex() (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open, r.open != noOpen
}

// Ledger returns a snapshot of the ledger.
func (r *Reconstructor) Ledger() *ledger.Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.Clone()
}

// Pending returns a snapshot of the pending long running calls.
func (r *Reconstructor) Pending() []tooltrack.PendingCall {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracker.Pending()
}

// PendingCall returns the pending call with the given id.
func (r *Reconstructor) PendingCall(callID string) (tooltrack.PendingCall, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracker.Get(callID)
}

// AwaitingEventID returns the event id waiting for a user response.
func (r *Reconstructor) AwaitingEventID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracker.AwaitingEventID()
}

// ResolvePending drops a pending call once its follow-up is built.
func (r *Reconstructor) ResolvePending(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracker.Resolve(callID)
}
