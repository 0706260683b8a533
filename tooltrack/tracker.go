//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tooltrack tracks long running tool calls that stay open across
// frames until a later frame or a user supplied response resolves them.
package tooltrack

import (
	"maps"
	"slices"

	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/log"
)

// argAuthConfig is the function call argument carrying an auth request.
const argAuthConfig = "authConfig"

// PendingCall is a long running function call awaiting resolution.
type PendingCall struct {
	ID         string
	Name       string
	Args       map[string]any
	AuthConfig map[string]any
	// EventID is the id of the frame that flagged the call.
	EventID string
	// Seq is the tracker sequence number of that frame.
	Seq uint64
}

// AuthURI returns the OAuth authorization URI the call asks the user to
// visit, or "" when the call is not an OAuth credential exchange.
func (c PendingCall) AuthURI() string {
	v, _ := Lookup(c.AuthConfig, "exchangedAuthCredential", "oauth2", "authUri").(string)
	return v
}

// IsOAuth reports whether the call is an OAuth credential exchange.
func (c PendingCall) IsOAuth() bool {
	return c.AuthURI() != ""
}

// HandoffKind says what the console should do about the earliest pending call.
type HandoffKind int

const (
	// HandoffNone means no new call was registered.
	HandoffNone HandoffKind = iota
	// HandoffOAuth means the earliest call needs an OAuth handshake.
	HandoffOAuth
	// HandoffAwaitUser means the earliest call waits for a user response.
	HandoffAwaitUser
)

// String implements fmt.Stringer.
func (k HandoffKind) String() string {
	switch k {
	case HandoffOAuth:
		return "oauth"
	case HandoffAwaitUser:
		return "await_user"
	default:
		return "none"
	}
}

// Handoff is reported when a frame registers new pending calls.
type Handoff struct {
	Kind HandoffKind
	Call PendingCall
}

// Tracker holds pending calls in registration order.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	seq      uint64
	calls    []PendingCall
	awaiting string
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Observe feeds one frame and its classified parts to the tracker.
// Resolution runs before registration: a frame whose id matches a pending
// call registered by an earlier frame resolves it, as does a function
// response part carrying a pending call id. The frame's long running
// function calls are then registered, ignoring duplicate ids.
func (t *Tracker) Observe(f *event.Frame, parts []event.ClassifiedPart) Handoff {
	if f == nil {
		return Handoff{}
	}
	t.seq++
	t.resolve(f, parts)

	registered := false
	if len(f.LongRunningToolIDs) > 0 {
		for _, p := range parts {
			fc, ok := p.Part.(*event.FunctionCall)
			if !ok || fc.Call == nil || !f.IsLongRunning(fc.Call.ID) {
				continue
			}
			if t.index(fc.Call.ID) >= 0 {
				continue
			}
			call := PendingCall{
				ID:      fc.Call.ID,
				Name:    fc.Call.Name,
				Args:    fc.Call.Args,
				EventID: f.ID,
				Seq:     t.seq,
			}
			if ac, ok := fc.Call.Args[argAuthConfig].(map[string]any); ok {
				call.AuthConfig = ac
			}
			t.calls = append(t.calls, call)
			registered = true
			log.Debugf("tooltrack: registered long running call %s (%s) from event %s", call.ID, call.Name, f.ID)
		}
	}
	if !registered || len(t.calls) == 0 {
		return Handoff{}
	}

	first := t.calls[0]
	if first.IsOAuth() {
		return Handoff{Kind: HandoffOAuth, Call: first}
	}
	t.awaiting = first.EventID
	return Handoff{Kind: HandoffAwaitUser, Call: first}
}

func (t *Tracker) resolve(f *event.Frame, parts []event.ClassifiedPart) {
	responded := make(map[string]struct{})
	for _, p := range parts {
		if fr, ok := p.Part.(*event.FunctionResponse); ok && fr.Response != nil && fr.Response.ID != "" {
			responded[fr.Response.ID] = struct{}{}
		}
	}
	t.calls = slices.DeleteFunc(t.calls, func(c PendingCall) bool {
		if _, ok := responded[c.ID]; ok {
			log.Debugf("tooltrack: call %s resolved by function response in event %s", c.ID, f.ID)
			return true
		}
		// A frame that still flags the call keeps it open.
		if c.EventID == f.ID && c.Seq < t.seq && !f.IsLongRunning(c.ID) {
			log.Debugf("tooltrack: call %s resolved by event %s", c.ID, f.ID)
			return true
		}
		return false
	})
	if t.awaiting != "" && !slices.ContainsFunc(t.calls, func(c PendingCall) bool {
		return c.EventID == t.awaiting
	}) {
		t.awaiting = ""
	}
}

// Resolve drops the pending call with the given id.
func (t *Tracker) Resolve(callID string) bool {
	i := t.index(callID)
	if i < 0 {
		return false
	}
	evt := t.calls[i].EventID
	t.calls = slices.Delete(t.calls, i, i+1)
	if t.awaiting == evt && !slices.ContainsFunc(t.calls, func(c PendingCall) bool { return c.EventID == evt }) {
		t.awaiting = ""
	}
	return true
}

// Get returns the pending call with the given id.
func (t *Tracker) Get(callID string) (PendingCall, bool) {
	i := t.index(callID)
	if i < 0 {
		return PendingCall{}, false
	}
	return clone(t.calls[i]), true
}

// Pending returns a snapshot of the pending calls in registration order.
func (t *Tracker) Pending() []PendingCall {
	out := make([]PendingCall, 0, len(t.calls))
	for _, c := range t.calls {
		out = append(out, clone(c))
	}
	return out
}

// AwaitingEventID returns the event id waiting for a user response.
func (t *Tracker) AwaitingEventID() string {
	return t.awaiting
}

// Reset forgets every pending call.
func (t *Tracker) Reset() {
	t.calls = nil
	t.awaiting = ""
	t.seq = 0
}

func (t *Tracker) index(callID string) int {
	if callID == "" {
		return -1
	}
	return slices.IndexFunc(t.calls, func(c PendingCall) bool { return c.ID == callID })
}

func clone(c PendingCall) PendingCall {
	c.Args = maps.Clone(c.Args)
	c.AuthConfig = maps.Clone(c.AuthConfig)
	return c
}

// Lookup walks nested JSON objects along keys.
func Lookup(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}
