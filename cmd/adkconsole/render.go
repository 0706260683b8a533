//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-agent-console/conversation"
	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

// printer writes conversation messages to w, each exactly once.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

// flush prints the messages not printed yet.
func (p *printer) flush(msgs []conversation.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed > len(msgs) {
		p.printed = 0
	}
	for _, m := range msgs[p.printed:] {
		fmt.Fprintln(p.w, formatMessage(m))
	}
	p.printed = len(msgs)
}

// reset makes the next flush start from the first message.
func (p *printer) reset() {
	p.mu.Lock()
	p.printed = 0
	p.mu.Unlock()
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// handoff announces a long running call that needs the user.
func (p *printer) handoff(h tooltrack.Handoff) {
	switch h.Kind {
	case tooltrack.HandoffOAuth:
		p.printf("* %s needs authorization (call %s)\n", h.Call.Name, h.Call.ID)
	case tooltrack.HandoffAwaitUser:
		p.printf("* %s is waiting for you: /respond %s {...}\n", h.Call.Name, h.Call.ID)
	}
}

func (p *printer) pending(calls []tooltrack.PendingCall) {
	if len(calls) == 0 {
		p.printf("no pending calls\n")
		return
	}
	for _, call := range calls {
		kind := "response"
		if call.AuthURI() != "" {
			kind = "oauth"
		}
		p.printf("  %s %s (%s) %s\n", call.ID, call.Name, kind, compactJSON(call.Args))
	}
}

// formatMessage renders one message on a single logical line.
func formatMessage(m conversation.Message) string {
	prefix := "[" + m.Role + "] "
	switch {
	case m.Error != nil:
		if m.Error.Code != "" {
			return prefix + "error " + m.Error.Code + ": " + m.Error.Message
		}
		return prefix + "error: " + m.Error.Message
	case m.Attachment != nil:
		a := m.Attachment
		state := "ready"
		if a.Pending() {
			state = "pending"
		}
		return fmt.Sprintf("%sattachment %s v%d (%s, %s)", prefix, a.ArtifactName, a.Version, a.MimeType, state)
	}
	switch part := m.Part.(type) {
	case *event.Text:
		if part.Thought {
			return prefix + "(thinking) " + conversation.StripMarkers(part.Text)
		}
		return prefix + part.Text
	case *event.FunctionCall:
		return fmt.Sprintf("%scall %s(%s) id=%s", prefix, part.Call.Name, compactJSON(part.Call.Args), part.Call.ID)
	case *event.FunctionResponse:
		return fmt.Sprintf("%sresult %s: %s", prefix, part.Response.Name, compactJSON(part.Response.Response))
	case *event.ExecutableCode:
		return fmt.Sprintf("%scode (%s):\n%s", prefix, strings.ToLower(string(part.Code.Language)), part.Code.Code)
	case *event.CodeExecutionResult:
		return fmt.Sprintf("%scode result (%s):\n%s", prefix, part.Result.Outcome, part.Result.Output)
	default:
		return prefix + m.Kind()
	}
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
