//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package conversation

import (
	"encoding/json"
	"strings"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/event"
)

// Message kinds that are not part kinds.
const (
	KindAttachment = "attachment"
	KindError      = "error"
)

// thoughtMarkers are the reserved planner markers removed from thought text.
var thoughtMarkers = strings.NewReplacer(
	"/*PLANNING*/", "",
	"/*ACTION*/", "",
	"/*REASONING*/", "",
	"/*FINAL_ANSWER*/", "",
)

// StripMarkers removes planner markers from text.
func StripMarkers(text string) string {
	return thoughtMarkers.Replace(text)
}

// ErrorPayload is the payload of a message built from an error frame.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Message is one reconstructed conversation entry. Exactly one of Part,
// Attachment and Error is set.
type Message struct {
	Role       string               `json:"role"`
	Part       event.Part           `json:"part,omitempty"`
	Attachment *artifact.Attachment `json:"attachment,omitempty"`
	Error      *ErrorPayload        `json:"error,omitempty"`
	EventID    string               `json:"eventId,omitempty"`

	EvalStatus                 json.RawMessage `json:"evalStatus,omitempty"`
	ActualInvocationToolUses   json.RawMessage `json:"actualInvocationToolUses,omitempty"`
	ExpectedInvocationToolUses json.RawMessage `json:"expectedInvocationToolUses,omitempty"`
	RenderedContent            string          `json:"renderedContent,omitempty"`
}

// Kind names the message payload.
func (m *Message) Kind() string {
	switch {
	case m.Part != nil:
		return string(m.Part.Kind())
	case m.Attachment != nil:
		return KindAttachment
	case m.Error != nil:
		return KindError
	default:
		return ""
	}
}

// Text returns the text payload and true for text messages.
func (m *Message) Text() (*event.Text, bool) {
	t, ok := m.Part.(*event.Text)
	return t, ok
}

// clone copies the mutable payloads so snapshots never alias live state.
func (m *Message) clone() Message {
	c := *m
	if t, ok := m.Part.(*event.Text); ok {
		cp := *t
		c.Part = &cp
	}
	if m.Attachment != nil {
		a := *m.Attachment
		c.Attachment = &a
	}
	if m.Error != nil {
		e := *m.Error
		c.Error = &e
	}
	return c
}
