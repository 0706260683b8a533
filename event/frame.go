//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package event defines the agent event stream wire types and the
// classifier that turns a frame's content into typed parts.
package event

import (
	"encoding/json"
	"slices"

	"google.golang.org/genai"
)

// Roles assigned to reconstructed messages.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// AuthorUser is the frame author used for user supplied content.
const AuthorUser = "user"

// Frame is one decoded line of an agent event stream.
type Frame struct {
	ID                         string             `json:"id"`
	InvocationID               string             `json:"invocationId,omitempty"`
	Author                     string             `json:"author,omitempty"`
	Timestamp                  float64            `json:"timestamp,omitempty"`
	Partial                    bool               `json:"partial,omitempty"`
	Content                    *Content           `json:"content,omitempty"`
	LongRunningToolIDs         []string           `json:"longRunningToolIds,omitempty"`
	Actions                    *Actions           `json:"actions,omitempty"`
	GroundingMetadata          *GroundingMetadata `json:"groundingMetadata,omitempty"`
	EvalStatus                 json.RawMessage    `json:"evalStatus,omitempty"`
	ActualInvocationToolUses   json.RawMessage    `json:"actualInvocationToolUses,omitempty"`
	ExpectedInvocationToolUses json.RawMessage    `json:"expectedInvocationToolUses,omitempty"`
	ErrorCode                  string             `json:"errorCode,omitempty"`
	ErrorMessage               string             `json:"errorMessage,omitempty"`
}

// Content is the frame payload: an ordered list of raw parts.
type Content struct {
	Role  string     `json:"role,omitempty"`
	Parts []*RawPart `json:"parts,omitempty"`
}

// RawPart is a content part as it appears on the wire. At most one of the
// payload fields is expected to be set; Classify decides which one wins.
type RawPart struct {
	Text                string                     `json:"text,omitempty"`
	Thought             bool                       `json:"thought,omitempty"`
	FunctionCall        *genai.FunctionCall        `json:"functionCall,omitempty"`
	FunctionResponse    *genai.FunctionResponse    `json:"functionResponse,omitempty"`
	ExecutableCode      *genai.ExecutableCode      `json:"executableCode,omitempty"`
	CodeExecutionResult *genai.CodeExecutionResult `json:"codeExecutionResult,omitempty"`
}

// Actions carries the side effects attached to a frame.
type Actions struct {
	StateDelta           map[string]any `json:"stateDelta,omitempty"`
	ArtifactDelta        map[string]int `json:"artifactDelta,omitempty"`
	RequestedAuthConfigs map[string]any `json:"requestedAuthConfigs,omitempty"`
}

// GroundingMetadata is the subset of search grounding the console shows.
type GroundingMetadata struct {
	SearchEntryPoint *SearchEntryPoint `json:"searchEntryPoint,omitempty"`
	WebSearchQueries []string          `json:"webSearchQueries,omitempty"`
}

// SearchEntryPoint holds the pre-rendered search widget.
type SearchEntryPoint struct {
	RenderedContent string `json:"renderedContent,omitempty"`
}

// RenderedContent returns the rendered search content, if any.
func (f *Frame) RenderedContent() string {
	if f == nil || f.GroundingMetadata == nil || f.GroundingMetadata.SearchEntryPoint == nil {
		return ""
	}
	return f.GroundingMetadata.SearchEntryPoint.RenderedContent
}

// Parts returns the frame's raw parts, nil safe.
func (f *Frame) Parts() []*RawPart {
	if f == nil || f.Content == nil {
		return nil
	}
	return f.Content.Parts
}

// ArtifactDelta returns the artifact name to version map, nil safe.
func (f *Frame) ArtifactDelta() map[string]int {
	if f == nil || f.Actions == nil {
		return nil
	}
	return f.Actions.ArtifactDelta
}

// IsLongRunning reports whether the function call id is flagged as long running.
func (f *Frame) IsLongRunning(callID string) bool {
	return callID != "" && slices.Contains(f.LongRunningToolIDs, callID)
}

// Role maps the frame author onto a message role.
func (f *Frame) Role() string {
	return RoleFor(f.Author)
}

// RoleFor maps an author name onto a message role.
func RoleFor(author string) string {
	if author == AuthorUser {
		return RoleUser
	}
	return RoleBot
}
