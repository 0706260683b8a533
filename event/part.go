//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package event

import "google.golang.org/genai"

// Kind names a Part variant.
type Kind string

// Part kinds, listed in classification priority order.
const (
	KindText                Kind = "text"
	KindFunctionCall        Kind = "functionCall"
	KindFunctionResponse    Kind = "functionResponse"
	KindExecutableCode      Kind = "executableCode"
	KindCodeExecutionResult Kind = "codeExecutionResult"
)

// Part is a typed fragment of a frame's content. The set of
// implementations is closed: Text, FunctionCall, FunctionResponse,
// ExecutableCode and CodeExecutionResult.
type Part interface {
	Kind() Kind
	isPart()
}

// Text is a plain or thought text fragment.
type Text struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

// FunctionCall is a tool invocation requested by the agent.
type FunctionCall struct {
	Call *genai.FunctionCall `json:"functionCall"`
}

// FunctionResponse is the result of a tool invocation.
type FunctionResponse struct {
	Response *genai.FunctionResponse `json:"functionResponse"`
}

// ExecutableCode is code the agent asked to execute.
type ExecutableCode struct {
	Code *genai.ExecutableCode `json:"executableCode"`
}

// CodeExecutionResult is the outcome of executing code.
type CodeExecutionResult struct {
	Result *genai.CodeExecutionResult `json:"codeExecutionResult"`
}

// NewText creates a text part.
func NewText(text string, thought bool) *Text {
	return &Text{Text: text, Thought: thought}
}

// NewFunctionCall creates a function call part.
func NewFunctionCall(call *genai.FunctionCall) *FunctionCall {
	return &FunctionCall{Call: call}
}

// NewFunctionResponse creates a function response part.
func NewFunctionResponse(resp *genai.FunctionResponse) *FunctionResponse {
	return &FunctionResponse{Response: resp}
}

// NewExecutableCode creates an executable code part.
func NewExecutableCode(code *genai.ExecutableCode) *ExecutableCode {
	return &ExecutableCode{Code: code}
}

// NewCodeExecutionResult creates a code execution result part.
func NewCodeExecutionResult(result *genai.CodeExecutionResult) *CodeExecutionResult {
	return &CodeExecutionResult{Result: result}
}

func (*Text) Kind() Kind                { return KindText }
func (*FunctionCall) Kind() Kind        { return KindFunctionCall }
func (*FunctionResponse) Kind() Kind    { return KindFunctionResponse }
func (*ExecutableCode) Kind() Kind      { return KindExecutableCode }
func (*CodeExecutionResult) Kind() Kind { return KindCodeExecutionResult }

func (*Text) isPart()                {}
func (*FunctionCall) isPart()        {}
func (*FunctionResponse) isPart()    {}
func (*ExecutableCode) isPart()      {}
func (*CodeExecutionResult) isPart() {}
