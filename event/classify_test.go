//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestClassify_PriorityOrder(t *testing.T) {
	f := &Frame{
		ID:     "e1",
		Author: "root_agent",
		Content: &Content{Parts: []*RawPart{
			{Text: "hello", FunctionCall: &genai.FunctionCall{Name: "ignored"}},
			{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "foo"}, FunctionResponse: &genai.FunctionResponse{Name: "x"}},
			{FunctionResponse: &genai.FunctionResponse{ID: "c1", Name: "foo"}},
			{ExecutableCode: &genai.ExecutableCode{Code: "print(1)"}},
			{CodeExecutionResult: &genai.CodeExecutionResult{Output: "1"}},
		}},
	}

	parts := Classify(context.Background(), f)
	require.Len(t, parts, 5)

	kinds := make([]Kind, 0, len(parts))
	for i, p := range parts {
		kinds = append(kinds, p.Part.Kind())
		assert.Equal(t, i, p.Index)
		assert.Equal(t, "e1", p.EventID)
		assert.Equal(t, RoleBot, p.Role())
	}
	assert.Equal(t, []Kind{
		KindText, KindFunctionCall, KindFunctionResponse, KindExecutableCode, KindCodeExecutionResult,
	}, kinds)

	call := parts[1].Part.(*FunctionCall)
	assert.Equal(t, "foo", call.Call.Name)
}

func TestClassify_DropsUnknownAndEmptyText(t *testing.T) {
	f := &Frame{
		ID:     "e2",
		Author: AuthorUser,
		Content: &Content{Parts: []*RawPart{
			{},
			nil,
			{Text: "kept"},
			{Thought: true},
		}},
	}

	parts := Classify(context.Background(), f)
	require.Len(t, parts, 1)
	assert.Equal(t, 2, parts[0].Index)
	assert.Equal(t, RoleUser, parts[0].Role())
	txt, ok := parts[0].Text()
	require.True(t, ok)
	assert.Equal(t, "kept", txt.Text)
}

func TestClassify_NoContent(t *testing.T) {
	assert.Nil(t, Classify(context.Background(), &Frame{ID: "e3"}))
	assert.Nil(t, Classify(context.Background(), nil))
}

func TestClassify_CarriesFrameMetadata(t *testing.T) {
	raw := `{
		"id": "e4",
		"author": "bot",
		"content": {"parts": [{"text": "t", "thought": true}]},
		"groundingMetadata": {"searchEntryPoint": {"renderedContent": "<div/>"}},
		"evalStatus": "passed",
		"actualInvocationToolUses": [{"name": "a"}],
		"expectedInvocationToolUses": [{"name": "b"}]
	}`
	var f Frame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	parts := Classify(context.Background(), &f)
	require.Len(t, parts, 1)
	p := parts[0]
	assert.Equal(t, "<div/>", p.RenderedContent)
	assert.True(t, p.HasEvalMetadata())
	assert.JSONEq(t, `"passed"`, string(p.EvalStatus))
	assert.JSONEq(t, `[{"name":"a"}]`, string(p.ActualInvocationToolUses))
	assert.JSONEq(t, `[{"name":"b"}]`, string(p.ExpectedInvocationToolUses))

	txt, ok := p.Text()
	require.True(t, ok)
	assert.True(t, txt.Thought)
}

func TestFrameHelpers(t *testing.T) {
	var nilFrame *Frame
	assert.Empty(t, nilFrame.RenderedContent())
	assert.Nil(t, nilFrame.Parts())
	assert.Nil(t, nilFrame.ArtifactDelta())

	f := &Frame{
		LongRunningToolIDs: []string{"c1"},
		Actions:            &Actions{ArtifactDelta: map[string]int{"img": 2}},
	}
	assert.True(t, f.IsLongRunning("c1"))
	assert.False(t, f.IsLongRunning("c2"))
	assert.False(t, f.IsLongRunning(""))
	assert.Equal(t, map[string]int{"img": 2}, f.ArtifactDelta())
	assert.Equal(t, RoleUser, RoleFor("user"))
	assert.Equal(t, RoleBot, RoleFor("any_agent"))
}
