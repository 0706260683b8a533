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

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-console/log"
)

// ClassifiedPart is a Part enriched with the metadata of the frame it came from.
type ClassifiedPart struct {
	Part    Part
	EventID string
	Author  string
	// Index is the position of the part inside the frame's raw parts.
	Index int

	RenderedContent            string
	EvalStatus                 json.RawMessage
	ActualInvocationToolUses   json.RawMessage
	ExpectedInvocationToolUses json.RawMessage
}

// Role returns the message role for the part's author.
func (p ClassifiedPart) Role() string {
	return RoleFor(p.Author)
}

// Text returns the text payload and true when the part is text.
func (p ClassifiedPart) Text() (*Text, bool) {
	t, ok := p.Part.(*Text)
	return t, ok
}

// HasEvalMetadata reports whether the frame carried evaluation metadata.
func (p ClassifiedPart) HasEvalMetadata() bool {
	return len(p.EvalStatus) > 0 || len(p.ActualInvocationToolUses) > 0 ||
		len(p.ExpectedInvocationToolUses) > 0
}

// Classify splits the frame content into typed parts. Each raw part gets
// exactly one kind in priority order: text, functionCall,
// functionResponse, executableCode, codeExecutionResult. Parts matching
// none of them are dropped.
func Classify(ctx context.Context, f *Frame) []ClassifiedPart {
	raw := f.Parts()
	if len(raw) == 0 {
		return nil
	}
	out := make([]ClassifiedPart, 0, len(raw))
	for i, rp := range raw {
		p := classifyPart(rp)
		if p == nil {
			log.Debugf("event %s: dropping unrecognized part at index %d", f.ID, i)
			itelemetry.IncPartsDropped(ctx)
			continue
		}
		out = append(out, ClassifiedPart{
			Part:                       p,
			EventID:                    f.ID,
			Author:                     f.Author,
			Index:                      i,
			RenderedContent:            f.RenderedContent(),
			EvalStatus:                 f.EvalStatus,
			ActualInvocationToolUses:   f.ActualInvocationToolUses,
			ExpectedInvocationToolUses: f.ExpectedInvocationToolUses,
		})
	}
	return out
}

func classifyPart(rp *RawPart) Part {
	switch {
	case rp == nil:
		return nil
	case rp.Text != "":
		return NewText(rp.Text, rp.Thought)
	case rp.FunctionCall != nil:
		return NewFunctionCall(rp.FunctionCall)
	case rp.FunctionResponse != nil:
		return NewFunctionResponse(rp.FunctionResponse)
	case rp.ExecutableCode != nil:
		return NewExecutableCode(rp.ExecutableCode)
	case rp.CodeExecutionResult != nil:
		return NewCodeExecutionResult(rp.CodeExecutionResult)
	default:
		return nil
	}
}
