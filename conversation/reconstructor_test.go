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
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/tooltrack"
)

func textFrame(id, author, text string, partial bool) *event.Frame {
	return &event.Frame{
		ID:      id,
		Author:  author,
		Partial: partial,
		Content: &event.Content{Parts: []*event.RawPart{{Text: text}}},
	}
}

func frame(id string, parts ...*event.RawPart) *event.Frame {
	return &event.Frame{ID: id, Author: "agent", Content: &event.Content{Parts: parts}}
}

func texts(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		if t, ok := m.Text(); ok {
			out = append(out, t.Text)
		} else {
			out = append(out, "<"+m.Kind()+">")
		}
	}
	return out
}

func TestStreamingDedupe(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.Process(ctx, textFrame("e1", "agent", "Hello ", true))
	r.Process(ctx, textFrame("e1", "agent", "World!", true))
	_, open := r.OpenIndex()
	assert.True(t, open)
	r.Process(ctx, textFrame("e2", "agent", "Hello World!", false))

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"Hello World!"}, texts(msgs))
	assert.Equal(t, "e2", msgs[0].EventID)
	assert.Equal(t, event.RoleBot, msgs[0].Role)
	_, open = r.OpenIndex()
	assert.False(t, open)

	l := r.Ledger()
	assert.Equal(t, 3, l.PartCount())
	last, ok := l.Part(2)
	require.True(t, ok)
	assert.Equal(t, 0, last.MessageIndex)
	assert.Equal(t, []string{"e1", "e2"}, l.EventIDs())
}

func TestNonMergeAcrossKinds(t *testing.T) {
	for _, streaming := range []bool{true, false} {
		r := New(WithStreaming(streaming))
		r.Process(context.Background(), frame("e1",
			&event.RawPart{Text: "Hello "},
			&event.RawPart{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "foo"}},
			&event.RawPart{Text: "World!"},
		))
		msgs := r.Messages()
		require.Len(t, msgs, 3, "streaming=%v", streaming)
		assert.Equal(t, []string{"Hello ", "<functionCall>", "World!"}, texts(msgs))
	}
}

func TestThoughtStripping(t *testing.T) {
	r := New()
	r.Process(context.Background(), frame("e1", &event.RawPart{Text: "/*PLANNING*/do X/*ACTION*/", Thought: true}))
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	txt, ok := msgs[0].Text()
	require.True(t, ok)
	assert.Equal(t, "do X", txt.Text)
	assert.True(t, txt.Thought)
}

func TestStreamingAppendIsVerbatim(t *testing.T) {
	r := New()
	r.Process(context.Background(), frame("e1", &event.RawPart{Text: "/*PLANNING*/a", Thought: true}))
	r.Process(context.Background(), frame("e1", &event.RawPart{Text: "/*ACTION*/b", Thought: true}))
	assert.Equal(t, []string{"a/*ACTION*/b"}, texts(r.Messages()))
}

func TestThoughtChangeClosesOpenMessage(t *testing.T) {
	r := New()
	r.Process(context.Background(), frame("e1", &event.RawPart{Text: "thinking", Thought: true}))
	r.Process(context.Background(), frame("e1", &event.RawPart{Text: "answer"}))
	assert.Equal(t, []string{"thinking", "answer"}, texts(r.Messages()))
}

func TestRoleChangeClosesOpenMessage(t *testing.T) {
	r := New()
	r.Process(context.Background(), textFrame("e1", "agent", "hi", true))
	r.Process(context.Background(), textFrame("u1", "user", "hello", false))
	r.Process(context.Background(), textFrame("e2", "agent", "again", true))
	msgs := r.Messages()
	assert.Equal(t, []string{"hi", "hello", "again"}, texts(msgs))
	assert.Equal(t, event.RoleUser, msgs[1].Role)
}

func TestNonStreamingFrameLocalCoalescing(t *testing.T) {
	r := New(WithStreaming(false))
	r.Process(context.Background(), frame("e1", &event.RawPart{Text: "a"}, &event.RawPart{Text: "b"}))
	r.Process(context.Background(), frame("e2", &event.RawPart{Text: "c"}))
	msgs := r.Messages()
	assert.Equal(t, []string{"ab", "c"}, texts(msgs))
	assert.Equal(t, "e1", msgs[0].EventID)

	l := r.Ledger()
	require.Equal(t, 3, l.PartCount())
	p, _ := l.Part(1)
	assert.Equal(t, 0, p.MessageIndex)
}

func TestGroundingAttachedOnce(t *testing.T) {
	r := New(WithStreaming(false))
	f := frame("e1", &event.RawPart{Text: "a"}, &event.RawPart{FunctionCall: &genai.FunctionCall{Name: "f"}})
	f.GroundingMetadata = &event.GroundingMetadata{SearchEntryPoint: &event.SearchEntryPoint{RenderedContent: "<b/>"}}
	r.Process(context.Background(), f)
	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "<b/>", msgs[0].RenderedContent)
	assert.Empty(t, msgs[1].RenderedContent)
}

func TestEvalMetadataOnNonText(t *testing.T) {
	r := New()
	f := frame("e1", &event.RawPart{FunctionResponse: &genai.FunctionResponse{Name: "f"}})
	f.EvalStatus = json.RawMessage(`"failed"`)
	r.Process(context.Background(), f)
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `"failed"`, string(msgs[0].EvalStatus))
}

func TestErrorFrame(t *testing.T) {
	r := New()
	r.Process(context.Background(), textFrame("e1", "agent", "partial", true))
	r.Process(context.Background(), &event.Frame{ID: "e2", Author: "agent", ErrorCode: "SAFETY", ErrorMessage: "blocked"})
	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindError, msgs[1].Kind())
	assert.Equal(t, "blocked", msgs[1].Error.Message)
	assert.Equal(t, "SAFETY", msgs[1].Error.Code)
	_, open := r.OpenIndex()
	assert.False(t, open)
}

func TestArtifactPlaceholdersAndPatch(t *testing.T) {
	r := New()
	f := textFrame("e1", "agent", "see image", false)
	f.Actions = &event.Actions{ArtifactDelta: map[string]int{"b.png": 0, "a.png": 2}}
	res := r.Process(context.Background(), f)

	require.Len(t, res.Placeholders, 2)
	assert.Equal(t, "a.png", res.Placeholders[0].Entry.Name)
	assert.Equal(t, 1, res.Placeholders[0].Index)
	assert.Equal(t, 2, res.Placeholders[1].Index)

	m, ok := r.Message(1)
	require.True(t, ok)
	require.NotNil(t, m.Attachment)
	assert.True(t, m.Attachment.Pending())
	assert.Equal(t, artifact.DefaultMimeType, m.Attachment.MimeType)

	att := artifact.Attachment{Name: "image.png", MimeType: "image/png", DataURI: "data:image/png;base64,YWJj", ArtifactName: "a.png", Version: 2}
	assert.True(t, r.PatchAttachment(res.Placeholders[0].Generation, 1, att))
	assert.False(t, r.PatchAttachment(res.Placeholders[0].Generation, 1, att), "already hydrated")
	assert.False(t, r.PatchAttachment(res.Placeholders[0].Generation, 0, att), "not a placeholder")

	m, _ = r.Message(1)
	assert.Equal(t, "data:image/png;base64,YWJj", m.Attachment.DataURI)
	assert.Equal(t, 3, r.Len())

	gen := res.Placeholders[1].Generation
	r.Reset()
	assert.False(t, r.PatchAttachment(gen, 2, att), "stale generation")
	assert.Zero(t, r.Len())
}

func TestHandoffReported(t *testing.T) {
	r := New()
	f := frame("e1", &event.RawPart{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "approve"}})
	f.LongRunningToolIDs = []string{"c1"}
	res := r.Process(context.Background(), f)
	assert.Equal(t, tooltrack.HandoffAwaitUser, res.Handoff.Kind)
	assert.Equal(t, "e1", r.AwaitingEventID())
	require.Len(t, r.Pending(), 1)

	assert.True(t, r.ResolvePending("c1"))
	assert.Empty(t, r.Pending())
}

func TestLedgerCountMatchesClassifiedParts(t *testing.T) {
	frames := []*event.Frame{
		textFrame("e1", "agent", "a", true),
		frame("e2", &event.RawPart{}, &event.RawPart{Text: "b"}, &event.RawPart{ExecutableCode: &genai.ExecutableCode{Code: "1"}}),
		textFrame("e3", "agent", "ab", false),
		{ID: "e4"},
	}
	r := New()
	total := 0
	for _, f := range frames {
		total += len(r.Process(context.Background(), f).Parts)
	}
	assert.Equal(t, total, r.Ledger().PartCount())
}

func TestReplayMatchesLiveRun(t *testing.T) {
	call := &event.RawPart{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "lookup", Args: map[string]any{"q": "x"}}}
	resp := &event.RawPart{FunctionResponse: &genai.FunctionResponse{ID: "c1", Name: "lookup", Response: map[string]any{"ok": true}}}
	live := []*event.Frame{
		textFrame("u1", "user", "question", false),
		textFrame("e1", "agent", "Hello ", true),
		textFrame("e1", "agent", "World!", true),
		textFrame("e1", "agent", "Hello World!", false),
		frame("e2", call),
		frame("e3", resp),
		textFrame("e4", "agent", "Done", false),
	}
	stored := []*event.Frame{live[0], live[3], live[4], live[5], live[6]}

	lr := New()
	for _, f := range live {
		lr.Process(context.Background(), f)
	}
	hr := New()
	hr.Reset()
	for _, f := range stored {
		hr.ProcessHistorical(context.Background(), f)
	}

	liveJSON, err := json.Marshal(lr.Messages())
	require.NoError(t, err)
	replayJSON, err := json.Marshal(hr.Messages())
	require.NoError(t, err)
	assert.Equal(t, string(liveJSON), string(replayJSON))

	again := New()
	for _, f := range stored {
		again.ProcessHistorical(context.Background(), f)
	}
	againJSON, err := json.Marshal(again.Messages())
	require.NoError(t, err)
	assert.Equal(t, string(replayJSON), string(againJSON))
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	r := New()
	r.Process(context.Background(), textFrame("e1", "agent", "a", true))
	snap := r.Messages()
	r.Process(context.Background(), textFrame("e1", "agent", "b", true))
	assert.Equal(t, []string{"a"}, texts(snap))
	assert.Equal(t, []string{"ab"}, texts(r.Messages()))
}

func TestAppendUserPart(t *testing.T) {
	r := New()
	r.Process(context.Background(), textFrame("e1", "agent", "a", true))
	idx := r.AppendUserPart(context.Background(), event.NewText("hi", false))
	assert.Equal(t, 1, idx)
	r.Process(context.Background(), textFrame("e2", "agent", "b", true))
	assert.Equal(t, []string{"a", "hi", "b"}, texts(r.Messages()))
}

func TestConcurrentReaders(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Messages()
				_ = r.Ledger()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		r.Process(context.Background(), textFrame("e1", "agent", "x", true))
	}
	wg.Wait()
	// Every second identical delta is treated as the final echo.
	assert.Equal(t, 50, r.Len())
}

func TestStripMarkers(t *testing.T) {
	assert.Equal(t, "do X", StripMarkers("/*PLANNING*/do X/*ACTION*/"))
	assert.Equal(t, "why so", StripMarkers("/*REASONING*/why so/*FINAL_ANSWER*/"))
	assert.Equal(t, "plain", StripMarkers("plain"))
}
