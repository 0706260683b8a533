//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-console/event"
)

func TestLedger_RecordFrameKeepsFirstKey(t *testing.T) {
	l := New()
	assert.True(t, l.RecordFrame(&event.Frame{ID: "a", Partial: true}))
	assert.True(t, l.RecordFrame(&event.Frame{ID: "b"}))
	assert.False(t, l.RecordFrame(&event.Frame{ID: "a"}))
	assert.False(t, l.RecordFrame(&event.Frame{}))
	assert.False(t, l.RecordFrame(nil))

	assert.Equal(t, []string{"a", "b"}, l.EventIDs())
	f, ok := l.Frame("a")
	require.True(t, ok)
	assert.False(t, f.Partial, "stored frame is the latest payload")
}

func TestLedger_Parts(t *testing.T) {
	l := New()
	p0 := event.ClassifiedPart{EventID: "a", Part: event.NewText("x", false)}
	p1 := event.ClassifiedPart{EventID: "b", Part: event.NewText("y", false)}
	l.RecordFrame(&event.Frame{ID: "a"})
	l.RecordFrame(&event.Frame{ID: "b"})
	assert.Equal(t, 0, l.RecordPart(p0, 0))
	assert.Equal(t, 1, l.RecordPart(p1, 0))
	assert.Equal(t, 2, l.PartCount())

	e, ok := l.Part(1)
	require.True(t, ok)
	assert.Equal(t, "b", e.EventID())
	_, ok = l.Part(2)
	assert.False(t, ok)
	_, ok = l.Part(-1)
	assert.False(t, ok)

	f, ok := l.FrameForMessage(0)
	require.True(t, ok)
	assert.Equal(t, "b", f.ID)
	_, ok = l.FrameForMessage(3)
	assert.False(t, ok)
}

func TestLedger_ResetAndClone(t *testing.T) {
	l := New()
	l.RecordFrame(&event.Frame{ID: "a"})
	l.RecordPart(event.ClassifiedPart{EventID: "a"}, 0)

	snap := l.Clone()
	l.Reset()

	assert.Zero(t, l.PartCount())
	assert.Empty(t, l.EventIDs())
	_, ok := l.Frame("a")
	assert.False(t, ok)

	assert.Equal(t, 1, snap.PartCount())
	_, ok = snap.Frame("a")
	assert.True(t, ok)
}
