//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package ledger indexes the frames and classified parts processed in a
// session so the console can drill down from a message to its raw event.
package ledger

import (
	"maps"
	"slices"

	"trpc.group/trpc-go/trpc-agent-console/event"
)

// PartEntry is one classified part plus the index of the message it
// contributed to.
type PartEntry struct {
	Part         event.ClassifiedPart
	MessageIndex int
}

// EventID returns the id of the frame the part came from.
func (e PartEntry) EventID() string {
	return e.Part.EventID
}

// Ledger maps event ids to frames and keeps a position aligned list of
// every classified part. The key set is append only until Reset.
// A Ledger is not safe for concurrent use.
type Ledger struct {
	frames map[string]*event.Frame
	order  []string
	parts  []PartEntry
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{frames: make(map[string]*event.Frame)}
}

// RecordFrame stores f under its id and reports whether the id is new.
// A repeated id keeps its original position and the stored frame is
// replaced by the latest payload.
func (l *Ledger) RecordFrame(f *event.Frame) bool {
	if f == nil || f.ID == "" {
		return false
	}
	_, seen := l.frames[f.ID]
	l.frames[f.ID] = f
	if !seen {
		l.order = append(l.order, f.ID)
	}
	return !seen
}

// RecordPart appends a part entry and returns its position.
func (l *Ledger) RecordPart(p event.ClassifiedPart, messageIndex int) int {
	l.parts = append(l.parts, PartEntry{Part: p, MessageIndex: messageIndex})
	return len(l.parts) - 1
}

// Frame returns the frame stored under id.
func (l *Ledger) Frame(id string) (*event.Frame, bool) {
	f, ok := l.frames[id]
	return f, ok
}

// Part returns the entry at position i.
func (l *Ledger) Part(i int) (PartEntry, bool) {
	if i < 0 || i >= len(l.parts) {
		return PartEntry{}, false
	}
	return l.parts[i], true
}

// Parts returns a copy of every part entry in emission order.
func (l *Ledger) Parts() []PartEntry {
	return slices.Clone(l.parts)
}

// PartCount returns the number of part entries.
func (l *Ledger) PartCount() int {
	return len(l.parts)
}

// EventIDs returns the recorded event ids in first-seen order.
func (l *Ledger) EventIDs() []string {
	return slices.Clone(l.order)
}

// FrameForMessage returns the most recent frame that contributed to the
// message at index.
func (l *Ledger) FrameForMessage(index int) (*event.Frame, bool) {
	for i := len(l.parts) - 1; i >= 0; i-- {
		if l.parts[i].MessageIndex == index {
			return l.Frame(l.parts[i].EventID())
		}
	}
	return nil, false
}

// Reset wipes every frame and part entry.
func (l *Ledger) Reset() {
	clear(l.frames)
	l.order = nil
	l.parts = nil
}

// Clone returns an independent copy for read-only snapshots. Frames are
// shared and must be treated as immutable.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		frames: maps.Clone(l.frames),
		order:  slices.Clone(l.order),
		parts:  slices.Clone(l.parts),
	}
}
