//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePatcher struct {
	mu         sync.Mutex
	generation uint64
	patched    map[int]Attachment
}

func (p *fakePatcher) PatchAttachment(gen uint64, index int, a Attachment) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return false
	}
	if p.patched == nil {
		p.patched = make(map[int]Attachment)
	}
	p.patched[index] = a
	return true
}

func TestHydrator_PatchesAndNotifies(t *testing.T) {
	var keys []Key
	var mu sync.Mutex
	fetcher := FetcherFunc(func(_ context.Context, key Key) (*InlineData, error) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
		return &InlineData{MimeType: "image/gif", Data: "YWJj"}, nil
	})
	patcher := &fakePatcher{}
	var notified []Record
	h, err := NewHydrator(fetcher, patcher, WithPoolSize(2), WithListener(func(r Record) {
		mu.Lock()
		notified = append(notified, r)
		mu.Unlock()
	}))
	require.NoError(t, err)
	defer h.Close()

	info := SessionInfo{AppName: "app", UserID: "u", SessionID: "s"}
	h.Hydrate(context.Background(), info, []Placeholder{
		{Index: 3, Entry: DeltaEntry{Name: "a", Version: 1}},
		{Index: 4, Entry: DeltaEntry{Name: "b", Version: 0}},
	})
	h.Wait()

	require.Len(t, patcher.patched, 2)
	assert.Equal(t, "data:image/gif;base64,YWJj", patcher.patched[3].DataURI)
	assert.Equal(t, "b", patcher.patched[4].ArtifactName)
	assert.Len(t, h.Records(), 2)
	assert.Len(t, notified, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{keys[0].Name, keys[1].Name})
	assert.Equal(t, "s", keys[0].SessionID)
}

func TestHydrator_FetchFailureLeavesPlaceholder(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, Key) (*InlineData, error) {
		return nil, errors.New("unavailable")
	})
	patcher := &fakePatcher{}
	h, err := NewHydrator(fetcher, patcher)
	require.NoError(t, err)
	defer h.Close()

	h.Hydrate(context.Background(), SessionInfo{}, []Placeholder{{Index: 0, Entry: DeltaEntry{Name: "a"}}})
	h.Wait()
	assert.Empty(t, patcher.patched)
	assert.Empty(t, h.Records())
}

func TestHydrator_StaleGenerationDiscarded(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, Key) (*InlineData, error) {
		return &InlineData{Data: "YWJj"}, nil
	})
	patcher := &fakePatcher{generation: 2}
	h, err := NewHydrator(fetcher, patcher)
	require.NoError(t, err)
	defer h.Close()

	h.Hydrate(context.Background(), SessionInfo{}, []Placeholder{{Index: 0, Generation: 1, Entry: DeltaEntry{Name: "a"}}})
	h.Wait()
	assert.Empty(t, patcher.patched)
	assert.Empty(t, h.Records())
}

func TestNewHydrator_Validation(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, Key) (*InlineData, error) { return nil, nil })
	_, err := NewHydrator(nil, &fakePatcher{})
	assert.Error(t, err)
	_, err = NewHydrator(fetcher, nil)
	assert.Error(t, err)
	_, err = NewHydrator(fetcher, &fakePatcher{}, WithPoolSize(0))
	assert.Error(t, err)
}
