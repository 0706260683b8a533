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
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-console/log"
)

// DefaultPoolSize is the default number of concurrent fetches.
const DefaultPoolSize = 4

// Patcher replaces a placeholder message in place. It returns false when
// the placeholder no longer exists, e.g. after a session switch.
type Patcher interface {
	PatchAttachment(generation uint64, index int, a Attachment) bool
}

// Listener is notified after an attachment has been patched.
type Listener func(Record)

type hydratorOptions struct {
	poolSize  int
	listeners []Listener
}

// HydratorOption configures a Hydrator.
type HydratorOption func(*hydratorOptions)

// WithPoolSize sets the number of concurrent fetches.
func WithPoolSize(n int) HydratorOption {
	return func(o *hydratorOptions) {
		o.poolSize = n
	}
}

// WithListener registers a listener for hydrated artifacts.
func WithListener(l Listener) HydratorOption {
	return func(o *hydratorOptions) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// Hydrator fetches artifacts announced by frames on a worker pool and
// patches their placeholder messages. Fetch failures leave the
// placeholder in place; fetches are bounded only by the caller's context.
type Hydrator struct {
	fetcher   Fetcher
	patcher   Patcher
	listeners []Listener
	pool      *ants.PoolWithFunc
	wg        sync.WaitGroup

	mu      sync.RWMutex
	records []Record
}

type hydrateTask struct {
	ctx         context.Context
	key         Key
	placeholder Placeholder
}

// NewHydrator creates a Hydrator.
func NewHydrator(fetcher Fetcher, patcher Patcher, opts ...HydratorOption) (*Hydrator, error) {
	if fetcher == nil {
		return nil, errors.New("artifact: fetcher is nil")
	}
	if patcher == nil {
		return nil, errors.New("artifact: patcher is nil")
	}
	o := hydratorOptions{poolSize: DefaultPoolSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.poolSize <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	h := &Hydrator{fetcher: fetcher, patcher: patcher, listeners: o.listeners}
	pool, err := ants.NewPoolWithFunc(o.poolSize, func(args any) {
		task, ok := args.(*hydrateTask)
		if !ok {
			panic("artifact hydrate pool args type error")
		}
		defer h.wg.Done()
		h.hydrate(task)
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact hydrate pool: %w", err)
	}
	h.pool = pool
	return h, nil
}

// Hydrate schedules one fetch per placeholder. It only blocks while the
// pool is saturated.
func (h *Hydrator) Hydrate(ctx context.Context, info SessionInfo, placeholders []Placeholder) {
	for _, p := range placeholders {
		task := &hydrateTask{
			ctx:         ctx,
			key:         Key{SessionInfo: info, Name: p.Entry.Name, Version: p.Entry.Version},
			placeholder: p,
		}
		h.wg.Add(1)
		if err := h.pool.Invoke(task); err != nil {
			h.wg.Done()
			log.Warnf("artifact: schedule hydration of %s@%d: %v", p.Entry.Name, p.Entry.Version, err)
		}
	}
}

func (h *Hydrator) hydrate(task *hydrateTask) {
	ctx, span := itelemetry.StartSpan(task.ctx, itelemetry.SpanHydrate,
		attribute.String(itelemetry.KeyArtifactName, task.key.Name),
		attribute.String(itelemetry.KeySessionID, task.key.SessionID),
	)
	start := time.Now()
	err := h.fetchAndPatch(ctx, task)
	itelemetry.RecordArtifactHydration(ctx, itelemetry.Outcome(err), time.Since(start))
	itelemetry.EndSpan(span, err)
	if err != nil {
		log.WarnfContext(ctx, "artifact: hydration of %s@%d left pending: %v",
			task.key.Name, task.key.Version, err)
	}
}

func (h *Hydrator) fetchAndPatch(ctx context.Context, task *hydrateTask) error {
	in, err := h.fetcher.Fetch(ctx, task.key)
	if err != nil {
		return err
	}
	att, _, err := Hydrate(task.placeholder.Entry, in)
	if err != nil {
		return err
	}
	if !h.patcher.PatchAttachment(task.placeholder.Generation, task.placeholder.Index, att) {
		log.Debugf("artifact: discarding stale hydration of %s at index %d", task.key.Name, task.placeholder.Index)
		return nil
	}
	rec := Record{Key: task.key, MessageIndex: task.placeholder.Index, Attachment: att}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	for _, l := range h.listeners {
		l(rec)
	}
	return nil
}

// Records returns the hydrated artifacts in completion order.
func (h *Hydrator) Records() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.records)
}

// ResetRecords clears the artifact collection.
func (h *Hydrator) ResetRecords() {
	h.mu.Lock()
	h.records = nil
	h.mu.Unlock()
}

// Wait blocks until every scheduled hydration has finished.
func (h *Hydrator) Wait() {
	h.wg.Wait()
}

// Close waits for in-flight hydrations and releases the pool.
func (h *Hydrator) Close() {
	h.wg.Wait()
	h.pool.Release()
}
