//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package oauth

import (
	"sync"

	"trpc.group/trpc-go/trpc-agent-console/log"
)

// Completion is the message the redirect target sends back.
type Completion struct {
	// Origin is the origin the completion was sent from.
	Origin string `json:"origin"`
	// AuthResponseURL is the full redirect URL.
	AuthResponseURL string `json:"authResponseUrl"`
}

// Mailbox correlates one completion with one waiting handshake.
type Mailbox struct {
	mu     sync.Mutex
	waiter chan Completion
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Expect arms the mailbox for exactly one completion. The returned cancel
// func disarms it if the completion is no longer wanted.
func (m *Mailbox) Expect() (<-chan Completion, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiter != nil {
		return nil, nil, ErrBusy
	}
	ch := make(chan Completion, 1)
	m.waiter = ch
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.waiter == ch {
			m.waiter = nil
		}
	}
	return ch, cancel, nil
}

// Deliver hands c to the armed waiter. Completions arriving while nobody
// waits are dropped and Deliver returns false.
func (m *Mailbox) Deliver(c Completion) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiter == nil {
		log.Warnf("oauth: dropping completion from %s: no handshake in progress", c.Origin)
		return false
	}
	m.waiter <- c
	m.waiter = nil
	return true
}

// Armed reports whether a handshake is waiting.
func (m *Mailbox) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiter != nil
}
