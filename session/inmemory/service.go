//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory session service.
package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/session"
)

const defaultShards = 16

var _ session.Service = (*SessionService)(nil)

type serviceOpts struct {
	shards     int
	sessionTTL time.Duration
}

// ServiceOpt configures the service.
type ServiceOpt func(*serviceOpts)

// WithShards sets the number of lock shards.
func WithShards(n int) ServiceOpt {
	return func(o *serviceOpts) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithSessionTTL expires sessions that were not updated within ttl.
func WithSessionTTL(ttl time.Duration) ServiceOpt {
	return func(o *serviceOpts) {
		o.sessionTTL = ttl
	}
}

// sessionWithTTL wraps session with expiration time.
type sessionWithTTL struct {
	session   *session.Session
	expiredAt time.Time
}

func (s *sessionWithTTL) valid() bool {
	return s != nil && (s.expiredAt.IsZero() || time.Now().Before(s.expiredAt))
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*sessionWithTTL
}

// SessionService stores sessions in memory, sharded by the session slot hash.
type SessionService struct {
	opts   serviceOpts
	shards []*shard
}

// NewSessionService creates a new in-memory session service.
func NewSessionService(options ...ServiceOpt) *SessionService {
	opts := serviceOpts{shards: defaultShards}
	for _, o := range options {
		o(&opts)
	}
	s := &SessionService{opts: opts, shards: make([]*shard, opts.shards)}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*sessionWithTTL)}
	}
	return s
}

func path(key session.Key) string {
	return key.AppName + "/" + key.UserID + "/" + key.SessionID
}

func (s *SessionService) shardFor(key session.Key) *shard {
	h := uint32(session.SlotHash(key.AppName, key.UserID, key.SessionID))
	return s.shards[h%uint32(len(s.shards))]
}

func (s *SessionService) expiry() time.Time {
	if s.opts.sessionTTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.opts.sessionTTL)
}

// CreateSession implements session.Service.
func (s *SessionService) CreateSession(_ context.Context, key session.Key, state map[string]any) (*session.Session, error) {
	if err := key.CheckUserKey(); err != nil {
		return nil, err
	}
	if key.SessionID == "" {
		key.SessionID = uuid.New().String()
	}
	sess := session.NewSession(key.AppName, key.UserID, key.SessionID)
	for k, v := range state {
		sess.State[k] = v
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.sessions[path(key)] = &sessionWithTTL{session: sess, expiredAt: s.expiry()}
	sh.mu.Unlock()
	return sess.Clone(), nil
}

// GetSession implements session.Store.
func (s *SessionService) GetSession(_ context.Context, key session.Key) (*session.Session, error) {
	if err := key.CheckSessionKey(); err != nil {
		return nil, err
	}
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	stored := sh.sessions[path(key)]
	if !stored.valid() {
		return nil, session.ErrNotFound
	}
	return stored.session.Clone(), nil
}

// ListSessions implements session.Service.
func (s *SessionService) ListSessions(_ context.Context, appName, userID string) ([]*session.Session, error) {
	key := session.Key{AppName: appName, UserID: userID}
	if err := key.CheckUserKey(); err != nil {
		return nil, err
	}
	prefix := appName + "/" + userID + "/"
	var out []*session.Session
	for _, sh := range s.shards {
		sh.mu.RLock()
		for p, stored := range sh.sessions {
			if !strings.HasPrefix(p, prefix) || !stored.valid() {
				continue
			}
			c := stored.session.Clone()
			c.Events = nil
			out = append(out, c)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b *session.Session) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// DeleteSession implements session.Service.
func (s *SessionService) DeleteSession(_ context.Context, key session.Key) error {
	if err := key.CheckSessionKey(); err != nil {
		return err
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.sessions, path(key))
	sh.mu.Unlock()
	return nil
}

// AppendEvent implements session.Service.
func (s *SessionService) AppendEvent(_ context.Context, key session.Key, f *event.Frame) error {
	if err := key.CheckSessionKey(); err != nil {
		return err
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	stored := sh.sessions[path(key)]
	if !stored.valid() {
		return session.ErrNotFound
	}
	stored.session.AppendEvent(f)
	stored.expiredAt = s.expiry()
	return nil
}
