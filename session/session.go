//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package session defines the agent server's session shape and the store
// the console replays history from.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"trpc.group/trpc-go/trpc-agent-console/event"
)

var (
	// ErrAppNameRequired is the error for app name required.
	ErrAppNameRequired = errors.New("appName is required")
	// ErrUserIDRequired is the error for user id required.
	ErrUserIDRequired = errors.New("userID is required")
	// ErrSessionIDRequired is the error for session id required.
	ErrSessionIDRequired = errors.New("sessionID is required")
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
)

// Session is a conversation as stored by the agent server.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state"`
	Events         []*event.Frame `json:"events"`
	LastUpdateTime float64        `json:"lastUpdateTime"`

	// Hash is the murmur3 slot hash of "appName:userID:sessionID".
	Hash int `json:"-"`
	mu   sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(appName, userID, sessionID string) *Session {
	return &Session{
		ID:             sessionID,
		AppName:        appName,
		UserID:         userID,
		State:          make(map[string]any),
		Events:         []*event.Frame{},
		LastUpdateTime: timestamp(time.Now()),
		Hash:           SlotHash(appName, userID, sessionID),
	}
}

// SlotHash hashes a session key for sharding.
func SlotHash(appName, userID, sessionID string) int {
	return int(murmur3.Sum32([]byte(fmt.Sprintf("%s:%s:%s", appName, userID, sessionID))))
}

// Key returns the session key.
func (sess *Session) Key() Key {
	return Key{AppName: sess.AppName, UserID: sess.UserID, SessionID: sess.ID}
}

// Clone returns a copy of the session. Frames are shared.
func (sess *Session) Clone() *Session {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return &Session{
		ID:             sess.ID,
		AppName:        sess.AppName,
		UserID:         sess.UserID,
		State:          maps.Clone(sess.State),
		Events:         slices.Clone(sess.Events),
		LastUpdateTime: sess.LastUpdateTime,
		Hash:           sess.Hash,
	}
}

// GetEvents returns the session events.
func (sess *Session) GetEvents() []*event.Frame {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return slices.Clone(sess.Events)
}

// AppendEvent stores a complete frame and merges its state delta.
// Partial frames are not persisted.
func (sess *Session) AppendEvent(f *event.Frame) {
	if f == nil || f.Partial {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Events = append(sess.Events, f)
	if f.Actions != nil {
		if sess.State == nil {
			sess.State = make(map[string]any)
		}
		maps.Copy(sess.State, f.Actions.StateDelta)
	}
	sess.LastUpdateTime = timestamp(time.Now())
}

func timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Key is the key for a session.
type Key struct {
	AppName   string // app name
	UserID    string // user id
	SessionID string // session id
}

// CheckSessionKey checks if a session key is valid.
func (s *Key) CheckSessionKey() error {
	if err := s.CheckUserKey(); err != nil {
		return err
	}
	if s.SessionID == "" {
		return ErrSessionIDRequired
	}
	return nil
}

// CheckUserKey checks if the app and user of a key are set.
func (s *Key) CheckUserKey() error {
	if s.AppName == "" {
		return ErrAppNameRequired
	}
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}

// Store supplies historical sessions for replay.
type Store interface {
	// GetSession returns the session or ErrNotFound.
	GetSession(ctx context.Context, key Key) (*Session, error)
}

// Service is a full session store, as served by the agent server.
type Service interface {
	Store
	// CreateSession creates a session. An empty SessionID is generated.
	CreateSession(ctx context.Context, key Key, state map[string]any) (*Session, error)
	// ListSessions lists the sessions of a user, without events.
	ListSessions(ctx context.Context, appName, userID string) ([]*Session, error)
	// DeleteSession deletes a session.
	DeleteSession(ctx context.Context, key Key) error
	// AppendEvent appends a complete frame to a session.
	AppendEvent(ctx context.Context, key Key, f *event.Frame) error
}
