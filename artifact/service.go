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
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an artifact or version does not exist.
var ErrNotFound = errors.New("artifact: not found")

// Fetcher loads one artifact version as served by the agent server.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) (*InlineData, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key Key) (*InlineData, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key Key) (*InlineData, error) {
	return f(ctx, key)
}

// Service defines the interface for artifact storage and retrieval operations.
type Service interface {
	// SaveArtifact stores a new version of filename and returns its version.
	// The first version is 0.
	SaveArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, artifact *Artifact) (int, error)

	// LoadArtifact returns the given version of filename, or the latest
	// version when version is nil. Missing artifacts yield ErrNotFound.
	LoadArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, version *int) (*Artifact, error)

	// ListArtifactKeys lists all the artifact filenames within a session.
	ListArtifactKeys(ctx context.Context, sessionInfo SessionInfo) ([]string, error)

	// DeleteArtifact deletes every version of filename.
	DeleteArtifact(ctx context.Context, sessionInfo SessionInfo, filename string) error

	// ListVersions lists all versions of an artifact.
	ListVersions(ctx context.Context, sessionInfo SessionInfo, filename string) ([]int, error)
}

// ServiceFetcher serves fetches from a Service, encoding the bytes the
// way the agent server does: URL-safe base64 without padding.
type ServiceFetcher struct {
	Service Service
}

// Fetch implements Fetcher.
func (f ServiceFetcher) Fetch(ctx context.Context, key Key) (*InlineData, error) {
	version := key.Version
	art, err := f.Service.LoadArtifact(ctx, key.SessionInfo, key.Name, &version)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s@%d: %w", key.Name, key.Version, err)
	}
	if art == nil {
		return nil, fmt.Errorf("load artifact %s@%d: %w", key.Name, key.Version, ErrNotFound)
	}
	return Encode(art), nil
}

// Encode converts stored bytes into the wire payload.
func Encode(art *Artifact) *InlineData {
	return &InlineData{
		MimeType: art.MimeType,
		Data:     base64.RawURLEncoding.EncodeToString(art.Data),
	}
}
