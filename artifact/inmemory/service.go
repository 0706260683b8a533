//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of the artifact service.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
)

var _ artifact.Service = (*Service)(nil)

// Service is an in-memory implementation of the artifact service.
// It is suitable for testing and development environments.
type Service struct {
	// artifacts stores artifacts by path, with each path containing a list of versions
	artifacts map[string][]*artifact.Artifact
	// mutex protects concurrent access to the artifacts map
	mutex sync.RWMutex
}

// NewService creates a new in-memory artifact service.
func NewService() *Service {
	return &Service{
		artifacts: make(map[string][]*artifact.Artifact),
	}
}

// SaveArtifact saves an artifact to the in-memory storage.
func (s *Service) SaveArtifact(_ context.Context, info artifact.SessionInfo, filename string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("artifact %s is nil", filename)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := artifactPath(info, filename)
	stored := *art
	stored.Data = append([]byte(nil), art.Data...)
	s.artifacts[path] = append(s.artifacts[path], &stored)
	return len(s.artifacts[path]) - 1, nil
}

// LoadArtifact gets an artifact from the in-memory storage.
func (s *Service) LoadArtifact(_ context.Context, info artifact.SessionInfo, filename string, version *int) (*artifact.Artifact, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	versions := s.artifacts[artifactPath(info, filename)]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, artifact.ErrNotFound)
	}
	versionIndex := len(versions) - 1
	if version != nil {
		versionIndex = *version
		if versionIndex < 0 || versionIndex >= len(versions) {
			return nil, fmt.Errorf("%s version %d: %w", filename, *version, artifact.ErrNotFound)
		}
	}
	return versions[versionIndex], nil
}

// Fetch implements artifact.Fetcher.
func (s *Service) Fetch(ctx context.Context, key artifact.Key) (*artifact.InlineData, error) {
	return artifact.ServiceFetcher{Service: s}.Fetch(ctx, key)
}

// ListArtifactKeys lists all the artifact filenames within a session,
// including the user namespace.
func (s *Service) ListArtifactKeys(_ context.Context, info artifact.SessionInfo) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sessionPrefix := fmt.Sprintf("%s/%s/%s/", info.AppName, info.UserID, info.SessionID)
	userPrefix := fmt.Sprintf("%s/%s/user/", info.AppName, info.UserID)

	filenames := []string{}
	for path := range s.artifacts {
		if strings.HasPrefix(path, sessionPrefix) {
			filenames = append(filenames, strings.TrimPrefix(path, sessionPrefix))
		} else if strings.HasPrefix(path, userPrefix) {
			filenames = append(filenames, strings.TrimPrefix(path, userPrefix))
		}
	}
	sort.Strings(filenames)
	return filenames, nil
}

// DeleteArtifact deletes an artifact. Deleting a missing artifact is not an error.
func (s *Service) DeleteArtifact(_ context.Context, info artifact.SessionInfo, filename string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.artifacts, artifactPath(info, filename))
	return nil
}

// ListVersions lists all versions of an artifact.
func (s *Service) ListVersions(_ context.Context, info artifact.SessionInfo, filename string) ([]int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	versions := s.artifacts[artifactPath(info, filename)]
	result := make([]int, len(versions))
	for i := range versions {
		result[i] = i
	}
	return result, nil
}

// artifactPath constructs the artifact path. Filenames prefixed with
// "user:" are shared by every session of the user.
func artifactPath(info artifact.SessionInfo, filename string) string {
	if strings.HasPrefix(filename, "user:") {
		return fmt.Sprintf("%s/%s/user/%s", info.AppName, info.UserID, filename)
	}
	return fmt.Sprintf("%s/%s/%s/%s", info.AppName, info.UserID, info.SessionID, filename)
}
