//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package s3 provides an S3-compatible artifact storage service. It works
// against AWS S3, MinIO, Cloudflare R2 and other S3-compatible stores.
//
// Objects are laid out as {app}/{user}/{session}/{filename}/{version},
// with user namespaced files ("user:" prefix) under {app}/{user}/user/.
package s3

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/log"
)

// defaultContentType is the fallback MIME type for artifacts without one.
const defaultContentType = "application/octet-stream"

var _ artifact.Service = (*Service)(nil)

// Service is an S3-compatible implementation of artifact.Service.
type Service struct {
	client objectClient
	logger log.Logger
}

// NewService creates a new S3 artifact service for bucket.
func NewService(ctx context.Context, bucket string, opts ...Option) (*Service, error) {
	o := &options{
		bucket:     bucket,
		maxRetries: defaultMaxRetries,
		logger:     log.Default,
	}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		if o.bucket == "" {
			return nil, ErrEmptyBucket
		}
		c, err := newS3Client(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		client = c
	}
	return &Service{client: client, logger: o.logger}, nil
}

// SaveArtifact stores art as the next version of filename. Concurrent
// saves of the same filename may pick the same version.
func (s *Service) SaveArtifact(ctx context.Context, info artifact.SessionInfo, filename string, art *artifact.Artifact) (int, error) {
	if err := validate(info, filename); err != nil {
		return 0, err
	}
	if art == nil {
		return 0, ErrNilArtifact
	}
	versions, err := s.ListVersions(ctx, info, filename)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}
	version := artifact.NextVersion(versions)

	contentType := art.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}
	if err := s.client.PutObject(ctx, artifact.ObjectName(info, filename, version), art.Data, contentType); err != nil {
		return 0, fmt.Errorf("upload artifact: %w", err)
	}
	return version, nil
}

// LoadArtifact downloads a version of filename, the latest when version
// is nil.
func (s *Service) LoadArtifact(ctx context.Context, info artifact.SessionInfo, filename string, version *int) (*artifact.Artifact, error) {
	if err := validate(info, filename); err != nil {
		return nil, err
	}
	var target int
	if version != nil {
		target = *version
	} else {
		versions, err := s.ListVersions(ctx, info, filename)
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		latest, ok := artifact.LatestVersion(versions)
		if !ok {
			return nil, fmt.Errorf("%s: %w", filename, artifact.ErrNotFound)
		}
		target = latest
	}

	data, contentType, err := s.client.GetObject(ctx, artifact.ObjectName(info, filename, target))
	if err != nil {
		return nil, fmt.Errorf("download artifact %s@%d: %w", filename, target, err)
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	return &artifact.Artifact{Data: data, MimeType: contentType, Name: filename}, nil
}

// ListArtifactKeys lists the session scoped and user namespaced filenames.
func (s *Service) ListArtifactKeys(ctx context.Context, info artifact.SessionInfo) ([]string, error) {
	if err := validateSessionInfo(info); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, prefix := range []string{artifact.SessionPrefix(info), artifact.UserNamespacePrefixOf(info)} {
		keys, err := s.client.ListObjects(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		for _, key := range keys {
			filename, _, ok := artifact.ParseObjectName(prefix, key)
			if !ok {
				s.logger.Debugf("s3 artifact: skip foreign object %s", key)
				continue
			}
			seen[filename] = struct{}{}
		}
	}
	filenames := make([]string, 0, len(seen))
	for filename := range seen {
		filenames = append(filenames, filename)
	}
	slices.Sort(filenames)
	return filenames, nil
}

// DeleteArtifact deletes every version of filename.
func (s *Service) DeleteArtifact(ctx context.Context, info artifact.SessionInfo, filename string) error {
	if err := validate(info, filename); err != nil {
		return err
	}
	keys, err := s.client.ListObjects(ctx, artifact.ObjectNamePrefix(info, filename))
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	if err := s.client.DeleteObjects(ctx, keys); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// ListVersions lists the stored versions of filename in ascending order.
func (s *Service) ListVersions(ctx context.Context, info artifact.SessionInfo, filename string) ([]int, error) {
	if err := validate(info, filename); err != nil {
		return nil, err
	}
	prefix := artifact.ObjectNamePrefix(info, filename)
	keys, err := s.client.ListObjects(ctx, prefix)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return []int{}, nil
		}
		return nil, err
	}
	parent := prefix[:len(prefix)-len(filename)-1]
	versions := make([]int, 0, len(keys))
	for _, key := range keys {
		if _, v, ok := artifact.ParseObjectName(parent, key); ok {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

func validate(info artifact.SessionInfo, filename string) error {
	if err := validateSessionInfo(info); err != nil {
		return err
	}
	return artifact.ValidateFilename(filename)
}

func validateSessionInfo(info artifact.SessionInfo) error {
	if info.AppName == "" || info.UserID == "" || info.SessionID == "" {
		return ErrEmptySessionInfo
	}
	return nil
}
