//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a Tencent Cloud Object Storage (COS) implementation
// of the artifact service.
//
// Objects are laid out as {app}/{user}/{session}/{filename}/{version},
// with user namespaced files ("user:" prefix) under {app}/{user}/user/.
//
// Credentials come from COS_SECRETID and COS_SECRETKEY or from
// WithSecretID and WithSecretKey:
//
//	service, err := cos.NewService("https://bucket.cos.region.myqcloud.com")
package cos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultContentType = "application/octet-stream"
)

var _ artifact.Service = (*Service)(nil)

// Service is a Tencent Cloud Object Storage implementation of artifact.Service.
type Service struct {
	cosClient *cos.Client
}

// NewService creates a COS artifact service for bucketURL.
func NewService(bucketURL string, opts ...Option) (*Service, error) {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(o)
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bucket url %q must be absolute", bucketURL)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}
	return &Service{cosClient: cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient)}, nil
}

// SaveArtifact uploads art as the next version of filename.
func (s *Service) SaveArtifact(ctx context.Context, info artifact.SessionInfo, filename string, art *artifact.Artifact) (int, error) {
	if err := artifact.ValidateFilename(filename); err != nil {
		return 0, err
	}
	if art == nil {
		return 0, fmt.Errorf("artifact %s is nil", filename)
	}
	versions, err := s.ListVersions(ctx, info, filename)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions: %w", err)
	}
	version := artifact.NextVersion(versions)

	contentType := art.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: contentType,
		},
	}
	objectName := artifact.ObjectName(info, filename, version)
	if _, err := s.cosClient.Object.Put(ctx, objectName, bytes.NewReader(art.Data), opt); err != nil {
		return 0, fmt.Errorf("failed to upload artifact: %w", err)
	}
	return version, nil
}

// LoadArtifact downloads a version of filename, the latest when version
// is nil.
func (s *Service) LoadArtifact(ctx context.Context, info artifact.SessionInfo, filename string, version *int) (*artifact.Artifact, error) {
	var target int
	if version != nil {
		target = *version
	} else {
		versions, err := s.ListVersions(ctx, info, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions: %w", err)
		}
		latest, ok := artifact.LatestVersion(versions)
		if !ok {
			return nil, fmt.Errorf("%s: %w", filename, artifact.ErrNotFound)
		}
		target = latest
	}

	resp, err := s.cosClient.Object.Get(ctx, artifact.ObjectName(info, filename, target), nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, fmt.Errorf("%s@%d: %w", filename, target, artifact.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	return &artifact.Artifact{Data: data, MimeType: contentType, Name: filename}, nil
}

// ListArtifactKeys lists the session scoped and user namespaced filenames.
func (s *Service) ListArtifactKeys(ctx context.Context, info artifact.SessionInfo) ([]string, error) {
	seen := make(map[string]struct{})
	for _, prefix := range []string{artifact.SessionPrefix(info), artifact.UserNamespacePrefixOf(info)} {
		keys, err := s.list(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}
		for _, key := range keys {
			if filename, _, ok := artifact.ParseObjectName(prefix, key); ok {
				seen[filename] = struct{}{}
			}
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
	versions, err := s.ListVersions(ctx, info, filename)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}
	for _, version := range versions {
		_, err := s.cosClient.Object.Delete(ctx, artifact.ObjectName(info, filename, version))
		if err != nil && !cos.IsNotFoundError(err) {
			return fmt.Errorf("failed to delete artifact version %d: %w", version, err)
		}
	}
	return nil
}

// ListVersions lists the stored versions of filename in ascending order.
func (s *Service) ListVersions(ctx context.Context, info artifact.SessionInfo, filename string) ([]int, error) {
	prefix := artifact.ObjectNamePrefix(info, filename)
	keys, err := s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	parent := prefix[:len(prefix)-len(filename)-1]
	versions := []int{}
	for _, key := range keys {
		if _, v, ok := artifact.ParseObjectName(parent, key); ok {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// list pages through every object name below prefix.
func (s *Service) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	opt := &cos.BucketGetOptions{Prefix: prefix}
	for {
		result, _, err := s.cosClient.Bucket.Get(ctx, opt)
		if err != nil {
			if cos.IsNotFoundError(err) {
				return keys, nil
			}
			return nil, err
		}
		for _, obj := range result.Contents {
			keys = append(keys, obj.Key)
		}
		if !result.IsTruncated || result.NextMarker == "" {
			return keys, nil
		}
		opt.Marker = result.NextMarker
	}
}
