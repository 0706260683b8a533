//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package s3

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
)

// Sentinel errors of the S3 artifact service.
var (
	// ErrEmptyBucket is returned when no bucket is configured.
	ErrEmptyBucket = errors.New("s3 artifact: bucket cannot be empty")

	// ErrBucketNotFound is returned when the bucket does not exist.
	ErrBucketNotFound = errors.New("s3 artifact: bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission.
	ErrAccessDenied = errors.New("s3 artifact: access denied")

	// ErrNilArtifact is returned when the artifact is nil.
	ErrNilArtifact = errors.New("s3 artifact: artifact cannot be nil")

	// ErrEmptySessionInfo is returned when required session info fields are empty.
	ErrEmptySessionInfo = errors.New("s3 artifact: session info fields cannot be empty")
)

// wrapError converts AWS SDK errors to sentinel errors while preserving
// the original error for diagnostics. Missing keys map onto
// artifact.ErrNotFound.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return errors.Join(artifact.ErrNotFound, err)
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return errors.Join(ErrBucketNotFound, err)
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "AccessDeniedException":
			return errors.Join(ErrAccessDenied, err)
		case "NoSuchKey", "NotFound":
			return errors.Join(artifact.ErrNotFound, err)
		case "NoSuchBucket":
			return errors.Join(ErrBucketNotFound, err)
		}
	}
	return err
}
