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
	"trpc.group/trpc-go/trpc-agent-console/log"
)

const (
	defaultRegion     = "us-east-1"
	defaultMaxRetries = 3
)

type options struct {
	bucket          string
	region          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	usePathStyle    bool
	maxRetries      int
	client          objectClient
	logger          log.Logger
}

// Option is a function that configures the S3 artifact service.
type Option func(*options)

// WithEndpoint sets a custom endpoint URL for S3-compatible services
// such as MinIO ("http://localhost:9000") or Cloudflare R2.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithRegion sets the AWS region.
// Default is "us-east-1" when a custom endpoint is set and no region is given.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithCredentials sets static credentials. Without them the default AWS
// credential chain is used.
func WithCredentials(accessKeyID, secretAccessKey string) Option {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
	}
}

// WithSessionToken sets the session token for temporary credentials (STS).
func WithSessionToken(token string) Option {
	return func(o *options) {
		o.sessionToken = token
	}
}

// WithPathStyle enables path-style addressing, required by MinIO.
//
// Path-style: http://endpoint/bucket/key
// Virtual-hosted: http://bucket.endpoint/key (default for AWS S3)
func WithPathStyle(enabled bool) Option {
	return func(o *options) {
		o.usePathStyle = enabled
	}
}

// WithRetries sets the maximum number of attempts for failed requests.
// Default is 3.
func WithRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithLogger sets the logger used for non-fatal listing problems.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// withClient injects an object client, bypassing the AWS SDK.
func withClient(c objectClient) Option {
	return func(o *options) {
		o.client = c
	}
}
