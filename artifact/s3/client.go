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
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// objectClient is the subset of object storage operations the service needs.
type objectClient interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) (data []byte, contentType string, err error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	DeleteObjects(ctx context.Context, keys []string) error
}

// s3API is the subset of the AWS S3 API used by s3Client.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Client implements objectClient using AWS SDK v2.
type s3Client struct {
	api    s3API
	bucket string
}

// newS3Client builds an AWS SDK client from the service options.
func newS3Client(ctx context.Context, o *options) (*s3Client, error) {
	var awsOpts []func(*config.LoadOptions) error
	if o.region != "" {
		awsOpts = append(awsOpts, config.WithRegion(o.region))
	} else if o.endpoint != "" {
		awsOpts = append(awsOpts, config.WithRegion(defaultRegion))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if o.endpoint != "" {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.endpoint)
		})
	}
	if o.usePathStyle {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.UsePathStyle = true
		})
	}
	if o.accessKeyID != "" && o.secretAccessKey != "" {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.Credentials = credentials.NewStaticCredentialsProvider(
				o.accessKeyID,
				o.secretAccessKey,
				o.sessionToken,
			)
		})
	}
	if o.maxRetries > 0 {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.RetryMaxAttempts = o.maxRetries
		})
	}
	return &s3Client{
		api:    s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: o.bucket,
	}, nil
}

// PutObject uploads an object.
func (c *s3Client) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := c.api.PutObject(ctx, input)
	return wrapError(err)
}

// GetObject downloads an object.
func (c *s3Client) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", wrapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, aws.ToString(resp.ContentType), nil
}

// ListObjects lists object keys with the given prefix.
func (c *s3Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		page, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, wrapError(err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			return keys, nil
		}
		token = page.NextContinuationToken
	}
}

// DeleteObjects deletes objects in batches of at most 1000 keys.
func (c *s3Client) DeleteObjects(ctx context.Context, keys []string) error {
	const maxBatchSize = 1000
	for i := 0; i < len(keys); i += maxBatchSize {
		batch := keys[i:min(i+maxBatchSize, len(keys))]
		ids := make([]types.ObjectIdentifier, len(batch))
		for j, key := range batch {
			ids[j] = types.ObjectIdentifier{Key: aws.String(key)}
		}
		_, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return wrapError(err)
		}
	}
	return nil
}
