//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/artifact/cos"
	artifactinmemory "trpc.group/trpc-go/trpc-agent-console/artifact/inmemory"
	"trpc.group/trpc-go/trpc-agent-console/artifact/s3"
	"trpc.group/trpc-go/trpc-agent-console/client"
	"trpc.group/trpc-go/trpc-agent-console/config"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/oauth"
	"trpc.group/trpc-go/trpc-agent-console/stream"
	"trpc.group/trpc-go/trpc-agent-console/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-console/telemetry/trace"
)

const shutdownTimeout = 5 * time.Second

func newClient(cfg *config.Config) *client.Client {
	var opts []client.Option
	if cfg.Server.Timeout.Duration > 0 {
		// Only the wait for response headers is bounded; streams may run long.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Server.Timeout.Duration
		opts = append(opts, client.WithHTTPClient(&http.Client{Transport: transport}))
	}
	for k, v := range cfg.Server.Headers {
		opts = append(opts, client.WithHeader(k, v))
	}
	if cfg.Run.MaxFrameSize > 0 {
		opts = append(opts, client.WithDecoderOptions(stream.WithMaxFrameSize(cfg.Run.MaxFrameSize)))
	}
	return client.New(cfg.Server.BaseURL, opts...)
}

// openArtifactService opens the configured object store. It returns nil
// for the http backend, where the agent server itself serves artifacts.
func openArtifactService(ctx context.Context, cfg config.ArtifactsConfig) (artifact.Service, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendHTTP:
		return nil, nil
	case config.BackendMemory:
		return artifactinmemory.NewService(), nil
	case config.BackendCOS:
		var opts []cos.Option
		if cfg.COS.SecretID != "" {
			opts = append(opts, cos.WithSecretID(cfg.COS.SecretID))
		}
		if cfg.COS.SecretKey != "" {
			opts = append(opts, cos.WithSecretKey(cfg.COS.SecretKey))
		}
		if cfg.COS.Timeout.Duration > 0 {
			opts = append(opts, cos.WithTimeout(cfg.COS.Timeout.Duration))
		}
		svc, err := cos.NewService(cfg.COS.BucketURL, opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.BackendS3:
		opts := []s3.Option{s3.WithPathStyle(cfg.S3.PathStyle)}
		if cfg.S3.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.S3.Endpoint))
		}
		if cfg.S3.AccessKeyID != "" {
			opts = append(opts, s3.WithCredentials(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey))
		}
		if cfg.S3.SessionToken != "" {
			opts = append(opts, s3.WithSessionToken(cfg.S3.SessionToken))
		}
		if cfg.S3.Retries > 0 {
			opts = append(opts, s3.WithRetries(cfg.S3.Retries))
		}
		svc, err := s3.NewService(ctx, cfg.S3.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

// newFetcher returns where the console loads artifact bytes from.
func newFetcher(ctx context.Context, cfg *config.Config, c *client.Client) (artifact.Fetcher, error) {
	if strings.EqualFold(cfg.Artifacts.Backend, config.BackendMemory) {
		return nil, errors.New("the memory artifact backend is only available to serve")
	}
	svc, err := openArtifactService(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return c, nil
	}
	return artifact.ServiceFetcher{Service: svc}, nil
}

// callbackServer serves the OAuth redirect target.
type callbackServer struct {
	handler *oauth.CallbackHandler
	server  *http.Server
	addr    string
}

func startCallbackServer(cfg config.OAuthConfig) (*callbackServer, error) {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callbacks: %w", err)
	}
	origin := cfg.Origin
	if origin == "" {
		origin = "http://" + ln.Addr().String()
	}
	var opts []oauth.CallbackOption
	if cfg.RedirectPath != "" {
		opts = append(opts, oauth.WithRedirectPath(cfg.RedirectPath))
	}
	if cfg.CompletePath != "" {
		opts = append(opts, oauth.WithCompletePath(cfg.CompletePath))
	}
	h := oauth.NewCallbackHandler(oauth.NewMailbox(), origin, opts...)
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("oauth callback server: %v", err)
		}
	}()
	log.Infof("oauth callbacks on %s (redirect %s)", ln.Addr(), h.RedirectURI())
	return &callbackServer{handler: h, server: srv, addr: ln.Addr().String()}, nil
}

func (s *callbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// newCoordinator runs handshakes through the callback server. With
// noBrowser the authorization URL is printed to w instead of opened.
func newCoordinator(cfg config.OAuthConfig, s *callbackServer, w io.Writer) *oauth.Coordinator {
	var opener oauth.Opener = oauth.BrowserOpener{}
	if cfg.NoBrowser {
		opener = oauth.OpenerFunc(func(_ context.Context, url string) error {
			_, err := fmt.Fprintf(w, "Open this URL to authorize:\n  %s\n", url)
			return err
		})
	}
	var opts []oauth.Option
	if cfg.Timeout.Duration > 0 {
		opts = append(opts, oauth.WithTimeout(cfg.Timeout.Duration))
	}
	return oauth.NewCallbackCoordinator(opener, s.handler, opts...)
}

// startTelemetry installs OTLP trace and metric providers when enabled.
// The returned function flushes both.
func startTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	traceOpts := []trace.Option{trace.WithProtocol(cfg.Protocol)}
	metricOpts := []metric.Option{metric.WithProtocol(cfg.Protocol)}
	if cfg.Endpoint != "" {
		traceOpts = append(traceOpts, trace.WithEndpoint(cfg.Endpoint))
		metricOpts = append(metricOpts, metric.WithEndpoint(cfg.Endpoint))
	}
	if len(cfg.Headers) > 0 {
		traceOpts = append(traceOpts, trace.WithHeaders(cfg.Headers))
	}
	if cfg.ServiceName != "" {
		traceOpts = append(traceOpts, trace.WithServiceName(cfg.ServiceName))
		metricOpts = append(metricOpts, metric.WithServiceName(cfg.ServiceName))
	}

	cleanTrace, err := trace.Start(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("start tracing: %w", err)
	}
	mp, err := metric.NewMeterProvider(ctx, metricOpts...)
	if err != nil {
		_ = cleanTrace()
		return nil, fmt.Errorf("start metrics: %w", err)
	}
	if err := metric.InitMeterProvider(mp); err != nil {
		_ = cleanTrace()
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	return func() {
		if err := cleanTrace(); err != nil {
			log.Warnf("flush traces: %v", err)
		}
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Warnf("flush metrics: %v", err)
		}
	}, nil
}
