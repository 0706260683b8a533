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
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"trpc.group/trpc-go/trpc-agent-console/config"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/server/debug"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve scripted agents over the ADK Web protocol",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagListen,
				Usage: "Listen address",
			},
			&cli.StringFlag{
				Name:  flagScript,
				Usage: "Path to a YAML or JSON agent script",
			},
			&cli.IntFlag{
				Name:  flagChunkSize,
				Usage: "Split SSE writes into chunks of at most this many bytes",
			},
			durationFlag(flagDelay, "Pause between frames", 0),
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			if cfg.Debug.Script == "" {
				return cli.Exit("a script is required (--script or debug.script)", 2)
			}
			ctx, stop := signalContext(c.Context)
			defer stop()

			stopTelemetry, err := startTelemetry(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer stopTelemetry()

			srv, err := newDebugServer(ctx, cfg)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Debug.Listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "serving %v on http://%s\n", srv.script.AppNames(), ln.Addr())
			return serveUntilDone(ctx, &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}, ln)
		},
	}
}

type debugServer struct {
	*debug.Server
	script *debug.Script
}

func newDebugServer(ctx context.Context, cfg *config.Config) (*debugServer, error) {
	script, err := debug.LoadScript(cfg.Debug.Script)
	if err != nil {
		return nil, err
	}
	opts := []debug.Option{
		debug.WithChunkSize(cfg.Debug.ChunkSize),
		debug.WithFrameDelay(cfg.Debug.FrameDelay.Duration),
	}
	if len(cfg.Debug.AllowedOrigins) > 0 {
		opts = append(opts, debug.WithAllowedOrigins(cfg.Debug.AllowedOrigins...))
	}
	svc, err := openArtifactService(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	if svc != nil {
		opts = append(opts, debug.WithArtifactService(svc))
	}
	return &debugServer{Server: debug.New(script, opts...), script: script}, nil
}

// serveUntilDone serves on ln and shuts srv down once ctx is done.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
