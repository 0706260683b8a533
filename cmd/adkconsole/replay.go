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
	"github.com/urfave/cli/v2"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Rebuild and print a stored session's conversation",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			ctx, stop := signalContext(c.Context)
			defer stop()

			stopTelemetry, err := startTelemetry(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer stopTelemetry()

			// Replay never runs a handshake, so no callback server is needed.
			cfg.OAuth.Listen = ""
			sh, err := openShell(ctx, cfg, c.App.Writer, false)
			if err != nil {
				return err
			}
			defer sh.Close()
			if err := sh.replay(ctx); err != nil {
				return err
			}
			if pending := sh.console.Pending(); len(pending) > 0 {
				sh.out.printf("pending calls:\n")
				sh.out.pending(pending)
			}
			return nil
		},
	}
}
