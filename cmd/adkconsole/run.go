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
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Send messages to an agent and print the conversation",
		ArgsUsage: "[message]",
		Description: "With a message (argument or --message) run sends it and exits. " +
			"Without one it reads messages and commands from stdin.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagMessage,
				Aliases: []string{"m"},
				Usage:   "Message to send",
			},
			&cli.BoolFlag{
				Name:  flagNoStream,
				Usage: "Request the non-streaming mode",
			},
			&cli.BoolFlag{
				Name:  flagNoBrowser,
				Usage: "Print OAuth authorization URLs instead of opening a browser",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
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

	sh, err := openShell(ctx, cfg, c.App.Writer, true)
	if err != nil {
		return err
	}
	defer sh.Close()

	text := c.String(flagMessage)
	if text == "" && c.Args().Present() {
		text = strings.Join(c.Args().Slice(), " ")
	}
	if text != "" {
		return sh.send(ctx, text)
	}
	return sh.loop(ctx, c.App.Reader)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
