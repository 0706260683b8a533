//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command adkconsole drives agents served over the ADK Web protocol from
// the terminal.
//
// Usage:
//
//	adkconsole [--config adkconsole.yaml] <command> [options]
//
// Commands:
//
//	run     send messages and print the reconstructed conversation
//	replay  rebuild a stored session's conversation
//	serve   serve scripted agents for local testing
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "adkconsole",
		Usage:          "Terminal console for ADK Web agent servers",
		Version:        itelemetry.ServiceVersion,
		Flags:          globalFlags(),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			runCommand(),
			replayCommand(),
			serveCommand(),
		},
	}
}

// exitErrHandler prints err and exits, keeping the code of cli.Exit errors.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitCoder.Error(); msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
