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
	"time"

	"github.com/urfave/cli/v2"

	"trpc.group/trpc-go/trpc-agent-console/config"
	"trpc.group/trpc-go/trpc-agent-console/log"
)

const (
	flagConfig    = "config"
	flagLogLevel  = "log-level"
	flagBaseURL   = "base-url"
	flagApp       = "app"
	flagUser      = "user"
	flagSession   = "session"
	flagNoStream  = "no-stream"
	flagBackend   = "artifacts"
	flagMessage   = "message"
	flagNoBrowser = "no-browser"
	flagListen    = "listen"
	flagScript    = "script"
	flagChunkSize = "chunk-size"
	flagDelay     = "frame-delay"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
			EnvVars: []string{"ADKCONSOLE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    flagBaseURL,
			Usage:   "Agent server base URL",
			EnvVars: []string{"ADKCONSOLE_BASE_URL"},
		},
		&cli.StringFlag{
			Name:  flagApp,
			Usage: "App name",
		},
		&cli.StringFlag{
			Name:  flagUser,
			Usage: "User id",
		},
		&cli.StringFlag{
			Name:    flagSession,
			Aliases: []string{"s"},
			Usage:   "Session id",
		},
		&cli.StringFlag{
			Name:  flagBackend,
			Usage: "Artifact backend: http, memory, cos or s3",
		},
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	overrideString(c, flagLogLevel, &cfg.Log.Level)
	overrideString(c, flagBaseURL, &cfg.Server.BaseURL)
	overrideString(c, flagApp, &cfg.Server.App)
	overrideString(c, flagUser, &cfg.Server.User)
	overrideString(c, flagSession, &cfg.Server.Session)
	overrideString(c, flagBackend, &cfg.Artifacts.Backend)
	if c.IsSet(flagNoStream) {
		cfg.Run.Streaming = !c.Bool(flagNoStream)
	}
	if c.IsSet(flagNoBrowser) {
		cfg.OAuth.NoBrowser = c.Bool(flagNoBrowser)
	}
	overrideString(c, flagListen, &cfg.Debug.Listen)
	overrideString(c, flagScript, &cfg.Debug.Script)
	if c.IsSet(flagChunkSize) {
		cfg.Debug.ChunkSize = c.Int(flagChunkSize)
	}
	if c.IsSet(flagDelay) {
		cfg.Debug.FrameDelay = config.Duration{Duration: c.Duration(flagDelay)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log.Level != "" {
		log.SetLevel(cfg.Log.Level)
	}
	return cfg, nil
}

func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func durationFlag(name, usage string, value time.Duration) *cli.DurationFlag {
	return &cli.DurationFlag{Name: name, Usage: usage, Value: value}
}
