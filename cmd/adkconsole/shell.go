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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"trpc.group/trpc-go/trpc-agent-console/config"
	"trpc.group/trpc-go/trpc-agent-console/console"
	"trpc.group/trpc-go/trpc-agent-console/session"
)

const shellHelp = `Type a message to send it. Commands:
  /new                   start a new session
  /replay                rebuild the conversation from the server
  /pending               list calls waiting for you
  /respond <id> <json>   answer a waiting call
  /auth <id>             retry the authorization of a call
  /stream on|off         toggle streaming
  /quit                  exit
`

// shell is one console bound to a session plus its terminal output.
type shell struct {
	console   *console.Console
	out       *printer
	callbacks *callbackServer
}

// openShell wires a console from cfg. It creates a session when none is
// configured and createSession is set.
func openShell(ctx context.Context, cfg *config.Config, w io.Writer, createSession bool) (*shell, error) {
	key := session.Key{AppName: cfg.Server.App, UserID: cfg.Server.User, SessionID: cfg.Server.Session}
	if err := key.CheckUserKey(); err != nil {
		return nil, fmt.Errorf("app and user are required: %w", err)
	}
	if key.SessionID == "" && !createSession {
		return nil, errors.New("a session id is required (--session)")
	}

	c := newClient(cfg)
	fetcher, err := newFetcher(ctx, cfg, c)
	if err != nil {
		return nil, err
	}
	out := newPrinter(w)
	opts := []console.Option{
		console.WithStreaming(cfg.Run.Streaming),
		console.WithFetcher(fetcher),
		console.WithHandoffListener(out.handoff),
	}
	if cfg.Artifacts.PoolSize > 0 {
		opts = append(opts, console.WithHydratorPoolSize(cfg.Artifacts.PoolSize))
	}
	sh := &shell{out: out}
	if cfg.OAuth.Listen != "" {
		cb, err := startCallbackServer(cfg.OAuth)
		if err != nil {
			return nil, err
		}
		sh.callbacks = cb
		opts = append(opts, console.WithAuthorizer(newCoordinator(cfg.OAuth, cb, w)))
	}
	con, err := console.New(c, key, opts...)
	if err != nil {
		sh.Close()
		return nil, err
	}
	sh.console = con
	if key.SessionID == "" {
		sess, err := con.NewSession(ctx, nil)
		if err != nil {
			sh.Close()
			return nil, err
		}
		out.printf("session %s\n", sess.ID)
	}
	return sh, nil
}

// Close stops hydrations and the callback server.
func (s *shell) Close() {
	if s.console != nil {
		s.console.Close()
	}
	if s.callbacks != nil {
		_ = s.callbacks.Close()
	}
}

// send runs one user message and prints what it produced.
func (s *shell) send(ctx context.Context, text string) error {
	err := s.console.Run(ctx, text)
	s.settle()
	return err
}

// settle waits for hydrations and prints new messages.
func (s *shell) settle() {
	s.console.Wait()
	s.out.flush(s.console.Messages())
}

func (s *shell) replay(ctx context.Context) error {
	if err := s.console.Replay(ctx); err != nil {
		return err
	}
	s.out.reset()
	s.settle()
	return nil
}

// loop reads lines from r until EOF, /quit or ctx is done.
func (s *shell) loop(ctx context.Context, r io.Reader) error {
	s.out.printf("%s", shellHelp)
	scanner := bufio.NewScanner(r)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.out.printf("> ")
		if !scanner.Scan() {
			s.out.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := s.exec(ctx, line)
		if err != nil {
			s.out.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one shell line.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, s.send(ctx, line)
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		s.out.printf("%s", shellHelp)
	case "/new":
		sess, err := s.console.NewSession(ctx, nil)
		if err != nil {
			return false, err
		}
		s.out.reset()
		s.out.printf("session %s\n", sess.ID)
	case "/replay":
		return false, s.replay(ctx)
	case "/pending":
		s.out.pending(s.console.Pending())
	case "/auth":
		if rest == "" {
			return false, errors.New("usage: /auth <call id>")
		}
		err := s.console.Authorize(ctx, rest)
		s.settle()
		return false, err
	case "/respond":
		id, payload, _ := strings.Cut(rest, " ")
		if id == "" {
			return false, errors.New("usage: /respond <call id> <json object>")
		}
		response := map[string]any{}
		if payload = strings.TrimSpace(payload); payload != "" {
			if err := json.Unmarshal([]byte(payload), &response); err != nil {
				return false, fmt.Errorf("response must be a JSON object: %w", err)
			}
		}
		err := s.console.Respond(ctx, id, response)
		s.settle()
		return false, err
	case "/stream":
		switch rest {
		case "on":
			s.console.SetStreaming(true)
		case "off":
			s.console.SetStreaming(false)
		default:
			return false, errors.New("usage: /stream on|off")
		}
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
	return false, nil
}
