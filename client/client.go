//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package client talks to an agent server over the ADK Web REST API: it
// starts runs over server-sent events and fetches sessions and artifacts.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/session"
	"trpc.group/trpc-go/trpc-agent-console/stream"
)

// ErrStatus matches every *StatusError.
var ErrStatus = errors.New("client: unexpected status")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// RunRequest is the body of POST /run_sse.
type RunRequest struct {
	AppName             string         `json:"appName"`
	UserID              string         `json:"userId"`
	SessionID           string         `json:"sessionId"`
	NewMessage          *genai.Content `json:"newMessage"`
	Streaming           bool           `json:"streaming"`
	FunctionCallEventID string         `json:"functionCallEventId,omitempty"`
	StateDelta          map[string]any `json:"stateDelta,omitempty"`
}

const maxErrorBody = 4 << 10

type options struct {
	httpClient     *http.Client
	headers        http.Header
	decoderOptions []stream.DecoderOption
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithDecoderOptions forwards options to the run stream decoder.
func WithDecoderOptions(opts ...stream.DecoderOption) Option {
	return func(o *options) {
		o.decoderOptions = append(o.decoderOptions, opts...)
	}
}

// Client is an ADK Web API client. It implements artifact.Fetcher and
// session.Store.
type Client struct {
	baseURL string
	opts    options
}

var (
	_ artifact.Fetcher = (*Client)(nil)
	_ session.Store    = (*Client)(nil)
)

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	o := options{httpClient: http.DefaultClient, headers: make(http.Header)}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), opts: o}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RunStream is the event stream of one run.
type RunStream struct {
	*stream.Reader
	body io.ReadCloser
}

// Close releases the response body.
func (s *RunStream) Close() error {
	return s.body.Close()
}

// Run starts a run and returns its event stream. The caller must Close it.
func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal run request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/run_sse", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	log.Debugf("client: run started for session %s", req.SessionID)
	return &RunStream{Reader: stream.NewReader(resp.Body, c.opts.decoderOptions...), body: resp.Body}, nil
}

// ListApps returns the app names served.
func (c *Client) ListApps(ctx context.Context) ([]string, error) {
	var apps []string
	if err := c.getJSON(ctx, "/list-apps", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// CreateSession creates a session with an optional initial state.
func (c *Client) CreateSession(ctx context.Context, appName, userID string, state map[string]any) (*session.Session, error) {
	var body io.Reader = http.NoBody
	if state != nil {
		b, err := json.Marshal(map[string]any{"state": state})
		if err != nil {
			return nil, fmt.Errorf("marshal session state: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, http.MethodPost, sessionsPath(appName, userID), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var sess session.Session
	if err := c.doJSON(req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions lists the sessions of a user.
func (c *Client) ListSessions(ctx context.Context, appName, userID string) ([]*session.Session, error) {
	var out []*session.Session
	if err := c.getJSON(ctx, sessionsPath(appName, userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession implements session.Store.
func (c *Client) GetSession(ctx context.Context, key session.Key) (*session.Session, error) {
	var sess session.Session
	err := c.getJSON(ctx, sessionsPath(key.AppName, key.UserID)+"/"+url.PathEscape(key.SessionID), &sess)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %w", session.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Fetch implements artifact.Fetcher.
func (c *Client) Fetch(ctx context.Context, key artifact.Key) (*artifact.InlineData, error) {
	p := fmt.Sprintf("%s/%s/artifacts/%s/versions/%s",
		sessionsPath(key.AppName, key.UserID), url.PathEscape(key.SessionID),
		url.PathEscape(key.Name), strconv.Itoa(key.Version))
	var payload artifact.Payload
	err := c.getJSON(ctx, p, &payload)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %w", artifact.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if payload.InlineData != nil {
		return payload.InlineData, nil
	}
	if payload.Text != "" {
		return &artifact.InlineData{
			MimeType: "text/plain",
			Data:     base64.StdEncoding.EncodeToString([]byte(payload.Text)),
		}, nil
	}
	return nil, fmt.Errorf("artifact %s@%d: empty payload", key.Name, key.Version)
}

func sessionsPath(appName, userID string) string {
	return "/apps/" + url.PathEscape(appName) + "/users/" + url.PathEscape(userID) + "/sessions"
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range c.opts.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// do sends req and returns the response for 2xx statuses.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}
