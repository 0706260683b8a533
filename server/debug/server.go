//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package debug provides a scripted agent server speaking the ADK Web
// API. It replays scripted frames over server-sent events, keeps sessions
// and serves artifacts, which makes it a stand-in agent for the console.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	artifactinmemory "trpc.group/trpc-go/trpc-agent-console/artifact/inmemory"
	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/log"
	"trpc.group/trpc-go/trpc-agent-console/session"
	sessioninmemory "trpc.group/trpc-go/trpc-agent-console/session/inmemory"
)

// Server exposes the ADK Web endpoints the console uses.
type Server struct {
	script  *Script
	router  *mux.Router
	handler http.Handler

	sessionSvc  session.Service
	artifactSvc artifact.Service
	chunkSize   int
	frameDelay  time.Duration
	origins     []string
}

// Option configures the Server instance.
type Option func(*Server)

// WithSessionService allows providing a custom session storage backend.
// If omitted, an in-memory implementation is used.
func WithSessionService(svc session.Service) Option {
	return func(s *Server) { s.sessionSvc = svc }
}

// WithArtifactService allows providing a custom artifact storage backend.
// If omitted, an in-memory implementation is used.
func WithArtifactService(svc artifact.Service) Option {
	return func(s *Server) { s.artifactSvc = svc }
}

// WithChunkSize splits every SSE message into writes of at most n bytes,
// flushing after each, so clients see frames split across reads.
func WithChunkSize(n int) Option {
	return func(s *Server) { s.chunkSize = n }
}

// WithFrameDelay pauses between frames.
func WithFrameDelay(d time.Duration) Option {
	return func(s *Server) { s.frameDelay = d }
}

// WithAllowedOrigins restricts CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates a scripted server.
func New(script *Script, opts ...Option) *Server {
	s := &Server{
		script:      script,
		router:      mux.NewRouter(),
		sessionSvc:  sessioninmemory.NewSessionService(),
		artifactSvc: artifactinmemory.NewService(),
		origins:     []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	// Add CORS middleware for ADK Web compatibility.
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.registerRoutes()
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Sessions returns the session backend.
func (s *Server) Sessions() session.Service { return s.sessionSvc }

// Artifacts returns the artifact backend.
func (s *Server) Artifacts() artifact.Service { return s.artifactSvc }

// ErrorCodeNoTurn is the error code of the frame sent when no scripted
// turn matches the user message.
const ErrorCodeNoTurn = "NO_SCRIPTED_TURN"

const (
	sessionsRoute = "/apps/{appName}/users/{userId}/sessions"
	sessionRoute  = sessionsRoute + "/{sessionId}"
	artifactRoute = sessionRoute + "/artifacts/{artifactName}"
)

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/list-apps", s.handleListApps).Methods(http.MethodGet)

	s.router.HandleFunc(sessionsRoute, s.handleListSessions).Methods(http.MethodGet)
	s.router.HandleFunc(sessionsRoute, s.handleCreateSession).Methods(http.MethodPost)
	s.router.HandleFunc(sessionRoute, s.handleGetSession).Methods(http.MethodGet)
	s.router.HandleFunc(sessionRoute, s.handleCreateSession).Methods(http.MethodPost)
	s.router.HandleFunc(sessionRoute, s.handleDeleteSession).Methods(http.MethodDelete)

	s.router.HandleFunc(sessionRoute+"/artifacts", s.handleListArtifacts).Methods(http.MethodGet)
	s.router.HandleFunc(artifactRoute, s.handleLoadArtifact).Methods(http.MethodGet)
	s.router.HandleFunc(artifactRoute+"/versions", s.handleListArtifactVersions).Methods(http.MethodGet)
	s.router.HandleFunc(artifactRoute+"/versions/{versionId}", s.handleLoadArtifact).Methods(http.MethodGet)

	s.router.HandleFunc("/run_sse", s.handleRunSSE).Methods(http.MethodPost)
}

func sessionKey(r *http.Request) session.Key {
	vars := mux.Vars(r)
	return session.Key{AppName: vars["appName"], UserID: vars["userId"], SessionID: vars["sessionId"]}
}

func artifactSession(r *http.Request) artifact.SessionInfo {
	k := sessionKey(r)
	return artifact.SessionInfo{AppName: k.AppName, UserID: k.UserID, SessionID: k.SessionID}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("debug: write response: %v", err)
	}
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	log.Debugf("handleListApps called: path=%s", r.URL.Path)
	s.writeJSON(w, s.script.AppNames())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	k := sessionKey(r)
	sessions, err := s.sessionSvc.ListSessions(r.Context(), k.AppName, k.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	s.writeJSON(w, sessions)
}

type createSessionRequest struct {
	State map[string]any `json:"state,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	k := sessionKey(r)
	if _, ok := s.script.App(k.AppName); !ok {
		http.Error(w, fmt.Sprintf("app %q not found", k.AppName), http.StatusNotFound)
		return
	}
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	sess, err := s.sessionSvc.CreateSession(r.Context(), k, req.State)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionSvc.GetSession(r.Context(), sessionKey(r))
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessionSvc.DeleteSession(r.Context(), sessionKey(r)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	names, err := s.artifactSvc.ListArtifactKeys(r.Context(), artifactSession(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, names)
}

func (s *Server) handleListArtifactVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.artifactSvc.ListVersions(r.Context(), artifactSession(r), mux.Vars(r)["artifactName"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, versions)
}

func (s *Server) handleLoadArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	raw := vars["versionId"]
	if raw == "" {
		raw = r.URL.Query().Get("version")
	}
	var version *int
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid version", http.StatusBadRequest)
			return
		}
		version = &v
	}
	art, err := s.artifactSvc.LoadArtifact(r.Context(), artifactSession(r), vars["artifactName"], version)
	if errors.Is(err, artifact.ErrNotFound) || (err == nil && art == nil) {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, artifact.Payload{InlineData: artifact.Encode(art)})
}

// runRequest mirrors the console's run request.
type runRequest struct {
	AppName             string         `json:"appName"`
	UserID              string         `json:"userId"`
	SessionID           string         `json:"sessionId"`
	NewMessage          *event.Content `json:"newMessage"`
	Streaming           bool           `json:"streaming"`
	FunctionCallEventID string         `json:"functionCallEventId,omitempty"`
	StateDelta          map[string]any `json:"stateDelta,omitempty"`
}

func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleRunSSE called: path=%s", r.URL.Path)

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.NewMessage == nil {
		http.Error(w, "newMessage is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	app, ok := s.script.App(req.AppName)
	if !ok {
		http.Error(w, fmt.Sprintf("app %q not found", req.AppName), http.StatusNotFound)
		return
	}
	ctx := r.Context()
	key := session.Key{AppName: req.AppName, UserID: req.UserID, SessionID: req.SessionID}
	if _, err := s.sessionSvc.GetSession(ctx, key); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	invocationID := "e-" + uuid.New().String()
	userFrame := &event.Frame{
		ID:           uuid.New().String(),
		InvocationID: invocationID,
		Author:       event.AuthorUser,
		Timestamp:    now(),
		Content:      req.NewMessage,
	}
	if len(req.StateDelta) > 0 {
		userFrame.Actions = &event.Actions{StateDelta: req.StateDelta}
	}
	if err := s.sessionSvc.AppendEvent(ctx, key, userFrame); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	turn, ok := app.selectTurn(req.NewMessage)
	if !ok {
		err := s.emit(ctx, w, flusher, key, &event.Frame{
			ID:           uuid.New().String(),
			InvocationID: invocationID,
			Author:       app.Name,
			Timestamp:    now(),
			ErrorCode:    ErrorCodeNoTurn,
			ErrorMessage: "no scripted turn matches the message",
		})
		if err != nil {
			log.Warnf("debug: write error frame: %v", err)
		}
		return
	}

	versions, err := s.saveArtifacts(ctx, key, turn.Artifacts)
	if err != nil {
		log.Errorf("debug: save artifacts: %v", err)
	}
	for i, tmpl := range turn.Frames {
		f, err := cloneFrame(tmpl)
		if err != nil {
			log.Errorf("debug: clone frame %d: %v", i, err)
			continue
		}
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if f.Author == "" {
			f.Author = app.Name
		}
		f.InvocationID = invocationID
		f.Timestamp = now()
		if delta := f.ArtifactDelta(); delta != nil {
			for name := range delta {
				if v, ok := versions[name]; ok {
					delta[name] = v
				}
			}
		}
		if !req.Streaming && f.Partial {
			continue
		}
		if err := s.emit(ctx, w, flusher, key, f); err != nil {
			log.Warnf("debug: stream aborted: %v", err)
			return
		}
		if s.frameDelay > 0 && i < len(turn.Frames)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.frameDelay):
			}
		}
	}
	log.Infof("handleRunSSE finished for session %s", req.SessionID)
}

func (s *Server) saveArtifacts(ctx context.Context, key session.Key, arts []ScriptArtifact) (map[string]int, error) {
	versions := make(map[string]int, len(arts))
	info := artifact.SessionInfo{AppName: key.AppName, UserID: key.UserID, SessionID: key.SessionID}
	for _, a := range arts {
		data, err := a.Bytes()
		if err != nil {
			return versions, err
		}
		v, err := s.artifactSvc.SaveArtifact(ctx, info, a.Name, &artifact.Artifact{
			Data:     data,
			MimeType: a.MimeType,
			Name:     a.Name,
		})
		if err != nil {
			return versions, err
		}
		versions[a.Name] = v
	}
	return versions, nil
}

// emit writes one SSE message and records complete frames in the session.
func (s *Server) emit(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, key session.Key, f *event.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	msg := make([]byte, 0, len(data)+8)
	msg = append(msg, "data: "...)
	msg = append(msg, data...)
	msg = append(msg, '\n', '\n')

	step := s.chunkSize
	if step <= 0 {
		step = len(msg)
	}
	for start := 0; start < len(msg); start += step {
		end := min(start+step, len(msg))
		if _, err := w.Write(msg[start:end]); err != nil {
			return err
		}
		flusher.Flush()
	}
	if !f.Partial {
		if err := s.sessionSvc.AppendEvent(ctx, key, f); err != nil {
			log.Warnf("debug: append event %s: %v", f.ID, err)
		}
	}
	return nil
}

func cloneFrame(f *event.Frame) (*event.Frame, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var out event.Frame
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
