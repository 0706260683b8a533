//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package debug

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-agent-console/artifact"
	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/session"
	"trpc.group/trpc-go/trpc-agent-console/stream"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	script, err := LoadScript("testdata/demo.yaml")
	require.NoError(t, err)
	s := New(script, opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func createSession(t *testing.T, ts *httptest.Server) *session.Session {
	t.Helper()
	resp, err := http.Post(ts.URL+"/apps/weather/users/u1/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	require.NotEmpty(t, sess.ID)
	return &sess
}

func run(t *testing.T, ts *httptest.Server, sessionID string, msg *event.Content, streaming bool) []*event.Frame {
	t.Helper()
	body, err := json.Marshal(runRequest{
		AppName:    "weather",
		UserID:     "u1",
		SessionID:  sessionID,
		NewMessage: msg,
		Streaming:  streaming,
	})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/run_sse", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := stream.NewReader(resp.Body)
	var frames []*event.Frame
	for {
		f, err := r.Next(context.Background())
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func userText(text string) *event.Content {
	return &event.Content{Role: "user", Parts: []*event.RawPart{{Text: text}}}
}

func TestParseScript(t *testing.T) {
	script, err := LoadScript("testdata/demo.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, script.AppNames())

	app, ok := script.App("weather")
	require.True(t, ok)
	require.NotEmpty(t, app.Turns)
	assert.True(t, app.Turns[0].Frames[0].Partial)
	assert.Equal(t, "Sunny ", app.Turns[0].Frames[0].Content.Parts[0].Text)
	assert.Equal(t, []string{"auth-1"}, app.Turns[2].Frames[0].LongRunningToolIDs)

	_, err = ParseScript([]byte("apps:\n  - turns: []\n"))
	assert.Error(t, err)
	_, err = ParseScript([]byte("apps: ["))
	assert.Error(t, err)
}

func TestSelectTurn(t *testing.T) {
	script, err := LoadScript("testdata/demo.yaml")
	require.NoError(t, err)
	app, _ := script.App("weather")

	turn, ok := app.selectTurn(userText("what is the forecast?"))
	require.True(t, ok)
	assert.Equal(t, "forecast", turn.Match)

	turn, ok = app.selectTurn(&event.Content{Parts: []*event.RawPart{{
		FunctionResponse: &genai.FunctionResponse{ID: "ask-1", Name: "ask_for_approval"},
	}}})
	require.True(t, ok)
	assert.Equal(t, "ask_for_approval", turn.FunctionResponse)

	_, ok = app.selectTurn(userText("unrelated"))
	assert.False(t, ok)
}

func TestScriptArtifactBytes(t *testing.T) {
	b, err := ScriptArtifact{Name: "a", Data: "YWJj"}.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)
	b, err = ScriptArtifact{Name: "a", Text: "plain"}.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), b)
	_, err = ScriptArtifact{Name: "a", Data: "%%"}.Bytes()
	assert.Error(t, err)
}

func TestServer_ListApps(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/list-apps")
	require.NoError(t, err)
	defer resp.Body.Close()
	var apps []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apps))
	assert.Equal(t, []string{"weather"}, apps)
}

func TestServer_SessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/apps/unknown/users/u1/sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := strings.NewReader(`{"state":{"city":"Shenzhen"}}`)
	resp, err = http.Post(ts.URL+"/apps/weather/users/u1/sessions/s1", "application/json", body)
	require.NoError(t, err)
	var created session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "s1", created.ID)
	assert.Equal(t, "Shenzhen", created.State["city"])

	resp, err = http.Get(ts.URL + "/apps/weather/users/u1/sessions")
	require.NoError(t, err)
	var list []*session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/apps/weather/users/u1/sessions/s1", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/apps/weather/users/u1/sessions/s1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RunStreamingChunked(t *testing.T) {
	srv, ts := newTestServer(t, WithChunkSize(7))
	sess := createSession(t, ts)

	frames := run(t, ts, sess.ID, userText("forecast please"), true)
	require.Len(t, frames, 3)
	assert.True(t, frames[0].Partial)
	assert.Equal(t, "Sunny ", frames[0].Content.Parts[0].Text)
	assert.Equal(t, "weather", frames[2].Author)
	assert.Equal(t, map[string]int{"chart.png": 0}, frames[2].ArtifactDelta())
	for _, f := range frames {
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, frames[0].InvocationID, f.InvocationID)
	}

	stored, err := srv.Sessions().GetSession(context.Background(), session.Key{AppName: "weather", UserID: "u1", SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, stored.Events, 2, "user frame and the complete model frame")
	assert.Equal(t, event.AuthorUser, stored.Events[0].Author)
	assert.Equal(t, frames[2].ID, stored.Events[1].ID)
}

func TestServer_RunNonStreamingSkipsPartials(t *testing.T) {
	_, ts := newTestServer(t)
	sess := createSession(t, ts)

	frames := run(t, ts, sess.ID, userText("forecast"), false)
	require.Len(t, frames, 1)
	assert.Equal(t, "Sunny all week.", frames[0].Content.Parts[0].Text)
}

func TestServer_ArtifactVersionsFollowStore(t *testing.T) {
	_, ts := newTestServer(t)
	sess := createSession(t, ts)

	run(t, ts, sess.ID, userText("forecast"), false)
	frames := run(t, ts, sess.ID, userText("forecast"), false)
	require.Len(t, frames, 1)
	assert.Equal(t, map[string]int{"chart.png": 1}, frames[0].ArtifactDelta())

	base := ts.URL + "/apps/weather/users/u1/sessions/" + sess.ID + "/artifacts"
	resp, err := http.Get(base + "/chart.png/versions/1")
	require.NoError(t, err)
	var payload artifact.Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.NotNil(t, payload.InlineData)
	assert.Equal(t, "image/png", payload.InlineData.MimeType)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString([]byte("abc")), payload.InlineData.Data)

	resp, err = http.Get(base + "/chart.png/versions")
	require.NoError(t, err)
	var versions []int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&versions))
	resp.Body.Close()
	assert.Equal(t, []int{0, 1}, versions)

	resp, err = http.Get(base)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	resp.Body.Close()
	assert.Equal(t, []string{"chart.png"}, names)

	resp, err = http.Get(base + "/chart.png/versions/7")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(base + "/chart.png/versions/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_NoScriptedTurn(t *testing.T) {
	_, ts := newTestServer(t)
	sess := createSession(t, ts)

	frames := run(t, ts, sess.ID, userText("tell me a joke"), true)
	require.Len(t, frames, 1)
	assert.Equal(t, ErrorCodeNoTurn, frames[0].ErrorCode)
	assert.NotEmpty(t, frames[0].ErrorMessage)
}

func TestServer_RunRejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/run_sse", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/run_sse", "application/json",
		strings.NewReader(`{"appName":"weather","userId":"u1","sessionId":"s1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/run_sse", "application/json",
		strings.NewReader(`{"appName":"weather","userId":"u1","sessionId":"missing","newMessage":{"parts":[{"text":"hi"}]}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	_, ts := newTestServer(t, WithAllowedOrigins("http://localhost:4200"))
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/list-apps", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:4200", resp.Header.Get("Access-Control-Allow-Origin"))
}
