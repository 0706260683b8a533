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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-agent-console/event"
)

// Script describes what the scripted agents answer.
type Script struct {
	Apps []App `json:"apps"`
}

// App is one scripted agent.
type App struct {
	Name  string `json:"name"`
	Turns []Turn `json:"turns"`
}

// Turn is the reply to one user message. A turn matches when every set
// matcher matches; a turn without matchers matches any message. The first
// matching turn wins.
type Turn struct {
	// Match is a substring of the user's text.
	Match string `json:"match,omitempty"`
	// FunctionResponse is the name of a function response in the message.
	FunctionResponse string `json:"functionResponse,omitempty"`
	// Artifacts are saved before the frames are sent.
	Artifacts []ScriptArtifact `json:"artifacts,omitempty"`
	Frames    []*event.Frame   `json:"frames"`
}

// ScriptArtifact is an artifact saved by a turn. Data is standard base64;
// Text is used when Data is empty.
type ScriptArtifact struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Bytes decodes the artifact payload.
func (a ScriptArtifact) Bytes() ([]byte, error) {
	if a.Data == "" {
		return []byte(a.Text), nil
	}
	b, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
	}
	return b, nil
}

// ParseScript parses a YAML or JSON script. Frames use the wire field
// names in both formats.
func ParseScript(data []byte) (*Script, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	// Round trip through JSON so frames decode with their wire tags.
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	var s Script
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	for _, app := range s.Apps {
		if app.Name == "" {
			return nil, fmt.Errorf("parse script: app without name")
		}
	}
	return &s, nil
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data)
}

// App returns the named app.
func (s *Script) App(name string) (*App, bool) {
	for i := range s.Apps {
		if s.Apps[i].Name == name {
			return &s.Apps[i], true
		}
	}
	return nil, false
}

// AppNames lists the scripted apps.
func (s *Script) AppNames() []string {
	names := make([]string, 0, len(s.Apps))
	for _, a := range s.Apps {
		names = append(names, a.Name)
	}
	return names
}

func messageText(c *event.Content) string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func hasFunctionResponse(c *event.Content, name string) bool {
	for _, p := range c.Parts {
		if p != nil && p.FunctionResponse != nil && p.FunctionResponse.Name == name {
			return true
		}
	}
	return false
}

// selectTurn returns the first turn matching msg.
func (a *App) selectTurn(msg *event.Content) (*Turn, bool) {
	for i := range a.Turns {
		t := &a.Turns[i]
		if t.Match != "" && !strings.Contains(messageText(msg), t.Match) {
			continue
		}
		if t.FunctionResponse != "" && !hasFunctionResponse(msg, t.FunctionResponse) {
			continue
		}
		return t, true
	}
	return nil, false
}
