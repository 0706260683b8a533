//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact provides the artifact data types, the store
// abstraction and the hydrator that turns artifact deltas announced by a
// frame into inline attachments.
package artifact

import (
	"slices"
	"strings"
)

// DefaultMimeType is used for placeholders until the artifact is fetched.
const DefaultMimeType = "image/png"

// Artifact represents a content artifact such as an image, video, or document.
type Artifact struct {
	// Data contains the raw bytes.
	Data []byte `json:"data,omitempty"`
	// MimeType is the IANA standard MIME type of the source data.
	MimeType string `json:"mime_type,omitempty"`
	// Name is an optional display name of the artifact.
	Name string `json:"name,omitempty"`
}

// SessionInfo contains the session information for artifact operations.
type SessionInfo struct {
	AppName   string
	UserID    string
	SessionID string
}

// Key identifies one version of one artifact.
type Key struct {
	SessionInfo
	Name    string
	Version int
}

// InlineData is an artifact payload as served over the wire. Data is
// base64 and may use the URL-safe alphabet without padding.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Payload is the response body of an artifact fetch.
type Payload struct {
	InlineData *InlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// DeltaEntry is one artifact name and version announced by a frame.
type DeltaEntry struct {
	Name    string
	Version int
}

// Entries returns the entries of an artifact delta sorted by name.
func Entries(delta map[string]int) []DeltaEntry {
	if len(delta) == 0 {
		return nil
	}
	out := make([]DeltaEntry, 0, len(delta))
	for name, v := range delta {
		out = append(out, DeltaEntry{Name: name, Version: v})
	}
	slices.SortFunc(out, func(a, b DeltaEntry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Attachment is the message payload for an artifact. A placeholder has an
// empty DataURI until hydration patches it.
type Attachment struct {
	// Name is derived from the mime type as type.subtype.
	Name         string `json:"name,omitempty"`
	MimeType     string `json:"mimeType"`
	DataURI      string `json:"dataUri,omitempty"`
	ArtifactName string `json:"artifactName"`
	Version      int    `json:"version"`
}

// Pending reports whether the attachment is still a placeholder.
func (a *Attachment) Pending() bool {
	return a.DataURI == ""
}

// NewPlaceholder returns the placeholder attachment for an entry.
func NewPlaceholder(e DeltaEntry) *Attachment {
	return &Attachment{MimeType: DefaultMimeType, ArtifactName: e.Name, Version: e.Version}
}

// Placeholder locates a placeholder message awaiting hydration.
type Placeholder struct {
	// Index is the message index of the placeholder.
	Index int
	// Generation is the conversation generation the index belongs to.
	Generation uint64
	Entry      DeltaEntry
}

// Record is appended to the artifact collection after a hydration.
type Record struct {
	Key          Key
	MessageIndex int
	Attachment   Attachment
}
