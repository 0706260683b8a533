//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// RepairBase64 converts URL-safe base64 to the standard alphabet and pads
// it to a multiple of four.
func RepairBase64(s string) string {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}

// DataURI builds a data URI from a mime type and standard base64 data.
func DataURI(mimeType, data string) string {
	return "data:" + mimeType + ";base64," + data
}

// NameFromMime derives a display name from a mime type, "image/png"
// becoming "image.png". Parameters after ';' are ignored.
func NameFromMime(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.Replace(strings.TrimSpace(mt), "/", ".", 1)
}

// Hydrate turns a fetched payload into the attachment for entry. The data
// is repaired and must decode as standard base64.
func Hydrate(entry DeltaEntry, in *InlineData) (Attachment, []byte, error) {
	if in == nil {
		return Attachment{}, nil, fmt.Errorf("artifact %s: empty payload", entry.Name)
	}
	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	data := RepairBase64(strings.TrimSpace(in.Data))
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Attachment{}, nil, fmt.Errorf("artifact %s: decode base64: %w", entry.Name, err)
	}
	return Attachment{
		Name:         NameFromMime(mimeType),
		MimeType:     mimeType,
		DataURI:      DataURI(mimeType, data),
		ArtifactName: entry.Name,
		Version:      entry.Version,
	}, raw, nil
}
