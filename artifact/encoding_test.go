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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairBase64(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"YWJj", "YWJj"},
		{"YWI", "YWI="},
		{"YQ", "YQ=="},
		{"-_-_", "+/+/"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepairBase64(tt.in), tt.in)
	}
}

func TestRepairBase64_RoundTrip(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xfe, 0x3e}
	urlSafe := base64.RawURLEncoding.EncodeToString(raw)
	got, err := base64.StdEncoding.DecodeString(RepairBase64(urlSafe))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestHydrate(t *testing.T) {
	att, raw, err := Hydrate(DeltaEntry{Name: "chart", Version: 2}, &InlineData{MimeType: "image/jpeg", Data: "YWJj"})
	require.NoError(t, err)
	assert.Equal(t, []byte{97, 98, 99}, raw)
	assert.Equal(t, "image.jpeg", att.Name)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", att.DataURI)
	assert.Equal(t, "chart", att.ArtifactName)
	assert.Equal(t, 2, att.Version)
	assert.False(t, att.Pending())
}

func TestHydrate_UnpaddedURLSafe(t *testing.T) {
	att, raw, err := Hydrate(DeltaEntry{Name: "x"}, &InlineData{Data: "YWI"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), raw)
	assert.Equal(t, DefaultMimeType, att.MimeType)
	assert.Equal(t, "data:image/png;base64,YWI=", att.DataURI)
}

func TestHydrate_Invalid(t *testing.T) {
	_, _, err := Hydrate(DeltaEntry{Name: "x"}, &InlineData{Data: "!!!"})
	assert.Error(t, err)
	_, _, err = Hydrate(DeltaEntry{Name: "x"}, nil)
	assert.Error(t, err)
}

func TestNameFromMime(t *testing.T) {
	assert.Equal(t, "image.png", NameFromMime("image/png"))
	assert.Equal(t, "text.plain", NameFromMime("text/plain; charset=utf-8"))
	assert.Equal(t, "application.vnd.api+json", NameFromMime("application/vnd.api+json"))
}

func TestEntriesSorted(t *testing.T) {
	got := Entries(map[string]int{"b": 1, "a": 0, "c": 3})
	assert.Equal(t, []DeltaEntry{{"a", 0}, {"b", 1}, {"c", 3}}, got)
	assert.Nil(t, Entries(nil))
}
