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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	info := SessionInfo{AppName: "app", UserID: "u", SessionID: "s"}
	assert.Equal(t, "app/u/s/chart.png/3", ObjectName(info, "chart.png", 3))
	assert.Equal(t, "app/u/user/user:cfg/0", ObjectName(info, "user:cfg", 0))
	assert.Equal(t, "app/u/s/chart.png/", ObjectNamePrefix(info, "chart.png"))
}

func TestParseObjectName(t *testing.T) {
	name, v, ok := ParseObjectName("app/u/s/", "app/u/s/chart.png/12")
	assert.True(t, ok)
	assert.Equal(t, "chart.png", name)
	assert.Equal(t, 12, v)

	for _, bad := range []string{"app/u/x/a/1", "app/u/s/a", "app/u/s/a/b/1", "app/u/s/a/-1", "app/u/s//1", "app/u/s/a/x"} {
		_, _, ok := ParseObjectName("app/u/s/", bad)
		assert.False(t, ok, bad)
	}
}

func TestVersions(t *testing.T) {
	assert.Equal(t, 0, NextVersion(nil))
	assert.Equal(t, 4, NextVersion([]int{1, 3, 0}))
	_, ok := LatestVersion(nil)
	assert.False(t, ok)
	latest, ok := LatestVersion([]int{1, 3, 0})
	assert.True(t, ok)
	assert.Equal(t, 3, latest)
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("a.png"))
	assert.ErrorIs(t, ValidateFilename(""), ErrInvalidFilename)
	assert.ErrorIs(t, ValidateFilename("a/b"), ErrInvalidFilename)
	assert.ErrorIs(t, ValidateFilename(`a\b`), ErrInvalidFilename)
}
