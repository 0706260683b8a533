//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONSOLE_SET", "value")
	t.Setenv("CONSOLE_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "${CONSOLE_SET}", "value"},
		{"unset", "${CONSOLE_UNSET_VAR}", ""},
		{"default when unset", "${CONSOLE_UNSET_VAR:-fallback}", "fallback"},
		{"default when empty", "${CONSOLE_EMPTY:-fallback}", "fallback"},
		{"value beats default", "${CONSOLE_SET:-fallback}", "value"},
		{"embedded", "http://${CONSOLE_SET}:8000/x", "http://value:8000/x"},
		{"plain dollar untouched", "$CONSOLE_SET", "$CONSOLE_SET"},
		{"empty default", "${CONSOLE_UNSET_VAR:-}", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandEnv(tt.input))
		})
	}
}

func TestParseOverDefaults(t *testing.T) {
	t.Setenv("CONSOLE_TEST_BUCKET", "https://b-123.cos.ap-guangzhou.myqcloud.com")
	cfg, err := Parse([]byte(`
server:
  base_url: http://agent:8000
  app: weather
  timeout: 30s
oauth:
  timeout: 2m
artifacts:
  backend: cos
  cos:
    bucket_url: ${CONSOLE_TEST_BUCKET}
    secret_id: ${CONSOLE_TEST_SECRET_ID:-id}
log:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "http://agent:8000", cfg.Server.BaseURL)
	assert.Equal(t, "weather", cfg.Server.App)
	assert.Equal(t, "user", cfg.Server.User)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout.Duration)
	assert.True(t, cfg.Run.Streaming)
	assert.Equal(t, 2*time.Minute, cfg.OAuth.Timeout.Duration)
	assert.Equal(t, "127.0.0.1:8765", cfg.OAuth.Listen)
	assert.Equal(t, "/oauth/callback", cfg.OAuth.RedirectPath)
	assert.Equal(t, BackendCOS, cfg.Artifacts.Backend)
	assert.Equal(t, "https://b-123.cos.ap-guangzhou.myqcloud.com", cfg.Artifacts.COS.BucketURL)
	assert.Equal(t, "id", cfg.Artifacts.COS.SecretID)
	assert.Equal(t, 8, cfg.Artifacts.PoolSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseStreamingOff(t *testing.T) {
	cfg, err := Parse([]byte("run:\n  streaming: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Run.Streaming)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown backend", "artifacts:\n  backend: ftp\n", "unknown artifacts.backend"},
		{"cos without bucket", "artifacts:\n  backend: cos\n", "bucket_url is required"},
		{"s3 without bucket", "artifacts:\n  backend: s3\n", "s3.bucket is required"},
		{"negative pool", "artifacts:\n  pool_size: -1\n", "pool_size"},
		{"negative frame size", "run:\n  max_frame_size: -5\n", "max_frame_size"},
		{"bad protocol", "telemetry:\n  protocol: udp\n", "telemetry.protocol"},
		{"relative redirect", "oauth:\n  redirect_path: cb\n", "redirect_path"},
		{"bad duration", "oauth:\n  timeout: soon\n", "invalid duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg, err := Parse([]byte("artifacts:\n  backend: s3\n  s3:\n    bucket: b\n"))
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Artifacts.S3.Bucket)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adkconsole.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  app: demo\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Server.App)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [\n"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestDurationYAML(t *testing.T) {
	d := Duration{90 * time.Second}
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
