//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the adkconsole YAML configuration file. Every value
// is optional; command line flags override what the file sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Artifact backends.
const (
	BackendHTTP   = "http"
	BackendMemory = "memory"
	BackendCOS    = "cos"
	BackendS3     = "s3"
)

// Config is the whole configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Run       RunConfig       `yaml:"run"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Debug     DebugConfig     `yaml:"debug"`
}

// ServerConfig names the agent server and the session to drive.
type ServerConfig struct {
	BaseURL string            `yaml:"base_url"`
	App     string            `yaml:"app"`
	User    string            `yaml:"user"`
	Session string            `yaml:"session"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout"`
}

// RunConfig holds run defaults.
type RunConfig struct {
	Streaming    bool `yaml:"streaming"`
	MaxFrameSize int  `yaml:"max_frame_size"`
}

// OAuthConfig configures the local callback server of the handshake.
type OAuthConfig struct {
	Listen       string   `yaml:"listen"`
	Origin       string   `yaml:"origin"`
	RedirectPath string   `yaml:"redirect_path"`
	CompletePath string   `yaml:"complete_path"`
	Timeout      Duration `yaml:"timeout"`
	NoBrowser    bool     `yaml:"no_browser"`
}

// ArtifactsConfig selects where artifact bytes are fetched from.
type ArtifactsConfig struct {
	Backend  string    `yaml:"backend"`
	PoolSize int       `yaml:"pool_size"`
	COS      COSConfig `yaml:"cos"`
	S3       S3Config  `yaml:"s3"`
}

// COSConfig configures the COS backend.
type COSConfig struct {
	BucketURL string   `yaml:"bucket_url"`
	SecretID  string   `yaml:"secret_id"`
	SecretKey string   `yaml:"secret_key"`
	Timeout   Duration `yaml:"timeout"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	PathStyle       bool   `yaml:"path_style"`
	Retries         int    `yaml:"retries"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Protocol    string            `yaml:"protocol"`
	Endpoint    string            `yaml:"endpoint"`
	ServiceName string            `yaml:"service_name"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DebugConfig configures the scripted agent server of `adkconsole serve`.
type DebugConfig struct {
	Listen         string   `yaml:"listen"`
	Script         string   `yaml:"script"`
	ChunkSize      int      `yaml:"chunk_size"`
	FrameDelay     Duration `yaml:"frame_delay"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			User:    "user",
		},
		Run: RunConfig{Streaming: true},
		OAuth: OAuthConfig{
			Listen:       "127.0.0.1:8765",
			Origin:       "http://localhost:8765",
			RedirectPath: "/oauth/callback",
			CompletePath: "/oauth/complete",
			Timeout:      Duration{5 * time.Minute},
		},
		Artifacts: ArtifactsConfig{Backend: BackendHTTP, PoolSize: 8},
		Telemetry: TelemetryConfig{Protocol: "grpc"},
		Log:       LogConfig{Level: "info"},
		Debug:     DebugConfig{Listen: "127.0.0.1:8000"},
	}
}

// Load reads a YAML file, expands environment variables and unmarshals it
// over Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment variables in data and unmarshals it over
// Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Artifacts.Backend) {
	case BackendHTTP, BackendMemory:
	case BackendCOS:
		if c.Artifacts.COS.BucketURL == "" {
			errs = append(errs, errors.New("artifacts.cos.bucket_url is required for the cos backend"))
		}
	case BackendS3:
		if c.Artifacts.S3.Bucket == "" {
			errs = append(errs, errors.New("artifacts.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend))
	}
	if c.Artifacts.PoolSize < 0 {
		errs = append(errs, errors.New("artifacts.pool_size must not be negative"))
	}
	if c.Run.MaxFrameSize < 0 {
		errs = append(errs, errors.New("run.max_frame_size must not be negative"))
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry.protocol %q", c.Telemetry.Protocol))
	}
	if c.OAuth.RedirectPath != "" && !strings.HasPrefix(c.OAuth.RedirectPath, "/") {
		errs = append(errs, errors.New("oauth.redirect_path must start with /"))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML strings like "10s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
