//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
)

func TestTracesEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "custom-trace:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic-endpoint:4317")
	assert.Equal(t, "custom-trace:4317", tracesEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	assert.Equal(t, "generic-endpoint:4317", tracesEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", tracesEndpoint("grpc"))
	assert.Equal(t, "localhost:4318", tracesEndpoint("http"))
}

func TestParseEndpointURL(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		endpoint  string
		urlPath   string
		wantError bool
	}{
		{"with scheme and path", "http://localhost:3000/api/public/otel", "localhost:3000", "/api/public/otel", false},
		{"without scheme", "collector:4318/otlp/v1/traces", "collector:4318", "/otlp/v1/traces", false},
		{"no path implies slash", "example.com", "example.com", "/", false},
		{"no host", "http:///missing-host", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			endpoint, path, err := parseEndpointURL(tc.in)
			if tc.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.endpoint, endpoint)
			assert.Equal(t, tc.urlPath, path)
		})
	}
}

func TestStart(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	tp := itelemetry.TracerProvider
	t.Cleanup(func() { itelemetry.SetTracerProvider(tp) })

	tests := []struct {
		name string
		opts []Option
	}{
		{"grpc default", nil},
		{"grpc endpoint", []Option{WithEndpoint("localhost:4317")}},
		{"grpc url and headers", []Option{
			WithProtocol("grpc"),
			WithEndpointURL("localhost:9999"),
			WithHeaders(map[string]string{"Authorization": "Bearer abc"}),
		}},
		{"http url and headers", []Option{
			WithProtocol("http"),
			WithEndpointURL("http://localhost:4318/custom/path"),
			WithHeaders(map[string]string{"X-Test": "yes"}),
		}},
		{"http url without scheme", []Option{
			WithProtocol("http"),
			WithEndpointURL("collector:4318/otlp/v1/traces"),
		}},
		{"http default", []Option{WithProtocol("http")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clean, err := Start(ctx, tt.opts...)
			require.NoError(t, err)
			require.NotNil(t, clean)

			_, span := Tracer.Start(ctx, itelemetry.SpanRun)
			assert.True(t, span.SpanContext().IsValid())
			span.End()
			assert.Equal(t, itelemetry.Tracer, Tracer)
			_ = clean()
		})
	}
}

func TestStartInvalidEndpointURL(t *testing.T) {
	_, err := Start(context.Background(),
		WithProtocol("http"),
		WithEndpointURL("http:///bad"),
	)
	assert.Error(t, err)
}

func TestBuildResource(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "env-service")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "team=ai,env=staging")

	o := &options{}
	WithServiceName("option-service")(o)
	WithServiceNamespace("custom-ns")(o)
	WithServiceVersion("1.2.3")(o)
	WithResourceAttributes(
		attribute.String("team", "console"),
		attribute.String("custom", "value"),
	)(o)

	res, err := buildResource(context.Background(), o)
	require.NoError(t, err)

	attrs := map[string]string{}
	iter := res.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		if kv.Value.Type() == attribute.STRING {
			attrs[string(kv.Key)] = kv.Value.AsString()
		}
	}
	assert.Equal(t, "env-service", attrs[string(semconv.ServiceNameKey)])
	assert.Equal(t, "staging", attrs["env"])
	assert.Equal(t, "console", attrs["team"])
	assert.Equal(t, "value", attrs["custom"])
	assert.Equal(t, "custom-ns", attrs[string(semconv.ServiceNamespaceKey)])
	assert.Equal(t, "1.2.3", attrs[string(semconv.ServiceVersionKey)])
}
