//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "custom-metric:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic-endpoint:4318")
	assert.Equal(t, "custom-metric:4318", metricsEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	assert.Equal(t, "generic-endpoint:4318", metricsEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	tests := []struct {
		protocol string
		expected string
	}{
		{"grpc", "localhost:4317"},
		{"http", "localhost:4318"},
		{"unknown", "localhost:4317"},
		{"", "localhost:4317"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, metricsEndpoint(tt.protocol), "protocol %q", tt.protocol)
	}
}

func TestNewMeterProvider(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"grpc", []Option{WithEndpoint("localhost:4317"), WithProtocol("grpc")}},
		{"http", []Option{WithEndpoint("localhost:4318"), WithProtocol("http")}},
		{"defaults", nil},
		{"empty endpoint", []Option{WithEndpoint("")}},
		{"unknown protocol", []Option{WithProtocol("invalid")}},
		{"resource attributes", []Option{
			WithServiceName("svc"),
			WithServiceNamespace("ns"),
			WithServiceVersion("1.0.0"),
			WithResourceAttributes(attribute.String("team", "console")),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := NewMeterProvider(context.Background(), tt.opts...)
			require.NoError(t, err)
			require.NotNil(t, mp)
			_ = mp.Shutdown(context.Background())
		})
	}
}

func TestOptions(t *testing.T) {
	o := &options{}
	WithEndpoint("test:4317")(o)
	WithProtocol("http")(o)
	WithResourceAttributes()(o)
	assert.Equal(t, "test:4317", o.metricsEndpoint)
	assert.Equal(t, "http", o.protocol)
	assert.Nil(t, o.resourceAttributes)

	WithResourceAttributes(attribute.String("a", "b"))(o)
	require.NotNil(t, o.resourceAttributes)
	assert.Len(t, *o.resourceAttributes, 1)
}

func restoreGlobals(t *testing.T) {
	mp := itelemetry.MeterProvider
	meter := itelemetry.EngineMeter
	frames := itelemetry.FramesDecoded
	dropped := itelemetry.PartsDropped
	emitted := itelemetry.MessagesEmitted
	hydrations := itelemetry.ArtifactHydrations
	hydrationTime := itelemetry.ArtifactHydrationTime
	handshakes := itelemetry.OAuthHandshakes
	t.Cleanup(func() {
		itelemetry.MeterProvider = mp
		itelemetry.EngineMeter = meter
		itelemetry.FramesDecoded = frames
		itelemetry.PartsDropped = dropped
		itelemetry.MessagesEmitted = emitted
		itelemetry.ArtifactHydrations = hydrations
		itelemetry.ArtifactHydrationTime = hydrationTime
		itelemetry.OAuthHandshakes = handshakes
	})
}

func TestInitMeterProviderRecordsEngineMetrics(t *testing.T) {
	restoreGlobals(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, InitMeterProvider(mp))
	assert.Equal(t, metric.MeterProvider(mp), GetMeterProvider())

	ctx := context.Background()
	itelemetry.IncFramesDecoded(ctx)
	itelemetry.IncFramesDecoded(ctx)
	itelemetry.IncPartsDropped(ctx)
	itelemetry.IncMessagesEmitted(ctx, "text")
	itelemetry.RecordArtifactHydration(ctx, itelemetry.OutcomeSuccess, 20*time.Millisecond)
	itelemetry.IncOAuthHandshake(ctx, itelemetry.Outcome(nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, itelemetry.MeterNameEngine, rm.ScopeMetrics[0].Scope.Name)

	byName := map[string]metricdata.Aggregation{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m.Data
	}
	frames, ok := byName[itelemetry.MetricFramesDecoded].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, frames.DataPoints, 1)
	assert.Equal(t, int64(2), frames.DataPoints[0].Value)

	hist, ok := byName[itelemetry.MetricArtifactHydrationTime].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	for _, name := range []string{
		itelemetry.MetricPartsDropped,
		itelemetry.MetricMessagesEmitted,
		itelemetry.MetricArtifactHydrations,
		itelemetry.MetricOAuthHandshakes,
	} {
		assert.Contains(t, byName, name)
	}
}

func TestInitMeterProviderNil(t *testing.T) {
	assert.Error(t, InitMeterProvider(nil))
}
