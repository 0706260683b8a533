//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter and metric names.
const (
	MeterNameEngine = "trpc.agent.console.engine"

	MetricFramesDecoded         = "console.stream.frames_decoded"
	MetricPartsDropped          = "console.classifier.parts_dropped"
	MetricMessagesEmitted       = "console.conversation.messages_emitted"
	MetricArtifactHydrations    = "console.artifact.hydrations"
	MetricArtifactHydrationTime = "console.artifact.hydration.duration"
	MetricOAuthHandshakes       = "console.oauth.handshakes"
)

// Outcome attribute values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()
	EngineMeter   metric.Meter         = MeterProvider.Meter(MeterNameEngine)

	FramesDecoded         metric.Int64Counter     = noop.Int64Counter{}
	PartsDropped          metric.Int64Counter     = noop.Int64Counter{}
	MessagesEmitted       metric.Int64Counter     = noop.Int64Counter{}
	ArtifactHydrations    metric.Int64Counter     = noop.Int64Counter{}
	ArtifactHydrationTime metric.Float64Histogram = noop.Float64Histogram{}
	OAuthHandshakes       metric.Int64Counter     = noop.Int64Counter{}
)

// IncFramesDecoded counts one decoded frame.
func IncFramesDecoded(ctx context.Context) {
	FramesDecoded.Add(ctx, 1)
}

// IncPartsDropped counts one part the classifier could not type.
func IncPartsDropped(ctx context.Context) {
	PartsDropped.Add(ctx, 1)
}

// IncMessagesEmitted counts one message appended to a conversation.
func IncMessagesEmitted(ctx context.Context, kind string) {
	MessagesEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyPartKind, kind)))
}

// RecordArtifactHydration records the outcome and latency of one hydration.
func RecordArtifactHydration(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String(KeyOutcome, outcome))
	ArtifactHydrations.Add(ctx, 1, attrs)
	ArtifactHydrationTime.Record(ctx, d.Seconds(), attrs)
}

// IncOAuthHandshake counts one finished OAuth handshake.
func IncOAuthHandshake(ctx context.Context, outcome string) {
	OAuthHandshakes.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyOutcome, outcome)))
}

// Outcome maps an error onto an outcome attribute value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
