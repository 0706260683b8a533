//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the process wide tracer and meter used by the
// console engine. Everything defaults to noop implementations until
// telemetry/trace or telemetry/metric install real providers.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "adkconsole"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-agent-console"
	InstrumentName   = "trpc.agent.console"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// Span names.
const (
	SpanRun       = "console.run"
	SpanReplay    = "console.replay"
	SpanHydrate   = "artifact.hydrate"
	SpanAuthorize = "oauth.authorize"
)

// Attribute keys.
const (
	KeyAppName      = "console.app_name"
	KeyUserID       = "console.user_id"
	KeySessionID    = "console.session_id"
	KeyEventID      = "console.event_id"
	KeyArtifactName = "console.artifact.name"
	KeyFunctionCall = "console.function_call.id"
	KeyOutcome      = "console.outcome"
	KeyPartKind     = "console.part.kind"
	KeyErrorMessage = "error.message"
)

var (
	// TracerProvider is the provider spans are created from.
	TracerProvider trace.TracerProvider = noop.NewTracerProvider()
	// Tracer is the console tracer.
	Tracer trace.Tracer = TracerProvider.Tracer(InstrumentName)
)

// SetTracerProvider replaces the tracer provider and tracer.
func SetTracerProvider(tp trace.TracerProvider) {
	TracerProvider = tp
	Tracer = tp.Tracer(InstrumentName)
}

// StartSpan starts a span on the console tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String(KeyErrorMessage, err.Error()))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// grpcDial is a package-level variable to allow test injection of a custom dialer.
var grpcDial = grpc.NewClient

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpcDial(endpoint,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
