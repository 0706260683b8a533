//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace installs an OTLP tracer provider for the console. Spans
// around runs, replays, artifact hydrations and OAuth handshakes are
// exported once Start has been called.
package trace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
)

// Tracer is the console tracer; it is a noop tracer until Start is called.
var Tracer oteltrace.Tracer = itelemetry.Tracer

// Start initializes an OTLP tracer provider and installs it as the
// console and global provider. The returned function flushes and shuts
// it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracesEndpoint == "" && o.tracesEndpointURL == "" {
		o.tracesEndpoint = tracesEndpoint(o.protocol)
	}

	res, err := buildResource(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter *otlptrace.Exporter
	switch o.protocol {
	case itelemetry.ProtocolHTTP:
		exporter, err = newHTTPExporter(ctx, o)
	default:
		exporter, err = newGRPCExporter(ctx, o)
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	itelemetry.SetTracerProvider(tp)
	Tracer = itelemetry.Tracer

	return func() error {
		return tp.Shutdown(ctx)
	}, nil
}

func newGRPCExporter(ctx context.Context, o *options) (*otlptrace.Exporter, error) {
	endpoint := o.tracesEndpoint
	if o.tracesEndpointURL != "" {
		endpoint = strings.TrimPrefix(strings.TrimPrefix(o.tracesEndpointURL, "http://"), "https://")
	}
	conn, err := itelemetry.NewGRPCConn(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create traces connection: %w", err)
	}
	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithGRPCConn(conn)}
	if len(o.headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(o.headers))
	}
	exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return exporter, nil
}

func newHTTPExporter(ctx context.Context, o *options) (*otlptrace.Exporter, error) {
	httpOpts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if o.tracesEndpointURL != "" {
		endpoint, urlPath, err := parseEndpointURL(o.tracesEndpointURL)
		if err != nil {
			return nil, err
		}
		httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithURLPath(urlPath))
	} else {
		httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(o.tracesEndpoint))
	}
	if len(o.headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(o.headers))
	}
	exporter, err := otlptracehttp.New(ctx, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP trace exporter: %w", err)
	}
	return exporter, nil
}

// parseEndpointURL splits an endpoint URL into host:port and path. A
// missing scheme is tolerated and a missing path becomes "/".
func parseEndpointURL(raw string) (endpoint, urlPath string, err error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid endpoint url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", errors.New("invalid endpoint url: missing host")
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Host, urlPath, nil
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	switch protocol {
	case itelemetry.ProtocolHTTP:
		return "localhost:4318"
	default:
		return "localhost:4317"
	}
}

// Option configures the tracer provider.
type Option func(*options)

type options struct {
	tracesEndpoint     string
	tracesEndpointURL  string
	protocol           string
	headers            map[string]string
	serviceName        string
	serviceVersion     string
	serviceNamespace   string
	resourceAttributes []attribute.KeyValue
}

// WithEndpoint sets the collector endpoint as host:port.
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT are
// used when it is not set.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.tracesEndpoint = endpoint
	}
}

// WithEndpointURL sets the collector URL including its path. It takes
// precedence over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) {
		o.tracesEndpointURL = endpointURL
	}
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) {
		o.protocol = protocol
	}
}

// WithHeaders sets headers sent with every export.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		o.headers = headers
	}
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// WithServiceNamespace overrides the service.namespace resource attribute.
func WithServiceNamespace(namespace string) Option {
	return func(o *options) {
		o.serviceNamespace = namespace
	}
}

// WithServiceVersion overrides the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(o *options) {
		o.serviceVersion = version
	}
}

// WithResourceAttributes appends custom resource attributes.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) {
		o.resourceAttributes = append(o.resourceAttributes, attrs...)
	}
}

// buildResource merges option values, the environment and custom
// attributes; later sources win.
func buildResource(ctx context.Context, o *options) (*sdkresource.Resource, error) {
	resourceOpts := []sdkresource.Option{
		sdkresource.WithAttributes(
			semconv.ServiceNamespace(o.serviceNamespace),
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithTelemetrySDK(),
	}
	if len(o.resourceAttributes) > 0 {
		resourceOpts = append(resourceOpts, sdkresource.WithAttributes(o.resourceAttributes...))
	}
	return sdkresource.New(ctx, resourceOpts...)
}
