//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package log provides logging utilities for the agent console.
package log

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Default borrows logging utilities from zap.
// Replace it with any implementation of Logger.
var Default Logger = New(os.Stderr)

// ContextDefault is used by the *Context helpers. It skips one extra
// caller frame so that the reported caller is the helper's caller.
var ContextDefault Logger = newSugared(os.Stderr, 2)

// Logger defines the logging interface used throughout the console.
type Logger interface {
	// Debug logs to DEBUG log. Arguments are handled in the manner of fmt.Print.
	Debug(args ...any)
	// Debugf logs to DEBUG log. Arguments are handled in the manner of fmt.Printf.
	Debugf(format string, args ...any)
	// Info logs to INFO log. Arguments are handled in the manner of fmt.Print.
	Info(args ...any)
	// Infof logs to INFO log. Arguments are handled in the manner of fmt.Printf.
	Infof(format string, args ...any)
	// Warn logs to WARNING log. Arguments are handled in the manner of fmt.Print.
	Warn(args ...any)
	// Warnf logs to WARNING log. Arguments are handled in the manner of fmt.Printf.
	Warnf(format string, args ...any)
	// Error logs to ERROR log. Arguments are handled in the manner of fmt.Print.
	Error(args ...any)
	// Errorf logs to ERROR log. Arguments are handled in the manner of fmt.Printf.
	Errorf(format string, args ...any)
	// Fatal logs to ERROR log. Arguments are handled in the manner of fmt.Print.
	Fatal(args ...any)
	// Fatalf logs to ERROR log. Arguments are handled in the manner of fmt.Printf.
	Fatalf(format string, args ...any)
}

// New returns a zap backed Logger writing console-encoded lines to w.
// All loggers created by New share the level controlled by SetLevel.
func New(w io.Writer) Logger {
	return newSugared(w, 1)
}

// Named returns a child of l tagged with name when l is zap backed,
// and l itself otherwise.
func Named(l Logger, name string) Logger {
	if s, ok := l.(*zap.SugaredLogger); ok {
		return s.Named(name)
	}
	return l
}

func newSugared(w io.Writer, skip int) *zap.SugaredLogger {
	return zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(w),
			zapLevel,
		),
		zap.AddCaller(),
		zap.AddCallerSkip(skip),
	).Sugar()
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// SetLevel sets the log level to the specified level.
// Unknown levels fall back to info.
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		zapLevel.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	case LevelFatal:
		zapLevel.SetLevel(zapcore.FatalLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

// Debugf logs to DEBUG log. Arguments are handled in the manner of fmt.Printf.
func Debugf(format string, args ...any) {
	Default.Debugf(format, args...)
}

// Infof logs to INFO log. Arguments are handled in the manner of fmt.Printf.
func Infof(format string, args ...any) {
	Default.Infof(format, args...)
}

// Warnf logs to WARNING log. Arguments are handled in the manner of fmt.Printf.
func Warnf(format string, args ...any) {
	Default.Warnf(format, args...)
}

// Errorf logs to ERROR log. Arguments are handled in the manner of fmt.Printf.
func Errorf(format string, args ...any) {
	Default.Errorf(format, args...)
}

// Fatalf logs to ERROR log. Arguments are handled in the manner of fmt.Printf.
func Fatalf(format string, args ...any) {
	Default.Fatalf(format, args...)
}

// DebugfContext logs to DEBUG log with context and formatting.
// By default, context is ignored and logs are delegated to ContextDefault.
var DebugfContext = func(
	_ context.Context, format string, args ...any,
) {
	ContextDefault.Debugf(format, args...)
}

// InfofContext logs to INFO log with context and formatting.
var InfofContext = func(
	_ context.Context, format string, args ...any,
) {
	ContextDefault.Infof(format, args...)
}

// WarnfContext logs to WARNING log with context and formatting.
var WarnfContext = func(
	_ context.Context, format string, args ...any,
) {
	ContextDefault.Warnf(format, args...)
}

// ErrorfContext logs to ERROR log with context and formatting.
var ErrorfContext = func(
	_ context.Context, format string, args ...any,
) {
	ContextDefault.Errorf(format, args...)
}
