//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trpc.group/trpc-go/trpc-agent-console/event"
	itelemetry "trpc.group/trpc-go/trpc-agent-console/internal/telemetry"
)

const defaultReadSize = 32 << 10

// Reader pulls frames out of a streaming response body. It is a strictly
// sequential single consumer.
type Reader struct {
	src     io.Reader
	dec     *Decoder
	buf     []byte
	queue   []*event.Frame
	done    bool
	doneErr error
}

// NewReader wraps src. Decoder options are forwarded to the underlying Decoder.
func NewReader(src io.Reader, opts ...DecoderOption) *Reader {
	return &Reader{
		src: src,
		dec: NewDecoder(opts...),
		buf: make([]byte, defaultReadSize),
	}
}

// Next returns the next frame. It returns io.EOF once the stream has
// closed cleanly, a decode error for terminal decode failures and the
// wrapped transport error otherwise. Frames decoded before a failure are
// still returned first.
func (r *Reader) Next(ctx context.Context) (*event.Frame, error) {
	for {
		if len(r.queue) > 0 {
			f := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]
			itelemetry.IncFramesDecoded(ctx)
			return f, nil
		}
		if r.done {
			return nil, r.doneErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := r.src.Read(r.buf)
		if n > 0 {
			frames, err := r.dec.Feed(r.buf[:n])
			r.queue = append(r.queue, frames...)
			if err != nil {
				r.finish(err)
				continue
			}
		}
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			if err := r.dec.Close(); err != nil {
				r.finish(err)
			} else {
				r.finish(io.EOF)
			}
		default:
			r.finish(fmt.Errorf("stream: read: %w", readErr))
		}
	}
}

func (r *Reader) finish(err error) {
	r.done = true
	r.doneErr = err
}
