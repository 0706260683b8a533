//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package stream decodes the chunked `data: <json>` event stream served by
// an agent's run endpoint into frames.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"trpc.group/trpc-go/trpc-agent-console/event"
	"trpc.group/trpc-go/trpc-agent-console/log"
)

const (
	// DefaultMaxFrameSize bounds the bytes retained for one incomplete frame.
	DefaultMaxFrameSize = 16 << 20

	dataPrefix = "data:"
)

var (
	// ErrFrameTooLarge is returned when an incomplete frame outgrows the
	// configured maximum frame size.
	ErrFrameTooLarge = errors.New("stream: frame exceeds maximum size")
	// ErrIncompleteFrame is returned when the stream ends while a frame is
	// still awaiting completion.
	ErrIncompleteFrame = errors.New("stream: stream closed with incomplete frame")
	// ErrMalformedFrame is returned when a data payload can never become a
	// frame, however many bytes follow it.
	ErrMalformedFrame = errors.New("stream: malformed frame")
)

type state int

const (
	stateReady state = iota
	stateAwaiting
	stateFailed
)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxFrameSize sets the retention limit for incomplete frames.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrameSize = n
		}
	}
}

// Decoder is a push style frame decoder. Chunks are fed in arrival order;
// each Feed returns the frames completed by that chunk.
//
// A data payload that is a truncated JSON object puts the decoder in the
// awaiting state: the payload is retained and later data payloads are
// appended to it until the combined bytes parse. A later payload that is a
// complete frame on its own supersedes the retained bytes. Payloads that are
// valid JSON but not objects are dropped; payloads that no continuation can
// repair fail the decoder with ErrMalformedFrame. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	maxFrameSize int
	state        state
	err          error
	// line holds bytes of the current unterminated line.
	line []byte
	// pending holds the retained payload while awaiting completion.
	pending []byte
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{maxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Awaiting reports whether the decoder holds an incomplete frame.
func (d *Decoder) Awaiting() bool {
	return d.state == stateAwaiting
}

// Feed appends chunk to the carry-over buffer and returns every frame it
// completes. After a terminal error every call returns that error.
func (d *Decoder) Feed(chunk []byte) ([]*event.Frame, error) {
	if d.state == stateFailed {
		return nil, d.err
	}
	d.line = append(d.line, chunk...)

	var frames []*event.Frame
	for {
		i := bytes.IndexByte(d.line, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(d.line[:i], []byte{'\r'})
		f, err := d.consume(line)
		d.line = d.line[i+1:]
		if err != nil {
			return frames, d.fail(err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}

	// A complete object may arrive before its line terminator.
	if f := d.tryTrailing(); f != nil {
		frames = append(frames, f)
	}
	if len(d.pending)+len(d.line) > d.maxFrameSize {
		return frames, d.fail(fmt.Errorf("%w: %d bytes retained", ErrFrameTooLarge, len(d.pending)+len(d.line)))
	}
	return frames, nil
}

// Close ends the stream. It returns ErrIncompleteFrame when a frame is
// still awaiting completion or an unterminated data line never parsed.
func (d *Decoder) Close() error {
	if d.state == stateFailed {
		return d.err
	}
	if payload, ok := dataPayload(d.line); ok && len(bytes.TrimSpace(payload)) > 0 {
		return d.fail(fmt.Errorf("%w: %d bytes in unterminated line", ErrIncompleteFrame, len(d.line)))
	}
	if d.state == stateAwaiting {
		return d.fail(fmt.Errorf("%w: %d bytes retained", ErrIncompleteFrame, len(d.pending)))
	}
	d.line = nil
	return nil
}

// consume handles one complete line.
func (d *Decoder) consume(line []byte) (*event.Frame, error) {
	payload, ok := dataPayload(line)
	if !ok || len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	if d.state != stateAwaiting {
		// payload aliases the line buffer.
		return d.settle(payload, true)
	}
	if f, res, _ := parseFrame(payload); res == parseOK {
		d.supersede()
		return f, nil
	}
	return d.settle(append(d.pending, payload...), false)
}

// settle parses candidate and updates the awaiting state from the result.
func (d *Decoder) settle(candidate []byte, aliased bool) (*event.Frame, error) {
	f, res, err := parseFrame(candidate)
	switch res {
	case parseOK:
		d.pending = nil
		d.state = stateReady
		return f, nil
	case parseNonObject:
		log.Warnf("stream: dropping non-object data payload (%d bytes)", len(candidate))
		return nil, nil
	case parseMalformed:
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(candidate) > d.maxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes retained", ErrFrameTooLarge, len(candidate))
	}
	if d.state != stateAwaiting {
		log.Debugf("stream: awaiting completion of partial frame (%d bytes)", len(candidate))
	}
	if aliased {
		candidate = append([]byte(nil), candidate...)
	}
	d.pending = candidate
	d.state = stateAwaiting
	return nil, nil
}

// supersede drops the retained bytes in favour of a complete frame.
func (d *Decoder) supersede() {
	log.Warnf("stream: discarding %d bytes of incomplete frame superseded by a complete frame", len(d.pending))
	d.pending = nil
	d.state = stateReady
}

// tryTrailing eagerly parses the unterminated line without consuming it
// unless the parse succeeds.
func (d *Decoder) tryTrailing() *event.Frame {
	payload, ok := dataPayload(d.line)
	if !ok {
		return nil
	}
	if !bytes.HasSuffix(bytes.TrimSpace(payload), []byte{'}'}) {
		return nil
	}
	if d.state == stateAwaiting {
		if f, res, _ := parseFrame(payload); res == parseOK {
			d.line = nil
			d.supersede()
			return f
		}
		payload = append(append([]byte(nil), d.pending...), payload...)
	}
	f, res, _ := parseFrame(payload)
	if res != parseOK {
		return nil
	}
	d.line = nil
	d.pending = nil
	d.state = stateReady
	return f
}

func (d *Decoder) fail(err error) error {
	d.state = stateFailed
	d.err = err
	d.line = nil
	d.pending = nil
	return err
}

// dataPayload strips the data prefix and one optional space.
func dataPayload(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	payload := line[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	return payload, true
}

type parseResult int

const (
	parseOK parseResult = iota
	// parseIncomplete marks a truncated JSON object.
	parseIncomplete
	// parseNonObject marks valid JSON that is not an object.
	parseNonObject
	// parseMalformed marks bytes no continuation can turn into a frame.
	parseMalformed
)

func parseFrame(b []byte) (*event.Frame, parseResult, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, parseIncomplete, nil
	}
	if trimmed[0] != '{' {
		if json.Valid(trimmed) {
			return nil, parseNonObject, nil
		}
		return nil, parseMalformed, errors.New("payload is not a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var f event.Frame
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, parseIncomplete, nil
		}
		return nil, parseMalformed, err
	}
	if dec.InputOffset() != int64(len(trimmed)) {
		return nil, parseMalformed, fmt.Errorf("unexpected data after object at offset %d", dec.InputOffset())
	}
	return &f, parseOK, nil
}
