// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// readBufferSize is the size of each read from the underlying stream.
const readBufferSize = 4 * 1024

// Reader pulls events from an io.Reader one at a time.
//
// Next returns io.EOF after the input ends or after the first done or error
// event has been returned. A Reader cannot be restarted.
type Reader struct {
	src   io.Reader
	dec   *Decoder
	buf   []byte
	queue []Event

	eof      bool
	terminal bool
	err      error
}

// Option configures a Reader.
type Option func(*readerOptions)

type readerOptions struct {
	logger  *slog.Logger
	onDrop  func(*DecodeError)
	bufSize int
}

// WithLogger sets the logger for dropped-frame warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *readerOptions) {
		o.logger = logger
	}
}

// WithDropCallback is called for every malformed frame the reader skips.
func WithDropCallback(fn func(*DecodeError)) Option {
	return func(o *readerOptions) {
		o.onDrop = fn
	}
}

// WithBufferSize sets the read size. Mostly useful in tests to force
// frames to straddle reads.
func WithBufferSize(n int) Option {
	return func(o *readerOptions) {
		if n > 0 {
			o.bufSize = n
		}
	}
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	o := readerOptions{bufSize: readBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{
		src: r,
		dec: NewDecoder(WithDecoderLogger(o.logger), WithDropHandler(o.onDrop)),
		buf: make([]byte, o.bufSize),
	}
}

// Dropped returns how many malformed frames were skipped.
func (r *Reader) Dropped() int {
	return r.dec.Dropped()
}

// Next returns the next event. It checks ctx between reads; cancelling the
// request that produced the body is what unblocks a pending read.
func (r *Reader) Next(ctx context.Context) (Event, error) {
	for {
		if len(r.queue) > 0 {
			ev := r.queue[0]
			r.queue = r.queue[1:]
			if ev.Terminal() {
				r.terminal = true
				r.queue = nil
			}
			return ev, nil
		}
		if r.err != nil {
			return Event{}, r.err
		}
		if r.terminal || r.eof {
			return Event{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		n, readErr := r.src.Read(r.buf)
		if n > 0 {
			events, err := r.dec.Feed(r.buf[:n])
			r.queue = append(r.queue, events...)
			if err != nil {
				r.err = err
				if len(r.queue) > 0 {
					continue
				}
				return Event{}, err
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			r.eof = true
			r.queue = append(r.queue, r.dec.Flush()...)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Event{}, ctxErr
			}
			r.err = readErr
		}
	}
}
