// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/campusgpt-tui/internal/model"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

// DataPrefix marks a line carrying a JSON frame. The match is exact:
// "data:" without the space is not a frame.
const DataPrefix = "data: "

// MaxLineSize bounds a single unterminated line (1 MiB).
const MaxLineSize = 1 << 20

// ErrLineTooLong is returned when a line grows past MaxLineSize without a
// newline.
var ErrLineTooLong = errors.New("stream: line exceeds maximum size")

// DecodeError describes a prefixed line that could not be turned into an
// event. It is logged and the line is skipped.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	line := e.Line
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return fmt.Sprintf("stream: malformed frame %q: %v", line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	errUnknownType = errors.New("unknown frame type")
	errMissingData = errors.New("missing data field")
)

// frame is the wire shape of one "data: " payload.
type frame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns arbitrary byte chunks into events.
//
// It keeps two buffers between calls: undecoded trailing bytes of a split
// UTF-8 sequence, and the partial line after the last newline. A Decoder is
// not safe for concurrent use.
type Decoder struct {
	utf8    *encoding.Decoder
	carry   []byte
	pending []byte

	logger  *slog.Logger
	onDrop  func(*DecodeError)
	dropped int

	// finished is set once a terminal event has been emitted.
	finished bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger used to report dropped frames.
func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDropHandler registers a callback for every skipped malformed frame.
func WithDropHandler(fn func(*DecodeError)) DecoderOption {
	return func(d *Decoder) {
		d.onDrop = fn
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		utf8:   unicode.UTF8.NewDecoder(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dropped returns the number of malformed frames skipped so far.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Finished reports whether a done or error event has been emitted.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Feed decodes chunk and returns the events completed by it, in order.
// Events after a terminal event are discarded.
func (d *Decoder) Feed(chunk []byte) ([]Event, error) {
	if d.finished {
		return nil, nil
	}

	text, err := d.decodeUTF8(chunk, false)
	if err != nil {
		return nil, err
	}
	d.pending = append(d.pending, text...)

	events := d.drainLines()

	if len(d.pending) > MaxLineSize {
		return events, ErrLineTooLong
	}
	return events, nil
}

// Flush processes whatever remains at end of input: incomplete UTF-8 bytes
// become U+FFFD and an unterminated final line is handled as a full line.
func (d *Decoder) Flush() []Event {
	if d.finished {
		return nil
	}

	// Invalid input cannot fail at EOF: the decoder substitutes U+FFFD.
	text, _ := d.decodeUTF8(nil, true)
	d.pending = append(d.pending, text...)

	events := d.drainLines()
	if len(d.pending) > 0 && !d.finished {
		line := string(d.pending)
		d.pending = d.pending[:0]
		if ev, ok := d.parseLine(line); ok {
			events = append(events, ev)
		}
	}
	d.pending = nil
	return events
}

// drainLines extracts every complete line from the pending buffer.
func (d *Decoder) drainLines() []Event {
	var events []Event
	for !d.finished {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(d.pending[:idx])
		rest := copy(d.pending, d.pending[idx+1:])
		d.pending = d.pending[:rest]

		if ev, ok := d.parseLine(line); ok {
			events = append(events, ev)
		}
	}
	if d.finished {
		d.pending = d.pending[:0]
	}
	return events
}

// parseLine interprets one line without its terminating newline.
func (d *Decoder) parseLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, DataPrefix) {
		return Event{}, false
	}

	ev, err := parseFrame(line[len(DataPrefix):])
	if err != nil {
		d.drop(&DecodeError{Line: line, Err: err})
		return Event{}, false
	}
	if ev.Terminal() {
		d.finished = true
	}
	return ev, true
}

func (d *Decoder) drop(err *DecodeError) {
	d.dropped++
	d.logger.Warn("skipping malformed stream frame", "error", err)
	if d.onDrop != nil {
		d.onDrop(err)
	}
}

// parseFrame decodes the JSON payload after the prefix.
func parseFrame(payload string) (Event, error) {
	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Event{}, err
	}

	switch EventType(f.Type) {
	case EventSources:
		var citations []model.Citation
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &citations); err != nil {
				return Event{}, fmt.Errorf("sources payload: %w", err)
			}
		}
		if citations == nil {
			citations = []model.Citation{}
		}
		return Event{Type: EventSources, Citations: citations}, nil

	case EventChunk:
		if len(f.Data) == 0 {
			return Event{}, errMissingData
		}
		var text string
		if err := json.Unmarshal(f.Data, &text); err != nil {
			return Event{}, fmt.Errorf("chunk payload: %w", err)
		}
		return Event{Type: EventChunk, Text: text}, nil

	case EventDone:
		return Event{Type: EventDone}, nil

	case EventError:
		return Event{Type: EventError, Message: f.Message}, nil

	default:
		return Event{}, fmt.Errorf("%w %q", errUnknownType, f.Type)
	}
}

// =============================================================================
// UTF-8 CARRY
// =============================================================================

// decodeUTF8 validates chunk, holding back a trailing partial sequence until
// the next call. Invalid bytes are replaced with U+FFFD.
func (d *Decoder) decodeUTF8(chunk []byte, atEOF bool) ([]byte, error) {
	src := make([]byte, 0, len(d.carry)+len(chunk))
	src = append(src, d.carry...)
	src = append(src, chunk...)
	d.carry = nil

	if len(src) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, len(src))
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	for {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, transform.ErrShortSrc):
			d.carry = append([]byte(nil), src...)
			return out, nil
		case errors.Is(err, transform.ErrShortDst):
			if nSrc == 0 && nDst == 0 {
				dst = make([]byte, 2*len(dst))
			}
		default:
			return out, fmt.Errorf("stream: decode utf-8: %w", err)
		}
	}
}
