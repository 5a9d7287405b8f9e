// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"

	"github.com/jeranaias/campusgpt-tui/internal/model"
)

// EventType identifies the kind of a decoded frame.
type EventType string

const (
	EventSources EventType = "sources"
	EventChunk   EventType = "chunk"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one decoded stream frame.
type Event struct {
	Type EventType

	// Text is the answer fragment of a chunk event.
	Text string

	// Citations is the full citation list of a sources event.
	Citations []model.Citation

	// Message is the server-provided text of an error event.
	Message string
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// String returns a compact description for logs.
func (e Event) String() string {
	switch e.Type {
	case EventChunk:
		return fmt.Sprintf("chunk(%d bytes)", len(e.Text))
	case EventSources:
		return fmt.Sprintf("sources(%d)", len(e.Citations))
	case EventError:
		return fmt.Sprintf("error(%q)", e.Message)
	default:
		return string(e.Type)
	}
}
