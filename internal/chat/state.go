// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// State is the lifecycle state of the current exchange.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateDone
	StateError
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// InFlight reports whether an exchange is running.
func (s State) InFlight() bool {
	return s == StateSending || s == StateStreaming
}

// Terminal reports whether the last exchange has ended.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

// ChangeKind says what an observer notification is about.
type ChangeKind int

const (
	// ChangeSubmitted: the question and placeholder were appended.
	ChangeSubmitted ChangeKind = iota
	// ChangeStreaming: the reply arrived and decoding started.
	ChangeStreaming
	// ChangeSources: citations were replaced.
	ChangeSources
	// ChangeChunk: a fragment was appended.
	ChangeChunk
	// ChangeFinished: the exchange reached a terminal state.
	ChangeFinished
	// ChangeCleared: the conversation was reset by NewChat.
	ChangeCleared
)

// Change is delivered to observers after every visible mutation.
type Change struct {
	Kind      ChangeKind
	State     State
	MessageID string
	// Fragment is the appended text for ChangeChunk.
	Fragment string
}
