// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
)

// GenericErrorText replaces the assistant text when the exchange fails
// without a server-provided message.
const GenericErrorText = "Sorry, there was an error processing your request. Please try again."

var (
	// ErrBusy is returned by Submit while another exchange is in flight.
	ErrBusy = errors.New("chat: an answer is still in progress")

	// ErrEmptyQuestion is returned by Submit for blank input.
	ErrEmptyQuestion = errors.New("chat: question is empty")

	// ErrStreamEnded means the stream closed before a done or error frame.
	ErrStreamEnded = errors.New("chat: answer stream ended unexpectedly")
)

// StreamEventError is an error frame sent by the backend mid-stream.
type StreamEventError struct {
	Message string
}

func (e *StreamEventError) Error() string {
	return fmt.Sprintf("chat: backend reported: %s", e.Message)
}
