// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "CampusGPT"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Values returned from Conversation accessors are snapshots; mutating them
// does not affect the conversation.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Timestamp time.Time  `json:"timestamp"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming bool            `json:"-"`
	streamText  strings.Builder `json:"-"`
}

func newMessage(role Role, text string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// newPlaceholder creates an empty assistant message that is still streaming.
func newPlaceholder() *Message {
	m := newMessage(RoleAssistant, "")
	m.IsStreaming = true
	return m
}

// DisplayText returns the text to show, including any streamed content.
func (m *Message) DisplayText() string {
	if m.IsStreaming {
		return m.streamText.String()
	}
	return m.Text
}

// IsEmpty reports whether the message has no visible text yet.
func (m *Message) IsEmpty() bool {
	return m.DisplayText() == ""
}

// HasCitations reports whether any sources are attached.
func (m *Message) HasCitations() bool {
	return len(m.Citations) > 0
}

func (m *Message) appendText(fragment string) {
	m.streamText.WriteString(fragment)
}

// finalize freezes the streamed text into Text.
func (m *Message) finalize() {
	if !m.IsStreaming {
		return
	}
	m.Text = m.streamText.String()
	m.streamText.Reset()
	m.IsStreaming = false
}

// replaceText ends streaming with text in place of anything streamed so far.
func (m *Message) replaceText(text string) {
	m.streamText.Reset()
	m.Text = text
	m.IsStreaming = false
}

// snapshot returns a detached copy safe to hand to readers.
func (m *Message) snapshot() Message {
	var citations []Citation
	if m.Citations != nil {
		citations = make([]Citation, len(m.Citations))
		copy(citations, m.Citations)
	}
	return Message{
		ID:          m.ID,
		Role:        m.Role,
		Timestamp:   m.Timestamp,
		Text:        m.DisplayText(),
		Citations:   citations,
		IsStreaming: m.IsStreaming,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func generateID() string {
	return uuid.NewString()
}
