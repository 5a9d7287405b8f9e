// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrExchangeInFlight is returned by BeginExchange while an assistant message
// is still streaming.
var ErrExchangeInFlight = errors.New("model: an assistant message is already streaming")

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the messages of one chat in display order.
//
// It is safe for concurrent use: one goroutine streams into the in-flight
// message through a Handle while others read snapshots.
type Conversation struct {
	mu sync.RWMutex

	id        string
	title     string
	createdAt time.Time
	updatedAt time.Time

	messages []*Message

	// active is the placeholder currently streaming, nil when idle.
	active *Message

	// generation is bumped by Clear so older Handles stop applying.
	generation uint64

	// maxMessages caps retained messages; 0 keeps everything.
	maxMessages int
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		id:        generateID(),
		createdAt: now,
		updatedAt: now,
		messages:  make([]*Message, 0),
	}
}

// SetMaxMessages caps the number of retained messages. The streaming
// placeholder is never pruned. Zero disables pruning.
func (c *Conversation) SetMaxMessages(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	c.maxMessages = n
	c.pruneOldMessages()
}

// ID returns the local conversation identifier.
func (c *Conversation) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Title returns a title derived from the first question.
func (c *Conversation) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.title == "" {
		return "New Chat"
	}
	return c.title
}

// UpdatedAt returns the time of the last mutation.
func (c *Conversation) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// =============================================================================
// EXCHANGES
// =============================================================================

// BeginExchange appends the user's question followed by an empty streaming
// assistant placeholder, and returns the Handle used to fill it.
func (c *Conversation) BeginExchange(question string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrExchangeInFlight
	}

	user := newMessage(RoleUser, question)
	placeholder := newPlaceholder()
	c.messages = append(c.messages, user, placeholder)
	c.active = placeholder
	c.touch()
	if c.title == "" {
		c.title = previewLine(question, 50)
	}
	c.pruneOldMessages()

	return &Handle{conv: c, msg: placeholder, gen: c.generation}, nil
}

// Clear removes all messages and invalidates outstanding Handles.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make([]*Message, 0)
	c.active = nil
	c.generation++
	c.id = generateID()
	c.title = ""
	c.createdAt = time.Now()
	c.touch()
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Messages returns a snapshot of every message in order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.snapshot()
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// IsEmpty reports whether the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return c.Len() == 0
}

// Last returns a snapshot of the newest message.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1].snapshot(), true
}

// Message returns a snapshot of the message with the given ID.
func (c *Conversation) Message(id string) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.messages {
		if m.ID == id {
			return m.snapshot(), true
		}
	}
	return Message{}, false
}

// Streaming returns a snapshot of the in-flight assistant message, if any.
func (c *Conversation) Streaming() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return Message{}, false
	}
	return c.active.snapshot(), true
}

// =============================================================================
// INTERNAL
// =============================================================================

func (c *Conversation) touch() {
	c.updatedAt = time.Now()
}

// pruneOldMessages drops the oldest messages beyond maxMessages.
// Caller must hold c.mu.
func (c *Conversation) pruneOldMessages() {
	if c.maxMessages <= 0 || len(c.messages) <= c.maxMessages {
		return
	}
	excess := len(c.messages) - c.maxMessages
	kept := make([]*Message, 0, c.maxMessages)
	for i, m := range c.messages {
		if i < excess && m != c.active {
			continue
		}
		kept = append(kept, m)
	}
	c.messages = kept
}

// previewLine returns the first line of s, cut to at most n runes.
func previewLine(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
