// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Handle is the only way to mutate an in-flight assistant message.
//
// Every method reports whether it applied. A Handle stops applying once its
// message reaches a terminal state or the conversation is cleared.
type Handle struct {
	conv *Conversation
	msg  *Message
	gen  uint64
}

// MessageID returns the ID of the placeholder this handle writes to.
func (h *Handle) MessageID() string {
	return h.msg.ID
}

// Live reports whether the handle can still mutate its message.
func (h *Handle) Live() bool {
	h.conv.mu.RLock()
	defer h.conv.mu.RUnlock()
	return h.liveLocked()
}

func (h *Handle) liveLocked() bool {
	return h.conv.generation == h.gen && h.conv.active == h.msg
}

// Append adds a streamed fragment to the end of the message text.
func (h *Handle) Append(fragment string) bool {
	return h.apply(func(m *Message) {
		m.appendText(fragment)
	}, false)
}

// SetCitations replaces the message's citations wholesale.
func (h *Handle) SetCitations(citations []Citation) bool {
	return h.apply(func(m *Message) {
		m.Citations = citations
	}, false)
}

// Finish ends streaming and keeps the accumulated text.
func (h *Handle) Finish() bool {
	return h.apply((*Message).finalize, true)
}

// Complete sets the full answer and citations in one step and ends streaming.
// It is used for non-streaming replies.
func (h *Handle) Complete(text string, citations []Citation) bool {
	return h.apply(func(m *Message) {
		m.Citations = citations
		m.replaceText(text)
	}, true)
}

// Fail ends streaming with text replacing anything streamed so far.
func (h *Handle) Fail(text string) bool {
	return h.apply(func(m *Message) {
		m.replaceText(text)
	}, true)
}

func (h *Handle) apply(fn func(*Message), terminal bool) bool {
	c := h.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if !h.liveLocked() {
		return false
	}
	fn(h.msg)
	if terminal {
		c.active = nil
	}
	c.touch()
	return true
}
