// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// citations and history entries.
//
// # Key Types
//
//   - Conversation: ordered messages of one chat, guarded for concurrent reads
//   - Handle: write access to the single in-flight assistant message
//   - Message: one chat message with its citations and streaming flag
//   - Citation: display metadata for a retrieved source
//   - HistoryEntry: a persisted question/answer pair returned by the backend
//
// # Usage
//
// Start an exchange and stream into the placeholder:
//
//	conv := model.NewConversation()
//	h, err := conv.BeginExchange("Library hours?")
//	if err != nil {
//	    return err
//	}
//	h.Append("Open 8am")
//	h.Append("-10pm.")
//	h.Finish()
//
// Handles become inert after Clear, so late writes from a cancelled exchange
// never reach a new conversation.
package model
