// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives one question/answer exchange at a time.
//
// A Session owns the Conversation, asks the transport for a reply, feeds the
// answer stream through the frame decoder and applies each event to the
// assistant placeholder. When the answer completes it asks the history
// synchronizer to refresh.
//
// # States
//
//	Idle -> Sending -> Streaming -> Done
//	                 \           \-> Error
//	                  \-> Error
//	(Sending|Streaming) -> Cancelled
//
// Submit blocks until the exchange is terminal. UIs call it from a goroutine
// (a tea.Cmd in the TUI) and read Conversation snapshots as observers fire.
package chat
