// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport talks HTTP to the CampusGPT backend.
//
// It sends questions, returns the raw streaming body or the decoded
// non-streaming answer, fetches the history list and creates server-side
// chat sessions. It never touches conversation state; interpreting the
// stream is the job of the stream and chat packages.
//
// Every request carries "Authorization: Bearer <token>" from an injected
// credential source. A 401 response invalidates that source before the
// error is returned.
package transport
