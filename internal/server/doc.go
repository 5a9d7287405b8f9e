// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a development stand-in for the CampusGPT backend.
//
// It speaks the same wire contract as the real service so the client can be
// demonstrated and integration-tested without one.
//
// # Endpoints
//
//   - POST /api/query                  - answer a question, streamed or whole
//   - GET  /api/student/history        - past exchanges, newest first
//   - POST /api/student/chat/session   - allocate a chat session ID
//   - GET  /health                     - liveness, no auth
//
// Streamed answers are newline-delimited "data: <json>" frames: a keep-alive
// comment, one sources frame, word-sized chunk frames and a done frame. A
// question containing "#fail" produces an error frame instead of done.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8000", Token: "dev-token"})
//	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
