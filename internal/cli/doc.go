// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for campusgpt.
//
// # Key Types
//
//   - Command: the available commands
//   - Args: parsed global and command-specific flags
//   - App: config, credentials, transport, history and session wired together
//   - ChatCLI: liner-backed prompt for the line-mode chat
//
// # Usage
//
//	os.Exit(cli.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
//
// # Commands Overview
//
//   - (none), chat: full-screen chat, or the line-mode REPL when stdin or
//     stdout is not a terminal or --plain is given
//   - ask: one question, answer printed to stdout
//   - history: past questions, with --search
//   - token: set or clear the stored login token
//   - config: show, path, init
//   - mock-server: local development backend
//   - version, help
package cli
