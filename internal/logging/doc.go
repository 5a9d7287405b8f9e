// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide log/slog logger.
//
// The TUI owns the terminal, so by default records go to a file under the
// campusgpt config directory instead of stderr.
package logging
