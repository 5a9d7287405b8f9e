// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps the local snapshot of the student's saved
// question/answer pairs.
//
// The Synchronizer re-fetches the list from the backend after every
// completed exchange and on explicit user request. Fetch failures are logged
// and the previous snapshot is kept. Successful snapshots are written to a
// SQLite cache so the history is available at start-up before the first
// network round trip.
package history
