// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies bearer credentials to the transport.
//
// Logging in is handled elsewhere; this package only reads a token that was
// stored by another tool (or set with "campusgpt token set") and forgets it
// when the backend answers 401.
//
// # Key Types
//
//   - CredentialProvider: Token and Invalidate, consumed by transport.Client
//   - Static: a fixed token, typically from CAMPUSGPT_TOKEN
//   - FileProvider: a token file watched for changes with fsnotify
package auth
