// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the campusgpt client configuration.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CAMPUSGPT_*), optionally from a .env file
//   - ~/.campusgpt/config.toml
//   - ~/.campusgpt/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := transport.NewClient(cfg.Server.BaseURL, creds)
//
// The bearer token is never written to disk by this package; it comes from
// CAMPUSGPT_TOKEN or from the token file managed by the auth package.
package config
