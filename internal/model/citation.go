// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Citation describes one retrieved source attached to an answer.
// Citations are display metadata only and are never deduplicated.
type Citation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Label     string `json:"label"`
	// Page is kept as sent: "12", "3.7" and "iv" are all valid.
	Page      string `json:"page,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// UnmarshalJSON accepts the loose shapes the backend emits: ids and
// pages and timestamps as strings or numbers.
func (c *Citation) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Name      string          `json:"name"`
		Label     string          `json:"label"`
		Page      json.RawMessage `json:"page"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Citation{
		ID:        looseString(raw.ID),
		Name:      raw.Name,
		Label:     raw.Label,
		Page:      looseString(raw.Page),
		Timestamp: looseString(raw.Timestamp),
	}
	return nil
}

// Title returns the best available name for the source.
func (c Citation) Title() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.ID != "":
		return c.ID
	default:
		return "source"
	}
}

// String formats the citation for a single display line, e.g.
// "Student Handbook · PDF · p. 3".
func (c Citation) String() string {
	parts := []string{c.Title()}
	if c.Label != "" {
		parts = append(parts, c.Label)
	}
	if c.Page != "" {
		parts = append(parts, "p. "+c.Page)
	}
	if c.Timestamp != "" {
		parts = append(parts, c.Timestamp)
	}
	return strings.Join(parts, " · ")
}

// looseString renders a JSON string or number as a Go string.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
