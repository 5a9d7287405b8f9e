// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"time"
)

// timestampLayouts are tried in order when parsing backend timestamps.
// The backend writes naive ISO-8601 strings without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// HistoryEntry is one persisted question/answer pair.
type HistoryEntry struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Sources   []Citation `json:"sources,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// UnmarshalJSON reads the backend shape, where the ID is "_id".
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID   json.RawMessage `json:"_id"`
		ID        json.RawMessage `json:"id"`
		Question  string          `json:"question"`
		Answer    string          `json:"answer"`
		Sources   []Citation      `json:"sources"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := looseString(raw.MongoID)
	if id == "" {
		id = looseString(raw.ID)
	}

	*e = HistoryEntry{
		ID:        id,
		Question:  raw.Question,
		Answer:    raw.Answer,
		Sources:   raw.Sources,
		Timestamp: ParseTimestamp(raw.Timestamp),
	}
	return nil
}

// Matches reports whether term occurs in the question or answer,
// ignoring case. An empty term matches everything.
func (e HistoryEntry) Matches(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(e.Question), term) ||
		strings.Contains(strings.ToLower(e.Answer), term)
}

// ParseTimestamp parses the timestamp formats used by the backend.
// Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
