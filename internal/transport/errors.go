// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	// ErrUnauthorized indicates the token was missing, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the backend asked us to slow down.
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 * 1024

// Error is a non-2xx response from the backend.
type Error struct {
	Status int
	Body   string

	// Detail is the "detail" or "message" field of a JSON error body.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("campusgpt backend error (HTTP %d): %s", e.Status, msg)
}

// Is maps status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// newError builds an *Error from a response body, extracting the FastAPI
// style {"detail": "..."} message when present.
func newError(status int, body []byte) *Error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	e := &Error{Status: status, Body: string(body)}

	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		var detail string
		if json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
			e.Detail = detail
		} else if parsed.Message != "" {
			e.Detail = parsed.Message
		} else if parsed.Error != "" {
			e.Detail = parsed.Error
		}
	}
	return e
}
