// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoToken is returned when no credential is available.
var ErrNoToken = errors.New("auth: no token available, log in first")

// CredentialProvider yields the bearer token for backend requests.
type CredentialProvider interface {
	// Token returns the current token or ErrNoToken.
	Token(ctx context.Context) (string, error)

	// Invalidate forgets the token after the backend rejected it.
	Invalidate() error
}

// Static is a CredentialProvider holding a fixed token in memory.
type Static struct {
	mu    sync.RWMutex
	token string
}

// NewStatic returns a provider for token.
func NewStatic(token string) *Static {
	return &Static{token: strings.TrimSpace(token)}
}

// Token implements CredentialProvider.
func (s *Static) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// Invalidate implements CredentialProvider.
func (s *Static) Invalidate() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
