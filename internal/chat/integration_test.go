// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/campusgpt-tui/internal/auth"
	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/server"
	"github.com/jeranaias/campusgpt-tui/internal/transport"
)

type stack struct {
	session *Session
	history *history.Synchronizer
	creds   *auth.FileProvider
}

// newStack wires the real transport, history and session against the
// development server.
func newStack(t *testing.T, token string, opts ...Option) stack {
	t.Helper()
	logger := logging.Discard()

	srv := server.New(server.Config{Token: "dev-token", ChunkDelay: -1, Logger: logger})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	creds := auth.NewFileProvider(filepath.Join(t.TempDir(), "token"), logger)
	if token != "" {
		require.NoError(t, creds.Save(token))
	}

	client := transport.NewClient(ts.URL, creds).WithHTTPClient(ts.Client()).WithLogger(logger)
	sync := history.NewSynchronizer(client, history.WithLogger(logger))

	opts = append([]Option{WithHistory(sync), WithLogger(logger)}, opts...)
	return stack{
		session: NewSession(client, opts...),
		history: sync,
		creds:   creds,
	}
}

func TestIntegration_StreamedAnswerAndHistory(t *testing.T) {
	st := newStack(t, "dev-token")

	require.NoError(t, st.session.Submit(t.Context(), "Library hours?"))

	m := lastMessage(t, st.session)
	assert.Contains(t, m.Text, "library is open 8am-10pm")
	assert.Len(t, m.Citations, 2)
	assert.False(t, m.IsStreaming)
	assert.Equal(t, StateDone, st.session.State())

	entries := st.history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Library hours?", entries[0].Question)
	assert.Equal(t, m.Text, entries[0].Answer)
}

func TestIntegration_NonStreaming(t *testing.T) {
	st := newStack(t, "dev-token", WithStreaming(false))

	require.NoError(t, st.session.Submit(t.Context(), "Where can I park?"))
	assert.Contains(t, lastMessage(t, st.session).Text, "Lots C and D")
	assert.Len(t, st.history.Entries(), 1)
}

func TestIntegration_ServerErrorFrame(t *testing.T) {
	st := newStack(t, "dev-token")

	err := st.session.Submit(t.Context(), "parking #fail")
	var streamErr *StreamEventError
	require.ErrorAs(t, err, &streamErr)

	assert.Equal(t, streamErr.Message, lastMessage(t, st.session).Text)
	assert.Equal(t, StateError, st.session.State())
	assert.Empty(t, st.history.Entries())
}

func TestIntegration_UnauthorizedClearsToken(t *testing.T) {
	st := newStack(t, "stale-token")

	err := st.session.Submit(t.Context(), "Library hours?")
	require.ErrorIs(t, err, transport.ErrUnauthorized)
	assert.Equal(t, GenericErrorText, lastMessage(t, st.session).Text)

	_, err = st.creds.Token(t.Context())
	assert.ErrorIs(t, err, auth.ErrNoToken)

	// Without a token nothing is sent.
	err = st.session.Submit(t.Context(), "again")
	assert.ErrorIs(t, err, transport.ErrNoCredentials)
}

func TestIntegration_ServerSessions(t *testing.T) {
	st := newStack(t, "dev-token")
	s := NewSession(st.session.sender, WithServerSessions(st.session.sender.(*transport.Client)), WithLogger(logging.Discard()))

	s.NewChat(t.Context())
	assert.NotEmpty(t, s.ServerSessionID())
	require.NoError(t, s.Submit(t.Context(), "Library hours?"))
}
