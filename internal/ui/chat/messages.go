// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatsvc "github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/history"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SessionChangeMsg carries one session observer notification.
type SessionChangeMsg struct {
	Change chatsvc.Change
}

// SubmitDoneMsg reports the outcome of a submitted question.
type SubmitDoneMsg struct {
	Question string
	Err      error
}

// NewChatDoneMsg reports that NewChat returned.
type NewChatDoneMsg struct{}

// =============================================================================
// HISTORY MESSAGES
// =============================================================================

// HistoryMsg carries a new history snapshot.
type HistoryMsg struct {
	Snapshot history.Snapshot
}

// HistoryRetryMsg reports the outcome of a manual refresh.
type HistoryRetryMsg struct {
	Err error
}

// =============================================================================
// AUTH MESSAGES
// =============================================================================

// TokenStateMsg reports whether a token is stored.
type TokenStateMsg struct {
	LoggedIn bool
}

// =============================================================================
// INTERNAL
// =============================================================================

// renderTickMsg paces redraws while an answer streams.
type renderTickMsg time.Time

// clearFlashMsg removes the status flash with the matching id.
type clearFlashMsg struct {
	id int
}

const renderInterval = time.Second / 30

func renderTickCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

const flashDuration = 4 * time.Second

func clearFlashCmd(id int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return clearFlashMsg{id: id}
	})
}
