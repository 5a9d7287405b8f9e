// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	chatsvc "github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/history"
)

// Sender delivers messages into a running program. *tea.Program
// implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// TokenNotifier reports token file changes. auth.FileProvider implements it.
type TokenNotifier interface {
	OnChange(fn func(hasToken bool))
}

// Bridge forwards session changes, history snapshots and token changes into
// p. sync and tokens may be nil. The returned function detaches the session
// observer.
//
// Bridge must be called after any synchronous history load: Send blocks
// until the program is running.
func Bridge(p Sender, s *chatsvc.Session, sync *history.Synchronizer, tokens TokenNotifier) (detach func()) {
	detach = s.Observe(func(c chatsvc.Change) {
		p.Send(SessionChangeMsg{Change: c})
	})
	if sync != nil {
		sync.Subscribe(func(snap history.Snapshot) {
			p.Send(HistoryMsg{Snapshot: snap})
		})
	}
	if tokens != nil {
		tokens.OnChange(func(hasToken bool) {
			p.Send(TokenStateMsg{LoggedIn: hasToken})
		})
	}
	return detach
}
