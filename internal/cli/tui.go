// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	uichat "github.com/jeranaias/campusgpt-tui/internal/ui/chat"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// RunTUI runs the full-screen chat until the user quits or ctx ends.
func RunTUI(ctx context.Context, app *App) error {
	// Opening the server session first keeps its notifications from
	// blocking on a program that is not running yet.
	app.StartChat(ctx)

	m := uichat.New(uichat.Options{
		Session:  app.Session,
		History:  app.History,
		Theme:    styles.NewTheme(app.Config.UI.Theme),
		BaseURL:  app.Config.Server.BaseURL,
		WordWrap: app.Config.UI.WordWrap,
		LoggedIn: app.LoggedIn(ctx),
		Logger:   app.Logger,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	var tokens uichat.TokenNotifier
	if app.TokenFile != nil {
		tokens = app.TokenFile
	}
	detach := uichat.Bridge(p, app.Session, app.History, tokens)
	defer detach()

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chat UI: %w", err)
	}
	return nil
}
