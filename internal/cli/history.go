// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

var questionStyle = lipgloss.NewStyle().
	Foreground(styles.TextPrimary).
	Bold(true)

// HandleHistory refreshes history and prints it, newest first. When the
// refresh fails the cached copy is printed with a warning.
func HandleHistory(ctx context.Context, app *App, search string, w io.Writer) error {
	if _, err := app.History.Refresh(ctx); err != nil {
		app.Logger.Debug("history refresh failed", "error", err)
	}
	printHistory(w, app.History.Snapshot(), search, wrapWidth(app.Config.UI.WordWrap))
	return nil
}

// printHistory lists the entries of snap that match term.
func printHistory(w io.Writer, snap history.Snapshot, term string, width int) {
	if snap.Stale {
		msg := "Could not reach the server, showing saved history"
		if !snap.RefreshedAt.IsZero() {
			msg += " from " + snap.RefreshedAt.Local().Format("Jan 2 15:04")
		}
		fmt.Fprintln(w, styles.RenderWarning(msg))
	}

	entries := history.Filter(snap.Entries, term)
	if len(entries) == 0 {
		if term != "" {
			fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("No questions match %q", term)))
		} else {
			fmt.Fprintln(w, infoStyle.Render("No questions yet"))
		}
		return
	}

	for _, e := range entries {
		when := "unknown time"
		if !e.Timestamp.IsZero() {
			when = e.Timestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s  %s\n", mutedStyle.Render(when), questionStyle.Render(util.Preview(e.Question, width-18)))
		if e.Answer != "" {
			fmt.Fprintf(w, "    %s\n", infoStyle.Render(util.Preview(e.Answer, width-4)))
		}
	}
}
