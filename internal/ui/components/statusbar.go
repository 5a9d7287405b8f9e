// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the exchange state shown in the status bar.
type Status int

const (
	StatusReady Status = iota
	StatusSending
	StatusStreaming
	StatusDone
	StatusError
	StatusCancelled
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusSending:
		return "Sending..."
	case StatusStreaming:
		return "Streaming..."
	case StatusDone:
		return "Done"
	case StatusError:
		return "Error"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Icon returns a shape that reads without color.
func (s Status) Icon() string {
	switch s {
	case StatusReady, StatusDone:
		return styles.StatusIndicators.Success
	case StatusSending:
		return styles.StatusIndicators.Pending
	case StatusStreaming:
		return "~"
	case StatusError:
		return styles.StatusIndicators.Error
	case StatusCancelled:
		return "-"
	default:
		return "?"
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint rendered on the right of the bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar renders the bottom line of the chat screen.
type StatusBar struct {
	Width int

	status       Status
	loggedIn     bool
	historyCount int
	historyStale bool
	refreshedAt  time.Time
	flash        string
	shortcuts    []Shortcut
	theme        *styles.Theme
}

// NewStatusBar creates a status bar in the ready state.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, loggedIn: true, theme: theme}
}

// SetWidth updates the bar width.
func (s *StatusBar) SetWidth(width int) { s.Width = width }

// SetStatus updates the exchange state.
func (s *StatusBar) SetStatus(status Status) { s.status = status }

// Status returns the current exchange state.
func (s *StatusBar) Status() Status { return s.status }

// SetLoggedIn records whether a token is available.
func (s *StatusBar) SetLoggedIn(ok bool) { s.loggedIn = ok }

// SetHistory records the history snapshot summary.
func (s *StatusBar) SetHistory(count int, stale bool, refreshedAt time.Time) {
	s.historyCount = count
	s.historyStale = stale
	s.refreshedAt = refreshedAt
}

// SetFlash shows a transient message in place of the shortcuts. An empty
// string clears it.
func (s *StatusBar) SetFlash(msg string) { s.flash = msg }

// Flash returns the transient message, if any.
func (s *StatusBar) Flash() string { return s.flash }

// SetShortcuts sets the key hints.
func (s *StatusBar) SetShortcuts(shortcuts []Shortcut) { s.shortcuts = shortcuts }

// View renders the bar. Segments are dropped from the right when the
// terminal is too narrow.
func (s *StatusBar) View() string {
	inner := s.Width - 2
	if inner < 10 {
		inner = 10
	}

	left := []string{s.renderStatus()}
	if !s.loggedIn {
		left = append(left, lipgloss.NewStyle().Foreground(styles.Rose).Render("logged out"))
	}
	left = append(left, s.renderHistory())
	leftStr := strings.Join(left, "  ")

	right := s.renderRight()
	if lipgloss.Width(leftStr)+lipgloss.Width(right)+2 > inner {
		right = ""
	}
	gap := inner - lipgloss.Width(leftStr) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := leftStr + strings.Repeat(" ", gap) + right
	return s.theme.StatusBar.Width(s.Width).MaxHeight(1).Render(line)
}

func (s *StatusBar) renderStatus() string {
	return s.statusStyle().Render(s.status.Icon() + " " + s.status.String())
}

func (s *StatusBar) renderHistory() string {
	text := fmt.Sprintf("history %d", s.historyCount)
	if s.historyStale {
		return lipgloss.NewStyle().Foreground(styles.Amber).
			Render(text + " " + styles.StatusIndicators.Warning + " stale")
	}
	if !s.refreshedAt.IsZero() {
		text += " @ " + s.refreshedAt.Local().Format("15:04")
	}
	return lipgloss.NewStyle().Foreground(styles.TextMuted).Render(text)
}

func (s *StatusBar) renderRight() string {
	if s.flash != "" {
		return lipgloss.NewStyle().Foreground(styles.Amber).Render(s.flash)
	}
	parts := make([]string, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		parts = append(parts, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, "  ")
}

func (s *StatusBar) statusStyle() lipgloss.Style {
	base := s.theme.StatusState
	switch s.status {
	case StatusReady, StatusDone:
		return base.Foreground(styles.Emerald)
	case StatusSending, StatusStreaming:
		return base.Foreground(styles.Campus)
	case StatusError:
		return base.Foreground(styles.Rose)
	case StatusCancelled:
		return base.Foreground(styles.Amber)
	default:
		return base
	}
}
