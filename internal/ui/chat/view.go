// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	chatsvc "github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/ui/components"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// streamCursor trails an answer that is still arriving.
const streamCursor = " ▌"

const welcomeText = "Ask anything about your campus: courses, deadlines, services.\n" +
	"Answers stream in as they are written and list their sources."

// =============================================================================
// LAYOUT
// =============================================================================

// Fixed rows: header, activity line, input (border + line), status bar.
const chromeHeight = 1 + 1 + 2 + 1

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	mainHeight := height - chromeHeight
	if mainHeight < 3 {
		mainHeight = 3
	}
	histWidth := 0
	if m.showHistory {
		histWidth = clamp(width/3, 24, 48)
		if histWidth > width-20 {
			histWidth = 0
		}
	}
	vpWidth := width - histWidth

	if !m.ready {
		m.viewport = viewport.New(vpWidth, mainHeight)
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = mainHeight
	}
	if histWidth > 0 {
		m.hist.SetSize(histWidth, mainHeight)
	}

	m.header.SetWidth(width)
	m.status.SetWidth(width)
	m.input.Width = width - 4
	m.search.Width = histWidth - 6
}

// contentWidth is the wrap width for message bodies.
func (m *Model) contentWidth() int {
	w := m.viewport.Width - 4
	if m.wordWrap > 0 && m.wordWrap < w {
		w = m.wordWrap
	}
	if w < 20 {
		w = 20
	}
	return w
}

// refresh rebuilds the viewport content, staying pinned to the bottom when
// the user has not scrolled up.
func (m *Model) refresh() {
	m.dirty = false
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	main := m.viewport.View()
	if m.showHistory && m.hist.Width > 0 {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, m.hist.View())
	}

	activity := m.spinner.View()
	if activity == "" {
		activity = " "
	}

	input := m.theme.InputContainer.Width(m.width).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		main,
		activity,
		input,
		m.status.View(),
	)
}

func (m *Model) renderConversation() string {
	msgs := m.session.Conversation().Messages()
	if len(msgs) == 0 {
		return m.theme.Thinking.Render(welcomeText)
	}

	width := m.contentWidth()
	failed := m.session.State() == chatsvc.StateError

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		last := i == len(msgs)-1
		b.WriteString(m.renderMessage(msg, width, last && failed))
	}
	return b.String()
}

func (m *Model) renderMessage(msg model.Message, width int, failed bool) string {
	label := m.theme.AssistantLabel
	if msg.Role == model.RoleUser {
		label = m.theme.UserLabel
	}
	header := label.Render(msg.Role.DisplayName()) + " " +
		m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))

	var body string
	switch {
	case msg.Role == model.RoleUser:
		body = m.theme.MessageBody.Render(wrapPlain(msg.Text, width))
	case failed:
		body = m.theme.ErrorBody.Render(wrapPlain(styles.StatusIndicators.Error+" "+msg.Text, width))
	case msg.IsStreaming && msg.Text == "":
		body = m.theme.Thinking.Render("Thinking...")
	case msg.IsStreaming:
		body = m.theme.MessageBody.Render(wrapPlain(msg.Text+streamCursor, width))
	case msg.Text == "":
		body = m.theme.Thinking.Render("(no answer)")
	default:
		body = m.md.Render(msg.ID, msg.Text, width)
	}

	parts := []string{header, body}
	if len(msg.Citations) > 0 {
		parts = append(parts, components.RenderSources(m.theme, msg.Citations, width))
	}
	return strings.Join(parts, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
