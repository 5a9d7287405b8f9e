// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// Header is the one-line title bar.
type Header struct {
	Title string // Conversation title, empty for a new chat
	Host  string // Backend host shown on the right
	Width int
	theme *styles.Theme
}

// NewHeader creates a header for the given backend URL.
func NewHeader(theme *styles.Theme, baseURL string) *Header {
	return &Header{
		Host:  hostOf(baseURL),
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetTitle updates the conversation title.
func (h *Header) SetTitle(title string) {
	h.Title = title
}

// View renders the header.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2 // padding

	brand := h.theme.HeaderBrand.Render("CampusGPT")
	right := h.theme.Timestamp.Render(h.Host)
	if h.Host == "" || lipgloss.Width(brand)+lipgloss.Width(right)+4 > inner {
		right = ""
	}

	title := h.Title
	if title == "" {
		title = "New chat"
	}
	room := inner - lipgloss.Width(brand) - lipgloss.Width(right) - 3
	middle := ""
	if room > 3 {
		middle = " " + h.theme.HeaderTitle.Render(util.TruncateWidth(title, room))
	}

	left := brand + middle
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	return h.theme.Header.Width(width).Render(line)
}

// hostOf returns the host of a base URL, or the input when it does not parse.
func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
