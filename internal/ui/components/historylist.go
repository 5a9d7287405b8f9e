// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// =============================================================================
// HISTORY LIST
// =============================================================================

// HistoryList is the past-questions pane. Entries arrive newest first and
// are shown in that order; the filter narrows them by substring.
type HistoryList struct {
	Width  int
	Height int

	all      []model.HistoryEntry
	visible  []model.HistoryEntry
	filter   string
	selected int
	offset   int
	stale    bool
	theme    *styles.Theme
}

// NewHistoryList creates an empty list.
func NewHistoryList(theme *styles.Theme) *HistoryList {
	return &HistoryList{Width: 30, Height: 10, theme: theme}
}

// SetSize updates the pane dimensions, borders included.
func (h *HistoryList) SetSize(width, height int) {
	h.Width = width
	h.Height = height
	h.clamp()
}

// SetEntries replaces the entries. The selection follows the previously
// selected entry when it is still present.
func (h *HistoryList) SetEntries(entries []model.HistoryEntry, stale bool) {
	prev, hadPrev := h.Selected()
	h.all = entries
	h.stale = stale
	h.apply()
	if hadPrev {
		for i, e := range h.visible {
			if e.ID == prev.ID {
				h.selected = i
				break
			}
		}
	}
	h.clamp()
}

// SetFilter narrows the visible entries to those matching term.
func (h *HistoryList) SetFilter(term string) {
	if term == h.filter {
		return
	}
	h.filter = term
	h.selected = 0
	h.offset = 0
	h.apply()
}

// Filter returns the current search term.
func (h *HistoryList) Filter() string { return h.filter }

// Len returns the number of visible entries.
func (h *HistoryList) Len() int { return len(h.visible) }

// Selected returns the highlighted entry.
func (h *HistoryList) Selected() (model.HistoryEntry, bool) {
	if h.selected < 0 || h.selected >= len(h.visible) {
		return model.HistoryEntry{}, false
	}
	return h.visible[h.selected], true
}

// MoveUp moves the selection toward newer entries.
func (h *HistoryList) MoveUp() {
	if h.selected > 0 {
		h.selected--
	}
	h.clamp()
}

// MoveDown moves the selection toward older entries.
func (h *HistoryList) MoveDown() {
	if h.selected < len(h.visible)-1 {
		h.selected++
	}
	h.clamp()
}

func (h *HistoryList) apply() {
	h.visible = history.Filter(h.all, h.filter)
}

// clamp keeps the selection in range and scrolled into view.
func (h *HistoryList) clamp() {
	if h.selected >= len(h.visible) {
		h.selected = len(h.visible) - 1
	}
	if h.selected < 0 {
		h.selected = 0
	}
	rows := h.rows()
	if h.selected < h.offset {
		h.offset = h.selected
	}
	if rows > 0 && h.selected >= h.offset+rows {
		h.offset = h.selected - rows + 1
	}
}

// rows is the number of entries that fit: two lines each, after the title
// and search lines and the border.
func (h *HistoryList) rows() int {
	n := (h.Height - 2 - 2) / 2
	if n < 1 {
		return 1
	}
	return n
}

// View renders the pane.
func (h *HistoryList) View() string {
	inner := h.Width - 4 // border and padding
	if inner < 8 {
		inner = 8
	}

	var b strings.Builder
	title := "History"
	if h.stale {
		title += " " + styles.StatusIndicators.Warning
	}
	b.WriteString(h.theme.HistoryTitle.Render(title))
	b.WriteString("\n")
	search := "/ " + h.filter
	if h.filter == "" {
		search = "/ type to search"
	}
	b.WriteString(h.theme.HistoryMeta.Render(util.TruncateWidth(search, inner)))

	if len(h.visible) == 0 {
		b.WriteString("\n")
		empty := "No questions yet"
		if h.filter != "" {
			empty = "No matches"
		}
		b.WriteString(h.theme.HistoryMeta.Render(empty))
	}

	end := h.offset + h.rows()
	if end > len(h.visible) {
		end = len(h.visible)
	}
	for i := h.offset; i < end; i++ {
		e := h.visible[i]
		question := util.PadRight(util.Preview(e.Question, inner), inner)
		meta := util.Preview(entryMeta(e), inner)
		b.WriteString("\n")
		if i == h.selected {
			b.WriteString(h.theme.HistorySelected.Render(question))
		} else {
			b.WriteString(h.theme.HistoryItem.Render(question))
		}
		b.WriteString("\n")
		b.WriteString(h.theme.HistoryMeta.Render(meta))
	}

	height := h.Height - 2
	if height < 1 {
		height = 1
	}
	return h.theme.HistoryPane.
		Width(h.Width - 2).
		Height(height).
		MaxHeight(h.Height).
		Render(b.String())
}

func entryMeta(e model.HistoryEntry) string {
	if e.Timestamp.IsZero() {
		return e.Answer
	}
	return e.Timestamp.Local().Format("Jan 2 15:04") + "  " + e.Answer
}
