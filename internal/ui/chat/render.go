// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// markdownRenderer renders finished answers with glamour. Renderers are
// built per wrap width, and output is cached per message ID and width.
type markdownRenderer struct {
	style     string
	renderers map[int]*glamour.TermRenderer
	cache     map[cacheKey]string
}

type cacheKey struct {
	id    string
	width int
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     make(map[cacheKey]string),
	}
}

// Render returns the markdown rendering of text for message id. When glamour
// fails the text is wrapped as plain text instead.
func (r *markdownRenderer) Render(id, text string, width int) string {
	key := cacheKey{id: id, width: width}
	if out, ok := r.cache[key]; ok {
		return out
	}

	out := ""
	if tr := r.renderer(width); tr != nil {
		if rendered, err := tr.Render(text); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	if out == "" {
		out = wrapPlain(text, width)
	}
	r.cache[key] = out
	return out
}

// Reset drops cached output, used when the conversation is cleared.
func (r *markdownRenderer) Reset() {
	r.cache = make(map[cacheKey]string)
}

func (r *markdownRenderer) renderer(width int) *glamour.TermRenderer {
	if tr, ok := r.renderers[width]; ok {
		return tr
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		tr = nil
	}
	r.renderers[width] = tr
	return tr
}

// wrapPlain wraps text to width cells without markdown processing.
func wrapPlain(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
