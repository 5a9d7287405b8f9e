// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// RenderSources renders the citation list shown under an answer. Citations
// are listed in the order received, duplicates included.
func RenderSources(theme *styles.Theme, citations []model.Citation, width int) string {
	if len(citations) == 0 {
		return ""
	}
	inner := width - 6
	if inner < 10 {
		inner = 10
	}

	lines := make([]string, 0, len(citations)+1)
	lines = append(lines, theme.SourcesTitle.Render("Sources"))
	for i, c := range citations {
		item := fmt.Sprintf("%d. %s", i+1, c.String())
		lines = append(lines, theme.SourceItem.Render(util.TruncateWidth(item, inner)))
	}
	return strings.Join(lines, "\n")
}
