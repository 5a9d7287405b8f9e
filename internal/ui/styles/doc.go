// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the colors and lipgloss styles of the chat UI.

All colors are lipgloss AdaptiveColor values, so they follow the terminal
background. NewTheme fixes that background explicitly when the user picks
"dark" or "light" and asks the terminal otherwise.

	theme := styles.NewTheme(cfg.UI.Theme)
	fmt.Println(theme.UserLabel.Render("You"))

Colored states always carry an ASCII marker as well (see StatusIndicators)
so they stay readable on monochrome terminals.
*/
package styles
