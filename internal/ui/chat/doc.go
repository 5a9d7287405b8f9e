// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the Bubble Tea front end of the CampusGPT client.

The Model renders a chat.Session conversation and a history.Synchronizer
snapshot. It never mutates either directly inside Update: submit, cancel,
new chat and history retry run as tea.Cmds, and the session and
synchronizer report their changes back through Bridge.

	m := chat.New(chat.Options{Session: sess, History: sync, Theme: theme})
	p := tea.NewProgram(m, tea.WithAltScreen())
	chat.Bridge(p, sess, sync, creds)
	_, err := p.Run()

# Rendering

Streaming answers are shown as wrapped plain text and redrawn at most
30 times per second. Finished answers are rendered as markdown with
glamour and cached per message and width.

# Keys

	enter      send the question (or re-ask the selected history entry)
	esc        cancel the streaming answer, or leave the history pane
	ctrl+n     start a new chat
	tab        toggle the history pane
	ctrl+r     refresh history now
	ctrl+c     quit
*/
package chat
