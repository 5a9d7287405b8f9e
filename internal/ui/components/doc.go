// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the view pieces of the chat screen.

  - Header: brand, conversation title and backend host
  - StatusBar: exchange state, history freshness, login state and shortcuts
  - HistoryList: the searchable past-questions pane
  - Spinner: the "Thinking" indicator shown until the first chunk arrives
  - RenderSources: the citation list under an answer

Components hold display state only. The chat model copies session and
history state into them before rendering.
*/
package components
