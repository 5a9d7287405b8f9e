// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	chatsvc "github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/transport"
	"github.com/jeranaias/campusgpt-tui/internal/ui/components"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat model.
type Options struct {
	Session *chatsvc.Session
	// History is optional; without it the history pane stays empty.
	History *history.Synchronizer
	Theme   *styles.Theme
	BaseURL string
	// WordWrap caps the answer width in cells. Zero uses the full width.
	WordWrap int
	LoggedIn bool
	Logger   *slog.Logger
}

type focusArea int

const (
	focusInput focusArea = iota
	focusHistory
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	session *chatsvc.Session
	history *history.Synchronizer
	theme   *styles.Theme
	keys    KeyMap
	logger  *slog.Logger

	// ctx parents every request started from the UI; quitting cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	width    int
	height   int
	wordWrap int
	ready    bool

	header   *components.Header
	status   *components.StatusBar
	hist     *components.HistoryList
	spinner  components.Spinner
	viewport viewport.Model
	input    textinput.Model
	search   textinput.Model
	md       *markdownRenderer

	focus       focusArea
	showHistory bool
	dirty       bool
	ticking     bool
	flashID     int
	quitting    bool
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Placeholder = "Ask about courses, deadlines, campus services..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 2000
	input.Focus()

	search := textinput.New()
	search.Placeholder = "search"
	search.Prompt = "/ "

	keys := DefaultKeyMap()
	status := components.NewStatusBar(theme)
	status.SetShortcuts(shortcuts(keys.ShortHelp()))
	status.SetLoggedIn(opts.LoggedIn)

	m := Model{
		session:  opts.Session,
		history:  opts.History,
		theme:    theme,
		keys:     keys,
		logger:   logging.Component(logger, "ui"),
		ctx:      ctx,
		cancel:   cancel,
		wordWrap: opts.WordWrap,
		header:   components.NewHeader(theme, opts.BaseURL),
		status:   status,
		hist:     components.NewHistoryList(theme),
		spinner:  components.NewSpinner("Thinking"),
		input:    input,
		search:   search,
		md:       newMarkdownRenderer(theme.GlamourStyle()),
	}
	if m.history != nil {
		m.applySnapshot(m.history.Snapshot())
	}
	return m
}

// Init starts the cursor blink and the first history refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshHistoryCmd())
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SessionChangeMsg:
		cmd := m.handleChange(msg.Change)
		return m, cmd

	case SubmitDoneMsg:
		cmd := m.handleSubmitDone(msg)
		return m, cmd

	case NewChatDoneMsg:
		m.header.SetTitle("")
		m.refresh()
		return m, nil

	case HistoryMsg:
		m.applySnapshot(msg.Snapshot)
		return m, nil

	case HistoryRetryMsg:
		cmd := m.handleRetryDone(msg.Err)
		return m, cmd

	case TokenStateMsg:
		m.status.SetLoggedIn(msg.LoggedIn)
		return m, nil

	case renderTickMsg:
		m.ticking = false
		if m.dirty {
			m.refresh()
		}
		if m.session.Busy() {
			m.ticking = true
			return m, renderTickCmd()
		}
		return m, nil

	case clearFlashMsg:
		if msg.id == m.flashID {
			m.status.SetFlash("")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.focus == focusHistory {
			m.setHistoryVisible(false)
			return m, nil
		}
		if m.session.Busy() {
			return m, m.cancelCmd()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m, m.newChatCmd()

	case key.Matches(msg, m.keys.ToggleHistory):
		m.setHistoryVisible(!m.showHistory)
		return m, nil

	case key.Matches(msg, m.keys.RetryHistory):
		return m, m.retryHistoryCmd()
	}

	if m.focus == focusHistory {
		return m.handleHistoryKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		// The text stays in the input so it is not lost.
		if m.session.Busy() {
			cmd := m.flash("An answer is still in progress. Press esc to cancel it.")
			return m, cmd
		}
		m.input.Reset()
		return m, m.submitCmd(question)

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		entry, ok := m.hist.Selected()
		if !ok {
			return m, nil
		}
		if m.session.Busy() {
			cmd := m.flash("An answer is still in progress. Press esc to cancel it.")
			return m, cmd
		}
		m.setHistoryVisible(false)
		return m, m.submitCmd(entry.Question)
	case key.Matches(msg, m.keys.Up):
		m.hist.MoveUp()
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.hist.MoveDown()
		return m, nil
	}
	return m.updateFocused(msg)
}

// updateFocused forwards msg to the focused text input.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == focusHistory {
		m.search, cmd = m.search.Update(msg)
		m.hist.SetFilter(m.search.Value())
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleChange reacts to a session notification.
func (m *Model) handleChange(c chatsvc.Change) tea.Cmd {
	m.status.SetStatus(statusFor(c.State))

	var cmd tea.Cmd
	switch c.Kind {
	case chatsvc.ChangeSubmitted:
		cmd = m.spinner.Start()
		m.header.SetTitle(m.session.Conversation().Title())
		m.refresh()
		m.viewport.GotoBottom()
	case chatsvc.ChangeStreaming, chatsvc.ChangeSources:
		m.dirty = true
	case chatsvc.ChangeChunk:
		m.spinner.Stop()
		m.dirty = true
	case chatsvc.ChangeFinished:
		m.spinner.Stop()
		m.refresh()
	case chatsvc.ChangeCleared:
		m.spinner.Stop()
		m.md.Reset()
		m.header.SetTitle("")
		m.refresh()
	}

	if m.dirty && !m.ticking {
		m.ticking = true
		return tea.Batch(cmd, renderTickCmd())
	}
	return cmd
}

func (m *Model) handleSubmitDone(msg SubmitDoneMsg) tea.Cmd {
	err := msg.Err
	if err == nil {
		return nil
	}
	m.refresh()

	switch {
	case errors.Is(err, chatsvc.ErrEmptyQuestion):
		return nil
	case errors.Is(err, chatsvc.ErrBusy):
		return m.flash("An answer is still in progress. Press esc to cancel it.")
	case errors.Is(err, context.Canceled):
		return m.flash("Answer cancelled")
	case errors.Is(err, transport.ErrUnauthorized):
		m.status.SetLoggedIn(false)
		return m.flash("Session expired, log in again: campusgpt token set <token>")
	case errors.Is(err, transport.ErrNoCredentials):
		m.status.SetLoggedIn(false)
		return m.flash("Not logged in: campusgpt token set <token>")
	case errors.Is(err, transport.ErrRateLimited):
		return m.flash("Too many requests, wait a moment")
	}
	m.logger.Warn("question failed", "error", err)
	return nil
}

func (m *Model) handleRetryDone(err error) tea.Cmd {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, history.ErrThrottled):
		return m.flash("History was refreshed moments ago, try again shortly")
	case errors.Is(err, context.Canceled):
		return nil
	}
	m.logger.Warn("history refresh failed", "error", err)
	return m.flash("Could not refresh history, showing saved copy")
}

// =============================================================================
// COMMANDS
// =============================================================================

// Session and synchronizer calls notify observers through Program.Send,
// which blocks until Update returns, so they always run as commands.

func (m *Model) submitCmd(question string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return SubmitDoneMsg{Question: question, Err: s.Submit(ctx, question)}
	}
}

func (m *Model) cancelCmd() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		s.Cancel()
		return nil
	}
}

func (m *Model) newChatCmd() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		s.NewChat(ctx)
		return NewChatDoneMsg{}
	}
}

func (m *Model) refreshHistoryCmd() tea.Cmd {
	if m.history == nil {
		return nil
	}
	h, ctx := m.history, m.ctx
	return func() tea.Msg {
		_, err := h.Refresh(ctx)
		return HistoryRetryMsg{Err: err}
	}
}

func (m *Model) retryHistoryCmd() tea.Cmd {
	if m.history == nil {
		return nil
	}
	h, ctx := m.history, m.ctx
	return func() tea.Msg {
		_, err := h.Retry(ctx)
		return HistoryRetryMsg{Err: err}
	}
}

// flash shows text in the status bar until it times out or is replaced.
func (m *Model) flash(text string) tea.Cmd {
	m.flashID++
	m.status.SetFlash(text)
	return clearFlashCmd(m.flashID)
}

// =============================================================================
// STATE HELPERS
// =============================================================================

func (m *Model) applySnapshot(snap history.Snapshot) {
	m.hist.SetEntries(snap.Entries, snap.Stale)
	m.status.SetHistory(len(snap.Entries), snap.Stale, snap.RefreshedAt)
}

func (m *Model) setHistoryVisible(visible bool) {
	m.showHistory = visible
	if visible {
		m.focus = focusHistory
		m.input.Blur()
		m.search.Focus()
	} else {
		m.focus = focusInput
		m.search.Blur()
		m.input.Focus()
	}
	if m.ready {
		m.resize(m.width, m.height)
		m.refresh()
	}
}

func statusFor(s chatsvc.State) components.Status {
	switch s {
	case chatsvc.StateSending:
		return components.StatusSending
	case chatsvc.StateStreaming:
		return components.StatusStreaming
	case chatsvc.StateDone:
		return components.StatusDone
	case chatsvc.StateError:
		return components.StatusError
	case chatsvc.StateCancelled:
		return components.StatusCancelled
	default:
		return components.StatusReady
	}
}
