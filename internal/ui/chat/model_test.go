// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatsvc "github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/transport"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

type senderFunc func(ctx context.Context, req transport.Request) (*transport.Reply, error)

func (f senderFunc) Send(ctx context.Context, req transport.Request) (*transport.Reply, error) {
	return f(ctx, req)
}

func streamOf(frames ...string) senderFunc {
	body := strings.Join(frames, "\n") + "\n"
	return func(ctx context.Context, req transport.Request) (*transport.Reply, error) {
		return &transport.Reply{Body: io.NopCloser(strings.NewReader(body)), Status: 200}, nil
	}
}

// blockingSender waits for release or cancellation before answering.
func blockingSender(release <-chan struct{}) senderFunc {
	return func(ctx context.Context, req transport.Request) (*transport.Reply, error) {
		select {
		case <-release:
			return streamOf(`data: {"type":"chunk","data":"ok"}`, `data: {"type":"done"}`)(ctx, req)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func chunk(text string) string {
	return `data: {"type":"chunk","data":"` + text + `"}`
}

const frameDone = `data: {"type":"done"}`

// recorder collects session notifications so tests can replay them into the
// model the way Bridge would.
type recorder struct {
	mu      sync.Mutex
	changes []chatsvc.Change
}

func (r *recorder) add(c chatsvc.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) take() []chatsvc.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.changes
	r.changes = nil
	return out
}

type fixture struct {
	session *chatsvc.Session
	rec     *recorder
}

func newModel(t *testing.T, sender chatsvc.Sender, sync *history.Synchronizer) (Model, fixture) {
	t.Helper()
	s := chatsvc.NewSession(sender, chatsvc.WithLogger(logging.Discard()))
	rec := &recorder{}
	remove := s.Observe(rec.add)
	t.Cleanup(remove)

	m := New(Options{
		Session:  s,
		History:  sync,
		Theme:    styles.NewTheme("dark"),
		BaseURL:  "http://localhost:8000",
		LoggedIn: true,
		Logger:   logging.Discard(),
	})
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, fixture{session: s, rec: rec}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func replay(m Model, rec *recorder) Model {
	for _, c := range rec.take() {
		m, _ = update(m, SessionChangeMsg{Change: c})
	}
	return m
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

func plain(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_RendersStreamedAnswer(t *testing.T) {
	m, fx := newModel(t, streamOf(
		`data: {"type":"sources","data":[{"id":1,"name":"Student Handbook","page":3}]}`,
		chunk("The library "),
		chunk("opens at 8am."),
		frameDone,
	), nil)

	m.input.SetValue("Library hours?")
	m, cmd := update(m, keyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	done, ok := cmd().(SubmitDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	assert.Equal(t, "Library hours?", done.Question)

	m = replay(m, fx.rec)
	m, _ = update(m, done)

	view := plain(m.View())
	assert.Contains(t, view, "Library hours?")
	assert.Contains(t, view, "8am")
	assert.Contains(t, view, "Student Handbook")
	assert.Contains(t, view, "Done")
	assert.NotContains(t, view, strings.TrimSpace(streamCursor))
}

func TestSubmit_EmptyInputIgnored(t *testing.T) {
	m, _ := newModel(t, streamOf(frameDone), nil)
	m.input.SetValue("   ")
	_, cmd := update(m, keyEnter)
	assert.Nil(t, cmd)
}

func TestSubmit_BusyKeepsInputAndFlashes(t *testing.T) {
	release := make(chan struct{})
	m, fx := newModel(t, blockingSender(release), nil)

	m.input.SetValue("first")
	m, cmd := update(m, keyEnter)
	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()
	require.Eventually(t, fx.session.Busy, time.Second, 5*time.Millisecond)

	m.input.SetValue("second")
	m, cmd = update(m, keyEnter)
	assert.NotNil(t, cmd)
	assert.Equal(t, "second", m.input.Value())
	assert.Contains(t, plain(m.status.View()), "still in progress")

	close(release)
	done := (<-result).(SubmitDoneMsg)
	assert.NoError(t, done.Err)
	assert.Equal(t, 2, fx.session.Conversation().Len())
}

func TestEsc_CancelsStreamingAnswer(t *testing.T) {
	m, fx := newModel(t, blockingSender(make(chan struct{})), nil)

	m.input.SetValue("slow question")
	m, cmd := update(m, keyEnter)
	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()
	require.Eventually(t, fx.session.Busy, time.Second, 5*time.Millisecond)

	m, cancel := update(m, keyEsc)
	require.NotNil(t, cancel)
	assert.Nil(t, cancel())

	done := (<-result).(SubmitDoneMsg)
	assert.ErrorIs(t, done.Err, context.Canceled)
	assert.Equal(t, chatsvc.StateCancelled, fx.session.State())

	m = replay(m, fx.rec)
	m, _ = update(m, done)
	assert.Contains(t, plain(m.status.View()), "Cancelled")
}

func TestSubmitDone_Unauthorized(t *testing.T) {
	m, _ := newModel(t, streamOf(frameDone), nil)

	m, cmd := update(m, SubmitDoneMsg{Err: &transport.Error{Status: 401}})
	assert.NotNil(t, cmd)
	view := plain(m.status.View())
	assert.Contains(t, view, "logged out")
	assert.Contains(t, view, "Session expired")

	m, _ = update(m, TokenStateMsg{LoggedIn: true})
	assert.NotContains(t, plain(m.status.View()), "logged out")
}

func TestSubmit_ErrorFrameStyled(t *testing.T) {
	m, fx := newModel(t, streamOf(chunk("partial"), `data: {"type":"error","message":"Backend unavailable"}`), nil)

	m.input.SetValue("anything")
	m, cmd := update(m, keyEnter)
	done := cmd().(SubmitDoneMsg)
	require.Error(t, done.Err)

	m = replay(m, fx.rec)
	m, _ = update(m, done)
	view := plain(m.View())
	assert.Contains(t, view, "Backend unavailable")
	assert.NotContains(t, view, "partial")
	assert.Contains(t, view, "Error")
}

// =============================================================================
// STREAMING RENDER
// =============================================================================

func TestStreaming_ShowsPlainTextWithCursor(t *testing.T) {
	m, fx := newModel(t, streamOf(chunk("Half an answer"), frameDone), nil)
	conv := fx.session.Conversation()

	// Drive the conversation directly to a mid-stream state.
	handle, err := conv.BeginExchange("q")
	require.NoError(t, err)
	handle.Append("Half an answer")

	m, cmd := update(m, SessionChangeMsg{Change: chatsvc.Change{Kind: chatsvc.ChangeChunk, State: chatsvc.StateStreaming}})
	assert.NotNil(t, cmd, "render tick scheduled")
	assert.True(t, m.dirty)

	m, _ = update(m, renderTickMsg(time.Now()))
	assert.False(t, m.dirty)
	view := plain(m.View())
	assert.Contains(t, view, "Half an answer")
	assert.Contains(t, view, strings.TrimSpace(streamCursor))
}

func TestNewChat_ClearsView(t *testing.T) {
	m, fx := newModel(t, streamOf(chunk("hi"), frameDone), nil)
	m.input.SetValue("hello")
	m, cmd := update(m, keyEnter)
	cmd()
	m = replay(m, fx.rec)

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.NotNil(t, cmd)
	_, ok := cmd().(NewChatDoneMsg)
	require.True(t, ok)
	m = replay(m, fx.rec)

	assert.True(t, fx.session.Conversation().IsEmpty())
	assert.Contains(t, plain(m.View()), "Ask anything about your campus")
}

// =============================================================================
// HISTORY PANE
// =============================================================================

type fakeFetcher struct {
	entries []model.HistoryEntry
	err     error
}

func (f *fakeFetcher) History(ctx context.Context) ([]model.HistoryEntry, error) {
	return f.entries, f.err
}

func historyEntries() []model.HistoryEntry {
	return []model.HistoryEntry{
		{ID: "2", Question: "Where can I park?", Answer: "Lots C and D."},
		{ID: "1", Question: "Library hours?", Answer: "8am-10pm."},
	}
}

func TestHistory_SnapshotSearchAndReask(t *testing.T) {
	sync := history.NewSynchronizer(&fakeFetcher{entries: historyEntries()}, history.WithLogger(logging.Discard()))
	_, err := sync.Refresh(t.Context())
	require.NoError(t, err)

	m, _ := newModel(t, streamOf(chunk("again"), frameDone), sync)
	assert.Contains(t, plain(m.status.View()), "history 2")

	m, _ = update(m, keyTab)
	require.True(t, m.showHistory)
	assert.Equal(t, focusHistory, m.focus)
	assert.Contains(t, plain(m.View()), "Where can I park?")

	m, _ = update(m, runes("library"))
	assert.Equal(t, "library", m.hist.Filter())
	assert.Equal(t, 1, m.hist.Len())

	m, cmd := update(m, keyEnter)
	require.NotNil(t, cmd)
	assert.False(t, m.showHistory)
	assert.Equal(t, focusInput, m.focus)

	done := cmd().(SubmitDoneMsg)
	assert.Equal(t, "Library hours?", done.Question)
	assert.NoError(t, done.Err)
}

func TestHistory_EscReturnsToInput(t *testing.T) {
	m, _ := newModel(t, streamOf(frameDone), nil)
	m, _ = update(m, keyTab)
	m, _ = update(m, keyDown)
	m, _ = update(m, keyEsc)
	assert.False(t, m.showHistory)
	assert.Equal(t, focusInput, m.focus)
}

func TestHistory_UpdatesAndStale(t *testing.T) {
	m, _ := newModel(t, streamOf(frameDone), nil)

	m, _ = update(m, HistoryMsg{Snapshot: history.Snapshot{Entries: historyEntries(), Stale: true}})
	status := plain(m.status.View())
	assert.Contains(t, status, "history 2")
	assert.Contains(t, status, "stale")
}

func TestHistory_RetryThrottled(t *testing.T) {
	sync := history.NewSynchronizer(&fakeFetcher{}, history.WithLogger(logging.Discard()), history.WithManualRate(1))
	m, _ := newModel(t, streamOf(frameDone), sync)

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	first := cmd().(HistoryRetryMsg)
	assert.NoError(t, first.Err)

	_, cmd = update(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	second := cmd().(HistoryRetryMsg)
	assert.ErrorIs(t, second.Err, history.ErrThrottled)

	m, _ = update(m, second)
	assert.Contains(t, plain(m.status.View()), "refreshed moments ago")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestQuit(t *testing.T) {
	m, _ := newModel(t, streamOf(frameDone), nil)
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
	assert.Error(t, m.ctx.Err())
}

func TestFlash_ClearsOnlyLatest(t *testing.T) {
	m, _ := newModel(t, streamOf(frameDone), nil)
	m.flash("one")
	m.flash("two")

	m, _ = update(m, clearFlashMsg{id: 1})
	assert.Equal(t, "two", m.status.Flash())
	m, _ = update(m, clearFlashMsg{id: 2})
	assert.Empty(t, m.status.Flash())
}

func TestView_BeforeResize(t *testing.T) {
	s := chatsvc.NewSession(streamOf(frameDone), chatsvc.WithLogger(logging.Discard()))
	m := New(Options{Session: s, Theme: styles.NewTheme("light")})
	assert.Equal(t, "Loading...", m.View())
}

// =============================================================================
// BRIDGE AND RENDERER
// =============================================================================

type captureSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *captureSender) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

type fakeTokens struct {
	fn func(bool)
}

func (f *fakeTokens) OnChange(fn func(bool)) { f.fn = fn }

func TestBridge_ForwardsAllSources(t *testing.T) {
	s := chatsvc.NewSession(streamOf(frameDone), chatsvc.WithLogger(logging.Discard()))
	sync := history.NewSynchronizer(&fakeFetcher{entries: historyEntries()}, history.WithLogger(logging.Discard()))
	tokens := &fakeTokens{}
	p := &captureSender{}

	detach := Bridge(p, s, sync, tokens)
	s.NewChat(t.Context())
	_, err := sync.Refresh(t.Context())
	require.NoError(t, err)
	tokens.fn(false)

	require.Len(t, p.msgs, 3)
	assert.Equal(t, chatsvc.ChangeCleared, p.msgs[0].(SessionChangeMsg).Change.Kind)
	assert.Len(t, p.msgs[1].(HistoryMsg).Snapshot.Entries, 2)
	assert.Equal(t, TokenStateMsg{LoggedIn: false}, p.msgs[2])

	detach()
	s.NewChat(t.Context())
	assert.Len(t, p.msgs, 3)
}

func TestMarkdownRenderer_Caches(t *testing.T) {
	r := newMarkdownRenderer("dark")
	first := r.Render("m1", "**bold** text", 60)
	assert.Contains(t, plain(first), "bold")

	// Cached by ID and width: different text under the same key is ignored.
	assert.Equal(t, first, r.Render("m1", "other", 60))
	assert.NotEqual(t, first, r.Render("m1", "other", 40))

	r.Reset()
	assert.Contains(t, plain(r.Render("m1", "other", 60)), "other")
}
