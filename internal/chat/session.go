// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/stream"
	"github.com/jeranaias/campusgpt-tui/internal/transport"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Sender obtains a reply for a question. transport.Client implements it.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (*transport.Reply, error)
}

// HistoryRefresher is told to re-fetch history after a completed answer.
// history.Synchronizer implements it.
type HistoryRefresher interface {
	Refresh(ctx context.Context) ([]model.HistoryEntry, error)
}

// SessionCreator obtains a server-side chat session ID.
// transport.Client implements it.
type SessionCreator interface {
	CreateSession(ctx context.Context) (string, error)
}

// =============================================================================
// SESSION
// =============================================================================

// Session manages the conversation and at most one in-flight exchange.
type Session struct {
	sender  Sender
	history HistoryRefresher
	creator SessionCreator
	logger  *slog.Logger
	conv    *model.Conversation

	mu        sync.Mutex
	streaming bool
	state     State
	cancel    context.CancelFunc
	exchange  uint64
	lastErr   error
	serverID  string
	observers map[int]func(Change)
	nextObs   int
}

// Option configures a Session.
type Option func(*Session)

// WithHistory sets the synchronizer refreshed after each completed answer.
func WithHistory(h HistoryRefresher) Option {
	return func(s *Session) { s.history = h }
}

// WithServerSessions makes NewChat request a backend session ID.
func WithServerSessions(c SessionCreator) Option {
	return func(s *Session) { s.creator = c }
}

// WithStreaming selects streaming (true, the default) or single-reply mode.
func WithStreaming(enabled bool) Option {
	return func(s *Session) { s.streaming = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConversation uses conv instead of a fresh conversation.
func WithConversation(conv *model.Conversation) Option {
	return func(s *Session) {
		if conv != nil {
			s.conv = conv
		}
	}
}

// NewSession creates a Session that sends questions through sender.
func NewSession(sender Sender, opts ...Option) *Session {
	s := &Session{
		sender:    sender,
		logger:    slog.Default(),
		conv:      model.NewConversation(),
		streaming: true,
		observers: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Conversation returns the conversation for snapshot reads.
func (s *Session) Conversation() *model.Conversation {
	return s.conv
}

// State returns the state of the current or last exchange.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether an exchange is in flight.
func (s *Session) Busy() bool {
	return s.State().InFlight()
}

// LastError returns the error that ended the last exchange, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Streaming reports the default request mode.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// SetStreaming changes the default request mode for later submissions.
func (s *Session) SetStreaming(enabled bool) {
	s.mu.Lock()
	s.streaming = enabled
	s.mu.Unlock()
}

// ServerSessionID returns the backend session ID, if one was created.
func (s *Session) ServerSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverID
}

// Observe registers fn for change notifications and returns a function that
// removes it. fn runs on the goroutine that made the change and must not
// block.
func (s *Session) Observe(fn func(Change)) (remove func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Submit asks question using the session's default mode and blocks until the
// answer is complete, failed or cancelled.
func (s *Session) Submit(ctx context.Context, question string) error {
	return s.SubmitWith(ctx, question, s.Streaming())
}

// SubmitWith is Submit with an explicit streaming choice.
//
// It returns ErrBusy, without touching the conversation, while another
// exchange is in flight, and ErrEmptyQuestion for blank input.
func (s *Session) SubmitWith(ctx context.Context, question string, streaming bool) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.state.InFlight() {
		s.mu.Unlock()
		return ErrBusy
	}
	handle, err := s.conv.BeginExchange(question)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.exchange++
	ex := &exchange{
		session: s,
		id:      s.exchange,
		handle:  handle,
		ctx:     ctx,
	}
	s.state = StateSending
	s.cancel = cancel
	s.lastErr = nil
	sessionID := s.serverID
	s.mu.Unlock()
	defer cancel()

	s.notify(Change{Kind: ChangeSubmitted, State: StateSending, MessageID: handle.MessageID()})
	s.logger.Debug("exchange started", "message_id", handle.MessageID(), "streaming", streaming)

	return ex.run(transport.Request{
		Question:  question,
		Stream:    streaming,
		SessionID: sessionID,
	})
}

// Cancel aborts the in-flight exchange, if any. The partial answer is kept.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// NewChat cancels any in-flight exchange, empties the conversation and, when
// server sessions are enabled, requests a new backend session ID.
func (s *Session) NewChat(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	// Bumping the exchange counter stops the old exchange from changing state.
	s.exchange++
	s.conv.Clear()
	s.state = StateIdle
	s.lastErr = nil
	s.serverID = ""
	creator := s.creator
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeCleared, State: StateIdle})

	if creator == nil {
		return
	}
	id, err := creator.CreateSession(ctx)
	if err != nil {
		s.logger.Warn("could not create server chat session, continuing without one", "error", err)
		return
	}
	s.mu.Lock()
	s.serverID = id
	s.mu.Unlock()
}

func (s *Session) notify(c Change) {
	s.mu.Lock()
	observers := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()
	for _, fn := range observers {
		fn(c)
	}
}

// transition moves ex to state if ex is still the current exchange.
func (s *Session) transition(ex *exchange, state State, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exchange != ex.id {
		return false
	}
	s.state = state
	if state.Terminal() {
		s.lastErr = err
		s.cancel = nil
	}
	return true
}

// =============================================================================
// EXCHANGE
// =============================================================================

// exchange is the per-Submit state. Nothing in it outlives the call.
type exchange struct {
	session *Session
	id      uint64
	handle  *model.Handle
	ctx     context.Context
}

func (ex *exchange) run(req transport.Request) error {
	s := ex.session

	reply, err := s.sender.Send(ex.ctx, req)
	if err != nil {
		return ex.fail(err)
	}
	defer reply.Close()

	if !s.transition(ex, StateStreaming, nil) {
		return ex.abandon()
	}
	s.notify(Change{Kind: ChangeStreaming, State: StateStreaming, MessageID: ex.handle.MessageID()})

	if !reply.Streaming() {
		if reply.Answer == nil {
			return ex.fail(errors.New("chat: reply carried neither a stream nor an answer"))
		}
		ex.handle.Complete(reply.Answer.Text, reply.Answer.Citations)
		return ex.complete()
	}

	reader := stream.NewReader(reply.Body, stream.WithLogger(s.logger))
	for {
		ev, err := reader.Next(ex.ctx)
		if errors.Is(err, io.EOF) {
			return ex.fail(ErrStreamEnded)
		}
		if err != nil {
			return ex.fail(err)
		}

		switch ev.Type {
		case stream.EventSources:
			if ex.handle.SetCitations(ev.Citations) {
				s.notify(Change{Kind: ChangeSources, State: StateStreaming, MessageID: ex.handle.MessageID()})
			}
		case stream.EventChunk:
			if ex.handle.Append(ev.Text) {
				s.notify(Change{Kind: ChangeChunk, State: StateStreaming, MessageID: ex.handle.MessageID(), Fragment: ev.Text})
			}
		case stream.EventError:
			return ex.serverError(ev.Message)
		case stream.EventDone:
			ex.handle.Finish()
			return ex.complete()
		}
	}
}

// complete marks the exchange done and refreshes history exactly once.
func (ex *exchange) complete() error {
	s := ex.session
	if !s.transition(ex, StateDone, nil) {
		return ex.abandon()
	}
	s.notify(Change{Kind: ChangeFinished, State: StateDone, MessageID: ex.handle.MessageID()})
	s.logger.Debug("exchange done", "message_id", ex.handle.MessageID())

	if s.history != nil {
		if _, err := s.history.Refresh(ex.ctx); err != nil {
			s.logger.Warn("history refresh after answer failed", "error", err)
		}
	}
	return nil
}

// serverError ends the exchange with the backend's own message.
func (ex *exchange) serverError(message string) error {
	s := ex.session
	err := &StreamEventError{Message: message}

	text := message
	if strings.TrimSpace(text) == "" {
		text = GenericErrorText
	}
	ex.handle.Fail(text)
	if !s.transition(ex, StateError, err) {
		return err
	}
	s.logger.Warn("backend reported an error mid-stream", "message", message)
	s.notify(Change{Kind: ChangeFinished, State: StateError, MessageID: ex.handle.MessageID()})
	return err
}

// fail handles transport failures, unexpected ends and cancellation.
func (ex *exchange) fail(err error) error {
	s := ex.session

	if ex.ctx.Err() != nil {
		return ex.abandon()
	}

	ex.handle.Fail(GenericErrorText)
	if !s.transition(ex, StateError, err) {
		return err
	}
	s.logger.Warn("exchange failed", "error", err)
	s.notify(Change{Kind: ChangeFinished, State: StateError, MessageID: ex.handle.MessageID()})
	return err
}

// abandon finalizes a cancelled exchange, keeping any partial answer.
func (ex *exchange) abandon() error {
	s := ex.session
	err := context.Cause(ex.ctx)
	if err == nil {
		err = context.Canceled
	}

	// After NewChat the handle is inert and the transition is refused.
	ex.handle.Finish()
	if s.transition(ex, StateCancelled, err) {
		s.logger.Debug("exchange cancelled", "message_id", ex.handle.MessageID())
		s.notify(Change{Kind: ChangeFinished, State: StateCancelled, MessageID: ex.handle.MessageID()})
	}
	return err
}
