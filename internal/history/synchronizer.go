// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/campusgpt-tui/internal/model"
)

// DefaultLimit is the number of entries shown, matching the backend's own cap.
const DefaultLimit = 50

// ErrThrottled is returned by Retry when manual refreshes come too fast.
var ErrThrottled = errors.New("history: refresh requested too soon, try again shortly")

// Fetcher retrieves the full history list from the backend.
type Fetcher interface {
	History(ctx context.Context) ([]model.HistoryEntry, error)
}

// Snapshot is an immutable view of the synchronized history.
type Snapshot struct {
	Entries     []model.HistoryEntry
	RefreshedAt time.Time
	// Stale is true when the last refresh attempt failed.
	Stale bool
}

// =============================================================================
// SYNCHRONIZER
// =============================================================================

// Synchronizer owns the local history snapshot.
type Synchronizer struct {
	fetcher Fetcher
	store   *Store
	logger  *slog.Logger
	limiter *rate.Limiter
	limit   int

	// refreshMu serializes fetches so snapshots land in request order.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	entries     []model.HistoryEntry
	refreshedAt time.Time
	lastErr     error
	listeners   []func(Snapshot)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithStore persists successful snapshots to store.
func WithStore(store *Store) Option {
	return func(s *Synchronizer) { s.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLimit caps how many entries are kept. Zero or less means no cap.
func WithLimit(n int) Option {
	return func(s *Synchronizer) { s.limit = n }
}

// WithManualRate sets how many manual Retry calls are allowed per minute.
// Zero disables throttling.
func WithManualRate(perMinute int) Option {
	return func(s *Synchronizer) {
		if perMinute <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// NewSynchronizer creates a Synchronizer pulling from fetcher.
func NewSynchronizer(fetcher Fetcher, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		fetcher: fetcher,
		logger:  slog.Default(),
		limit:   DefaultLimit,
		entries: []model.HistoryEntry{},
	}
	WithManualRate(6)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadCache fills the snapshot from the SQLite cache, if configured.
func (s *Synchronizer) LoadCache(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	entries, refreshedAt, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = s.capped(entries)
	s.refreshedAt = refreshedAt
	s.mu.Unlock()
	s.notify()
	return nil
}

// Refresh fetches the history and replaces the snapshot. On failure the
// previous snapshot is kept and the error is logged and returned.
func (s *Synchronizer) Refresh(ctx context.Context) ([]model.HistoryEntry, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	entries, err := s.fetcher.History(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Warn("history refresh failed", "error", err)
		s.notify()
		return nil, err
	}

	entries = s.capped(entries)
	now := time.Now()

	s.mu.Lock()
	s.entries = entries
	s.refreshedAt = now
	s.lastErr = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Replace(ctx, entries); err != nil {
			s.logger.Warn("history cache write failed", "error", err)
		}
	}

	s.logger.Debug("history refreshed", "entries", len(entries))
	s.notify()
	return cloneEntries(entries), nil
}

// Retry is the user-initiated refresh. It is rate limited so holding the
// refresh key cannot hammer the backend.
func (s *Synchronizer) Retry(ctx context.Context) ([]model.HistoryEntry, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrThrottled
	}
	return s.Refresh(ctx)
}

// Entries returns a copy of the current snapshot.
func (s *Synchronizer) Entries() []model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Snapshot returns the entries together with refresh metadata.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Entries:     cloneEntries(s.entries),
		RefreshedAt: s.refreshedAt,
		Stale:       s.lastErr != nil,
	}
}

// LastError returns the error of the most recent failed refresh, or nil
// after a successful one.
func (s *Synchronizer) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Search filters the current snapshot by term.
func (s *Synchronizer) Search(term string) []model.HistoryEntry {
	return Filter(s.Entries(), term)
}

// Subscribe registers fn to receive every new snapshot, including failed
// refreshes (Stale set). fn runs on the refreshing goroutine.
func (s *Synchronizer) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Synchronizer) notify() {
	s.mu.RLock()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Synchronizer) capped(entries []model.HistoryEntry) []model.HistoryEntry {
	if entries == nil {
		return []model.HistoryEntry{}
	}
	if s.limit > 0 && len(entries) > s.limit {
		return entries[:s.limit]
	}
	return entries
}

// Filter returns the entries whose question or answer contains term,
// ignoring case. Order is preserved.
func Filter(entries []model.HistoryEntry, term string) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Matches(term) {
			out = append(out, e)
		}
	}
	return out
}

func cloneEntries(entries []model.HistoryEntry) []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}
