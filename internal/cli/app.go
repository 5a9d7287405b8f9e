// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeranaias/campusgpt-tui/internal/auth"
	"github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/config"
	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/transport"
)

// App is the wired client: credentials, transport, history and the chat
// session, built once per process from the loaded config.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Creds   auth.CredentialProvider
	Client  *transport.Client
	History *history.Synchronizer
	Session *chat.Session

	// TokenFile is nil when the token comes from CAMPUSGPT_TOKEN.
	TokenFile *auth.FileProvider

	closers []io.Closer
}

// NewApp wires every component from cfg and loads the history cache. A
// broken cache is logged and skipped.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, logCloser, err := logging.Init(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		closers: []io.Closer{logCloser},
	}

	if cfg.Auth.Token != "" {
		app.Creds = auth.NewStatic(cfg.Auth.Token)
	} else {
		app.TokenFile = auth.NewFileProvider(cfg.Auth.TokenFile, logging.Component(logger, "auth"))
		app.Creds = app.TokenFile
	}

	app.Client = transport.NewClient(cfg.Server.BaseURL, app.Creds).
		WithPaths(cfg.Server.QueryPath, cfg.Server.HistoryPath, cfg.Server.SessionPath).
		WithTimeout(cfg.Timeout()).
		WithLogger(logging.Component(logger, "transport")).
		OnUnauthorized(func() {
			logger.Warn("backend rejected the token, log in again")
		})

	syncOpts := []history.Option{
		history.WithLogger(logging.Component(logger, "history")),
		history.WithLimit(cfg.History.Limit),
		history.WithManualRate(cfg.History.ManualRefreshPerMinute),
	}
	store, err := history.OpenStore(cfg.History.CachePath)
	if err != nil {
		logger.Warn("history cache unavailable", "path", cfg.History.CachePath, "error", err)
	} else {
		app.closers = append(app.closers, store)
		syncOpts = append(syncOpts, history.WithStore(store))
	}
	app.History = history.NewSynchronizer(app.Client, syncOpts...)
	if err := app.History.LoadCache(ctx); err != nil {
		logger.Warn("failed to load history cache", "error", err)
	}

	conv := model.NewConversation()
	conv.SetMaxMessages(cfg.Chat.MaxMessages)
	opts := []chat.Option{
		chat.WithConversation(conv),
		chat.WithHistory(app.History),
		chat.WithStreaming(cfg.Chat.Streaming),
		chat.WithLogger(logging.Component(logger, "chat")),
	}
	if cfg.Chat.ServerSessions {
		opts = append(opts, chat.WithServerSessions(app.Client))
	}
	app.Session = chat.NewSession(app.Client, opts...)

	logger.Debug("client ready",
		"base_url", cfg.Server.BaseURL,
		"streaming", cfg.Chat.Streaming,
		"server_sessions", cfg.Chat.ServerSessions,
		"env_token", app.TokenFile == nil)
	return app, nil
}

// StartChat opens a server-side chat session when enabled. Call it before
// any observer that needs a running UI is attached.
func (a *App) StartChat(ctx context.Context) {
	if a.Config.Chat.ServerSessions {
		a.Session.NewChat(ctx)
	}
}

// WatchToken follows the token file until ctx ends. It is a no-op for an
// environment token.
func (a *App) WatchToken(ctx context.Context) {
	if a.TokenFile == nil {
		return
	}
	go func() {
		if err := a.TokenFile.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Warn("token watch stopped", "error", err)
		}
	}()
}

// LoggedIn reports whether a token is currently available.
func (a *App) LoggedIn(ctx context.Context) bool {
	_, err := a.Creds.Token(ctx)
	return err == nil
}

// Close cancels any exchange and releases the cache and log file.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
