// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeranaias/campusgpt-tui/internal/server"
)

// shutdownGrace bounds how long open streams get to finish on exit.
const shutdownGrace = 5 * time.Second

// HandleMockServer runs the development backend until ctx is cancelled.
func HandleMockServer(ctx context.Context, addr, token string, logger *slog.Logger, w io.Writer) error {
	srv := server.New(server.Config{
		Addr:   addr,
		Token:  token,
		Logger: logger,
	})

	fmt.Fprintf(w, "CampusGPT dev server on http://%s\n", addr)
	if token != "" {
		fmt.Fprintf(w, "Log in with: campusgpt --base-url http://%s token set %s\n", addr, token)
	}
	fmt.Fprintln(w, infoStyle.Render("Press Ctrl+C to stop."))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	stats := srv.Stats()
	logger.Info("dev server stopped", "queries", stats.Queries, "unauthorized", stats.Unauthorized)
	return nil
}
