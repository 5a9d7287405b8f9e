// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/campusgpt-tui/internal/auth"
	"github.com/jeranaias/campusgpt-tui/internal/config"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// HandleToken stores or removes the login token. "token set" without an
// argument reads the token from the first line of stdin, which keeps it out
// of shell history. A running chat picks the change up from the file.
func HandleToken(cfg *config.Config, args Args, stdin io.Reader, w io.Writer) error {
	p := auth.NewFileProvider(cfg.Auth.TokenFile, logging.Discard())

	switch args.Subcommand {
	case "set":
		token := args.Token
		if token == "" {
			if stdin == nil {
				return errors.New("token: no token given")
			}
			line, err := bufio.NewReader(stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("token: read stdin: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		if err := p.Save(token); err != nil {
			return fmt.Errorf("token: %w", err)
		}
		fmt.Fprintln(w, styles.RenderSuccess("Token saved to "+p.Path()))
		if cfg.Auth.Token != "" {
			fmt.Fprintln(w, styles.RenderWarning("CAMPUSGPT_TOKEN is set and takes precedence over the file"))
		}
		return nil

	case "clear":
		if err := p.Invalidate(); err != nil {
			return fmt.Errorf("token: %w", err)
		}
		fmt.Fprintln(w, styles.RenderSuccess("Logged out"))
		return nil
	}
	return fmt.Errorf("token: unknown subcommand %q", args.Subcommand)
}
