// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - config command.
//
// Subcommands:
//
//	show (default)   Print the effective configuration, token redacted
//	path             Print the config file location
//	init [--force]   Write a config file with the defaults
//
// Examples:
//
//	campusgpt config
//	campusgpt --base-url https://gpt.campus.edu config show
//	campusgpt config init
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusgpt-tui/internal/config"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

var configTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(styles.Campus)

// HandleConfig runs a config subcommand. cfg is only needed for show.
func HandleConfig(cfg *config.Config, args Args, w io.Writer) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "path":
		fmt.Fprintln(w, path)
		if !fileExists(path) {
			fmt.Fprintln(w, infoStyle.Render("(not created yet, run 'campusgpt config init')"))
		}
		return nil

	case "init":
		if fileExists(path) && !args.Force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintln(w, styles.RenderSuccess("Wrote "+path))
		return nil

	case "show", "":
		if cfg == nil {
			return errors.New("config: no configuration loaded")
		}
		fmt.Fprintln(w, configTitleStyle.Render("campusgpt configuration"))
		if fileExists(path) {
			fmt.Fprintln(w, infoStyle.Render("# file: "+path))
		} else {
			fmt.Fprintln(w, infoStyle.Render("# defaults (no config file)"))
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, cfg.String())
		return nil
	}
	return fmt.Errorf("config: unknown subcommand %q", args.Subcommand)
}
