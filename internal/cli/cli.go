// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/jeranaias/campusgpt-tui/internal/config"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/server"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdHistory
	CmdMockServer
	CmdConfig
	CmdToken
	CmdVersion
	CmdHelp
)

// DefaultMockToken is the bearer token the dev server accepts unless
// --token says otherwise.
const DefaultMockToken = "dev-token"

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	BaseURL    string
	NoStream   bool
	Plain      bool
	Verbose    bool

	// Command-specific
	Query      string // ask
	Search     string // history
	Addr       string // mock-server
	Token      string // mock-server, token set
	Subcommand string // config, token
	Force      bool   // config init

	// Raw holds the arguments after the command name.
	Raw []string
}

const usageText = `campusgpt - terminal client for the CampusGPT student assistant

Usage:
  campusgpt                          Start the chat (default)
  campusgpt chat [--plain]           Same; --plain uses a line-mode REPL
  campusgpt ask <question>           Ask one question and print the answer
  campusgpt history [--search term]  Show past questions
  campusgpt token set <token>|clear  Store or remove the login token
  campusgpt config show|path|init    Inspect or create the config file
  campusgpt mock-server [--addr a]   Run a local development backend
  campusgpt version                  Show version information

Global flags:
  --config <path>    Config file (default ~/.campusgpt/config.toml)
  --base-url <url>   Backend URL, overrides the config
  --no-stream        Ask for complete answers instead of streams
  --plain            Line-mode chat, no full-screen UI
  -v, --verbose      Debug logging

Environment:
  CAMPUSGPT_BASE_URL, CAMPUSGPT_TOKEN, CAMPUSGPT_TOKEN_FILE,
  CAMPUSGPT_STREAMING, CAMPUSGPT_LOG_LEVEL, CAMPUSGPT_THEME
  A .env file in the working directory is read as well.

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "campusgpt version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments, without the program name.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, help, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if help {
		return CmdHelp, args, nil
	}
	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	rest := remaining[1:]
	args.Raw = rest

	switch name {
	case "tui", "chat":
		return CmdTUI, args, nil

	case "ask":
		p := NewArgParser(rest)
		args.Query = strings.TrimSpace(JoinPositionalArgs(p, 0))
		if args.Query == "" {
			return CmdAsk, args, errors.New("ask: a question is required")
		}
		return CmdAsk, args, nil

	case "history":
		p := NewArgParser(rest)
		args.Search = p.FlagOrDefault("search", p.Flag("s"))
		if args.Search == "" {
			args.Search = JoinPositionalArgs(p, 0)
		}
		return CmdHistory, args, nil

	case "mock-server", "mockserver":
		p := NewArgParser(rest)
		args.Addr = p.FlagOrDefault("addr", server.DefaultAddr)
		args.Token = p.FlagOrDefault("token", DefaultMockToken)
		return CmdMockServer, args, nil

	case "config":
		p := NewArgParser(rest, "force")
		args.Subcommand = strings.ToLower(p.Subcommand())
		if args.Subcommand == "" {
			args.Subcommand = "show"
		}
		args.Force = p.BoolFlag("force")
		switch args.Subcommand {
		case "show", "path", "init":
			return CmdConfig, args, nil
		}
		return CmdConfig, args, fmt.Errorf("config: unknown subcommand %q (want show, path or init)", args.Subcommand)

	case "token":
		p := NewArgParser(rest)
		args.Subcommand = strings.ToLower(p.Subcommand())
		switch args.Subcommand {
		case "set":
			args.Token = strings.TrimSpace(p.Positional(1))
			return CmdToken, args, nil
		case "clear":
			return CmdToken, args, nil
		}
		return CmdToken, args, errors.New("token: usage: campusgpt token set <token>|clear")

	case "version":
		return CmdVersion, args, nil

	case "help":
		return CmdHelp, args, nil
	}

	return CmdHelp, args, fmt.Errorf("unknown command %q", name)
}

// parseGlobalFlags extracts global flags from anywhere before "--".
func parseGlobalFlags(argv []string) (remaining []string, args Args, help bool, err error) {
	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(argv) {
			return "", fmt.Errorf("flag %s needs a value", name)
		}
		*i++
		return argv[*i], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args, help, nil
		case arg == "--config":
			if args.ConfigPath, err = value(&i, arg); err != nil {
				return nil, args, false, err
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--base-url":
			if args.BaseURL, err = value(&i, arg); err != nil {
				return nil, args, false, err
			}
		case strings.HasPrefix(arg, "--base-url="):
			args.BaseURL = strings.TrimPrefix(arg, "--base-url=")
		case arg == "--no-stream":
			args.NoStream = true
		case arg == "--plain":
			args.Plain = true
		case arg == "-v", arg == "--verbose":
			args.Verbose = true
		case arg == "-h", arg == "--help":
			help = true
		case arg == "-V", arg == "--version":
			remaining = append([]string{"version"}, remaining...)
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, help, nil
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, args, err := Parse(argv)
	if err != nil {
		fmt.Fprintln(stderr, styles.RenderError(err.Error()))
		fmt.Fprintln(stderr, "Run 'campusgpt help' for usage.")
		return 2
	}

	switch cmd {
	case CmdHelp:
		PrintUsage(stdout)
		return 0
	case CmdVersion:
		PrintVersion(stdout)
		return 0
	}

	if err := dispatch(ctx, cmd, args, stdin, stdout, stderr); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintln(stderr, styles.RenderError(err.Error()))
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, cmd Command, args Args, stdin io.Reader, stdout, stderr io.Writer) error {
	// config path and init must work even when the current file is broken.
	if cmd == CmdConfig && args.Subcommand != "show" {
		return HandleConfig(nil, args, stdout)
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	switch cmd {
	case CmdConfig:
		return HandleConfig(cfg, args, stdout)

	case CmdToken:
		return HandleToken(cfg, args, stdin, stdout)

	case CmdMockServer:
		logger := logging.New(stderr, cfg.Logging())
		srvCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return HandleMockServer(srvCtx, args.Addr, args.Token, logger, stdout)
	}

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.WatchToken(ctx)

	switch cmd {
	case CmdAsk:
		askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return HandleAsk(askCtx, app, args.Query, stdout, IsStdoutTTY() && !cfg.UI.Plain)
	case CmdHistory:
		return HandleHistory(ctx, app, args.Search, stdout)
	default:
		if cfg.UI.Plain || !IsTTY() || !IsStdoutTTY() {
			return HandleChat(ctx, app, stdout)
		}
		return RunTUI(ctx, app)
	}
}

// LoadConfig loads .env, the config file and the environment, then applies
// command-line overrides.
func LoadConfig(args Args) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if args.BaseURL != "" {
		cfg.Server.BaseURL = strings.TrimRight(args.BaseURL, "/")
	}
	if args.NoStream {
		cfg.Chat.Streaming = false
	}
	if args.Plain {
		cfg.UI.Plain = true
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configFilePath is the file config path/init operate on.
func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// fileExists reports whether path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
