// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/campusgpt-tui/internal/auth"
	"github.com/jeranaias/campusgpt-tui/internal/config"
	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/server"
)

// =============================================================================
// HELPERS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CAMPUSGPT_BASE_URL", "CAMPUSGPT_TOKEN", "CAMPUSGPT_TOKEN_FILE",
		"CAMPUSGPT_STREAMING", "CAMPUSGPT_LOG_LEVEL", "CAMPUSGPT_LOG_FORMAT",
		"CAMPUSGPT_LOG_PATH", "CAMPUSGPT_THEME",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("HOME", t.TempDir())
}

func newDevServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.New(server.Config{Token: DefaultMockToken, ChunkDelay: -1, Logger: logging.Discard()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// newTestApp wires an App against the dev server. token is written to the
// token file when non-empty.
func newTestApp(t *testing.T, token string) *App {
	t.Helper()
	clearEnv(t)
	ts := newDevServer(t)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.BaseURL = ts.URL
	cfg.Auth.TokenFile = filepath.Join(dir, "token")
	cfg.History.CachePath = filepath.Join(dir, "history.db")
	cfg.Log.Path = logging.OutputDiscard

	if token != "" {
		require.NoError(t, auth.NewFileProvider(cfg.Auth.TokenFile, logging.Discard()).Save(token))
	}

	app, err := NewApp(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

// scriptReader feeds the REPL a fixed list of lines, then io.EOF.
type scriptReader struct {
	lines   []string
	errs    map[int]error
	calls   int
	history []string
}

func (r *scriptReader) Prompt(string) (string, error) {
	r.calls++
	if err, ok := r.errs[r.calls]; ok {
		return "", err
	}
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) AppendHistory(item string) { r.history = append(r.history, item) }
func (r *scriptReader) Close() error              { return nil }

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "flag with value",
			args:    []string{"--search", "library"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "library", p.Flag("search"))
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"init", "--addr=0.0.0.0:9000"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "0.0.0.0:9000", p.Flag("addr"))
			},
		},
		{
			name:    "declared bool flag keeps the next word",
			args:    []string{"init", "--force", "now"},
			bools:   []string{"force"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("force"))
				assert.Equal(t, "now", p.Positional(1))
			},
		},
		{
			name:    "trailing flag is boolean",
			args:    []string{"show", "--json"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("json"))
				assert.True(t, p.HasFlag("--json"))
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"what", "--", "--is", "this"},
			wantSub: "what",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "what --is this", JoinPositionalArgs(p, 0))
				assert.False(t, p.HasFlag("is"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			assert.Equal(t, tt.wantSub, p.Subcommand())
			assert.Equal(t, tt.args, p.Raw())
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_Positional(t *testing.T) {
	p := NewArgParser([]string{"a", "b", "c"})
	assert.Equal(t, 3, p.PositionalCount())
	assert.Equal(t, "", p.Positional(5))
	assert.Equal(t, []string{"b", "c"}, p.PositionalFrom(1))
	assert.Empty(t, p.PositionalFrom(9))
	assert.Equal(t, "fallback", p.FlagOrDefault("missing", "fallback"))
}

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
		wantErr string
	}{
		{name: "no args starts chat", argv: nil, wantCmd: CmdTUI},
		{name: "chat", argv: []string{"chat", "--plain"}, wantCmd: CmdTUI,
			check: func(t *testing.T, a Args) { assert.True(t, a.Plain) }},
		{name: "ask joins words", argv: []string{"ask", "when", "is", "the", "library", "open?"}, wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) { assert.Equal(t, "when is the library open?", a.Query) }},
		{name: "ask without question", argv: []string{"ask"}, wantCmd: CmdAsk, wantErr: "question is required"},
		{name: "global flags anywhere", argv: []string{"ask", "--no-stream", "hi", "--base-url", "http://x:1"}, wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.NoStream)
				assert.Equal(t, "http://x:1", a.BaseURL)
				assert.Equal(t, "hi", a.Query)
			}},
		{name: "config flag with equals", argv: []string{"--config=/tmp/c.toml", "config", "path"}, wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "/tmp/c.toml", a.ConfigPath)
				assert.Equal(t, "path", a.Subcommand)
			}},
		{name: "config defaults to show", argv: []string{"config"}, wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) { assert.Equal(t, "show", a.Subcommand) }},
		{name: "config init force", argv: []string{"config", "init", "--force"}, wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) { assert.True(t, a.Force) }},
		{name: "config bad subcommand", argv: []string{"config", "reset"}, wantCmd: CmdConfig, wantErr: "unknown subcommand"},
		{name: "history search", argv: []string{"history", "--search", "parking"}, wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) { assert.Equal(t, "parking", a.Search) }},
		{name: "history positional search", argv: []string{"history", "fees"}, wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) { assert.Equal(t, "fees", a.Search) }},
		{name: "mock server defaults", argv: []string{"mock-server"}, wantCmd: CmdMockServer,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, server.DefaultAddr, a.Addr)
				assert.Equal(t, DefaultMockToken, a.Token)
			}},
		{name: "token set", argv: []string{"token", "set", "abc"}, wantCmd: CmdToken,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "set", a.Subcommand)
				assert.Equal(t, "abc", a.Token)
			}},
		{name: "token bad", argv: []string{"token"}, wantCmd: CmdToken, wantErr: "usage"},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "help flag", argv: []string{"ask", "x", "-h"}, wantCmd: CmdHelp},
		{name: "missing flag value", argv: []string{"--config"}, wantCmd: CmdHelp, wantErr: "needs a value"},
		{name: "unknown command", argv: []string{"frobnicate"}, wantCmd: CmdHelp, wantErr: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			assert.Equal(t, tt.wantCmd, cmd)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(Args{BaseURL: "https://gpt.campus.edu/", NoStream: true, Plain: true, Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, "https://gpt.campus.edu", cfg.Server.BaseURL)
	assert.False(t, cfg.Chat.Streaming)
	assert.True(t, cfg.UI.Plain)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = LoadConfig(Args{BaseURL: "ftp://nope"})
	assert.Error(t, err)
}

// =============================================================================
// ASK TESTS (ask.go)
// =============================================================================

func TestHandleAsk_StreamsAnswerAndSources(t *testing.T) {
	app := newTestApp(t, DefaultMockToken)

	var out bytes.Buffer
	require.NoError(t, HandleAsk(t.Context(), app, "Library hours?", &out, false))

	got := out.String()
	assert.Contains(t, got, "library is open 8am-10pm")
	assert.Contains(t, got, "Sources")
	assert.Contains(t, got, "1. ")
}

func TestHandleAsk_NonStreaming(t *testing.T) {
	app := newTestApp(t, DefaultMockToken)
	app.Session.SetStreaming(false)

	var out bytes.Buffer
	require.NoError(t, HandleAsk(t.Context(), app, "Library hours?", &out, false))
	assert.Contains(t, out.String(), "library is open 8am-10pm")
}

func TestHandleAsk_RenderedMarkdown(t *testing.T) {
	app := newTestApp(t, DefaultMockToken)

	var out bytes.Buffer
	require.NoError(t, HandleAsk(t.Context(), app, "Library hours?", &out, true))
	assert.Contains(t, strings.ToLower(out.String()), "library")
}

func TestHandleAsk_NotLoggedIn(t *testing.T) {
	app := newTestApp(t, "")

	var out bytes.Buffer
	err := HandleAsk(t.Context(), app, "Library hours?", &out, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestHandleAsk_RejectedToken(t *testing.T) {
	app := newTestApp(t, "stale-token")

	var out bytes.Buffer
	err := HandleAsk(t.Context(), app, "Library hours?", &out, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
	assert.False(t, app.LoggedIn(t.Context()))
}

// =============================================================================
// HISTORY TESTS (history.go)
// =============================================================================

func TestHandleHistory_ListsAndFilters(t *testing.T) {
	app := newTestApp(t, DefaultMockToken)
	require.NoError(t, HandleAsk(t.Context(), app, "Library hours?", io.Discard, false))

	var out bytes.Buffer
	require.NoError(t, HandleHistory(t.Context(), app, "", &out))
	assert.Contains(t, out.String(), "Library hours?")

	out.Reset()
	require.NoError(t, HandleHistory(t.Context(), app, "zzz-no-such-thing", &out))
	assert.Contains(t, out.String(), "No questions match")
}

func TestPrintHistory_Stale(t *testing.T) {
	snap := history.Snapshot{
		Entries: []model.HistoryEntry{{
			ID:        "1",
			Question:  "Where is parking?",
			Answer:    "Lot B.",
			Timestamp: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		}},
		RefreshedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Stale:       true,
	}

	var out bytes.Buffer
	printHistory(&out, snap, "", 80)
	got := out.String()
	assert.Contains(t, got, "showing saved history")
	assert.Contains(t, got, "Where is parking?")
	assert.Contains(t, got, "Lot B.")

	out.Reset()
	printHistory(&out, history.Snapshot{}, "", 80)
	assert.Contains(t, out.String(), "No questions yet")
}

// =============================================================================
// TOKEN AND CONFIG TESTS (token.go, config.go)
// =============================================================================

func TestHandleToken_SetAndClear(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.TokenFile = filepath.Join(t.TempDir(), "token")

	var out bytes.Buffer
	require.NoError(t, HandleToken(cfg, Args{Subcommand: "set", Token: "abc"}, nil, &out))
	data, err := os.ReadFile(cfg.Auth.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "abc", strings.TrimSpace(string(data)))

	require.NoError(t, HandleToken(cfg, Args{Subcommand: "set"}, strings.NewReader("from-stdin\n"), &out))
	data, err = os.ReadFile(cfg.Auth.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", strings.TrimSpace(string(data)))

	require.NoError(t, HandleToken(cfg, Args{Subcommand: "clear"}, nil, &out))
	assert.NoFileExists(t, cfg.Auth.TokenFile)

	assert.Error(t, HandleToken(cfg, Args{Subcommand: "set"}, strings.NewReader("\n"), &out))
}

func TestHandleConfig_InitPathShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	args := Args{ConfigPath: path}

	var out bytes.Buffer
	args.Subcommand = "path"
	require.NoError(t, HandleConfig(nil, args, &out))
	assert.Contains(t, out.String(), path)
	assert.Contains(t, out.String(), "not created yet")

	args.Subcommand = "init"
	require.NoError(t, HandleConfig(nil, args, &out))
	assert.FileExists(t, path)
	assert.Error(t, HandleConfig(nil, args, &out))

	args.Force = true
	require.NoError(t, HandleConfig(nil, args, &out))

	clearEnv(t)
	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)

	out.Reset()
	args.Subcommand = "show"
	require.NoError(t, HandleConfig(cfg, args, &out))
	assert.Contains(t, out.String(), "base_url")
	assert.Contains(t, out.String(), "# file: "+path)

	assert.Error(t, HandleConfig(nil, args, &out))
}

// =============================================================================
// REPL TESTS (chat.go)
// =============================================================================

func TestREPL_Session(t *testing.T) {
	app := newTestApp(t, DefaultMockToken)
	in := &scriptReader{lines: []string{
		"/help",
		"  ",
		"Library hours?",
		"/stream off",
		"/history library",
		"/new",
		"/bogus",
		"/quit",
		"never read",
	}}

	var out bytes.Buffer
	require.NoError(t, runREPL(t.Context(), app, in, &out, false))

	got := out.String()
	assert.Contains(t, got, "Start a new chat")
	assert.Contains(t, got, "library is open 8am-10pm")
	assert.Contains(t, got, "Streaming is off")
	assert.Contains(t, got, "Library hours?")
	assert.Contains(t, got, "Started a new chat")
	assert.Contains(t, got, "Unknown command /bogus")
	assert.NotContains(t, got, "Not logged in")

	assert.False(t, app.Session.Streaming())
	assert.True(t, app.Session.Conversation().IsEmpty())
	assert.Equal(t, []string{"never read"}, in.lines)
	assert.NotContains(t, in.history, "  ")
}

func TestREPL_AbortAndEOF(t *testing.T) {
	app := newTestApp(t, "")
	in := &scriptReader{errs: map[int]error{1: liner.ErrPromptAborted}}

	var out bytes.Buffer
	require.NoError(t, runREPL(t.Context(), app, in, &out, false))
	assert.Contains(t, out.String(), "Not logged in")
	assert.Contains(t, out.String(), "/quit or press Ctrl+D")
	assert.Equal(t, 2, in.calls)
}

func TestREPL_ReadError(t *testing.T) {
	app := newTestApp(t, DefaultMockToken)
	boom := errors.New("tty gone")
	in := &scriptReader{errs: map[int]error{1: boom}}

	err := runREPL(t.Context(), app, in, io.Discard, false)
	assert.ErrorIs(t, err, boom)
}

func TestREPL_ErrorIsPrintedAndLoopContinues(t *testing.T) {
	app := newTestApp(t, "")
	in := &scriptReader{lines: []string{"Library hours?"}}

	var out bytes.Buffer
	require.NoError(t, runREPL(t.Context(), app, in, &out, false))
	assert.Contains(t, out.String(), "not logged in")
}

// =============================================================================
// RUN TESTS (cli.go)
// =============================================================================

func TestRun_HelpVersionAndErrors(t *testing.T) {
	var out, errOut bytes.Buffer

	assert.Equal(t, 0, Run(t.Context(), []string{"help"}, nil, &out, &errOut))
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	assert.Equal(t, 0, Run(t.Context(), []string{"version"}, nil, &out, &errOut))
	assert.Contains(t, out.String(), "campusgpt version")

	assert.Equal(t, 2, Run(t.Context(), []string{"frobnicate"}, nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestRun_AskEndToEnd(t *testing.T) {
	clearEnv(t)
	ts := newDevServer(t)
	t.Setenv("CAMPUSGPT_BASE_URL", ts.URL)
	t.Setenv("CAMPUSGPT_TOKEN", DefaultMockToken)
	t.Setenv("CAMPUSGPT_LOG_PATH", logging.OutputDiscard)

	var out, errOut bytes.Buffer
	code := Run(t.Context(), []string{"--plain", "ask", "Library", "hours?"}, nil, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "library is open 8am-10pm")
}

func TestRun_BadConfigExitsOne(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"nope\"\n"), 0o600))

	var out, errOut bytes.Buffer
	assert.Equal(t, 1, Run(t.Context(), []string{"--config", path, "history"}, nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "base_url")
}
