// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - line-mode chat for pipes, dumb terminals and --plain.
//
// Interactive commands:
//
//	/help, /h            Show available commands
//	/new, /n             Start a new chat
//	/history [term]      List past questions, optionally filtered
//	/refresh             Refresh history from the server
//	/stream on|off       Toggle streamed answers
//	/quit, /q            Exit
//	Ctrl+C               Cancel the current answer
//	Ctrl+D               Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/campusgpt-tui/internal/config"
	"github.com/jeranaias/campusgpt-tui/internal/history"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Campus).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Gold).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the prompt the REPL reads from. ChatCLI implements it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// ChatCLI provides line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI opens a liner prompt with history from historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory records a line for arrow-key recall.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// Close saves input history and restores the terminal.
func (c *ChatCLI) Close() error {
	if c.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.historyFile), util.PrivateDirPerm); err == nil {
			if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				c.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return c.line.Close()
}

// inputHistoryPath is where typed questions are remembered between runs.
func inputHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

// HandleChat runs the line-mode chat until /quit or end of input.
func HandleChat(ctx context.Context, app *App, w io.Writer) error {
	in := NewChatCLI(inputHistoryPath())
	defer in.Close()
	return runREPL(ctx, app, in, w, IsStdoutTTY())
}

// runREPL drives the chat loop over in. render selects markdown answers.
func runREPL(ctx context.Context, app *App, in lineReader, w io.Writer, render bool) error {
	app.StartChat(ctx)
	printWelcome(app, w)

	printer := newAnswerPrinter(app, w, render)
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.Prompt("you> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintln(w, infoStyle.Render("(type /quit or press Ctrl+D to exit)"))
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(w)
			return nil
		case err != nil:
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			if quit := handleSlashCommand(ctx, app, line, w); quit {
				return nil
			}
			continue
		}

		// Ctrl+C while an answer streams cancels just that answer.
		askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		fmt.Fprint(w, promptStyle.Render("campusgpt> "))
		if err := printer.ask(askCtx, app.Session, line); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(w, styles.RenderError(err.Error()))
		}
		stop()
		fmt.Fprintln(w)
	}
}

func printWelcome(app *App, w io.Writer) {
	fmt.Fprintln(w, welcomeStyle.Render("CampusGPT"))
	fmt.Fprintln(w, infoStyle.Render("Connected to "+app.Config.Server.BaseURL+". Type /help for commands."))
	if !app.LoggedIn(context.Background()) {
		fmt.Fprintln(w, styles.RenderWarning("Not logged in: run 'campusgpt token set <token>' in another terminal"))
	}
	fmt.Fprintln(w)
}

// handleSlashCommand runs a REPL command and reports whether to exit.
func handleSlashCommand(ctx context.Context, app *App, line string, w io.Writer) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h", "/?":
		printChatHelp(w)

	case "/new", "/n":
		app.Session.NewChat(ctx)
		fmt.Fprintln(w, styles.RenderSuccess("Started a new chat"))

	case "/history":
		printHistory(w, app.History.Snapshot(), rest, wrapWidth(app.Config.UI.WordWrap))

	case "/refresh":
		if _, err := app.History.Retry(ctx); err != nil {
			if errors.Is(err, history.ErrThrottled) {
				fmt.Fprintln(w, styles.RenderWarning("History was refreshed moments ago, try again shortly"))
			} else {
				fmt.Fprintln(w, styles.RenderWarning("Could not refresh history, showing saved copy"))
			}
			break
		}
		fmt.Fprintln(w, styles.RenderSuccess(fmt.Sprintf("History refreshed (%d questions)", len(app.History.Entries()))))

	case "/stream":
		switch strings.ToLower(rest) {
		case "on":
			app.Session.SetStreaming(true)
		case "off":
			app.Session.SetStreaming(false)
		case "":
		default:
			fmt.Fprintln(w, styles.RenderWarning("Usage: /stream on|off"))
			return false
		}
		state := "off"
		if app.Session.Streaming() {
			state = "on"
		}
		fmt.Fprintln(w, infoStyle.Render("Streaming is "+state))

	default:
		fmt.Fprintln(w, styles.RenderWarning(fmt.Sprintf("Unknown command %s, type /help", cmd)))
	}
	return false
}

func printChatHelp(w io.Writer) {
	cmds := []struct{ name, desc string }{
		{"/new", "Start a new chat"},
		{"/history [term]", "List past questions"},
		{"/refresh", "Refresh history from the server"},
		{"/stream on|off", "Toggle streamed answers"},
		{"/quit", "Exit"},
		{"Ctrl+C", "Cancel the current answer"},
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s  %s\n", commandStyle.Render(util.PadRight(c.name, 16)), infoStyle.Render(c.desc))
	}
}
