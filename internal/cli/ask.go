// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusgpt-tui/internal/chat"
	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/transport"
	"github.com/jeranaias/campusgpt-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	sourcesTitleStyle = lipgloss.NewStyle().
				Foreground(styles.Gold).
				Bold(true)

	sourceItemStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer builds a glamour renderer for the configured theme.
// It returns nil when glamour cannot be initialised.
func newMarkdownRenderer(theme string, width int) *glamour.TermRenderer {
	styleOpt := glamour.WithAutoStyle()
	switch strings.ToLower(theme) {
	case "dark", "light":
		styleOpt = glamour.WithStandardStyle(strings.ToLower(theme))
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content, returning it unchanged on failure.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// ANSWER OUTPUT
// =============================================================================

// answerPrinter writes one exchange to w. With render unset, fragments are
// printed as they arrive; otherwise the finished answer is rendered as
// markdown.
type answerPrinter struct {
	w        io.Writer
	render   bool
	markdown *glamour.TermRenderer
}

func newAnswerPrinter(app *App, w io.Writer, render bool) *answerPrinter {
	p := &answerPrinter{w: w, render: render}
	if render {
		p.markdown = newMarkdownRenderer(app.Config.UI.Theme, wrapWidth(app.Config.UI.WordWrap))
	}
	return p
}

// ask submits question and prints the answer. Observers run on the
// submitting goroutine, so no locking is needed around printed.
func (p *answerPrinter) ask(ctx context.Context, s *chat.Session, question string) error {
	printed := false
	if !p.render {
		remove := s.Observe(func(c chat.Change) {
			if c.Kind == chat.ChangeChunk {
				printed = true
				io.WriteString(p.w, c.Fragment)
			}
		})
		defer remove()
	}

	err := s.Submit(ctx, question)
	msg, ok := s.Conversation().Last()

	switch {
	case errors.Is(err, context.Canceled):
		if printed {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, mutedStyle.Render("(cancelled)"))
		return err
	case err != nil:
		if printed {
			fmt.Fprintln(p.w)
		}
		return describeError(err)
	case !ok:
		return nil
	}

	switch {
	case p.render:
		fmt.Fprint(p.w, renderMarkdown(p.markdown, msg.Text))
	case !printed:
		fmt.Fprintln(p.w, msg.Text)
	default:
		fmt.Fprintln(p.w)
	}
	printSources(p.w, msg.Citations)
	return nil
}

// printSources lists citations beneath an answer.
func printSources(w io.Writer, citations []model.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, sourcesTitleStyle.Render("Sources"))
	for i, c := range citations {
		fmt.Fprintln(w, sourceItemStyle.Render(fmt.Sprintf("  %d. %s", i+1, c.String())))
	}
}

// describeError turns session errors into something a student can act on.
func describeError(err error) error {
	var frameErr *chat.StreamEventError
	switch {
	case errors.Is(err, transport.ErrNoCredentials):
		return errors.New("not logged in: run 'campusgpt token set <token>'")
	case errors.Is(err, transport.ErrUnauthorized):
		return errors.New("session expired: log in again with 'campusgpt token set <token>'")
	case errors.Is(err, transport.ErrRateLimited):
		return errors.New("too many questions right now, wait a moment and try again")
	case errors.As(err, &frameErr):
		return fmt.Errorf("the assistant reported an error: %s", frameErr.Message)
	case errors.Is(err, chat.ErrStreamEnded):
		return errors.New("the answer was cut off, please ask again")
	}
	return fmt.Errorf("%s (%w)", chat.GenericErrorText, err)
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAsk asks a single question and prints the answer. render selects
// markdown output for terminals.
func HandleAsk(ctx context.Context, app *App, question string, w io.Writer, render bool) error {
	app.StartChat(ctx)
	return newAnswerPrinter(app, w, render).ask(ctx, app.Session, question)
}
