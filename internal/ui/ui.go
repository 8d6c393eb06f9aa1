/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// maxRenderWidth caps glamour word wrapping on wide terminals
const maxRenderWidth = 120

// UI writes results to a terminal or a plain stream
type UI struct {
	out            io.Writer
	noColor        bool
	RenderMarkdown bool
	width          int
}

// NewUI creates a UI writing to out. Colors and markdown rendering are only
// used when out is a terminal.
func NewUI(out io.Writer, noColor bool) *UI {
	ui := &UI{out: out, noColor: noColor, width: 80}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		ui.RenderMarkdown = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 2 {
			ui.width = width - 2
		}
	} else {
		ui.noColor = true
	}
	return ui
}

// colorize applies color if colors are enabled
func (ui *UI) colorize(color, text string) string {
	if ui.noColor {
		return text
	}
	return color + text + ColorReset
}

// PrintWelcome prints the banner shown when the REPL starts
// ASCII art credit: https://ascii.co.uk/art/elephant
func (ui *UI) PrintWelcome(tables int, retrieval bool) {
	elephant := `
          _
   ______/ \-.   _           pgEdge Natural Language to SQL
.-/     (    o\_//           Type 'quit' or 'exit' to leave, 'help' for commands
 |  ___  \_/\---'
 |_||  |_||
`
	fmt.Fprintln(ui.out, ui.colorize(ColorCyan, elephant))

	mode := "on"
	if !retrieval {
		mode = "off"
	}
	ui.PrintSystemMessage(fmt.Sprintf("Loaded %d tables, example retrieval %s", tables, mode))
}

// GetPrompt returns the prompt string for readline
func (ui *UI) GetPrompt() string {
	return ui.colorize(ColorGreen+ColorBold, "Question: ")
}

// PrintSQL prints generated SQL. On a terminal it is rendered as a
// highlighted code block; otherwise the text is written unchanged.
func (ui *UI) PrintSQL(sql string) {
	if ui.RenderMarkdown {
		if rendered, err := ui.render("```sql\n" + strings.TrimRight(sql, "\n") + "\n```\n"); err == nil {
			fmt.Fprint(ui.out, rendered)
			return
		}
		// If rendering fails, fall back to plain text
	}
	fmt.Fprintln(ui.out, sql)
}

// PrintPrompt prints the composed prompt that was sent to the model
func (ui *UI) PrintPrompt(prompt string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorGray, "--- prompt ---"))
	fmt.Fprint(ui.out, prompt)
	fmt.Fprintln(ui.out, ui.colorize(ColorGray, "--- end prompt ---"))
}

// PrintMarkdown renders markdown text on a terminal and prints it as-is
// otherwise
func (ui *UI) PrintMarkdown(text string) {
	if ui.RenderMarkdown {
		if rendered, err := ui.render(text); err == nil {
			fmt.Fprint(ui.out, rendered)
			return
		}
	}
	fmt.Fprint(ui.out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(ui.out)
	}
}

func (ui *UI) render(text string) (string, error) {
	style := "dark"
	if ui.noColor {
		style = "notty"
	}

	width := min(ui.width, maxRenderWidth)

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// PrintSystemMessage prints a system message
func (ui *UI) PrintSystemMessage(text string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorYellow, "System: ")+text)
}

// PrintError prints an error message
func (ui *UI) PrintError(text string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorRed, "Error: ")+text)
}

// PrintSeparator prints a separator line
func (ui *UI) PrintSeparator() {
	fmt.Fprintln(ui.out, ui.colorize(ColorGray, strings.Repeat("─", min(ui.width, 80))))
}

// PrintHelp prints the REPL commands
func (ui *UI) PrintHelp() {
	help := `
Available commands:
  help      - Show this help message
  prompt    - Toggle printing the composed prompt before the SQL
  quit      - Exit
  exit      - Exit

History navigation:
  Up/Down   - Navigate through question history
  Ctrl+R    - Reverse search history

Anything else is treated as a question and turned into a SQL query.
`
	fmt.Fprintln(ui.out, ui.colorize(ColorCyan, help))
}

var thinkingActions = []string{
	"Reading the schema",
	"Following foreign keys",
	"Recalling similar questions",
	"Drafting joins",
	"Grazing on metadata",
	"Consulting the herd",
}

// ShowThinking displays an animated indicator until done is closed or ctx
// is canceled. Nothing is drawn when output is not a terminal.
func (ui *UI) ShowThinking(ctx context.Context, done <-chan struct{}) {
	if !ui.RenderMarkdown {
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frameIndex, ticks := 0, 0
	maxWidth := 0
	for _, action := range thinkingActions {
		maxWidth = max(maxWidth, len(action)+5)
	}

	draw := func() {
		action := thinkingActions[(ticks/4)%len(thinkingActions)]
		msg := ui.colorize(ColorCyan, frames[frameIndex]) + " " + ui.colorize(ColorGray, action) + "..."
		if padding := maxWidth - len(action) - 5; padding > 0 {
			msg += strings.Repeat(" ", padding)
		}
		fmt.Fprint(ui.out, "\r"+msg)
	}
	erase := func() {
		fmt.Fprint(ui.out, "\r"+strings.Repeat(" ", maxWidth)+"\r")
	}

	draw()
	for {
		select {
		case <-done:
			erase()
			return
		case <-ctx.Done():
			erase()
			return
		case <-ticker.C:
			frameIndex = (frameIndex + 1) % len(frames)
			ticks++
			draw()
		}
	}
}
