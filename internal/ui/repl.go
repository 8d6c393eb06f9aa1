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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Handler answers one question typed at the REPL
type Handler func(ctx context.Context, question string, showPrompt bool) error

// REPL reads questions interactively and passes each to a Handler
type REPL struct {
	ui          *UI
	handle      Handler
	historyFile string
	showPrompt  bool
}

// NewREPL creates a REPL. historyFile may be empty to disable history.
func NewREPL(ui *UI, historyFile string, showPrompt bool, handle Handler) *REPL {
	return &REPL{
		ui:          ui,
		handle:      handle,
		historyFile: historyFile,
		showPrompt:  showPrompt,
	}
}

// Run reads lines until EOF, interrupt, "quit"/"exit" or ctx cancellation
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.ui.GetPrompt(),
		HistoryFile:       r.historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	// Closing readline makes a blocked Readline() return
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				r.ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		if r.HandleLine(ctx, line) {
			r.ui.PrintSystemMessage("Goodbye!")
			return nil
		}
	}
}

// HandleLine processes one line of input and reports whether the REPL
// should exit
func (r *REPL) HandleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help":
		r.ui.PrintHelp()
		return false
	case "prompt":
		r.showPrompt = !r.showPrompt
		state := "off"
		if r.showPrompt {
			state = "on"
		}
		r.ui.PrintSystemMessage("Prompt display " + state)
		return false
	}

	if err := r.handle(ctx, input, r.showPrompt); err != nil {
		r.ui.PrintError(err.Error())
	}
	r.ui.PrintSeparator()
	return false
}
