package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/tickmesh/core"
	"golang.org/x/term"
)

// HumanRequest is what a human stage presents.
type HumanRequest struct {
	Tick  int
	Stage core.Stage
	// Context holds the meta analysis shown at the human-plus-meta stage.
	Context string
}

// HumanInput captures a human prompt. Implementations return
// core.ErrAwaitingInput (or an empty string) when no input can be obtained.
type HumanInput interface {
	Prompt(ctx context.Context, req HumanRequest) (string, error)
}

// HumanInputFunc adapts a function to HumanInput.
type HumanInputFunc func(ctx context.Context, req HumanRequest) (string, error)

// Prompt implements HumanInput.
func (f HumanInputFunc) Prompt(ctx context.Context, req HumanRequest) (string, error) {
	return f(ctx, req)
}

// TerminalInput reads one line from an interactive terminal. When In is not
// a terminal it reports core.ErrAwaitingInput instead of reading.
type TerminalInput struct {
	In  *os.File
	Out io.Writer
	// PreviewChars caps how much of the meta analysis is echoed; 0 shows all.
	PreviewChars int
}

// NewTerminalInput returns a TerminalInput on stdin/stderr.
func NewTerminalInput() *TerminalInput {
	return &TerminalInput{In: os.Stdin, Out: os.Stderr, PreviewChars: 4000}
}

// Prompt implements HumanInput.
func (t *TerminalInput) Prompt(ctx context.Context, req HumanRequest) (string, error) {
	if t.In == nil || !term.IsTerminal(int(t.In.Fd())) {
		return "", core.ErrAwaitingInput
	}
	fmt.Fprintf(t.Out, "\n=== HUMAN INPUT REQUIRED (tick %d, %s) ===\n", req.Tick, req.Stage)
	if req.Context != "" {
		preview := req.Context
		if runes := []rune(preview); t.PreviewChars > 0 && len(runes) > t.PreviewChars {
			preview = string(runes[:t.PreviewChars]) + fmt.Sprintf("\n... (truncated, %d total chars)", len(runes))
		}
		fmt.Fprintf(t.Out, "\n%s\n\n", preview)
	}
	fmt.Fprintf(t.Out, "Enter your prompt for tick %d:\n> ", req.Tick)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(t.In).ReadString('\n')
		ch <- result{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.err != io.EOF {
			return "", r.err
		}
		line := strings.TrimRight(r.line, "\r\n")
		if strings.TrimSpace(line) == "" {
			return "", core.ErrAwaitingInput
		}
		return line, nil
	}
}
