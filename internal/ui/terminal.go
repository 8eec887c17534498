package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func ShouldUseColor() bool {
	// https://no-color.org: any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	// CLICOLOR_FORCE=1 forces color even without a TTY.
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	// CLICOLOR=0 explicitly disables color.
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	// Default: color if stdout is a terminal.
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompter asks yes/no questions. It satisfies listview.Confirmer.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// AssumeYes answers every question with yes without prompting.
	AssumeYes bool
	// Interactive must be true for a question to be asked at all; a
	// non-interactive prompter declines.
	Interactive bool
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer, interactive, assumeYes bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, Interactive: interactive, AssumeYes: assumeYes}
}

// StdPrompter prompts on the process's terminal.
func StdPrompter(assumeYes bool) *Prompter {
	return NewPrompter(os.Stdin, os.Stderr, IsInteractive(), assumeYes)
}

// Confirm asks prompt and reports whether the answer was y or yes. Anything
// else, including EOF, declines.
func (p *Prompter) Confirm(prompt string) bool {
	if p.AssumeYes {
		return true
	}
	if !p.Interactive {
		return false
	}
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// ReadLine prompts and returns the next input line without its newline.
// It returns io.EOF when input ends.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
