package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads login credentials from the terminal. Secrets are read
// without echo when stdin is a terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	// buffered wraps In exactly once; a new reader per prompt would drop
	// buffered lookahead between prompts.
	buffered *bufio.Reader
}

// NewPrompter returns a prompter on stdin/stderr. Prompts go to stderr so
// they survive stdout redirection.
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// Line prompts for a visible line of input.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	if p.buffered == nil {
		p.buffered = bufio.NewReader(p.In)
	}
	line, err := p.buffered.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Secret prompts for a line without echoing it.
func (p *Prompter) Secret(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	// Not a terminal: fall back to a plain read, as in scripted logins.
	return p.Line("")
}

// Phone prompts for the account phone number.
func (p *Prompter) Phone() (string, error) {
	return p.Line("Phone number (international format): ")
}

// Code prompts for the one-time login code.
func (p *Prompter) Code() (string, error) {
	return p.Secret("Login code: ")
}

// Password prompts for the two-factor password.
func (p *Prompter) Password() (string, error) {
	return p.Secret("Two-factor password: ")
}
