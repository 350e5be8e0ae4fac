package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"ct-go/internal/ct"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// TerminalPrompter answers ct.Prompter questions on a text stream. With
// AssumeYes set it never reads input: confirmations and suffixed names are
// accepted as proposed and no directory is chosen.
type TerminalPrompter struct {
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	AssumeYes bool
}

var _ ct.Prompter = (*TerminalPrompter)(nil)

func NewTerminalPrompter(in io.Reader, out, errOut io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, errOut: errOut}
}

func (p *TerminalPrompter) ConfirmYesNo(prompt string) bool {
	if p.AssumeYes {
		return true
	}
	answer, err := p.ask(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// AcceptSuffixedName shows the proposal. An empty answer or "y" accepts it,
// "n" declines, and anything else is taken as the name to use instead.
func (p *TerminalPrompter) AcceptSuffixedName(proposed string) (string, bool) {
	if p.AssumeYes {
		return proposed, true
	}
	answer, err := p.ask(fmt.Sprintf("Name taken. Use %q? [Y/n, or type a name; quote it to use y or n literally] ", proposed))
	if err != nil {
		return "", false
	}
	// A quoted answer is always a literal name.
	if len(answer) >= 2 && answer[0] == '"' && answer[len(answer)-1] == '"' {
		if name := answer[1 : len(answer)-1]; name != "" {
			return name, true
		}
		return "", false
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return proposed, true
	case "n", "no":
		return "", false
	}
	return answer, true
}

func (p *TerminalPrompter) ReportError(message string) {
	fmt.Fprintln(p.errOut, "error:", message)
}

func (p *TerminalPrompter) ChooseDirectory() (string, bool) {
	if p.AssumeYes {
		return "", false
	}
	dir, err := p.ask("Directory: ")
	if err != nil || dir == "" {
		return "", false
	}
	return dir, true
}

// ReadPassphrase reads a passphrase without echo when stdin is a terminal,
// and as a plain line otherwise.
func (p *TerminalPrompter) ReadPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return p.ask(prompt)
	}
	fmt.Fprint(p.out, prompt)
	pw, err := readPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}

// ask prints prompt and returns the trimmed answer line. A final line
// without a newline still counts.
func (p *TerminalPrompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
