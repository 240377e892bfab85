package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompt asks for one line of input.
func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.errOut, label)
	line, err := a.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a password without echo when stdin is a terminal.
func (a *App) promptSecret(label string) (string, error) {
	f, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.prompt(label)
	}
	fmt.Fprint(a.errOut, label)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// valueOr returns value, or prompts for it when empty.
func (a *App) valueOr(value, label string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if secret {
		return a.promptSecret(label)
	}
	return a.prompt(label)
}
