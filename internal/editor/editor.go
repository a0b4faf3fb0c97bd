// Package editor is the boundary to the user's interactive tools: the
// external text editor used for buffer round-trips and the terminal
// prompt used for yes/no confirmations.
package editor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/peterh/liner"
)

// ErrNoEditorFound is returned when no usable editor binary exists.
var ErrNoEditorFound = errors.New("editor: no editor found")

// Editor opens text in an interactive buffer and returns whatever the
// user saved. The call blocks until the user closes the editor; retries
// on malformed content are the caller's responsibility.
type Editor interface {
	Edit(initial string) (string, error)
}

// Confirmer asks a yes/no question and blocks for a single answer.
type Confirmer interface {
	Confirm(prompt string, def bool) (bool, error)
}

// External runs a real editor process against a temp file.
type External struct {
	Command string
}

// Resolve picks the editor command to use. Priority: the configured
// command, then $EDITOR, then vim, vi, nano.
func Resolve(configured string, env map[string]string) (string, error) {
	candidates := []string{configured, env["EDITOR"], "vim", "vi", "nano"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := exec.LookPath(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoEditorFound
}

// Edit writes initial to a temp file, opens it in the editor, and
// returns the saved contents with surrounding whitespace trimmed.
func (e External) Edit(initial string) (string, error) {
	tmp, err := os.CreateTemp("", "kn-*.kn")
	if err != nil {
		return "", fmt.Errorf("failed to create buffer file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(initial); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to seed buffer file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close buffer file: %w", err)
	}

	cmd := exec.Command(e.Command, tmp.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s failed: %w", e.Command, err)
	}

	out, err := os.ReadFile(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read buffer file back: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Terminal confirms via a line prompt on the controlling terminal.
type Terminal struct{}

// Confirm prompts with a [Y/n] or [y/N] suffix. An empty reply takes
// the default; anything starting with y or Y is a yes.
func (Terminal) Confirm(prompt string, def bool) (bool, error) {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)

	suffix := " [y/N] "
	if def {
		suffix = " [Y/n] "
	}

	reply, err := l.Prompt(prompt + suffix)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	reply = strings.TrimSpace(strings.ToLower(reply))
	if reply == "" {
		return def, nil
	}
	return strings.HasPrefix(reply, "y"), nil
}
