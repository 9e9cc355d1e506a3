package console

import (
	"errors"
	"strings"

	ui "github.com/manifoldco/promptui"
)

// Prompter asks the operator for input.
type Prompter interface {
	// Select returns the index of the chosen item.
	Select(label string, items []string) (int, error)
	Input(label string) (string, error)
}

// PromptUI reads from the terminal.
type PromptUI struct{}

func (PromptUI) Select(label string, items []string) (int, error) {
	p := ui.Select{
		Label:    label,
		Items:    items,
		HideHelp: true,
		Size:     len(items),
	}
	option, _, err := p.Run()
	return option, err
}

func (PromptUI) Input(label string) (string, error) {
	p := ui.Prompt{Label: label}
	s, err := p.Run()
	return strings.TrimSpace(s), err
}

// isAbort reports whether err means the operator closed the prompt.
func isAbort(err error) bool {
	return errors.Is(err, ui.ErrInterrupt) || errors.Is(err, ui.ErrEOF) || errors.Is(err, ui.ErrAbort)
}
