package cli

import (
	"errors"
	"slices"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrQuit is returned by Chooser.Choose when the operator picks the quit entry.
var ErrQuit = errors.New("quit")

// QuitItem is the first entry of every selection list.
const QuitItem = "[Quit]"

// Chooser picks one of a list of choices.
type Chooser interface {
	Choose(label string, choices []string) (string, error)
}

// Prompter is a Chooser backed by an interactive terminal menu.
type Prompter struct {
	// Size is the number of visible rows; zero uses the promptui default.
	Size int
}

var _ Chooser = Prompter{}

// Choose shows a menu of choices headed by QuitItem. Typing filters the
// menu by prefix.
func (p Prompter) Choose(label string, choices []string) (string, error) {
	items := append([]string{QuitItem}, choices...)

	sel := &promptui.Select{
		Label: label,
		Items: items,
		Size:  p.Size,
		Searcher: func(input string, index int) bool {
			if index == 0 || input == "" {
				return false
			}

			return strings.HasPrefix(items[index], input)
		},
	}

	idx, value, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", ErrQuit
		}

		return "", err
	}

	if idx == 0 {
		return "", ErrQuit
	}

	return value, nil
}

// PromptConfirm asks a yes/no question. Answering no is not an error.
func PromptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// PromptArgs reads a space separated argument list. An empty answer yields no arguments.
func PromptArgs(label string) ([]string, error) {
	prompt := promptui.Prompt{Label: label}

	txt, err := prompt.Run()
	if err != nil {
		return nil, err
	}

	return slices.Collect(strings.FieldsSeq(txt)), nil
}

// Scripted is a Chooser that replays answers in order, for non-interactive runs.
type Scripted struct {
	answers []string
}

// NewScripted creates a Chooser that answers with each of answers in turn and
// then quits.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// Choose returns the next scripted answer. An answer that is not among the
// choices is an error.
func (s *Scripted) Choose(_ string, choices []string) (string, error) {
	if len(s.answers) == 0 {
		return "", ErrQuit
	}

	answer := s.answers[0]
	s.answers = s.answers[1:]

	if answer == QuitItem {
		return "", ErrQuit
	}

	if !slices.Contains(choices, answer) {
		return "", &UnavailableError{Choice: answer, Available: choices}
	}

	return answer, nil
}

// UnavailableError reports a scripted answer that was not offered.
type UnavailableError struct {
	Choice    string
	Available []string
}

func (e *UnavailableError) Error() string {
	return "choice " + e.Choice + " not available (available: [" + strings.Join(e.Available, " ") + "])"
}
