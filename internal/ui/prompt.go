package ui

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrPromptCancelled is returned when the user aborts a prompt
var ErrPromptCancelled = errors.New("operation cancelled by user")

// ConfirmPrompt asks a yes/no confirmation question
func ConfirmPrompt(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		// promptui reports a "no" answer as ErrAbort
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrPromptCancelled
		}
		return false, err
	}

	return result == "y" || result == "Y", nil
}
