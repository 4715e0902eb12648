package ui

import (
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
)

// Confirm asks a yes/no question. Declining returns apperr.ErrCancelled.
func Confirm(title, description string) error {
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&confirm).
				Affirmative("Yes").
				Negative("No"),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return apperr.ErrCancelled
		}
		return err
	}
	if !confirm {
		return apperr.ErrCancelled
	}
	return nil
}
