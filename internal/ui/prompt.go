package ui

import (
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("prompt aborted")

// buildPasswordForm asks for the IP150 module password.
func buildPasswordForm(target string, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Module password").
				Description(fmt.Sprintf("IP150 password for %s.", target)).
				Key("password").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if len(s) > 0xFF {
						return errors.New("password must be at most 255 characters")
					}
					return nil
				}).
				Value(password),
		),
	)
}

// PromptPassword asks for the module password on the terminal. The form
// draws on stderr so stdout stays clean for the report.
func PromptPassword(target string) (string, error) {
	var password string
	form := buildPasswordForm(target, &password).
		WithProgramOptions(tea.WithOutput(os.Stderr))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	return password, nil
}

// CopyToClipboard copies text to the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard available (install xclip or xsel)")
	}
	return clipboard.WriteAll(text)
}
