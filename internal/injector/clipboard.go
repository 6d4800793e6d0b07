package injector

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// SystemClipboard implements ports.Clipboard with the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) GetText(_ context.Context) (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return text, nil
}

func (SystemClipboard) SetText(_ context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
