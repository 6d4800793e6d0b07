package injector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voicedesk/internal/ports"
)

const (
	defaultSettleDelay  = 80 * time.Millisecond
	defaultRestoreDelay = 120 * time.Millisecond
)

// PasteInjector implements ports.OutputInjector by placing text on the
// clipboard and pressing the paste shortcut. The previous clipboard contents
// are restored afterwards.
type PasteInjector struct {
	clipboard    ports.Clipboard
	keyboard     Keyboard
	logger       *slog.Logger
	settleDelay  time.Duration
	restoreDelay time.Duration
	sleep        func(time.Duration)
}

func NewPasteInjector(clipboard ports.Clipboard, keyboard Keyboard, logger *slog.Logger) *PasteInjector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasteInjector{
		clipboard:    clipboard,
		keyboard:     keyboard,
		logger:       logger,
		settleDelay:  defaultSettleDelay,
		restoreDelay: defaultRestoreDelay,
		sleep:        time.Sleep,
	}
}

func (p *PasteInjector) PasteText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	previous, readErr := p.clipboard.GetText(ctx)
	if err := p.clipboard.SetText(ctx, text); err != nil {
		return err
	}
	p.sleep(p.settleDelay)

	if err := p.keyboard.Press(KeyPaste); err != nil {
		return fmt.Errorf("paste shortcut: %w", err)
	}

	if readErr != nil {
		p.logger.Debug("clipboard not restored", "error", readErr)
		return nil
	}
	p.sleep(p.restoreDelay)
	if err := p.clipboard.SetText(ctx, previous); err != nil {
		p.logger.Warn("failed to restore clipboard", "error", err)
	}
	return nil
}

func (p *PasteInjector) PressConfirmKey(_ context.Context) error {
	return p.keyboard.Press(KeyEnter)
}

func (p *PasteInjector) DeleteCharacters(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.keyboard.Press(KeyBackspace); err != nil {
			return err
		}
	}
	return nil
}
