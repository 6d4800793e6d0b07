package usecase

import (
	"context"
	"fmt"
	"time"

	"voicedesk/internal/ports"
	"voicedesk/internal/textfix"
)

// DispatchConfig controls how final text is post-processed and injected.
type DispatchConfig struct {
	WordReplacement bool
	Formatting      bool
	TrailingSpace   bool
	ConfirmDelay    time.Duration
}

// outputDispatcher turns terminal text into keystrokes in the focused app.
type outputDispatcher struct {
	rules    ports.RulesEngine
	injector ports.OutputInjector
	cfg      DispatchConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

func newOutputDispatcher(rules ports.RulesEngine, injector ports.OutputInjector, cfg DispatchConfig) outputDispatcher {
	return outputDispatcher{rules: rules, injector: injector, cfg: cfg, sleep: sleepContext}
}

// prepare applies backend fixes, word replacement, formatting and the
// trailing-space policy, in that order. A rules failure is reported but the
// text without replacements is still returned. Text followed by a confirm
// keystroke gets no trailing space.
func (d outputDispatcher) prepare(raw string, confirm bool) (string, error) {
	text := textfix.Clean(raw)
	if text == "" {
		return "", nil
	}

	var rulesErr error
	if d.cfg.WordReplacement && d.rules != nil {
		replaced, err := d.rules.Apply(text)
		if err != nil {
			rulesErr = fmt.Errorf("word replacement: %w", err)
		} else {
			text = replaced
		}
	}
	if d.cfg.Formatting {
		text = textfix.Format(text)
	}
	if !confirm {
		text = textfix.WithTrailingSpace(text, d.cfg.TrailingSpace)
	}
	return text, rulesErr
}

// dispatch pastes text, then presses the confirm key after ConfirmDelay when
// asked. Empty text skips the paste but still confirms.
func (d outputDispatcher) dispatch(ctx context.Context, text string, confirm bool) error {
	if text != "" {
		if err := d.injector.PasteText(ctx, text); err != nil {
			return fmt.Errorf("paste text: %w", err)
		}
	}
	if !confirm {
		return nil
	}

	if err := d.sleep(ctx, d.cfg.ConfirmDelay); err != nil {
		return err
	}
	if err := d.injector.PressConfirmKey(ctx); err != nil {
		return fmt.Errorf("press confirm key: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
