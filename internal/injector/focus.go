package injector

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// CommandRunner runs an external program.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// FocusController implements ports.AppFocusController with osascript on
// macOS and wmctrl on Linux.
type FocusController struct {
	goos   string
	run    CommandRunner
	logger *slog.Logger
}

func NewFocusController(logger *slog.Logger) *FocusController {
	if logger == nil {
		logger = slog.Default()
	}
	return &FocusController{goos: runtime.GOOS, run: execRunner, logger: logger}
}

func (f *FocusController) FocusApplication(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	var err error
	switch f.goos {
	case "darwin":
		script := fmt.Sprintf(`tell application "%s" to activate`, strings.ReplaceAll(name, `"`, `\"`))
		err = f.run(ctx, "osascript", "-e", script)
	case "linux":
		err = f.run(ctx, "wmctrl", "-a", name)
	default:
		err = fmt.Errorf("focusing applications is not supported on %s", f.goos)
	}
	if err != nil {
		f.logger.Debug("focus application failed", "app", name, "error", err)
		return false
	}
	return true
}
