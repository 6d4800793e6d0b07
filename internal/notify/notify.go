package notify

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

const appName = "VoiceDesk"

// Fanout forwards every event to each sink in order.
type Fanout []ports.EventSink

func (f Fanout) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	for _, sink := range f {
		sink.SessionStateChanged(state, reason)
	}
}

func (f Fanout) LiveTranscript(text string) {
	for _, sink := range f {
		sink.LiveTranscript(text)
	}
}

func (f Fanout) CommandExecuted(command domain.DetectedCommand, result domain.CommandExecutionResult) {
	for _, sink := range f {
		sink.CommandExecuted(command, result)
	}
}

func (f Fanout) FinalTranscript(raw string, transformed string) {
	for _, sink := range f {
		sink.FinalTranscript(raw, transformed)
	}
}

func (f Fanout) SessionError(code domain.ErrorCode, detail string) {
	for _, sink := range f {
		sink.SessionError(code, detail)
	}
}

// Desktop shows OS notifications for session errors and commands that could
// not be carried out. Other events are ignored.
type Desktop struct {
	notify func(title string, message string) error
	logger *slog.Logger
}

func NewDesktop(logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{
		notify: func(title string, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger,
	}
}

func (d *Desktop) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}

func (d *Desktop) LiveTranscript(string) {}

func (d *Desktop) FinalTranscript(string, string) {}

func (d *Desktop) CommandExecuted(command domain.DetectedCommand, result domain.CommandExecutionResult) {
	if result.Outcome != domain.CommandOutcomeFailed {
		return
	}
	d.show(fmt.Sprintf("Command %q failed: %s", command.TriggerPhrase, result.Reason))
}

func (d *Desktop) SessionError(code domain.ErrorCode, detail string) {
	if detail == "" {
		detail = string(code)
	}
	d.show(detail)
}

func (d *Desktop) show(message string) {
	if err := d.notify(appName, message); err != nil {
		d.logger.Debug("desktop notification failed", "error", err)
	}
}
