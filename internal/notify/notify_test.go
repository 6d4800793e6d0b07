package notify

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"voicedesk/internal/domain"
)

type recordingSink struct {
	states []domain.SessionState
	live   []string
	errors []domain.ErrorCode
	finals int
	cmds   int
}

func (r *recordingSink) SessionStateChanged(state domain.SessionState, _ domain.SessionStateReason) {
	r.states = append(r.states, state)
}
func (r *recordingSink) LiveTranscript(text string) { r.live = append(r.live, text) }
func (r *recordingSink) CommandExecuted(domain.DetectedCommand, domain.CommandExecutionResult) {
	r.cmds++
}
func (r *recordingSink) FinalTranscript(string, string) { r.finals++ }
func (r *recordingSink) SessionError(code domain.ErrorCode, _ string) {
	r.errors = append(r.errors, code)
}

func TestFanoutForwardsToEverySink(t *testing.T) {
	t.Parallel()

	a, b := &recordingSink{}, &recordingSink{}
	fanout := Fanout{a, b}
	fanout.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	fanout.LiveTranscript("hi")
	fanout.CommandExecuted(domain.DetectedCommand{}, domain.CommandExecutionResult{})
	fanout.FinalTranscript("a", "b")
	fanout.SessionError(domain.ErrorCodeCapture, "x")

	for _, sink := range []*recordingSink{a, b} {
		if len(sink.states) != 1 || len(sink.live) != 1 || sink.cmds != 1 || sink.finals != 1 || len(sink.errors) != 1 {
			t.Fatalf("event not forwarded: %+v", sink)
		}
	}
}

func TestDesktopNotifiesErrorsAndFailedCommands(t *testing.T) {
	t.Parallel()

	var messages []string
	d := NewDesktop(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.notify = func(title string, message string) error {
		if title != "VoiceDesk" {
			t.Fatalf("unexpected title: %q", title)
		}
		messages = append(messages, message)
		return errors.New("no notification daemon")
	}

	d.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	d.LiveTranscript("ignored")
	d.CommandExecuted(domain.DetectedCommand{TriggerPhrase: "pause recording"}, domain.CommandExecutionResult{Outcome: domain.CommandOutcomePaused})
	d.CommandExecuted(domain.DetectedCommand{TriggerPhrase: "send it"}, domain.CommandExecutionResult{Outcome: domain.CommandOutcomeFailed, Reason: "paste denied"})
	d.SessionError(domain.ErrorCodeCapture, "")

	if len(messages) != 2 {
		t.Fatalf("expected two notifications, got %#v", messages)
	}
	if messages[0] != `Command "send it" failed: paste denied` || messages[1] != "capture" {
		t.Fatalf("unexpected messages: %#v", messages)
	}
}
