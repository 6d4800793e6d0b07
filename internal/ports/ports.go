package ports

import (
	"context"
	"time"

	"voicedesk/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	InputFormat string
	InputDevice string
}

// SampleSink receives mono float samples as capture produces them.
type SampleSink interface {
	Append(samples []float32)
}

// AudioSession is a live capture session.
type AudioSession interface {
	Stop() error
}

// AudioCapture creates microphone capture sessions that push into a sink.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig, sink SampleSink) (AudioSession, error)
}

// TranscriptionBackend converts a mono 16 kHz sample window into text.
type TranscriptionBackend interface {
	Name() string
	LoadModel(ctx context.Context) error
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// OutputInjector writes synthetic input into the focused application.
type OutputInjector interface {
	PasteText(ctx context.Context, text string) error
	PressConfirmKey(ctx context.Context) error
	DeleteCharacters(ctx context.Context, n int) error
}

// AppFocusController brings an application to the foreground.
type AppFocusController interface {
	FocusApplication(ctx context.Context, name string) bool
}

// HistoryEntry is one persisted final transcript.
type HistoryEntry struct {
	ID        string
	SessionID string
	Text      string
	Duration  time.Duration
	ModelName string
	CreatedAt time.Time
}

// HistoryStore persists final transcripts.
type HistoryStore interface {
	Save(ctx context.Context, entry HistoryEntry) error
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	GetText(ctx context.Context) (string, error)
	SetText(ctx context.Context, text string) error
}

// EventSink emits session state and events to the UI. Delivery is best effort.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	LiveTranscript(text string)
	CommandExecuted(command domain.DetectedCommand, result domain.CommandExecutionResult)
	FinalTranscript(raw string, transformed string)
	SessionError(code domain.ErrorCode, detail string)
}

// Metrics records runtime counters for the session core.
type Metrics interface {
	ObserveTranscription(outcome string, seconds float64)
	ObserveIterationSkipped(reason string)
	ObserveCommand(action domain.ActionKind, outcome domain.CommandOutcome)
	ObserveSession(outcome string, seconds float64)
}
