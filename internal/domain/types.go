package domain

import "time"

// SessionState models the dictation session lifecycle.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateRecording    SessionState = "recording"
	SessionStateBusy         SessionState = "busy"
	SessionStateTranscribing SessionState = "transcribing"
	SessionStateEnhancing    SessionState = "enhancing"
	SessionStateError        SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonRecordingStarted    SessionStateReason = "recording_started"
	SessionReasonStopping            SessionStateReason = "stopping"
	SessionReasonTranscribing        SessionStateReason = "transcribing"
	SessionReasonEnhancing           SessionStateReason = "enhancing"
	SessionReasonTranscriptPasted    SessionStateReason = "transcript_pasted"
	SessionReasonPasteFailed         SessionStateReason = "paste_failed"
	SessionReasonTranscriptSent      SessionStateReason = "transcript_sent"
	SessionReasonRecordingCancelled  SessionStateReason = "recording_cancelled"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonNoModelSelected     SessionStateReason = "no_model_selected"
	SessionReasonModelLoadFailed     SessionStateReason = "model_load_failed"
	SessionReasonCaptureFailed       SessionStateReason = "capture_failed"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
	SessionReasonErrorDismissed      SessionStateReason = "error_dismissed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup          ErrorCode = "startup"
	ErrorCodeNoModel          ErrorCode = "no_model_selected"
	ErrorCodeModelLoad        ErrorCode = "model_load"
	ErrorCodeCapture          ErrorCode = "capture"
	ErrorCodeAudioStop        ErrorCode = "audio_stop"
	ErrorCodeTranscription    ErrorCode = "transcription"
	ErrorCodeRules            ErrorCode = "rules"
	ErrorCodeOutput           ErrorCode = "output"
	ErrorCodeNavigation       ErrorCode = "navigation"
	ErrorCodeCancellationRace ErrorCode = "cancellation_race"
)

// ActionKind names what a recognised voice command asks for.
type ActionKind string

const (
	ActionSendAndContinue ActionKind = "send_and_continue"
	ActionSendAndStop     ActionKind = "send_and_stop"
	ActionNavigate        ActionKind = "navigate"
	ActionCancel          ActionKind = "cancel"
	ActionPause           ActionKind = "pause"
	ActionResumeListening ActionKind = "resume_listening"
	ActionUnknown         ActionKind = "unknown"
)

// ParseActionKind maps a configuration string onto an ActionKind.
func ParseActionKind(value string) ActionKind {
	switch ActionKind(value) {
	case ActionSendAndContinue, ActionSendAndStop, ActionNavigate,
		ActionCancel, ActionPause, ActionResumeListening:
		return ActionKind(value)
	default:
		return ActionUnknown
	}
}

// DetectedCommand is a trigger phrase found at the end of the live transcript.
type DetectedCommand struct {
	TriggerPhrase string     `json:"triggerPhrase"`
	TextBefore    string     `json:"textBefore"`
	Action        ActionKind `json:"action"`
	// Target is the application name for ActionNavigate.
	Target string `json:"target,omitempty"`
}

// CommandOutcome tags a CommandExecutionResult.
type CommandOutcome string

const (
	CommandOutcomePaused         CommandOutcome = "paused"
	CommandOutcomeResumed        CommandOutcome = "resumed"
	CommandOutcomeSent           CommandOutcome = "sent"
	CommandOutcomeSentAndStopped CommandOutcome = "sent_and_stopped"
	CommandOutcomeNavigated      CommandOutcome = "navigated"
	CommandOutcomeCancelled      CommandOutcome = "cancelled"
	CommandOutcomeIgnored        CommandOutcome = "ignored"
	CommandOutcomeFailed         CommandOutcome = "failed"
)

// CommandExecutionResult reports what the executor did with a command.
type CommandExecutionResult struct {
	Outcome CommandOutcome `json:"outcome"`
	Action  ActionKind     `json:"action"`
	// Text is the dispatched text for sends, or the saved chunk for pauses.
	Text   string `json:"text,omitempty"`
	Target string `json:"target,omitempty"`
	// Focused is false when a navigate target could not be focused.
	Focused bool   `json:"focused,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// DebugLogKind tags a DebugLogEntry.
type DebugLogKind string

const (
	DebugLogTranscription     DebugLogKind = "transcription"
	DebugLogSentTranscription DebugLogKind = "sent_transcription"
	DebugLogCommandDetected   DebugLogKind = "command_detected"
	DebugLogListening         DebugLogKind = "listening"
)

// DebugLogEntry is one diagnostic record of a session.
type DebugLogEntry struct {
	Kind    DebugLogKind     `json:"kind"`
	Text    string           `json:"text,omitempty"`
	Command *DetectedCommand `json:"command,omitempty"`
	At      time.Time        `json:"at"`
}

// StopResult is returned once recording is stopped and output is dispatched.
type StopResult struct {
	RawTranscript   string `json:"rawTranscript"`
	FinalTranscript string `json:"finalTranscript"`
	Pasted          bool   `json:"pasted"`
	Cancelled       bool   `json:"cancelled"`
}

// Status summarizes the current runtime status.
type Status struct {
	State          SessionState `json:"state"`
	Active         bool         `json:"active"`
	Message        string       `json:"message,omitempty"`
	SessionID      string       `json:"sessionId,omitempty"`
	Backend        string       `json:"backend,omitempty"`
	CommandMode    bool         `json:"commandMode"`
	LiveTranscript string       `json:"liveTranscript,omitempty"`
	Chunks         []string     `json:"chunks,omitempty"`
}
