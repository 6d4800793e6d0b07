package usecase

import "errors"

var (
	ErrNoActiveSession          = errors.New("no active recording session")
	ErrNoModelSelected          = errors.New("no transcription backend selected")
	ErrUnknownBackend           = errors.New("unknown transcription backend")
	ErrBackendLoadFailed        = errors.New("transcription backend failed to load")
	ErrCaptureStartFailed       = errors.New("audio capture failed to start")
	ErrTranscriptionFailed      = errors.New("transcription failed")
	ErrNoTranscript             = errors.New("no transcript captured")
	ErrNavigationTargetNotFound = errors.New("navigation target not found")
	ErrCancellationRace         = errors.New("session cancelled after output was dispatched")
	ErrInvalidTransition        = errors.New("invalid session state transition")
	ErrSessionBusy              = errors.New("session is busy")
	ErrErrorState               = errors.New("session is in error state")
)

// Internal outcomes of a transcription attempt that are not failures.
var (
	errSlotBusy        = errors.New("transcription already in progress")
	errNotEnoughSpeech = errors.New("not enough speech to transcribe")
)
