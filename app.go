package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicedesk/internal/bootstrap"
	"voicedesk/internal/config"
	"voicedesk/internal/domain"
	"voicedesk/internal/usecase"
)

const (
	eventSession = "voicedesk:session"
	eventLive    = "voicedesk:live"
	eventCommand = "voicedesk:command"
	eventFinal   = "voicedesk:final"
	eventError   = "voicedesk:error"

	shutdownTimeout = 5 * time.Second
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{ctx: ctx})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.services.Close(ctx); err != nil {
		a.services.Logger.Warn("shutdown incomplete", "error", err)
	}
}

// StartOrStop toggles recording from the global shortcut.
func (a *App) StartOrStop() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.controller.StartOrStop(a.ctx)
}

// Start begins a dictation session.
func (a *App) Start() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Stop ends recording and returns the dispatched transcript.
func (a *App) Stop() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.controller.Stop(a.ctx)
}

// Cancel discards an in-progress recording.
func (a *App) Cancel() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Cancel(a.ctx); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

func (a *App) DismissError() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.DismissError()
}

// Retry reloads the selected backend after a failure.
func (a *App) Retry() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Retry(a.ctx)
}

// PeekTranscript returns the text that would be output if recording
// stopped now.
func (a *App) PeekTranscript() string {
	if a.controller == nil {
		return ""
	}
	return a.controller.PeekTranscript()
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

func (a *App) GetDebugLog() []domain.DebugLogEntry {
	if a.controller == nil {
		return nil
	}
	return a.controller.DebugLog()
}

func (a *App) SelectBackend(name string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SelectBackend(name)
}

func (a *App) GetBackends() []string {
	if a.controller == nil {
		return nil
	}
	return a.controller.Backends()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"backend":          a.cfg.Backend,
		"streaming":        strconv.FormatBool(a.cfg.Session.Streaming),
		"commands":         strconv.FormatBool(a.cfg.Commands.Enabled),
		"rulesFile":        a.cfg.Rules.Path,
		"commandsFile":     a.cfg.Commands.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
	switch a.cfg.Backend {
	case config.BackendOpenAI:
		info["model"] = a.cfg.OpenAI.Model
		info["language"] = a.cfg.OpenAI.Language
	default:
		info["model"] = a.cfg.Deepgram.Model
		info["language"] = a.cfg.Deepgram.Language
	}
	if a.cfg.MetricsAddr != "" {
		info["metrics"] = a.cfg.MetricsAddr
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// LiveTranscript emits the streaming preview text.
func (a *App) LiveTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLive, map[string]string{"text": text})
}

func (a *App) CommandExecuted(command domain.DetectedCommand, result domain.CommandExecutionResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCommand, map[string]any{
		"command": command,
		"result":  result,
		"message": commandMessage(result),
	})
}

// FinalTranscript emits final transcript output.
func (a *App) FinalTranscript(raw string, transformed string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFinal, map[string]string{
		"raw":         raw,
		"transformed": transformed,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonStopping:
		return "Stopping..."
	case domain.SessionReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.SessionReasonEnhancing:
		return "Applying replacements..."
	case domain.SessionReasonTranscriptPasted:
		return "Transcript pasted"
	case domain.SessionReasonPasteFailed:
		return "Transcript ready (paste failed)"
	case domain.SessionReasonTranscriptSent:
		return "Transcript sent"
	case domain.SessionReasonRecordingCancelled:
		return "Recording cancelled"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonNoModelSelected:
		return "No transcription backend selected"
	case domain.SessionReasonModelLoadFailed:
		return "Transcription backend failed to load"
	case domain.SessionReasonCaptureFailed:
		return "Microphone could not be opened"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonErrorDismissed:
		return "Error dismissed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeNoModel:
		return "No transcription backend selected"
	case domain.ErrorCodeModelLoad:
		return "Backend failed to load"
	case domain.ErrorCodeCapture:
		return "Audio capture failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeOutput:
		return "Text output failed"
	case domain.ErrorCodeNavigation:
		return "Could not switch application"
	case domain.ErrorCodeCancellationRace:
		return "Cancelled after text was sent"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func commandMessage(result domain.CommandExecutionResult) string {
	switch result.Outcome {
	case domain.CommandOutcomePaused:
		return "Paused. Say a command or resume listening"
	case domain.CommandOutcomeResumed:
		return "Listening"
	case domain.CommandOutcomeSent:
		return "Sent"
	case domain.CommandOutcomeSentAndStopped:
		return "Sent and stopped"
	case domain.CommandOutcomeNavigated:
		if !result.Focused {
			return "Could not focus " + result.Target
		}
		return "Switched to " + result.Target
	case domain.CommandOutcomeCancelled:
		return "Cancelled"
	case domain.CommandOutcomeFailed:
		return "Command failed: " + result.Reason
	default:
		return ""
	}
}

type wailsClipboard struct {
	ctx context.Context
}

func (c *wailsClipboard) GetText(_ context.Context) (string, error) {
	return runtime.ClipboardGetText(c.ctx)
}

// SetText uses the Wails context; runtime calls panic on a plain context.
func (c *wailsClipboard) SetText(_ context.Context, text string) error {
	return runtime.ClipboardSetText(c.ctx, text)
}
