package usecase

import (
	"context"
	"errors"
	"log/slog"

	"voicedesk/internal/commands"
	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

// commandExecutor applies a detected command to the session's chunks, audio
// and mode. It never changes the session state; the controller reacts to
// SendAndStop and Cancel results.
type commandExecutor struct {
	dispatcher outputDispatcher
	focus      ports.AppFocusController
	debug      *debugLog
	logger     *slog.Logger
	// record is called with every text that reached the target app.
	record func(session *activeSession, raw string, final string)
}

// execute runs command. source is the full live transcript it was detected in.
func (e commandExecutor) execute(ctx context.Context, s *activeSession, command domain.DetectedCommand, source string) domain.CommandExecutionResult {
	switch command.Action {
	case domain.ActionPause:
		return e.pause(ctx, s, command, source)
	case domain.ActionResumeListening:
		return e.resume(ctx, s, command)
	case domain.ActionSendAndContinue:
		return e.send(ctx, s, command, true)
	case domain.ActionSendAndStop:
		return e.send(ctx, s, command, false)
	case domain.ActionNavigate:
		return e.navigate(ctx, s, command, source)
	case domain.ActionCancel:
		s.discardAll()
		return domain.CommandExecutionResult{Outcome: domain.CommandOutcomeCancelled, Action: command.Action}
	default:
		return ignored(command, "unknown action")
	}
}

func (e commandExecutor) pause(ctx context.Context, s *activeSession, command domain.DetectedCommand, source string) domain.CommandExecutionResult {
	if s.inCommandMode() {
		s.consume(source)
		return ignored(command, "already paused")
	}

	chunk, err := e.finalizeChunk(ctx, s, command, true)
	if err != nil {
		return e.failed(s, command, err)
	}
	return domain.CommandExecutionResult{Outcome: domain.CommandOutcomePaused, Action: command.Action, Text: chunk}
}

// resume leaves command mode with a fresh buffer. Said during dictation it
// instead closes the current chunk so the phrase does not end up in output.
func (e commandExecutor) resume(ctx context.Context, s *activeSession, command domain.DetectedCommand) domain.CommandExecutionResult {
	if !s.inCommandMode() {
		chunk, err := e.finalizeChunk(ctx, s, command, false)
		if err != nil {
			return e.failed(s, command, err)
		}
		return domain.CommandExecutionResult{Outcome: domain.CommandOutcomeResumed, Action: command.Action, Text: chunk}
	}

	s.resume()
	e.debug.add(domain.DebugLogListening, "", nil)
	return domain.CommandExecutionResult{Outcome: domain.CommandOutcomeResumed, Action: command.Action}
}

func (e commandExecutor) send(ctx context.Context, s *activeSession, command domain.DetectedCommand, confirm bool) domain.CommandExecutionResult {
	if s.inCommandMode() {
		s.discardAudio()
	} else if _, err := e.finalizeChunk(ctx, s, command, false); err != nil {
		return e.failed(s, command, err)
	}

	if s.shouldCancel.Load() {
		return ignored(command, "session cancelled")
	}

	raw := s.sendableText()
	final, rulesErr := e.dispatcher.prepare(raw, confirm)
	if rulesErr != nil {
		e.logger.Warn("word replacement failed", "session", s.id, "error", rulesErr)
	}
	if err := e.dispatcher.dispatch(ctx, final, confirm); err != nil {
		// Chunks stay so the text is still delivered when the session stops.
		return e.failed(s, command, err)
	}
	if s.shouldCancel.Load() {
		e.logger.Warn("cancel arrived after send", "session", s.id, "error", ErrCancellationRace)
	}

	s.completeSend(confirm)
	if final != "" {
		e.debug.add(domain.DebugLogSentTranscription, final, nil)
		e.record(s, raw, final)
	}

	outcome := domain.CommandOutcomeSent
	if !confirm {
		outcome = domain.CommandOutcomeSentAndStopped
	}
	return domain.CommandExecutionResult{Outcome: outcome, Action: command.Action, Text: final}
}

// navigate focuses the target app and switches to command mode. Chunks and
// audio are left alone; the text dictated before the command is kept as
// pending output.
func (e commandExecutor) navigate(ctx context.Context, s *activeSession, command domain.DetectedCommand, source string) domain.CommandExecutionResult {
	focused := e.focus != nil && e.focus.FocusApplication(ctx, command.Target)
	if !focused {
		e.logger.Warn("navigate target not focused", "session", s.id, "target", command.Target, "error", ErrNavigationTargetNotFound)
	}

	s.enterCommandMode(source, command.TextBefore)

	result := domain.CommandExecutionResult{
		Outcome: domain.CommandOutcomeNavigated,
		Action:  command.Action,
		Target:  command.Target,
		Focused: focused,
	}
	if !focused {
		result.Reason = ErrNavigationTargetNotFound.Error()
	}
	return result
}

// finalizeChunk transcribes the whole buffer one last time, strips the
// command phrase and commits the remainder as a chunk. Nothing is mutated
// when the transcription fails except the live display.
func (e commandExecutor) finalizeChunk(ctx context.Context, s *activeSession, command domain.DetectedCommand, commandMode bool) (string, error) {
	samples, _ := s.snapshotAudio()
	text, err := s.transcriber.run(ctx, samples, true)
	if errors.Is(err, errNotEnoughSpeech) {
		text, err = "", nil
	}
	if err != nil {
		s.stripLive(command.TriggerPhrase)
		return "", err
	}

	chunk := commands.StripCommand(command.TriggerPhrase, text)
	s.commitChunk(chunk, commandMode)
	return chunk, nil
}

func (e commandExecutor) failed(s *activeSession, command domain.DetectedCommand, err error) domain.CommandExecutionResult {
	e.logger.Warn("command failed", "session", s.id, "action", command.Action, "error", err)
	return domain.CommandExecutionResult{
		Outcome: domain.CommandOutcomeFailed,
		Action:  command.Action,
		Reason:  err.Error(),
	}
}

func ignored(command domain.DetectedCommand, reason string) domain.CommandExecutionResult {
	return domain.CommandExecutionResult{Outcome: domain.CommandOutcomeIgnored, Action: command.Action, Reason: reason}
}
