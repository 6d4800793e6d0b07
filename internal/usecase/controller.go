package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"voicedesk/internal/audio"
	"voicedesk/internal/commands"
	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

const (
	defaultMinSpeechSamples = 8000
	defaultLoopInterval     = 300 * time.Millisecond
	historySaveTimeout      = 5 * time.Second
)

// Config controls session behavior.
type Config struct {
	Audio ports.AudioConfig
	// Streaming re-transcribes while recording. Without it the buffer is
	// transcribed once on stop and voice commands are unavailable.
	Streaming        bool
	LivePreview      bool
	Commands         bool
	MinSpeechSamples int
	LoopInterval     time.Duration
	Dispatch         DispatchConfig
}

// CommandDetector finds voice commands in the live transcript and guards
// against running two at once.
type CommandDetector interface {
	Acquire(text string) (domain.DetectedCommand, commands.Verdict)
	Release()
	Reset()
	StripTrailing(text string) string
}

// Dependencies are the collaborators of a SessionController. Only Audio and
// at least one backend are required for recording.
type Dependencies struct {
	Audio    ports.AudioCapture
	Backends []ports.TranscriptionBackend
	// Backend names the initially selected backend; empty picks the first.
	Backend  string
	Filter   SpeechFilter
	Detector CommandDetector
	Rules    ports.RulesEngine
	Injector ports.OutputInjector
	Focus    ports.AppFocusController
	History  ports.HistoryStore
	Events   ports.EventSink
	Metrics  ports.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// SessionController owns the session state machine and everything a
// recording attempt touches.
type SessionController struct {
	audio      ports.AudioCapture
	backends   map[string]ports.TranscriptionBackend
	filter     SpeechFilter
	detector   CommandDetector
	history    ports.HistoryStore
	events     ports.EventSink
	metrics    ports.Metrics
	logger     *slog.Logger
	now        func() time.Time
	dispatcher outputDispatcher
	executor   commandExecutor
	debug      *debugLog
	machine    *stateMachine
	cfg        Config

	mu       sync.Mutex
	selected string
	current  *activeSession
	starting bool

	background sync.WaitGroup
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.MinSpeechSamples <= 0 {
		cfg.MinSpeechSamples = defaultMinSpeechSamples
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = defaultLoopInterval
	}
	if deps.Events == nil {
		deps.Events = noopEvents{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	backends := lo.SliceToMap(deps.Backends, func(backend ports.TranscriptionBackend) (string, ports.TranscriptionBackend) {
		return backend.Name(), backend
	})
	selected := deps.Backend
	if _, ok := backends[selected]; !ok && len(deps.Backends) > 0 {
		selected = deps.Backends[0].Name()
	}

	c := &SessionController{
		audio:      deps.Audio,
		backends:   backends,
		filter:     deps.Filter,
		detector:   deps.Detector,
		history:    deps.History,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
		dispatcher: newOutputDispatcher(deps.Rules, deps.Injector, cfg.Dispatch),
		debug:      newDebugLog(deps.Now),
		machine:    newStateMachine(),
		cfg:        cfg,
		selected:   selected,
	}
	c.executor = commandExecutor{
		dispatcher: c.dispatcher,
		focus:      deps.Focus,
		debug:      c.debug,
		logger:     c.logger,
		record:     c.record,
	}
	return c
}

// StartOrStop toggles recording, as a hotkey press does.
func (c *SessionController) StartOrStop(ctx context.Context) (domain.StopResult, error) {
	state, _ := c.machine.current()
	switch state {
	case domain.SessionStateIdle:
		return domain.StopResult{}, c.Start(ctx)
	case domain.SessionStateRecording:
		return c.Stop(ctx)
	case domain.SessionStateError:
		return domain.StopResult{}, ErrErrorState
	default:
		return domain.StopResult{}, ErrSessionBusy
	}
}

// Start loads the selected backend, starts capture and, when streaming, the
// transcription loop.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	state, _ := c.machine.current()
	switch {
	case state == domain.SessionStateError:
		c.mu.Unlock()
		return ErrErrorState
	case state != domain.SessionStateIdle || c.starting || c.current != nil:
		c.mu.Unlock()
		return ErrSessionBusy
	}
	c.starting = true
	backend := c.backends[c.selected]
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	if backend == nil {
		c.fail(domain.ErrorCodeNoModel, domain.SessionReasonNoModelSelected, ErrNoModelSelected)
		return ErrNoModelSelected
	}
	if err := backend.LoadModel(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrBackendLoadFailed, err)
		c.fail(domain.ErrorCodeModelLoad, domain.SessionReasonModelLoadFailed, err)
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	active := &activeSession{
		id:          uuid.NewString(),
		backendName: backend.Name(),
		startedAt:   c.now(),
		ctx:         sessionCtx,
		cancel:      cancel,
		buffer:      audio.NewBuffer(c.cfg.Audio.SampleRate),
		transcriber: newTranscriber(backend, c.filter, c.cfg.MinSpeechSamples, c.metrics),
	}

	c.debug.reset()
	if c.detector != nil {
		c.detector.Reset()
	}

	capture, err := c.audio.Start(sessionCtx, c.cfg.Audio, active.buffer)
	if err != nil {
		cancel()
		err = fmt.Errorf("%w: %w", ErrCaptureStartFailed, err)
		c.fail(domain.ErrorCodeCapture, domain.SessionReasonCaptureFailed, err)
		return err
	}
	active.audio = capture

	if c.cfg.Streaming {
		active.loop = startStreamingLoop(sessionCtx, active, c.cfg.LoopInterval, func(text string, final bool) {
			c.handleTranscript(active, text, final)
		}, c.metrics, c.logger)
	}

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	if err := c.transition(domain.SessionStateRecording, domain.SessionReasonRecordingStarted, ""); err != nil {
		c.teardown(active)
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		return err
	}

	c.debug.add(domain.DebugLogListening, "", nil)
	c.logger.Info("recording started", "session", active.id, "backend", active.backendName, "streaming", c.cfg.Streaming)
	return nil
}

// Stop ends recording, waits for the final transcription and dispatches the
// result. Calls while a stop is already underway return ErrSessionBusy.
func (c *SessionController) Stop(_ context.Context) (domain.StopResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.StopResult{}, err
	}
	if err := c.beginTeardown(active); err != nil {
		return domain.StopResult{}, ErrSessionBusy
	}
	return c.finishRecording(active)
}

// Cancel aborts the session without output. During a stop already in
// progress it only flags the session; the stop path observes the flag at its
// next suspend point.
func (c *SessionController) Cancel(_ context.Context) error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}
	return c.cancelSession(active)
}

// DismissError leaves the error state.
func (c *SessionController) DismissError() error {
	return c.transition(domain.SessionStateIdle, domain.SessionReasonErrorDismissed, "")
}

// Retry dismisses the current error and starts recording again.
func (c *SessionController) Retry(ctx context.Context) error {
	if err := c.DismissError(); err != nil {
		return err
	}
	return c.Start(ctx)
}

// PeekTranscript returns what would be output if the session stopped now.
func (c *SessionController) PeekTranscript() string {
	active, err := c.getCurrent()
	if err != nil {
		return ""
	}
	return active.outputText(c.stripTrailing)
}

// Status returns the current runtime status.
func (c *SessionController) Status() domain.Status {
	state, message := c.machine.current()

	c.mu.Lock()
	active := c.current
	selected := c.selected
	c.mu.Unlock()

	status := domain.Status{
		State:   state,
		Active:  state != domain.SessionStateIdle && state != domain.SessionStateError,
		Message: message,
		Backend: selected,
	}
	if active != nil {
		status.SessionID = active.id
		status.Backend = active.backendName
		status.LiveTranscript, status.Chunks, status.CommandMode = active.view()
	}
	return status
}

// DebugLog returns the diagnostic entries of the current or last session.
func (c *SessionController) DebugLog() []domain.DebugLogEntry {
	return c.debug.snapshot()
}

// SelectBackend chooses the backend used by the next session.
func (c *SessionController) SelectBackend(name string) error {
	if _, ok := c.backends[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	c.mu.Lock()
	c.selected = name
	c.mu.Unlock()
	return nil
}

// Backends lists the registered backend names.
func (c *SessionController) Backends() []string {
	names := lo.Keys(c.backends)
	sort.Strings(names)
	return names
}

// Close cancels any active session and waits for pending history writes.
func (c *SessionController) Close() {
	if active, err := c.getCurrent(); err == nil {
		_ = c.cancelSession(active)
	}
	c.background.Wait()
}

func (c *SessionController) handleTranscript(active *activeSession, text string, final bool) {
	c.debug.add(domain.DebugLogTranscription, text, nil)

	if c.cfg.LivePreview && !active.inCommandMode() {
		c.events.LiveTranscript(text)
	}
	if !c.cfg.Commands || c.detector == nil || final || active.shouldCancel.Load() {
		return
	}
	c.considerCommand(active, text)
}

// considerCommand runs on the loop goroutine. Acquire marks the detector busy
// before the executor goroutine exists, so a second loop result cannot fire
// the same command.
func (c *SessionController) considerCommand(active *activeSession, text string) {
	command, verdict := c.detector.Acquire(active.detectionText(text))
	switch verdict {
	case commands.VerdictAccepted:
	case commands.VerdictNoMatch:
		return
	default:
		c.logger.Debug("command not executed", "session", active.id, "verdict", verdict, "phrase", command.TriggerPhrase)
		return
	}

	detected := command
	c.debug.add(domain.DebugLogCommandDetected, text, &detected)
	c.logger.Info("command detected", "session", active.id, "action", command.Action, "phrase", command.TriggerPhrase)

	active.commands.Add(1)
	go func() {
		result := c.executor.execute(active.ctx, active, command, text)
		c.detector.Release()
		active.commands.Done()
		c.afterCommand(active, command, result)
	}()
}

// afterCommand runs once the executor goroutine stopped counting as in
// flight, so the stop paths it triggers can wait for commands safely.
func (c *SessionController) afterCommand(active *activeSession, command domain.DetectedCommand, result domain.CommandExecutionResult) {
	c.metrics.ObserveCommand(command.Action, result.Outcome)
	c.events.CommandExecuted(command, result)

	switch result.Outcome {
	case domain.CommandOutcomeNavigated:
		if !result.Focused {
			c.events.SessionError(domain.ErrorCodeNavigation, fmt.Sprintf("could not focus %q", command.Target))
		}
	case domain.CommandOutcomeSentAndStopped:
		c.stopAfterSend(active)
	case domain.CommandOutcomeCancelled:
		_ = c.cancelSession(active)
	}
}

func (c *SessionController) finishRecording(active *activeSession) (domain.StopResult, error) {
	if err := active.audio.Stop(); err != nil {
		c.logger.Warn("audio capture did not stop cleanly", "session", active.id, "error", err)
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	if active.loop != nil {
		active.loop.requestStop()
		<-active.loop.done
	}
	active.commands.Wait()
	if active.shouldCancel.Load() {
		return c.finishCancelled(active)
	}

	_ = c.transition(domain.SessionStateTranscribing, domain.SessionReasonTranscribing, "")

	var raw string
	if active.loop == nil {
		samples, _ := active.snapshotAudio()
		text, err := active.transcriber.run(active.ctx, samples, true)
		switch {
		case active.shouldCancel.Load():
			return c.finishCancelled(active)
		case errors.Is(err, errNotEnoughSpeech):
		case err != nil:
			c.finishWithError(active, domain.ErrorCodeTranscription, domain.SessionReasonTranscriptionFailed, err)
			return domain.StopResult{}, err
		}
		raw = text
	} else {
		raw = active.outputText(c.stripTrailing)
	}

	if active.shouldCancel.Load() {
		return c.finishCancelled(active)
	}
	if raw == "" {
		c.finish(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript, "no_transcript", "")
		return domain.StopResult{}, ErrNoTranscript
	}

	_ = c.transition(domain.SessionStateEnhancing, domain.SessionReasonEnhancing, "")
	final, rulesErr := c.dispatcher.prepare(raw, false)
	if rulesErr != nil {
		c.logger.Warn("word replacement failed", "session", active.id, "error", rulesErr)
		c.events.SessionError(domain.ErrorCodeRules, rulesErr.Error())
	}
	if active.shouldCancel.Load() {
		return c.finishCancelled(active)
	}

	result := domain.StopResult{RawTranscript: raw, FinalTranscript: final, Pasted: true}
	reason := domain.SessionReasonTranscriptPasted
	if err := c.dispatcher.dispatch(active.ctx, final, false); err != nil {
		result.Pasted = false
		reason = domain.SessionReasonPasteFailed
		c.logger.Warn("output dispatch failed", "session", active.id, "error", err)
		c.events.SessionError(domain.ErrorCodeOutput, "transcript ready but could not be pasted")
	}
	if active.shouldCancel.Load() {
		c.logger.Warn("cancel arrived after output", "session", active.id, "error", ErrCancellationRace)
		c.events.SessionError(domain.ErrorCodeCancellationRace, ErrCancellationRace.Error())
	}

	c.events.FinalTranscript(raw, final)
	c.record(active, raw, final)
	c.finish(active, domain.SessionStateIdle, reason, "completed", "")
	return result, nil
}

// stopAfterSend ends a session whose text a send command already delivered.
func (c *SessionController) stopAfterSend(active *activeSession) {
	if err := c.beginTeardown(active); err != nil {
		return
	}
	c.teardown(active)
	if active.shouldCancel.Load() {
		_, _ = c.finishCancelled(active)
		return
	}
	c.finish(active, domain.SessionStateIdle, domain.SessionReasonTranscriptSent, "sent", "")
}

func (c *SessionController) cancelSession(active *activeSession) error {
	active.shouldCancel.Store(true)
	if err := c.beginTeardown(active); err != nil {
		// A stop is already running; interrupt whatever it is waiting on.
		active.cancel()
		return nil
	}
	c.teardown(active)
	_, _ = c.finishCancelled(active)
	return nil
}

// teardown stops capture and the loop immediately and waits for commands.
func (c *SessionController) teardown(active *activeSession) {
	active.cancel()
	if err := active.audio.Stop(); err != nil {
		c.logger.Debug("audio capture stop after cancel", "session", active.id, "error", err)
	}
	if active.loop != nil {
		active.loop.stopNow()
	}
	active.commands.Wait()
}

func (c *SessionController) finishCancelled(active *activeSession) (domain.StopResult, error) {
	active.discardAll()
	c.finish(active, domain.SessionStateIdle, domain.SessionReasonRecordingCancelled, "cancelled", "")
	return domain.StopResult{Cancelled: true}, nil
}

func (c *SessionController) finishWithError(active *activeSession, code domain.ErrorCode, reason domain.SessionStateReason, err error) {
	c.logger.Error("session failed", "session", active.id, "code", code, "error", err)
	c.events.SessionError(code, err.Error())
	c.finish(active, domain.SessionStateError, reason, "failed", err.Error())
}

func (c *SessionController) finish(active *activeSession, state domain.SessionState, reason domain.SessionStateReason, outcome string, message string) {
	active.cancel()

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	if err := c.transition(state, reason, message); err != nil {
		c.logger.Error("session state transition failed", "session", active.id, "error", err)
	}
	c.metrics.ObserveSession(outcome, c.now().Sub(active.startedAt).Seconds())
	c.logger.Info("session finished", "session", active.id, "outcome", outcome, "reason", reason)
}

// fail moves to the error state when no session could be started.
func (c *SessionController) fail(code domain.ErrorCode, reason domain.SessionStateReason, err error) {
	c.logger.Error("session start failed", "code", code, "error", err)
	if transitionErr := c.transition(domain.SessionStateError, reason, err.Error()); transitionErr != nil {
		c.logger.Error("session state transition failed", "error", transitionErr)
	}
	c.events.SessionError(code, err.Error())
	c.metrics.ObserveSession("failed", 0)
}

// beginTeardown claims active for exactly one stop path by moving it from
// Recording to Busy.
func (c *SessionController) beginTeardown(active *activeSession) error {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	err := c.machine.transition(domain.SessionStateBusy, "")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.events.SessionStateChanged(domain.SessionStateBusy, domain.SessionReasonStopping)
	return nil
}

func (c *SessionController) transition(state domain.SessionState, reason domain.SessionStateReason, message string) error {
	if err := c.machine.transition(state, message); err != nil {
		return err
	}
	c.events.SessionStateChanged(state, reason)
	return nil
}

func (c *SessionController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, nil
	}
	if state, _ := c.machine.current(); state == domain.SessionStateError {
		return nil, ErrErrorState
	}
	return nil, ErrNoActiveSession
}

func (c *SessionController) stripTrailing(text string) string {
	if !c.cfg.Commands || c.detector == nil {
		return strings.TrimSpace(text)
	}
	return c.detector.StripTrailing(text)
}

// record persists dispatched text in the background. Failures are logged.
func (c *SessionController) record(active *activeSession, _ string, final string) {
	if c.history == nil || strings.TrimSpace(final) == "" {
		return
	}

	entry := ports.HistoryEntry{
		SessionID: active.id,
		Text:      strings.TrimSpace(final),
		Duration:  c.now().Sub(active.startedAt),
		ModelName: active.backendName,
		CreatedAt: c.now(),
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
		defer cancel()
		if err := c.history.Save(ctx, entry); err != nil {
			c.logger.Warn("failed to save transcript history", "session", active.id, "error", err)
		}
	}()
}
