package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voicedesk/internal/audio"
	"voicedesk/internal/commands"
	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

const samplesPerWord = 10

// fakeVoice encodes words as runs of samples so a fake backend can
// "transcribe" exactly what is in the buffer.
type fakeVoice struct {
	mu    sync.Mutex
	words []string
	index map[string]int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{index: map[string]int{}}
}

func (v *fakeVoice) encode(text string) []float32 {
	v.mu.Lock()
	defer v.mu.Unlock()

	var samples []float32
	for _, word := range strings.Fields(text) {
		idx, ok := v.index[word]
		if !ok {
			v.words = append(v.words, word)
			idx = len(v.words)
			v.index[word] = idx
		}
		for i := 0; i < samplesPerWord; i++ {
			samples = append(samples, float32(idx))
		}
	}
	return samples
}

func (v *fakeVoice) decode(samples []float32) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	var words []string
	for i := 0; i < len(samples); i += samplesPerWord {
		idx := int(samples[i])
		if idx > 0 && idx <= len(v.words) {
			words = append(words, v.words[idx-1])
		}
	}
	return strings.Join(words, " ")
}

type fakeBackend struct {
	name    string
	voice   *fakeVoice
	delay   time.Duration
	loadErr error
	// failOn makes the nth Transcribe call (1-based) fail.
	failOn int64

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	loads       atomic.Int64
}

func (b *fakeBackend) Name() string {
	if b.name == "" {
		return "fake"
	}
	return b.name
}

func (b *fakeBackend) LoadModel(_ context.Context) error {
	b.loads.Add(1)
	return b.loadErr
}

func (b *fakeBackend) Transcribe(ctx context.Context, samples []float32) (string, error) {
	call := b.calls.Add(1)
	current := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		seen := b.maxInFlight.Load()
		if current <= seen || b.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.failOn > 0 && call == b.failOn {
		return "", errors.New("backend exploded")
	}
	return b.voice.decode(samples), nil
}

type fakeCapture struct {
	voice    *fakeVoice
	startErr error

	mu      sync.Mutex
	sink    ports.SampleSink
	stopped int
}

func (c *fakeCapture) Start(_ context.Context, _ ports.AudioConfig, sink ports.SampleSink) (ports.AudioSession, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
	return &fakeCaptureSession{capture: c}, nil
}

func (c *fakeCapture) speak(text string) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	sink.Append(c.voice.encode(text))
}

type fakeCaptureSession struct {
	capture *fakeCapture
}

func (s *fakeCaptureSession) Stop() error {
	s.capture.mu.Lock()
	s.capture.stopped++
	s.capture.mu.Unlock()
	return nil
}

type fakeInjector struct {
	pasteErr error

	mu       sync.Mutex
	pasted   []string
	confirms int
}

func (f *fakeInjector) PasteText(_ context.Context, text string) error {
	if f.pasteErr != nil {
		return f.pasteErr
	}
	f.mu.Lock()
	f.pasted = append(f.pasted, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeInjector) PressConfirmKey(_ context.Context) error {
	f.mu.Lock()
	f.confirms++
	f.mu.Unlock()
	return nil
}

func (f *fakeInjector) DeleteCharacters(_ context.Context, _ int) error { return nil }

func (f *fakeInjector) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pasted...), f.confirms
}

type fakeFocus struct {
	known map[string]bool

	mu      sync.Mutex
	focused []string
}

func (f *fakeFocus) FocusApplication(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, name)
	return f.known[name]
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []ports.HistoryEntry
}

func (f *fakeHistory) Save(_ context.Context, entry ports.HistoryEntry) error {
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	f.mu.Unlock()
	return nil
}

func (f *fakeHistory) snapshot() []ports.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.HistoryEntry(nil), f.entries...)
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type commandEvent struct {
	command domain.DetectedCommand
	result  domain.CommandExecutionResult
}

type fakeEventSink struct {
	mu       sync.Mutex
	states   []stateEvent
	live     []string
	commands []commandEvent
	finals   []string
	errors   []domain.ErrorCode
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
	f.mu.Unlock()
}

func (f *fakeEventSink) LiveTranscript(text string) {
	f.mu.Lock()
	f.live = append(f.live, text)
	f.mu.Unlock()
}

func (f *fakeEventSink) CommandExecuted(command domain.DetectedCommand, result domain.CommandExecutionResult) {
	f.mu.Lock()
	f.commands = append(f.commands, commandEvent{command: command, result: result})
	f.mu.Unlock()
}

func (f *fakeEventSink) FinalTranscript(_ string, transformed string) {
	f.mu.Lock()
	f.finals = append(f.finals, transformed)
	f.mu.Unlock()
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, _ string) {
	f.mu.Lock()
	f.errors = append(f.errors, code)
	f.mu.Unlock()
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotCommands() []commandEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commandEvent(nil), f.commands...)
}

func (f *fakeEventSink) snapshotErrors() []domain.ErrorCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ErrorCode(nil), f.errors...)
}

func (f *fakeEventSink) lastState() stateEvent {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateEvent{}
	}
	return states[len(states)-1]
}

type fakeMetrics struct {
	mu       sync.Mutex
	skipped  map[string]int
	sessions []string
}

func (f *fakeMetrics) ObserveTranscription(string, float64) {}

func (f *fakeMetrics) ObserveIterationSkipped(reason string) {
	f.mu.Lock()
	if f.skipped == nil {
		f.skipped = map[string]int{}
	}
	f.skipped[reason]++
	f.mu.Unlock()
}

func (f *fakeMetrics) ObserveCommand(domain.ActionKind, domain.CommandOutcome) {}

func (f *fakeMetrics) ObserveSession(outcome string, _ float64) {
	f.mu.Lock()
	f.sessions = append(f.sessions, outcome)
	f.mu.Unlock()
}

func (f *fakeMetrics) skips(reason string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped[reason]
}

// harness wires a controller to fakes with a fast streaming loop.
type harness struct {
	voice      *fakeVoice
	capture    *fakeCapture
	backend    *fakeBackend
	injector   *fakeInjector
	focus      *fakeFocus
	history    *fakeHistory
	events     *fakeEventSink
	metrics    *fakeMetrics
	controller *SessionController
}

type harnessOption func(*Dependencies, *Config)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	voice := newFakeVoice()
	h := &harness{
		voice:    voice,
		capture:  &fakeCapture{voice: voice},
		backend:  &fakeBackend{voice: voice},
		injector: &fakeInjector{},
		focus:    &fakeFocus{known: map[string]bool{"iTerm2": true, "Slack": true}},
		history:  &fakeHistory{},
		events:   &fakeEventSink{},
		metrics:  &fakeMetrics{},
	}

	detector, err := commands.NewDetector(commands.DefaultTable(), commands.WithDebounceWindow(0))
	if err != nil {
		t.Fatalf("detector: %v", err)
	}

	deps := Dependencies{
		Audio:    h.capture,
		Backends: []ports.TranscriptionBackend{h.backend},
		Detector: detector,
		Injector: h.injector,
		Focus:    h.focus,
		History:  h.history,
		Events:   h.events,
		Metrics:  h.metrics,
	}
	cfg := Config{
		Audio:            ports.AudioConfig{SampleRate: audio.DefaultSampleRate},
		Streaming:        true,
		LivePreview:      true,
		Commands:         true,
		MinSpeechSamples: 1,
		LoopInterval:     5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	h.controller = NewSessionController(deps, cfg)
	t.Cleanup(h.controller.Close)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// newTestSession builds a session without capture or loop for executor tests.
func newTestSession(backend ports.TranscriptionBackend) *activeSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &activeSession{
		id:          "test",
		backendName: backend.Name(),
		ctx:         ctx,
		cancel:      cancel,
		buffer:      audio.NewBuffer(audio.DefaultSampleRate),
		transcriber: newTranscriber(backend, nil, 1, noopMetrics{}),
	}
}
