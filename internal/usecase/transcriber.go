package usecase

import (
	"context"
	"fmt"
	"time"

	"voicedesk/internal/ports"
	"voicedesk/internal/textfix"
)

// SpeechFilter drops silence from a sample window.
type SpeechFilter interface {
	Filter(samples []float32) []float32
}

// transcriber runs one backend call at a time for a session. The streaming
// loop and the command executor share the slot, so the backend never sees
// overlapping requests.
type transcriber struct {
	backend    ports.TranscriptionBackend
	filter     SpeechFilter
	minSamples int
	slot       chan struct{}
	metrics    ports.Metrics
}

func newTranscriber(backend ports.TranscriptionBackend, filter SpeechFilter, minSamples int, metrics ports.Metrics) *transcriber {
	return &transcriber{
		backend:    backend,
		filter:     filter,
		minSamples: minSamples,
		slot:       make(chan struct{}, 1),
		metrics:    metrics,
	}
}

// run filters samples and transcribes them. With wait unset it returns
// errSlotBusy instead of queueing behind a call already in flight.
func (t *transcriber) run(ctx context.Context, samples []float32, wait bool) (string, error) {
	if wait {
		select {
		case t.slot <- struct{}{}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	} else {
		select {
		case t.slot <- struct{}{}:
		default:
			return "", errSlotBusy
		}
	}
	defer func() { <-t.slot }()

	if t.filter != nil {
		samples = t.filter.Filter(samples)
	}
	if len(samples) < t.minSamples || len(samples) == 0 {
		return "", errNotEnoughSpeech
	}

	started := time.Now()
	text, err := t.backend.Transcribe(ctx, samples)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		t.metrics.ObserveTranscription("error", elapsed)
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	t.metrics.ObserveTranscription("ok", elapsed)
	return textfix.Clean(text), nil
}
