package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"voicedesk/internal/ports"
)

// streamingLoop re-transcribes the whole session buffer until stopped. It is
// the only writer of the live transcript.
type streamingLoop struct {
	session  *activeSession
	interval time.Duration
	// onResult receives every published transcript. final is set for the
	// extra iteration that runs after a graceful stop request.
	onResult func(text string, final bool)
	metrics  ports.Metrics
	logger   *slog.Logger

	stopRequested atomic.Bool
	wake          chan struct{}
	cancel        context.CancelFunc
	done          chan struct{}
}

func startStreamingLoop(
	ctx context.Context,
	session *activeSession,
	interval time.Duration,
	onResult func(text string, final bool),
	metrics ports.Metrics,
	logger *slog.Logger,
) *streamingLoop {
	loopCtx, cancel := context.WithCancel(ctx)
	loop := &streamingLoop{
		session:  session,
		interval: interval,
		onResult: onResult,
		metrics:  metrics,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go loop.run(loopCtx)
	return loop
}

// requestStop asks for one more full iteration, then exit. Wait on done.
func (l *streamingLoop) requestStop() {
	l.stopRequested.Store(true)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// stopNow cancels the loop and waits for it, so no read of the buffer is in
// flight when it returns.
func (l *streamingLoop) stopNow() {
	l.cancel()
	<-l.done
}

func (l *streamingLoop) run(ctx context.Context) {
	defer close(l.done)
	defer l.cancel()

	for {
		final := l.stopRequested.Load()
		l.iterate(ctx, final)
		if final || ctx.Err() != nil {
			return
		}

		pause := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			pause.Stop()
			return
		case <-l.wake:
			pause.Stop()
		case <-pause.C:
		}
	}
}

func (l *streamingLoop) iterate(ctx context.Context, final bool) {
	samples, epoch := l.session.snapshotAudio()

	// The final iteration waits for the slot so trailing speech is not lost
	// to a command transcription that happens to be running.
	text, err := l.session.transcriber.run(ctx, samples, final)
	switch {
	case errors.Is(err, errSlotBusy):
		l.metrics.ObserveIterationSkipped("busy")
		return
	case errors.Is(err, errNotEnoughSpeech):
		l.metrics.ObserveIterationSkipped("short")
		return
	case ctx.Err() != nil:
		return
	case err != nil:
		l.metrics.ObserveIterationSkipped("error")
		l.logger.Warn("streaming transcription failed", "session", l.session.id, "error", err)
		return
	}

	published, _ := l.session.publishLive(text, epoch)
	if !published {
		l.metrics.ObserveIterationSkipped("stale")
		return
	}
	l.onResult(text, final)
}
