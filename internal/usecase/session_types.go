package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"voicedesk/internal/audio"
	"voicedesk/internal/commands"
	"voicedesk/internal/ports"
)

// activeSession holds everything that lives for one recording attempt.
type activeSession struct {
	id          string
	backendName string
	startedAt   time.Time

	ctx    context.Context
	cancel context.CancelFunc

	audio       ports.AudioSession
	buffer      *audio.Buffer
	transcriber *transcriber
	loop        *streamingLoop

	// commands tracks executor goroutines so teardown can wait for them.
	commands     sync.WaitGroup
	shouldCancel atomic.Bool

	mu          sync.Mutex
	live        string
	chunks      []string
	commandMode bool
	// epoch changes whenever the buffer is cleared; results computed from an
	// older snapshot are dropped.
	epoch uint64
	// consumed is live text a command already acted on without clearing the
	// buffer. Detection only looks past it.
	consumed string
	// pending is dictation spoken before a navigate command. It is output
	// with the chunks and becomes a chunk on resume.
	pending string
}

func (s *activeSession) snapshotAudio() ([]float32, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Snapshot(), s.epoch
}

// publishLive stores a loop result unless the buffer was cleared after the
// result's snapshot was taken.
func (s *activeSession) publishLive(text string, epoch uint64) (published bool, commandMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false, s.commandMode
	}
	s.live = text
	return true, s.commandMode
}

func (s *activeSession) detectionText(text string) string {
	s.mu.Lock()
	consumed := s.consumed
	s.mu.Unlock()

	if consumed == "" {
		return text
	}
	rest, _ := commands.TrimLeadingWords(text, consumed)
	return rest
}

func (s *activeSession) inCommandMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandMode
}

// commitChunk appends a finalized chunk and starts over with an empty buffer.
func (s *activeSession) commitChunk(chunk string, commandMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk = strings.TrimSpace(chunk); chunk != "" {
		s.chunks = append(s.chunks, chunk)
	}
	s.resetAudioLocked()
	s.commandMode = commandMode
}

// stripLive removes a command phrase from the live display without touching
// chunks or audio.
func (s *activeSession) stripLive(phrase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = commands.StripCommand(phrase, s.live)
}

// enterCommandMode keeps audio and chunks but remembers the live text so the
// command that triggered it is not detected again. Dictation spoken before
// the command is held as pending.
func (s *activeSession) enterCommandMode(consumed string, dictated string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.commandMode {
		s.pending = strings.TrimSpace(dictated)
	}
	s.commandMode = true
	s.consumed = consumed
}

// consume marks text as acted on so detection skips it.
func (s *activeSession) consume(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed = text
}

func (s *activeSession) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != "" {
		s.chunks = append(s.chunks, s.pending)
		s.pending = ""
	}
	s.resetAudioLocked()
	s.commandMode = false
}

func (s *activeSession) discardAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetAudioLocked()
}

func (s *activeSession) discardAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.pending = ""
	s.resetAudioLocked()
}

// sendableText is what a send command dispatches: chunks plus pending.
func (s *activeSession) sendableText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return joinChunks(s.chunks, s.pending)
}

// completeSend drops text that was dispatched.
func (s *activeSession) completeSend(commandMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.pending = ""
	s.commandMode = commandMode
}

// outputText is chunks plus the live transcript with any trailing command
// removed. Command-mode speech never becomes output; pending dictation does.
func (s *activeSession) outputText(strip func(string) string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := s.pending
	if !s.commandMode {
		tail = strip(s.live)
	}
	return joinChunks(s.chunks, tail)
}

func (s *activeSession) view() (live string, chunks []string, commandMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live, append([]string(nil), s.chunks...), s.commandMode
}

func (s *activeSession) resetAudioLocked() {
	s.buffer.Clear()
	s.epoch++
	s.live = ""
	s.consumed = ""
}

func joinChunks(chunks []string, tail string) string {
	parts := lo.Compact(lo.Map(append(append([]string(nil), chunks...), tail), func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
	return strings.Join(parts, " ")
}
