package audio

import (
	"sync"
	"time"
)

// DefaultSampleRate is the only rate the session core works with.
const DefaultSampleRate = 16000

// Buffer is an append-only store of mono float samples. One writer (capture)
// may append while any number of readers take snapshots.
type Buffer struct {
	sampleRate int

	mu      sync.RWMutex
	samples []float32
}

func NewBuffer(sampleRate int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Buffer{
		sampleRate: sampleRate,
		samples:    make([]float32, 0, sampleRate*30),
	}
}

// Append copies samples onto the end of the buffer.
func (b *Buffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// Snapshot returns a copy of every sample captured so far.
func (b *Buffer) Snapshot() []float32 {
	return b.SamplesFrom(0)
}

// SamplesFrom returns a copy of the tail starting at index.
func (b *Buffer) SamplesFrom(index int) []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if index < 0 {
		index = 0
	}
	if index >= len(b.samples) {
		return []float32{}
	}
	out := make([]float32, len(b.samples)-index)
	copy(out, b.samples[index:])
	return out
}

// Count returns the number of buffered samples.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Duration returns the buffered audio length.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Count()) * time.Second / time.Duration(b.sampleRate)
}

// SampleRate returns the rate the buffer was created for.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// Clear drops all samples. Callers make sure no transcription read is in flight.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.samples = b.samples[:0]
	b.mu.Unlock()
}
