package vad

import (
	"fmt"
	"math"
)

// Config tunes the speech activity filter.
type Config struct {
	// Threshold is the RMS level (0..1) a window needs to count as speech.
	Threshold float64
	// WindowSize is the analysis window in samples.
	WindowSize int
	// PadWindows keeps this many windows around each speech window so word
	// onsets and tails are not clipped.
	PadWindows int
}

// DefaultConfig returns settings tuned for 16 kHz dictation audio.
func DefaultConfig() Config {
	return Config{
		Threshold:  0.01,
		WindowSize: 512,
		PadWindows: 3,
	}
}

// Filter removes leading, trailing and internal silence from a sample window
// using a windowed RMS energy gate.
type Filter struct {
	threshold  float64
	windowSize int
	padWindows int
}

func NewFilter(cfg Config) (*Filter, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", cfg.Threshold)
	}
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.WindowSize)
	}
	if cfg.PadWindows < 0 {
		return nil, fmt.Errorf("pad windows cannot be negative, got %d", cfg.PadWindows)
	}
	return &Filter{
		threshold:  cfg.Threshold,
		windowSize: cfg.WindowSize,
		padWindows: cfg.PadWindows,
	}, nil
}

// Filter returns only the windows that carry speech, in order.
func (f *Filter) Filter(samples []float32) []float32 {
	if len(samples) == 0 {
		return []float32{}
	}

	windows := (len(samples) + f.windowSize - 1) / f.windowSize
	keep := make([]bool, windows)
	found := false
	for w := 0; w < windows; w++ {
		if f.isSpeech(f.window(samples, w)) {
			found = true
			lo := max(0, w-f.padWindows)
			hi := min(windows-1, w+f.padWindows)
			for i := lo; i <= hi; i++ {
				keep[i] = true
			}
		}
	}
	if !found {
		return []float32{}
	}

	out := make([]float32, 0, len(samples))
	for w := 0; w < windows; w++ {
		if keep[w] {
			out = append(out, f.window(samples, w)...)
		}
	}
	return out
}

// HasSpeech reports whether any window crosses the threshold.
func (f *Filter) HasSpeech(samples []float32) bool {
	windows := (len(samples) + f.windowSize - 1) / f.windowSize
	for w := 0; w < windows; w++ {
		if f.isSpeech(f.window(samples, w)) {
			return true
		}
	}
	return false
}

func (f *Filter) window(samples []float32, index int) []float32 {
	start := index * f.windowSize
	end := min(start+f.windowSize, len(samples))
	return samples[start:end]
}

func (f *Filter) isSpeech(window []float32) bool {
	return rms(window) >= f.threshold
}

func rms(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var energy float64
	for _, s := range window {
		energy += float64(s) * float64(s)
	}
	return math.Sqrt(energy / float64(len(window)))
}
