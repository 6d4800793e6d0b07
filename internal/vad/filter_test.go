package vad

import (
	"testing"
)

func TestNewFilterValidation(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{Threshold: -0.1, WindowSize: 512},
		{Threshold: 1.5, WindowSize: 512},
		{Threshold: 0.1, WindowSize: 0},
		{Threshold: 0.1, WindowSize: 512, PadWindows: -1},
	}
	for _, cfg := range cases {
		if _, err := NewFilter(cfg); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}

	if _, err := NewFilter(DefaultConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestFilterDropsSilenceAroundSpeech(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(Config{Threshold: 0.1, WindowSize: 100, PadWindows: 0})
	if err != nil {
		t.Fatalf("new filter failed: %v", err)
	}

	samples := make([]float32, 0, 500)
	samples = append(samples, constant(100, 0)...)
	samples = append(samples, constant(100, 0.5)...)
	samples = append(samples, constant(100, 0)...)
	samples = append(samples, constant(100, 0.5)...)
	samples = append(samples, constant(100, 0)...)

	out := f.Filter(samples)
	if len(out) != 200 {
		t.Fatalf("expected two speech windows, got %d samples", len(out))
	}
	for _, s := range out {
		if s != 0.5 {
			t.Fatalf("silence leaked into output")
		}
	}
}

func TestFilterKeepsPaddingWindows(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(Config{Threshold: 0.1, WindowSize: 100, PadWindows: 1})
	if err != nil {
		t.Fatalf("new filter failed: %v", err)
	}

	samples := append(constant(300, 0), constant(100, 0.5)...)
	samples = append(samples, constant(300, 0)...)

	if got := len(f.Filter(samples)); got != 300 {
		t.Fatalf("expected speech plus one window each side, got %d", got)
	}
}

func TestFilterSilenceOnly(t *testing.T) {
	t.Parallel()

	f, _ := NewFilter(DefaultConfig())
	if got := f.Filter(constant(16000, 0.001)); len(got) != 0 {
		t.Fatalf("expected silence to be dropped, got %d samples", len(got))
	}
	if f.HasSpeech(constant(16000, 0.001)) {
		t.Fatalf("expected no speech")
	}
	if !f.HasSpeech(constant(1024, 0.3)) {
		t.Fatalf("expected speech")
	}
	if got := f.Filter(nil); len(got) != 0 {
		t.Fatalf("expected empty output for empty input")
	}
}

func constant(n int, value float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = value
	}
	return out
}
