package audio

import (
	"os"
	"testing"
)

func TestWriteTempWAVAndReadBack(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.25, -0.25, 0.5}
	path, err := WriteTempWAV(samples, 16000)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	decoded, rate, err := ReadWAV(f)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("unexpected sample rate: %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("unexpected sample count: %d", len(decoded))
	}
	for i := range samples {
		diff := decoded[i] - samples[i]
		if diff > 0.001 || diff < -0.001 {
			t.Fatalf("sample %d drifted: got %f want %f", i, decoded[i], samples[i])
		}
	}
}

func TestWriteWAVRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "empty-*.wav")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer f.Close()

	if err := WriteWAV(f, nil, 16000); err == nil {
		t.Fatalf("expected empty input error")
	}
	if err := WriteWAV(f, []float32{0}, 0); err == nil {
		t.Fatalf("expected sample rate error")
	}
}
