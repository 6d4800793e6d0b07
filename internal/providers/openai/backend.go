package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"voicedesk/internal/audio"
)

var errMissingAPIKey = errors.New("OPENAI_API_KEY is not configured")

// Config controls the Whisper transcription endpoint.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	SampleRate int
}

// Backend implements ports.TranscriptionBackend with OpenAI's transcription
// API. Each window is uploaded as a 16-bit WAV file.
type Backend struct {
	cfg    Config
	client *goopenai.Client
}

func NewBackend(cfg Config) *Backend {
	if cfg.Model == "" {
		cfg.Model = goopenai.Whisper1
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Backend{cfg: cfg, client: goopenai.NewClientWithConfig(clientCfg)}
}

func (b *Backend) Name() string {
	return "openai"
}

func (b *Backend) LoadModel(_ context.Context) error {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		return errMissingAPIKey
	}
	return nil
}

func (b *Backend) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		return "", errMissingAPIKey
	}

	path, err := audio.WriteTempWAV(samples, b.cfg.SampleRate)
	if err != nil {
		return "", err
	}
	defer os.Remove(path)

	resp, err := b.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    b.cfg.Model,
		FilePath: path,
		Language: b.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription request failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
