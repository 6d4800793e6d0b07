package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"voicedesk/internal/audio"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"
	// sendChunkSamples is 100 ms of 16 kHz audio per websocket frame.
	sendChunkSamples = 1600
)

var errMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	SampleRate  int
}

// Backend implements ports.TranscriptionBackend over Deepgram's live API.
// Every Transcribe call streams the whole window on a fresh connection and
// collects the final results.
type Backend struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewBackend(cfg Config) *Backend {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	return &Backend{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (b *Backend) Name() string {
	return "deepgram"
}

// LoadModel only validates configuration; the model lives server side.
func (b *Backend) LoadModel(_ context.Context) error {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		return errMissingAPIKey
	}
	if _, err := buildListenURL(b.cfg); err != nil {
		return err
	}
	return nil
}

func (b *Backend) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		return "", errMissingAPIKey
	}

	wsURL, err := buildListenURL(b.cfg)
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+b.cfg.APIKey)

	conn, _, err := b.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	results := make(chan readResult, 1)
	go func() {
		text, err := readFinals(conn)
		results <- readResult{text: text, err: err}
	}()

	if err := writeAudio(conn, audio.EncodePCM16(samples)); err != nil {
		_ = conn.Close()
		<-results
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}

	result := <-results
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return result.text, result.err
}

type readResult struct {
	text string
	err  error
}

func writeAudio(conn *websocket.Conn, pcm []byte) error {
	frame := sendChunkSamples * 2
	for start := 0; start < len(pcm); start += frame {
		end := min(start+frame, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// readFinals collects final results until the server closes the stream.
func readFinals(conn *websocket.Conn) (string, error) {
	var finals []string
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return strings.Join(finals, " "), nil
			}
			return "", fmt.Errorf("failed to read provider event: %w", err)
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return "", errors.New(message)
		}
		if strings.EqualFold(response.Type, "Metadata") {
			// Sent once the server flushed everything after CloseStream.
			return strings.Join(finals, " "), nil
		}
		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		if transcript := extractTranscript(response); transcript != "" {
			finals = append(finals, transcript)
		}
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "false")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
