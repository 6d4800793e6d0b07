package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"voicedesk/internal/audio"
	"voicedesk/internal/commands"
	"voicedesk/internal/config"
	"voicedesk/internal/history"
	"voicedesk/internal/injector"
	"voicedesk/internal/metrics"
	"voicedesk/internal/notify"
	"voicedesk/internal/ports"
	"voicedesk/internal/providers/deepgram"
	"voicedesk/internal/providers/openai"
	"voicedesk/internal/rules"
	"voicedesk/internal/usecase"
	"voicedesk/internal/vad"
)

const historyConnectTimeout = 10 * time.Second

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     *slog.Logger

	closers []func(ctx context.Context) error
}

// Close stops the controller and releases background resources.
func (s Services) Close(ctx context.Context) error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build wires all backend dependencies for the current runtime. A nil
// clipboard falls back to the system clipboard.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit, rules.WithRepeatCollapse(cfg.Rules.CollapseRepeats))
	if err != nil {
		return Services{}, err
	}

	table, err := commands.LoadTable(cfg.Commands.Path)
	if err != nil {
		return Services{}, err
	}
	detector, err := commands.NewDetector(table, commands.WithDebounceWindow(cfg.Commands.DebounceWindow))
	if err != nil {
		return Services{}, fmt.Errorf("invalid command table %q: %w", cfg.Commands.Path, err)
	}

	vadCfg := vad.DefaultConfig()
	vadCfg.Threshold = cfg.Audio.VADThreshold
	speechFilter, err := vad.NewFilter(vadCfg)
	if err != nil {
		return Services{}, fmt.Errorf("invalid speech filter settings: %w", err)
	}

	var services Services
	services.Config = cfg
	services.Logger = logger

	appMetrics := metrics.New()
	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, appMetrics)
		server.Start(func(err error) {
			logger.Error("metrics endpoint stopped", "addr", cfg.MetricsAddr, "error", err)
		})
		services.closers = append(services.closers, server.Shutdown)
		logger.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
	}

	historyStore, err := buildHistory(cfg.History, logger)
	if err != nil {
		_ = services.Close(context.Background())
		return Services{}, err
	}
	if store, ok := historyStore.(*history.PostgresStore); ok {
		services.closers = append(services.closers, func(context.Context) error {
			store.Close()
			return nil
		})
	}

	events := ports.EventSink(notify.Fanout{eventSink})
	if cfg.Notifications {
		events = notify.Fanout{eventSink, notify.NewDesktop(logger)}
	}

	if clipboard == nil {
		clipboard = injector.SystemClipboard{}
	}

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Audio: audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			Backends: []ports.TranscriptionBackend{
				deepgram.NewBackend(deepgram.Config{
					APIKey:      cfg.Deepgram.APIKey,
					APIBaseURL:  cfg.Deepgram.APIBaseURL,
					Model:       cfg.Deepgram.Model,
					Language:    cfg.Deepgram.Language,
					SmartFormat: cfg.Deepgram.SmartFormat,
					SampleRate:  cfg.Audio.SampleRate,
				}),
				openai.NewBackend(openai.Config{
					APIKey:     cfg.OpenAI.APIKey,
					BaseURL:    cfg.OpenAI.BaseURL,
					Model:      cfg.OpenAI.Model,
					Language:   cfg.OpenAI.Language,
					SampleRate: cfg.Audio.SampleRate,
				}),
			},
			Backend:  cfg.Backend,
			Filter:   speechFilter,
			Detector: detector,
			Rules:    rulesEngine,
			Injector: injector.NewPasteInjector(clipboard, injector.NewSystemKeyboard(), logger),
			Focus:    injector.NewFocusController(logger),
			History:  historyStore,
			Events:   events,
			Metrics:  appMetrics,
			Logger:   logger,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming:        cfg.Session.Streaming,
			LivePreview:      cfg.Session.LivePreview,
			Commands:         cfg.Commands.Enabled,
			MinSpeechSamples: cfg.Session.MinSpeechSamples,
			LoopInterval:     cfg.Session.LoopInterval,
			Dispatch: usecase.DispatchConfig{
				WordReplacement: cfg.Output.WordReplacement,
				Formatting:      cfg.Output.Formatting,
				TrailingSpace:   cfg.Output.TrailingSpace,
				ConfirmDelay:    cfg.Output.ConfirmDelay,
			},
		},
	)
	services.Controller = controller
	services.closers = append(services.closers, func(context.Context) error {
		controller.Close()
		return nil
	})

	logger.Info("voicedesk configured",
		slog.String("backend", cfg.Backend),
		slog.Bool("streaming", cfg.Session.Streaming),
		slog.Bool("commands", cfg.Commands.Enabled),
		slog.Int("rules", rulesEngine.Len()),
		slog.Bool("history_db", cfg.History.DSN != ""),
	)
	return services, nil
}

func buildHistory(cfg config.HistoryConfig, logger *slog.Logger) (ports.HistoryStore, error) {
	if cfg.DSN == "" {
		return history.NewMemoryStore(0), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyConnectTimeout)
	defer cancel()

	store, err := history.NewPostgresStore(ctx, history.Config{DSN: cfg.DSN, MaxConns: 4})
	if err != nil {
		return nil, err
	}
	logger.Info("transcript history stored in PostgreSQL")
	return store, nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With(slog.String("service", "voicedesk"))
}
