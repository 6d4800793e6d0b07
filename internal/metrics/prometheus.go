package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicedesk/internal/domain"
)

// Metrics holds the Prometheus collectors of the session core and
// implements ports.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	TranscriptionRequests *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	IterationsSkipped     *prometheus.CounterVec
	CommandsExecuted      *prometheus.CounterVec
	Sessions              *prometheus.CounterVec
	SessionDuration       prometheus.Histogram
}

// New registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		TranscriptionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_transcriptions_total",
			Help: "Backend transcription calls by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicedesk_transcription_duration_seconds",
			Help:    "Time spent in backend transcription calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		IterationsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_loop_iterations_skipped_total",
			Help: "Streaming loop iterations that published nothing, by reason",
		}, []string{"reason"}),
		CommandsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_commands_total",
			Help: "Voice commands executed by action and outcome",
		}, []string{"action", "outcome"}),
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_sessions_total",
			Help: "Finished sessions by outcome",
		}, []string{"outcome"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicedesk_session_duration_seconds",
			Help:    "Length of finished sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) ObserveTranscription(outcome string, seconds float64) {
	m.TranscriptionRequests.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.Observe(seconds)
}

func (m *Metrics) ObserveIterationSkipped(reason string) {
	m.IterationsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCommand(action domain.ActionKind, outcome domain.CommandOutcome) {
	m.CommandsExecuted.WithLabelValues(string(action), string(outcome)).Inc()
}

func (m *Metrics) ObserveSession(outcome string, seconds float64) {
	m.Sessions.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.SessionDuration.Observe(seconds)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics on its own listener.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start listens in the background. Listener errors go to onError.
func (s *Server) Start(onError func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onError(err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
