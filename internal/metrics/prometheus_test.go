package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"voicedesk/internal/domain"
)

func TestMetricsObserve(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveTranscription("ok", 0.2)
	m.ObserveTranscription("error", 0.1)
	m.ObserveIterationSkipped("busy")
	m.ObserveIterationSkipped("busy")
	m.ObserveCommand(domain.ActionPause, domain.CommandOutcomePaused)
	m.ObserveSession("completed", 3)

	if got := testutil.ToFloat64(m.TranscriptionRequests.WithLabelValues("ok")); got != 1 {
		t.Fatalf("unexpected ok transcriptions: %v", got)
	}
	if got := testutil.ToFloat64(m.IterationsSkipped.WithLabelValues("busy")); got != 2 {
		t.Fatalf("unexpected busy skips: %v", got)
	}
	if got := testutil.ToFloat64(m.CommandsExecuted.WithLabelValues("pause", "paused")); got != 1 {
		t.Fatalf("unexpected command count: %v", got)
	}
	if got := testutil.ToFloat64(m.Sessions.WithLabelValues("completed")); got != 1 {
		t.Fatalf("unexpected session count: %v", got)
	}
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveIterationSkipped("stale")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `voicedesk_loop_iterations_skipped_total{reason="stale"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.ObserveSession("cancelled", 1)
	if got := testutil.ToFloat64(b.Sessions.WithLabelValues("cancelled")); got != 0 {
		t.Fatalf("registries should not share state, got %v", got)
	}
}
