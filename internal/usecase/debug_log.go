package usecase

import (
	"sync"
	"time"

	"voicedesk/internal/domain"
)

const debugLogLimit = 500

// debugLog is the per-session diagnostic ledger. The oldest entries are
// dropped past debugLogLimit.
type debugLog struct {
	mu      sync.Mutex
	entries []domain.DebugLogEntry
	now     func() time.Time
}

func newDebugLog(now func() time.Time) *debugLog {
	return &debugLog{now: now}
}

func (l *debugLog) add(kind domain.DebugLogKind, text string, command *domain.DetectedCommand) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= debugLogLimit {
		l.entries = append(l.entries[:0], l.entries[1:]...)
	}
	l.entries = append(l.entries, domain.DebugLogEntry{
		Kind:    kind,
		Text:    text,
		Command: command,
		At:      l.now(),
	})
}

func (l *debugLog) snapshot() []domain.DebugLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.DebugLogEntry(nil), l.entries...)
}

func (l *debugLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
