package usecase

import (
	"fmt"
	"sync"

	"github.com/samber/lo"

	"voicedesk/internal/domain"
)

var allowedTransitions = map[domain.SessionState][]domain.SessionState{
	domain.SessionStateIdle: {
		domain.SessionStateRecording,
		domain.SessionStateError,
	},
	domain.SessionStateRecording: {
		domain.SessionStateBusy,
		domain.SessionStateTranscribing,
		domain.SessionStateIdle,
		domain.SessionStateError,
	},
	domain.SessionStateBusy: {
		domain.SessionStateTranscribing,
		domain.SessionStateIdle,
		domain.SessionStateError,
	},
	domain.SessionStateTranscribing: {
		domain.SessionStateEnhancing,
		domain.SessionStateIdle,
		domain.SessionStateError,
	},
	domain.SessionStateEnhancing: {
		domain.SessionStateIdle,
		domain.SessionStateError,
	},
	domain.SessionStateError: {
		domain.SessionStateIdle,
	},
}

// stateMachine is the only place the session state changes. A transition
// that is not in allowedTransitions fails without side effects, which makes
// transition usable as a compare-and-swap between racing callers.
type stateMachine struct {
	mu      sync.Mutex
	state   domain.SessionState
	message string
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: domain.SessionStateIdle}
}

func (m *stateMachine) transition(to domain.SessionState, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !lo.Contains(allowedTransitions[m.state], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	m.message = message
	return nil
}

func (m *stateMachine) current() (domain.SessionState, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.message
}
