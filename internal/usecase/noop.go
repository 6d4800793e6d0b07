package usecase

import "voicedesk/internal/domain"

type noopEvents struct{}

func (noopEvents) SessionStateChanged(domain.SessionState, domain.SessionStateReason)    {}
func (noopEvents) LiveTranscript(string)                                                 {}
func (noopEvents) CommandExecuted(domain.DetectedCommand, domain.CommandExecutionResult) {}
func (noopEvents) FinalTranscript(string, string)                                        {}
func (noopEvents) SessionError(domain.ErrorCode, string)                                 {}

type noopMetrics struct{}

func (noopMetrics) ObserveTranscription(string, float64)                    {}
func (noopMetrics) ObserveIterationSkipped(string)                          {}
func (noopMetrics) ObserveCommand(domain.ActionKind, domain.CommandOutcome) {}
func (noopMetrics) ObserveSession(string, float64)                          {}
