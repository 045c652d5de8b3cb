package mapview

import "github.com/mekedron/nearby/internal/domain"

// Phase is the controller lifecycle stage.
type Phase string

const (
	PhaseLoading          Phase = "loading"
	PhaseReadyWithResults Phase = "ready-with-results"
	PhaseReadyEmpty       Phase = "ready-empty"
)

// OutcomeKind classifies how a mount sequence ended.
type OutcomeKind string

const (
	OutcomeResults             OutcomeKind = "results"
	OutcomeEmpty               OutcomeKind = "empty"
	OutcomePermissionDenied    OutcomeKind = "permission-denied"
	OutcomeLocationTimeout     OutcomeKind = "location-timeout"
	OutcomeLocationUnavailable OutcomeKind = "location-unavailable"
	OutcomeNetworkError        OutcomeKind = "network-error"
	OutcomeCanceled            OutcomeKind = "canceled"
)

// Failed reports whether the outcome represents a failure path.
func (k OutcomeKind) Failed() bool {
	switch k {
	case OutcomeResults, OutcomeEmpty:
		return false
	default:
		return true
	}
}

// Outcome is the typed result of a mount sequence.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Failure describes the failure recorded in state, if any.
type Failure struct {
	Kind    OutcomeKind `json:"kind" yaml:"kind"`
	Message string      `json:"message,omitempty" yaml:"message,omitempty"`
}

// State is the observable screen state.
type State struct {
	SessionID string         `json:"session_id" yaml:"session_id"`
	Region    domain.Region  `json:"region" yaml:"region"`
	Venues    []domain.Venue `json:"venues" yaml:"venues"`
	Loading   bool           `json:"loading" yaml:"loading"`
	Phase     Phase          `json:"phase" yaml:"phase"`
	Failure   *Failure       `json:"failure,omitempty" yaml:"failure,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Venues = make([]domain.Venue, len(s.Venues))
	copy(out.Venues, s.Venues)
	if s.Failure != nil {
		failure := *s.Failure
		out.Failure = &failure
	}
	return out
}
