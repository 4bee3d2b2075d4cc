package domain

import (
	"fmt"
	"strings"
)

// Status is the closed set of lifecycle states of a transaction record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusSuccessful Status = "successful"
	StatusCompleted  Status = "completed"
	StatusConfirmed  Status = "confirmed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Phase groups statuses by their effect on balances.
type Phase int

const (
	PhaseInFlight Phase = iota + 1
	PhaseSucceeded
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseInFlight:
		return "in_flight"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var statusPhases = map[Status]Phase{
	StatusPending:    PhaseInFlight,
	StatusSubmitted:  PhaseInFlight,
	StatusProcessing: PhaseInFlight,
	StatusSuccessful: PhaseSucceeded,
	StatusCompleted:  PhaseSucceeded,
	StatusConfirmed:  PhaseSucceeded,
	StatusCancelled:  PhaseCancelled,
	StatusFailed:     PhaseCancelled,
}

// InFlightStatuses lists the statuses that keep settlement frozen.
func InFlightStatuses() []Status {
	return []Status{StatusPending, StatusSubmitted, StatusProcessing}
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusPhases[st]; !ok {
		return "", fmt.Errorf("%w: unrecognized status %q", ErrInvalidInput, s)
	}
	return st, nil
}

func (s Status) Phase() Phase {
	return statusPhases[s]
}

func (s Status) IsTerminal() bool {
	p := s.Phase()
	return p == PhaseSucceeded || p == PhaseCancelled
}
