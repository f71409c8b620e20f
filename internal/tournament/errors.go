package tournament

import (
	"errors"
	"fmt"
)

var (
	ErrDataIntegrity         = errors.New("data integrity violation")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotAcceptingJoins     = errors.New("tournament is not accepting joins")
	ErrTournamentClosed      = errors.New("tournament is closed")
	ErrUnknownPlayer         = errors.New("unknown player")
	ErrUnknownGame           = errors.New("unknown game")
	ErrResultAlreadyRecorded = errors.New("result already recorded")
	ErrGameNotFinished       = errors.New("game has no final result")
	ErrNotStarted            = errors.New("tournament is not started")
	ErrRoundInProgress       = errors.New("previous round still in progress")
)

// DataIntegrityError aborts the load of a single tournament.
type DataIntegrityError struct {
	TournamentID string
	Reason       string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("tournament %s: data integrity: %s", e.TournamentID, e.Reason)
}

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

func integrity(tid, format string, args ...any) error {
	return &DataIntegrityError{TournamentID: tid, Reason: fmt.Sprintf(format, args...)}
}

type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
