package giveaway

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyParticipants is returned when a run or a selection has no participants.
	ErrEmptyParticipants = errors.New("giveaway: empty participant list")
	// ErrNoValidReveals is returned when no reveal survived verification.
	ErrNoValidReveals = errors.New("giveaway: no valid reveals")
	// ErrInvalidConfig is returned for unusable session parameters.
	ErrInvalidConfig = errors.New("giveaway: invalid session config")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("giveaway: already started")
	// ErrCancelled is the terminal error of a cancelled run.
	ErrCancelled = errors.New("giveaway: cancelled")
)

// TransportError wraps a publish or subscribe failure. It is fatal to the run.
type TransportError struct {
	Op    string
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("giveaway: transport %s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
