package core

import "fmt"

// State is the externally visible lifecycle state of a job.
//
// States only move forward: PENDING < PROGRESS < {SUCCESS, FAILURE, REVOKED}.
// A job may jump from PENDING straight to a terminal state.
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateRevoked  State = "REVOKED"
)

// Rank orders states for the monotonic transition check.
// Unknown states rank below PENDING.
func (s State) Rank() int {
	switch s {
	case StatePending:
		return 1
	case StateProgress:
		return 2
	case StateSuccess, StateFailure, StateRevoked:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s.Rank() == 3
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return s.Rank() > 0
}

// CanTransition reports whether a record in state from may be overwritten
// with state to. Repeated PROGRESS writes are allowed (progress updates);
// anything written over a terminal state is rejected.
func CanTransition(from, to State) bool {
	if !to.Valid() {
		return false
	}
	if from == "" {
		return true
	}
	if from.Terminal() {
		return false
	}
	return to.Rank() >= from.Rank()
}

// CheckStatusWrite validates writing next over prev, which may be nil when
// no record exists yet.
func CheckStatusWrite(prev, next *StatusRecord) error {
	if len(next.Result) > 0 && next.Error != "" {
		return ErrConflictingResult
	}
	var from State
	if prev != nil {
		from = prev.State
	}
	if !CanTransition(from, next.State) {
		return fmt.Errorf("%w: %s to %s", ErrStateRegression, from, next.State)
	}
	return nil
}
