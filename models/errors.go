// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrConflict            = errors.New("state changed concurrently")
	ErrAlreadyVoted        = errors.New("voter has already voted in this election")
	ErrVotingClosed        = errors.New("voting is closed")
	ErrInvalidCandidate    = errors.New("candidate is not on the ballot")
	ErrIdentityMismatch    = errors.New("identity does not match voter profile")
	ErrCredentialNotFound  = errors.New("no live voting credential")
	ErrCredentialMismatch  = errors.New("voting credential does not match")
	ErrCredentialExpired   = errors.New("voting credential expired")
	ErrBallotNotAuthorized = errors.New("ballot not authorized by a verified credential")
	ErrViewLimitExceeded   = errors.New("vote view limit exceeded")
	ErrUnavailable         = errors.New("storage unavailable")
)

// Voting window phases reported by WindowError.
const (
	PhaseNotStarted = "not_started"
	PhaseEnded      = "ended"
	PhaseNotActive  = "not_active"
	PhaseNotDue     = "results_not_due"
)

// WindowError explains why an election is outside its voting window.
// It matches ErrVotingClosed under errors.Is.
type WindowError struct {
	Phase  string
	Status string
	Opens  time.Time
	Closes time.Time
}

func (e *WindowError) Error() string {
	switch e.Phase {
	case PhaseNotStarted:
		return fmt.Sprintf("voting has not started: opens at %s", e.Opens.UTC().Format(time.RFC3339))
	case PhaseEnded:
		return fmt.Sprintf("voting ended at %s", e.Closes.UTC().Format(time.RFC3339))
	case PhaseNotDue:
		return fmt.Sprintf("results cannot be declared before voting ends at %s", e.Closes.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("election is %s, not active", e.Status)
	}
}

func (e *WindowError) Is(target error) bool {
	return target == ErrVotingClosed
}

// CheckVotingWindow returns a *WindowError unless the election is active and
// now lies within [VotingStart, VotingEnd].
func CheckVotingWindow(e Election, now time.Time) error {
	if e.Status != StatusActive {
		return &WindowError{Phase: PhaseNotActive, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}
	if now.Before(e.VotingStart) {
		return &WindowError{Phase: PhaseNotStarted, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}
	if now.After(e.VotingEnd) {
		return &WindowError{Phase: PhaseEnded, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}
	return nil
}
