// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
)

// ElectionStore owns Election records. Status and field writes are
// conditional on the status the caller last observed.
type ElectionStore interface {
	CreateElection(ctx context.Context, e models.Election) error
	GetElection(ctx context.Context, id string) (models.Election, error)
	ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error)
	// UpdateElection writes metadata, dates, candidates and TotalVoters
	// only if the stored status still equals expectedStatus; otherwise it
	// returns models.ErrConflict.
	UpdateElection(ctx context.Context, e models.Election, expectedStatus string) error
	// TransitionStatus moves id from one status to another. It reports
	// false, without error, when the stored status is no longer from.
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error)
	// SetArchived and DeleteElection are conditional on expectedStatus in
	// the same way as UpdateElection.
	SetArchived(ctx context.Context, id string, archived bool, expectedStatus string, at time.Time) error
	DeleteElection(ctx context.Context, id, expectedStatus string) error
	// RecordVote sets the candidate's count from the vote ledger under the
	// election lock, recomputes the total and percentages and returns the
	// result. Calling it twice for the same stored vote counts it once.
	RecordVote(ctx context.Context, electionID, candidateID string, at time.Time) (models.Election, error)
	// RecountTally rebuilds the counters from the vote ledger and stores
	// them. Counting and writing happen under the same lock RecordVote takes.
	RecountTally(ctx context.Context, id string) (models.Election, error)
	// MarkDeclared stores results if they are not declared yet. It reports
	// false when another caller declared first.
	MarkDeclared(ctx context.Context, id string, results models.ElectionResults) (bool, error)
}

// VoteLedger owns Vote records and enforces one vote per (election, voter).
type VoteLedger interface {
	// InsertVote returns models.ErrAlreadyVoted when the (election, voter)
	// pair already has a vote.
	InsertVote(ctx context.Context, v models.Vote) error
	GetVote(ctx context.Context, electionID, voterID string) (models.Vote, error)
	HasVoted(ctx context.Context, electionID, voterID string) (bool, error)
	// RecordView bumps ViewCount if it is below limit. It returns
	// models.ErrViewLimitExceeded once the limit is reached.
	RecordView(ctx context.Context, electionID, voterID string, limit int, at time.Time) (models.Vote, error)
}

// VoterDirectory is the read side of voter registration.
type VoterDirectory interface {
	GetVoter(ctx context.Context, voterID string) (models.Voter, error)
	ListVoters(ctx context.Context, jurisdiction string) ([]models.Voter, error)
}

// Notifier delivers messages out of band. Failures never roll back the
// operation that triggered them.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// Verification is the outcome of a challenge check.
type Verification struct {
	Valid  bool
	Reason string
}

// ChallengeIssuer issues and validates one-time passcodes bound to an
// identity and a purpose.
type ChallengeIssuer interface {
	Issue(ctx context.Context, identity, purpose string) (string, error)
	Verify(ctx context.Context, identity, code, purpose string) (Verification, error)
	InvalidateOutstanding(ctx context.Context, identity, purpose string)
}

// CredentialStore is a key-value table with TTL support. Implementations
// may drop entries after ExpiresAt on their own; the broker also checks
// expiry on every read.
type CredentialStore interface {
	Put(key string, c models.VotingCredential)
	Get(key string) (models.VotingCredential, bool)
	Delete(key string)
	// Purge removes every entry that expired at or before now and returns
	// how many were removed.
	Purge(now time.Time) int
}

// BallotGate authorizes a single ballot after credential verification.
type BallotGate interface {
	// CheckBallotGrant fails unless the voter holds a live grant. It does
	// not spend the grant.
	CheckBallotGrant(voterID, electionID string) error
	// ConsumeBallotGrant spends the grant once the ledger holds the vote.
	ConsumeBallotGrant(voterID, electionID string)
}

// Clock is injected so tests can move time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

func resolveClock(c Clock) Clock {
	if c == nil {
		return systemClock{}
	}
	return c
}
