// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain, request and response types, the error
kinds shared by every layer, and the tally arithmetic.

# Domain Types

  - Election: schedule, status, archive flag, per-candidate tally and results
  - CandidateTally: vote count and percentage for one candidate
  - Vote: one ledger entry; VoterID never leaves the server
  - Voter: identity record used for credential checks and notifications
  - VotingCredential: a live one-time secret, never persisted
  - Notification: recipient, kind and payload handed to a Notifier

# Tally

RecomputeTally derives percentages and turnout from raw counts, rounding
half away from zero to two decimals. SelectWinner picks the highest count;
on a tie the first candidate in ballot order wins and the tie is reported.

# Errors

Every failure the engine returns matches one of the Err* sentinels with
errors.Is. A closed voting window is reported as *WindowError, which also
matches ErrVotingClosed and names the phase:

	PhaseNotStarted = "not_started"
	PhaseEnded      = "ended"
	PhaseNotActive  = "not_active"
	PhaseNotDue     = "results_not_due"

# Constants

Status values:

	StatusDraft, StatusUpcoming, StatusActive,
	StatusCompleted, StatusCancelled, StatusPostponed

Notification kinds:

	KindVotingCredential, KindChallengeCode, KindResultsDeclared

MaxVoteViews caps how often a voter may look at their own vote.
*/
package models
