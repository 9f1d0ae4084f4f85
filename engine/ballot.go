// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-elect/models"
)

// BallotCaster records votes exactly once per (voter, election) and keeps
// the election's tally in step.
type BallotCaster struct {
	Elections ElectionStore
	Votes     VoteLedger
	// Gate, when set, requires a verified voting credential per ballot.
	Gate      BallotGate
	Clock     Clock
	Logger    *slog.Logger
}

func (c *BallotCaster) now() time.Time {
	return resolveClock(c.Clock).Now().UTC()
}

// CastVote validates eligibility and stores the vote. Concurrent calls for
// the same voter race on the ledger's unique constraint; losers get
// ErrAlreadyVoted.
//
// A gated ballot needs a live grant, which is spent only once the ledger
// holds the vote.
//
// If the vote is stored but the tally update fails, the vote stands and the
// election needs Reconcile; the caller still gets the stored vote.
func (c *BallotCaster) CastVote(ctx context.Context, voterID, electionID, candidateID string) (models.Vote, error) {
	logger := ResolveLogger(c.Logger)
	now := c.now()

	if voterID == "" || electionID == "" || candidateID == "" {
		return models.Vote{}, invalidInput("voter, election and candidate are required")
	}

	voted, err := c.Votes.HasVoted(ctx, electionID, voterID)
	if err != nil {
		return models.Vote{}, storeErr("check vote", err)
	}
	if voted {
		return models.Vote{}, models.ErrAlreadyVoted
	}

	election, err := c.Elections.GetElection(ctx, electionID)
	if err != nil {
		return models.Vote{}, storeErr("get election", err)
	}
	if err := models.CheckVotingWindow(election, now); err != nil {
		return models.Vote{}, err
	}
	if !election.HasCandidate(candidateID) {
		return models.Vote{}, models.ErrInvalidCandidate
	}

	if c.Gate != nil {
		if err := c.Gate.CheckBallotGrant(voterID, electionID); err != nil {
			return models.Vote{}, err
		}
	}

	vote := models.Vote{
		ID:          uuid.NewString(),
		ElectionID:  electionID,
		VoterID:     voterID,
		CandidateID: candidateID,
		CastAt:      now,
	}
	if err := c.Votes.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, models.ErrAlreadyVoted) {
			c.spendGrant(voterID, electionID)
			logger.Info("duplicate vote rejected by ledger",
				"event", "vote_duplicate_rejected",
				"election_id", electionID,
				"voter_id", voterID,
			)
			return models.Vote{}, models.ErrAlreadyVoted
		}
		// The grant survives so the voter can retry within the window.
		return models.Vote{}, storeErr("insert vote", err)
	}
	c.spendGrant(voterID, electionID)

	updated, err := c.Elections.RecordVote(ctx, electionID, candidateID, now)
	if err != nil {
		logger.Error("vote stored but tally update failed",
			"event", "vote_tally_update_failed",
			"election_id", electionID,
			"vote_id", vote.ID,
			"reconcile_required", true,
			"error", err.Error(),
		)
		return vote, nil
	}

	logger.Info("vote cast",
		"event", "vote_cast",
		"election_id", electionID,
		"vote_id", vote.ID,
		"total_votes_cast", updated.TotalVotesCast,
		"turnout_percentage", updated.TurnoutPercentage,
	)
	return vote, nil
}

func (c *BallotCaster) spendGrant(voterID, electionID string) {
	if c.Gate != nil {
		c.Gate.ConsumeBallotGrant(voterID, electionID)
	}
}

// CheckStatus reports whether the voter has voted, without counting as a view.
func (c *BallotCaster) CheckStatus(ctx context.Context, voterID, electionID string) (models.VoteStatus, error) {
	if _, err := c.Elections.GetElection(ctx, electionID); err != nil {
		return models.VoteStatus{}, storeErr("get election", err)
	}
	vote, err := c.Votes.GetVote(ctx, electionID, voterID)
	if errors.Is(err, models.ErrNotFound) {
		return models.VoteStatus{HasVoted: false}, nil
	}
	if err != nil {
		return models.VoteStatus{}, storeErr("get vote", err)
	}
	castAt := vote.CastAt
	return models.VoteStatus{
		HasVoted:       true,
		CastAt:         &castAt,
		ViewsRemaining: viewsRemaining(vote.ViewCount),
	}, nil
}

// ViewVote shows the voter their own vote. Each call uses up one of
// models.MaxVoteViews; after that the vote is locked from view for good.
func (c *BallotCaster) ViewVote(ctx context.Context, voterID, electionID string) (models.ViewVoteResponse, error) {
	vote, err := c.Votes.RecordView(ctx, electionID, voterID, models.MaxVoteViews, c.now())
	if err != nil {
		return models.ViewVoteResponse{}, storeErr("record view", err)
	}
	ResolveLogger(c.Logger).Info("vote viewed",
		"event", "vote_viewed",
		"election_id", electionID,
		"view_count", vote.ViewCount,
	)
	return models.ViewVoteResponse{Vote: vote, ViewsRemaining: viewsRemaining(vote.ViewCount)}, nil
}

// Reconcile rebuilds the election's tally from the ledger. It repairs the
// state left behind when a vote was stored but its counter update was not.
func (c *BallotCaster) Reconcile(ctx context.Context, electionID string) (models.Election, error) {
	return reconcile(ctx, c.Elections, electionID, ResolveLogger(c.Logger))
}

func reconcile(ctx context.Context, elections ElectionStore, electionID string, logger *slog.Logger) (models.Election, error) {
	prior, err := elections.GetElection(ctx, electionID)
	if err != nil {
		return models.Election{}, storeErr("get election", err)
	}
	e, err := elections.RecountTally(ctx, electionID)
	if err != nil {
		return models.Election{}, storeErr("recount tally", err)
	}
	if prior.TotalVotesCast != e.TotalVotesCast {
		logger.Warn("tally repaired from ledger",
			"event", "tally_reconciled",
			"election_id", electionID,
			"before", prior.TotalVotesCast,
			"after", e.TotalVotesCast,
		)
	}
	return e, nil
}

func viewsRemaining(viewCount int) int {
	if viewCount >= models.MaxVoteViews {
		return 0
	}
	return models.MaxVoteViews - viewCount
}
