// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
)

// ResultDeclarer computes the winner of a closed election and announces it.
type ResultDeclarer struct {
	Elections ElectionStore
	Voters    VoterDirectory
	Notifier  Notifier
	Clock     Clock
	Logger    *slog.Logger
}

// PublishReport summarizes one publish sweep.
type PublishReport struct {
	Examined int
	Declared int
	Failed   int
}

func (d *ResultDeclarer) now() time.Time {
	return resolveClock(d.Clock).Now().UTC()
}

// DeclareResults recounts the ledger, picks the winner and stores the
// results. Declaring twice is a no-op that returns the stored election.
func (d *ResultDeclarer) DeclareResults(ctx context.Context, electionID string) (models.Election, error) {
	logger := ResolveLogger(d.Logger)
	now := d.now()

	e, err := d.Elections.GetElection(ctx, electionID)
	if err != nil {
		return models.Election{}, storeErr("get election", err)
	}
	if e.Results.IsDeclared {
		return e, nil
	}
	if !now.After(e.VotingEnd) {
		return e, &models.WindowError{Phase: models.PhaseNotDue, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}

	switch e.Status {
	case models.StatusCompleted:
	case models.StatusActive:
		ok, err := d.Elections.TransitionStatus(ctx, e.ID, models.StatusActive, models.StatusCompleted, now)
		if err != nil {
			return e, storeErr("transition status", err)
		}
		if !ok {
			// The sweep may have closed it first; anything else is a conflict.
			current, err := d.Elections.GetElection(ctx, e.ID)
			if err != nil {
				return e, storeErr("get election", err)
			}
			if current.Status != models.StatusCompleted {
				return current, fmt.Errorf("%w: election %s moved to %s while closing", models.ErrConflict, e.ID, current.Status)
			}
		}
	default:
		return e, invalidState("results can only be declared for active or completed elections, election is %s", e.Status)
	}

	tallied, err := reconcile(ctx, d.Elections, e.ID, logger)
	if err != nil {
		return e, err
	}

	results := models.ElectionResults{IsDeclared: true, DeclaredAt: &now}
	if winner, tied, ok := tallied.SelectWinner(); ok {
		results.WinnerCandidateID = winner.CandidateID
		results.WinnerVotes = winner.VoteCount
		results.WinnerPercentage = winner.VotePercentage
		results.Tied = tied
	}

	stored, err := d.Elections.MarkDeclared(ctx, e.ID, results)
	if err != nil {
		return tallied, storeErr("mark declared", err)
	}
	if !stored {
		// Someone else declared between our read and write.
		current, err := d.Elections.GetElection(ctx, e.ID)
		if err != nil {
			return tallied, storeErr("get election", err)
		}
		return current, nil
	}
	tallied.Status = models.StatusCompleted
	tallied.Results = results

	logger.Info("election results declared",
		"event", "results_declared",
		"election_id", e.ID,
		"winner_candidate_id", results.WinnerCandidateID,
		"winner_votes", results.WinnerVotes,
		"tied", results.Tied,
		"total_votes_cast", tallied.TotalVotesCast,
	)
	if results.Tied {
		logger.Warn("declared winner shares the top vote count",
			"event", "results_tie",
			"election_id", e.ID,
			"winner_candidate_id", results.WinnerCandidateID,
		)
	}

	d.broadcast(ctx, tallied)
	return tallied, nil
}

// broadcast tells every voter in the election's jurisdiction that results
// are out. Delivery failures are logged and never undo the declaration.
func (d *ResultDeclarer) broadcast(ctx context.Context, e models.Election) {
	if d.Notifier == nil || d.Voters == nil || e.Jurisdiction == "" {
		return
	}
	logger := ResolveLogger(d.Logger)

	voters, err := d.Voters.ListVoters(ctx, e.Jurisdiction)
	if err != nil {
		logger.Warn("results broadcast skipped",
			"event", "results_broadcast_failed",
			"election_id", e.ID,
			"error", err.Error(),
		)
		return
	}

	payload := map[string]string{
		"election_id":         e.ID,
		"title":               e.Title,
		"winner_candidate_id": e.Results.WinnerCandidateID,
		"total_votes_cast":    fmt.Sprint(e.TotalVotesCast),
		"turnout_percentage":  fmt.Sprintf("%.2f", e.TurnoutPercentage),
	}
	failed := 0
	for _, v := range voters {
		if v.Email == "" {
			continue
		}
		err := d.Notifier.Send(ctx, models.Notification{
			Recipient: v.Email,
			Kind:      models.KindResultsDeclared,
			Payload:   payload,
		})
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("some results notifications were not delivered",
			"event", "results_broadcast_partial",
			"election_id", e.ID,
			"failed", failed,
			"recipients", len(voters),
		)
	}
}

// PublishDue declares results for every completed election whose
// declaration time has arrived. One failure does not stop the rest.
func (d *ResultDeclarer) PublishDue(ctx context.Context) (PublishReport, error) {
	logger := ResolveLogger(d.Logger)
	now := d.now()
	var report PublishReport

	completed, err := d.Elections.ListElections(ctx, models.ElectionFilter{
		Statuses: []string{models.StatusCompleted},
	})
	if err != nil {
		logger.Error("publish sweep listing failed", "event", "publish_sweep_failed", "error", err.Error())
		return report, storeErr("list elections", err)
	}

	for _, e := range completed {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if e.Archived || e.Results.IsDeclared {
			continue
		}
		if e.ResultDeclarationAt.After(now) || !e.VotingEnd.Before(now) {
			continue
		}
		report.Examined++
		if _, err := d.DeclareResults(ctx, e.ID); err != nil {
			report.Failed++
			logger.Error("automatic result declaration failed",
				"event", "publish_sweep_item_failed",
				"election_id", e.ID,
				"error", err.Error(),
			)
			continue
		}
		report.Declared++
	}

	if report.Examined > 0 {
		logger.Info("publish sweep completed",
			"event", "publish_sweep_completed",
			"examined", report.Examined,
			"declared", report.Declared,
			"failed", report.Failed,
		)
	}
	return report, nil
}

// Results returns the published results of an election. Undeclared
// results are not visible.
func (d *ResultDeclarer) Results(ctx context.Context, electionID string) (models.ResultsResponse, error) {
	e, err := d.Elections.GetElection(ctx, electionID)
	if err != nil {
		return models.ResultsResponse{}, storeErr("get election", err)
	}
	if !e.Results.IsDeclared {
		return models.ResultsResponse{}, invalidState("results have not been declared")
	}
	return models.ResultsResponse{
		ElectionID:        e.ID,
		Candidates:        e.Candidates,
		TotalVoters:       e.TotalVoters,
		TotalVotesCast:    e.TotalVotesCast,
		TurnoutPercentage: e.TurnoutPercentage,
		Results:           e.Results,
	}, nil
}
