// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-elect/models"
)

// Lifecycle applies the transition table to stored elections. Every status
// write is conditional on the status that was read, so a sweep and an
// operator racing on the same election cannot both apply a transition.
type Lifecycle struct {
	Elections ElectionStore
	Voters    VoterDirectory
	Clock     Clock
	Logger    *slog.Logger
}

// SweepReport summarizes one status sweep.
type SweepReport struct {
	Examined int
	Advanced int
	Skipped  int
	Failed   int
}

func (l *Lifecycle) now() time.Time {
	return resolveClock(l.Clock).Now().UTC()
}

// Create stores a new draft election. When TotalVoters is omitted and a
// voter directory is wired, the jurisdiction's registered voters are counted.
func (l *Lifecycle) Create(ctx context.Context, req models.CreateElectionRequest) (models.Election, error) {
	logger := ResolveLogger(l.Logger)
	now := l.now()

	if req.TotalVoters == 0 && l.Voters != nil && req.Jurisdiction != "" {
		voters, err := l.Voters.ListVoters(ctx, req.Jurisdiction)
		if err != nil {
			return models.Election{}, storeErr("list voters", err)
		}
		req.TotalVoters = len(voters)
	}

	e, err := NewElection(req, uuid.NewString(), now)
	if err != nil {
		return models.Election{}, err
	}
	if err := l.Elections.CreateElection(ctx, e); err != nil {
		return models.Election{}, storeErr("create election", err)
	}

	logger.Info("election created",
		"event", "election_created",
		"election_id", e.ID,
		"candidates", len(e.Candidates),
		"total_voters", e.TotalVoters,
	)
	return e, nil
}

// Get returns a single election, archived or not.
func (l *Lifecycle) Get(ctx context.Context, id string) (models.Election, error) {
	e, err := l.Elections.GetElection(ctx, id)
	if err != nil {
		return models.Election{}, storeErr("get election", err)
	}
	return e, nil
}

// List returns elections matching filter; archived ones only on request.
func (l *Lifecycle) List(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	list, err := l.Elections.ListElections(ctx, filter)
	if err != nil {
		return nil, storeErr("list elections", err)
	}
	return list, nil
}

// Update edits a draft or upcoming election.
func (l *Lifecycle) Update(ctx context.Context, id string, req models.UpdateElectionRequest) (models.Election, error) {
	e, err := l.Get(ctx, id)
	if err != nil {
		return models.Election{}, err
	}
	next, err := EditElection(e, req, l.now())
	if err != nil {
		return e, err
	}
	if err := l.Elections.UpdateElection(ctx, next, e.Status); err != nil {
		return e, storeErr("update election", err)
	}
	ResolveLogger(l.Logger).Info("election updated", "event", "election_updated", "election_id", id)
	return next, nil
}

func (l *Lifecycle) Publish(ctx context.Context, id string) (models.Election, error) {
	return l.transition(ctx, id, "publish", PublishElection)
}

func (l *Lifecycle) Start(ctx context.Context, id string) (models.Election, error) {
	return l.transition(ctx, id, "start", StartElection)
}

func (l *Lifecycle) End(ctx context.Context, id string) (models.Election, error) {
	return l.transition(ctx, id, "end", EndElection)
}

func (l *Lifecycle) Cancel(ctx context.Context, id string) (models.Election, error) {
	return l.transition(ctx, id, "cancel", CancelElection)
}

func (l *Lifecycle) Postpone(ctx context.Context, id string) (models.Election, error) {
	return l.transition(ctx, id, "postpone", PostponeElection)
}

func (l *Lifecycle) Archive(ctx context.Context, id string) (models.Election, error) {
	return l.setArchived(ctx, id, "archive", ArchiveElection)
}

func (l *Lifecycle) Restore(ctx context.Context, id string) (models.Election, error) {
	return l.setArchived(ctx, id, "restore", RestoreElection)
}

// Delete permanently removes an election record. Votes stay in the ledger.
func (l *Lifecycle) Delete(ctx context.Context, id string) error {
	e, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckDeletable(e); err != nil {
		return err
	}
	if err := l.Elections.DeleteElection(ctx, id, e.Status); err != nil {
		return storeErr("delete election", err)
	}
	ResolveLogger(l.Logger).Info("election deleted", "event", "election_deleted", "election_id", id, "status", e.Status)
	return nil
}

func (l *Lifecycle) transition(
	ctx context.Context,
	id string,
	op string,
	fn func(models.Election, time.Time) (models.Election, error),
) (models.Election, error) {
	logger := ResolveLogger(l.Logger)
	now := l.now()

	e, err := l.Get(ctx, id)
	if err != nil {
		return models.Election{}, err
	}
	next, err := fn(e, now)
	if err != nil {
		logger.Warn("election transition rejected",
			"event", "election_transition_rejected",
			"op", op,
			"election_id", id,
			"status", e.Status,
			"error", err.Error(),
		)
		return e, err
	}

	ok, err := l.Elections.TransitionStatus(ctx, id, e.Status, next.Status, now)
	if err != nil {
		return e, storeErr("transition status", err)
	}
	if !ok {
		return e, fmt.Errorf("%w: election %s left status %s before %s was applied", models.ErrConflict, id, e.Status, op)
	}

	logger.Info("election transitioned",
		"event", "election_transitioned",
		"op", op,
		"election_id", id,
		"from", e.Status,
		"to", next.Status,
	)
	return next, nil
}

func (l *Lifecycle) setArchived(
	ctx context.Context,
	id string,
	op string,
	fn func(models.Election, time.Time) (models.Election, error),
) (models.Election, error) {
	now := l.now()
	e, err := l.Get(ctx, id)
	if err != nil {
		return models.Election{}, err
	}
	next, err := fn(e, now)
	if err != nil {
		return e, err
	}
	if err := l.Elections.SetArchived(ctx, id, next.Archived, e.Status, now); err != nil {
		return e, storeErr(op+" election", err)
	}
	ResolveLogger(l.Logger).Info("election archive flag changed",
		"event", "election_"+op,
		"election_id", id,
		"archived", next.Archived,
	)
	return next, nil
}

// Sweep advances every non-archived election whose schedule says it should
// move. It is idempotent: running it again with nothing due changes nothing.
// A failure on one election is logged and does not stop the others.
func (l *Lifecycle) Sweep(ctx context.Context) (SweepReport, error) {
	logger := ResolveLogger(l.Logger)
	now := l.now()
	var report SweepReport

	candidates, err := l.Elections.ListElections(ctx, models.ElectionFilter{
		Statuses: []string{models.StatusDraft, models.StatusUpcoming, models.StatusActive},
	})
	if err != nil {
		logger.Error("status sweep listing failed", "event", "status_sweep_failed", "error", err.Error())
		return report, storeErr("list elections", err)
	}

	for _, e := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Examined++
		next, changed := AdvanceStatus(e, now)
		if !changed {
			continue
		}
		ok, err := l.Elections.TransitionStatus(ctx, e.ID, e.Status, next.Status, now)
		if err != nil {
			report.Failed++
			logger.Error("status sweep transition failed",
				"event", "status_sweep_item_failed",
				"election_id", e.ID,
				"from", e.Status,
				"to", next.Status,
				"error", err.Error(),
			)
			continue
		}
		if !ok {
			report.Skipped++
			continue
		}
		report.Advanced++
		logger.Info("status sweep advanced election",
			"event", "status_sweep_advanced",
			"election_id", e.ID,
			"from", e.Status,
			"to", next.Status,
		)
	}

	if report.Advanced > 0 || report.Failed > 0 {
		logger.Info("status sweep completed",
			"event", "status_sweep_completed",
			"examined", report.Examined,
			"advanced", report.Advanced,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report, nil
}
