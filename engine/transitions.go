// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
)

// The functions in this file are the legal-transition table. Each takes a
// snapshot and returns the next snapshot or a rejection; none touch storage.

// statusRank orders statuses so that no transition moves backwards.
var statusRank = map[string]int{
	models.StatusDraft:     0,
	models.StatusUpcoming:  1,
	models.StatusPostponed: 1,
	models.StatusActive:    2,
	models.StatusCompleted: 3,
	models.StatusCancelled: 3,
}

// StatusRank exposes statusRank for monotonicity checks.
func StatusRank(status string) int {
	r, ok := statusRank[status]
	if !ok {
		return -1
	}
	return r
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidState, fmt.Sprintf(format, args...))
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateSchedule(start, end, declareAt time.Time) error {
	if start.IsZero() || end.IsZero() || declareAt.IsZero() {
		return invalidInput("voting_start, voting_end and result_declaration_at are required")
	}
	if !start.Before(end) {
		return invalidInput("voting_start must be before voting_end")
	}
	if declareAt.Before(end) {
		return invalidInput("result_declaration_at must not be before voting_end")
	}
	return nil
}

func buildCandidates(ids []string) ([]models.CandidateTally, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]models.CandidateTally, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, invalidInput("candidate id cannot be empty")
		}
		if seen[id] {
			return nil, invalidInput("duplicate candidate id %q", id)
		}
		seen[id] = true
		out = append(out, models.CandidateTally{CandidateID: id})
	}
	return out, nil
}

// NewElection validates a create request and returns a draft election.
func NewElection(req models.CreateElectionRequest, id string, now time.Time) (models.Election, error) {
	if strings.TrimSpace(req.Title) == "" {
		return models.Election{}, invalidInput("title is required")
	}
	if req.TotalVoters < 0 {
		return models.Election{}, invalidInput("total_voters cannot be negative")
	}
	if err := validateSchedule(req.VotingStart, req.VotingEnd, req.ResultDeclarationAt); err != nil {
		return models.Election{}, err
	}
	candidates, err := buildCandidates(req.CandidateIDs)
	if err != nil {
		return models.Election{}, err
	}
	e := models.Election{
		ID:                  id,
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		Jurisdiction:        strings.TrimSpace(req.Jurisdiction),
		Status:              models.StatusDraft,
		VotingStart:         req.VotingStart.UTC(),
		VotingEnd:           req.VotingEnd.UTC(),
		ResultDeclarationAt: req.ResultDeclarationAt.UTC(),
		Candidates:          candidates,
		TotalVoters:         req.TotalVoters,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	e.RecomputeTally()
	return e, nil
}

// EditElection applies a partial edit. Only draft and upcoming elections
// accept edits; anything else is locked so rules cannot change under voters.
func EditElection(e models.Election, req models.UpdateElectionRequest, now time.Time) (models.Election, error) {
	if e.Status != models.StatusDraft && e.Status != models.StatusUpcoming {
		return e, invalidState("%s elections cannot be edited", e.Status)
	}
	next := e.Clone()
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return e, invalidInput("title cannot be empty")
		}
		next.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.VotingStart != nil {
		next.VotingStart = req.VotingStart.UTC()
	}
	if req.VotingEnd != nil {
		next.VotingEnd = req.VotingEnd.UTC()
	}
	if req.ResultDeclarationAt != nil {
		next.ResultDeclarationAt = req.ResultDeclarationAt.UTC()
	}
	if err := validateSchedule(next.VotingStart, next.VotingEnd, next.ResultDeclarationAt); err != nil {
		return e, err
	}
	if req.CandidateIDs != nil {
		candidates, err := buildCandidates(req.CandidateIDs)
		if err != nil {
			return e, err
		}
		next.Candidates = candidates
	}
	if req.TotalVoters != nil {
		if *req.TotalVoters < 0 {
			return e, invalidInput("total_voters cannot be negative")
		}
		next.TotalVoters = *req.TotalVoters
	}
	next.RecomputeTally()
	next.UpdatedAt = now
	return next, nil
}

// PublishElection moves a draft onto the calendar.
func PublishElection(e models.Election, now time.Time) (models.Election, error) {
	if e.Status != models.StatusDraft {
		return e, invalidState("only draft elections can be published, election is %s", e.Status)
	}
	if len(e.Candidates) < 2 {
		return e, invalidState("election needs at least 2 candidates to be published")
	}
	if !now.Before(e.VotingEnd) {
		return e, &models.WindowError{Phase: models.PhaseEnded, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}
	return withStatus(e, models.StatusUpcoming, now), nil
}

// AdvanceStatus computes the time-driven status for the sweep. A window that
// was missed entirely goes straight through to completed.
func AdvanceStatus(e models.Election, now time.Time) (models.Election, bool) {
	next := e.Status
	if (next == models.StatusDraft || next == models.StatusUpcoming) && !now.Before(e.VotingStart) {
		next = models.StatusActive
	}
	if next == models.StatusActive && now.After(e.VotingEnd) {
		next = models.StatusCompleted
	}
	if next == e.Status {
		return e, false
	}
	return withStatus(e, next, now), true
}

// StartElection is the operator's manual open.
func StartElection(e models.Election, now time.Time) (models.Election, error) {
	if e.Status != models.StatusUpcoming {
		return e, invalidState("only upcoming elections can be started, election is %s", e.Status)
	}
	if now.Before(e.VotingStart) {
		return e, &models.WindowError{Phase: models.PhaseNotStarted, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}
	if now.After(e.VotingEnd) {
		return e, &models.WindowError{Phase: models.PhaseEnded, Status: e.Status, Opens: e.VotingStart, Closes: e.VotingEnd}
	}
	return withStatus(e, models.StatusActive, now), nil
}

// EndElection is the operator's manual close; it is only legal once the
// scheduled end has passed.
func EndElection(e models.Election, now time.Time) (models.Election, error) {
	if e.Status != models.StatusActive {
		return e, invalidState("only active elections can be ended, election is %s", e.Status)
	}
	if now.Before(e.VotingEnd) {
		return e, invalidState("voting is open until %s", e.VotingEnd.UTC().Format(time.RFC3339))
	}
	return withStatus(e, models.StatusCompleted, now), nil
}

// CancelElection stops an election that never opened.
func CancelElection(e models.Election, now time.Time) (models.Election, error) {
	switch e.Status {
	case models.StatusDraft, models.StatusUpcoming, models.StatusPostponed:
		return withStatus(e, models.StatusCancelled, now), nil
	}
	return e, invalidState("%s elections cannot be cancelled", e.Status)
}

// PostponeElection takes an upcoming election off the calendar.
func PostponeElection(e models.Election, now time.Time) (models.Election, error) {
	if e.Status != models.StatusUpcoming {
		return e, invalidState("only upcoming elections can be postponed, election is %s", e.Status)
	}
	return withStatus(e, models.StatusPostponed, now), nil
}

// ArchiveElection hides an election from listings.
func ArchiveElection(e models.Election, now time.Time) (models.Election, error) {
	if e.Status == models.StatusActive {
		return e, invalidState("active elections cannot be archived")
	}
	if e.Archived {
		return e, invalidState("election is already archived")
	}
	next := e.Clone()
	next.Archived = true
	next.UpdatedAt = now
	return next, nil
}

// RestoreElection undoes ArchiveElection.
func RestoreElection(e models.Election, now time.Time) (models.Election, error) {
	if !e.Archived {
		return e, invalidState("election is not archived")
	}
	next := e.Clone()
	next.Archived = false
	next.UpdatedAt = now
	return next, nil
}

// CheckDeletable allows permanent deletion of elections that never opened,
// and of completed ones whose results have been declared.
func CheckDeletable(e models.Election) error {
	switch e.Status {
	case models.StatusDraft, models.StatusUpcoming:
		return nil
	case models.StatusCompleted:
		if !e.Results.IsDeclared {
			return invalidState("completed election must have declared results before deletion")
		}
		return nil
	}
	return invalidState("%s elections cannot be deleted", e.Status)
}

func withStatus(e models.Election, status string, now time.Time) models.Election {
	next := e.Clone()
	next.Status = status
	next.UpdatedAt = now
	return next
}
