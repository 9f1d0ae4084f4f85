// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
)

func scheduled(status string) models.Election {
	return models.Election{
		ID:                  "e1",
		Title:               "Mayor",
		Status:              status,
		VotingStart:         t0,
		VotingEnd:           t0.Add(8 * time.Hour),
		ResultDeclarationAt: t0.Add(9 * time.Hour),
		Candidates:          []models.CandidateTally{{CandidateID: "a"}, {CandidateID: "b"}},
	}
}

func TestNewElection(t *testing.T) {
	valid := models.CreateElectionRequest{
		Title:               " Mayor ",
		VotingStart:         t0,
		VotingEnd:           t0.Add(time.Hour),
		ResultDeclarationAt: t0.Add(time.Hour),
		CandidateIDs:        []string{"a", " b "},
		TotalVoters:         4,
	}

	e, err := NewElection(valid, "id-1", t0.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewElection() error = %v", err)
	}
	if e.Status != models.StatusDraft || e.Title != "Mayor" {
		t.Errorf("status = %s, title = %q", e.Status, e.Title)
	}
	if got := e.CandidateIDs(); len(got) != 2 || got[1] != "b" {
		t.Errorf("candidates = %v", got)
	}

	tests := []struct {
		name   string
		mutate func(r *models.CreateElectionRequest)
	}{
		{"missing title", func(r *models.CreateElectionRequest) { r.Title = "  " }},
		{"start after end", func(r *models.CreateElectionRequest) { r.VotingStart = r.VotingEnd.Add(time.Minute) }},
		{"start equals end", func(r *models.CreateElectionRequest) { r.VotingStart = r.VotingEnd }},
		{"declaration before end", func(r *models.CreateElectionRequest) { r.ResultDeclarationAt = r.VotingEnd.Add(-time.Minute) }},
		{"missing dates", func(r *models.CreateElectionRequest) { r.VotingEnd = time.Time{} }},
		{"duplicate candidate", func(r *models.CreateElectionRequest) { r.CandidateIDs = []string{"a", "a"} }},
		{"empty candidate", func(r *models.CreateElectionRequest) { r.CandidateIDs = []string{"a", ""} }},
		{"negative voters", func(r *models.CreateElectionRequest) { r.TotalVoters = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.CandidateIDs = append([]string(nil), valid.CandidateIDs...)
			tt.mutate(&req)
			if _, err := NewElection(req, "id", t0); !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAdvanceStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		now     time.Time
		want    string
		changed bool
	}{
		{"draft before start", models.StatusDraft, t0.Add(-time.Minute), models.StatusDraft, false},
		{"upcoming at start", models.StatusUpcoming, t0, models.StatusActive, true},
		{"draft at start", models.StatusDraft, t0, models.StatusActive, true},
		{"active during window", models.StatusActive, t0.Add(time.Hour), models.StatusActive, false},
		{"active at end", models.StatusActive, t0.Add(8 * time.Hour), models.StatusActive, false},
		{"active after end", models.StatusActive, t0.Add(8*time.Hour + time.Second), models.StatusCompleted, true},
		{"missed window", models.StatusUpcoming, t0.Add(24 * time.Hour), models.StatusCompleted, true},
		{"completed stays", models.StatusCompleted, t0.Add(24 * time.Hour), models.StatusCompleted, false},
		{"cancelled stays", models.StatusCancelled, t0.Add(time.Hour), models.StatusCancelled, false},
		{"postponed stays", models.StatusPostponed, t0.Add(time.Hour), models.StatusPostponed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := AdvanceStatus(scheduled(tt.status), tt.now)
			if got.Status != tt.want || changed != tt.changed {
				t.Errorf("AdvanceStatus() = %s, %v; want %s, %v", got.Status, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestAdvanceStatusMonotonicAndIdempotent(t *testing.T) {
	statuses := []string{
		models.StatusDraft, models.StatusUpcoming, models.StatusActive,
		models.StatusCompleted, models.StatusCancelled, models.StatusPostponed,
	}
	for _, status := range statuses {
		for offset := -2 * time.Hour; offset <= 12*time.Hour; offset += 30 * time.Minute {
			now := t0.Add(offset)
			e := scheduled(status)
			next, _ := AdvanceStatus(e, now)
			if StatusRank(next.Status) < StatusRank(e.Status) {
				t.Fatalf("%s at %v moved backwards to %s", status, offset, next.Status)
			}
			again, changed := AdvanceStatus(next, now)
			if changed || again.Status != next.Status {
				t.Fatalf("%s at %v not idempotent: %s then %s", status, offset, next.Status, again.Status)
			}
		}
	}
}

func TestOperatorTransitions(t *testing.T) {
	type fn func(models.Election, time.Time) (models.Election, error)
	tests := []struct {
		name    string
		op      fn
		status  string
		now     time.Time
		want    string
		wantErr error
	}{
		{"publish draft", PublishElection, models.StatusDraft, t0.Add(-time.Hour), models.StatusUpcoming, nil},
		{"publish after end", PublishElection, models.StatusDraft, t0.Add(9 * time.Hour), "", models.ErrVotingClosed},
		{"publish upcoming", PublishElection, models.StatusUpcoming, t0, "", models.ErrInvalidState},
		{"start upcoming", StartElection, models.StatusUpcoming, t0.Add(time.Minute), models.StatusActive, nil},
		{"start too early", StartElection, models.StatusUpcoming, t0.Add(-time.Minute), "", models.ErrVotingClosed},
		{"start too late", StartElection, models.StatusUpcoming, t0.Add(9 * time.Hour), "", models.ErrVotingClosed},
		{"start draft", StartElection, models.StatusDraft, t0.Add(time.Minute), "", models.ErrInvalidState},
		{"end active after close", EndElection, models.StatusActive, t0.Add(8 * time.Hour), models.StatusCompleted, nil},
		{"end active early", EndElection, models.StatusActive, t0.Add(time.Hour), "", models.ErrInvalidState},
		{"end upcoming", EndElection, models.StatusUpcoming, t0.Add(9 * time.Hour), "", models.ErrInvalidState},
		{"cancel draft", CancelElection, models.StatusDraft, t0, models.StatusCancelled, nil},
		{"cancel postponed", CancelElection, models.StatusPostponed, t0, models.StatusCancelled, nil},
		{"cancel active", CancelElection, models.StatusActive, t0, "", models.ErrInvalidState},
		{"cancel completed", CancelElection, models.StatusCompleted, t0, "", models.ErrInvalidState},
		{"postpone upcoming", PostponeElection, models.StatusUpcoming, t0, models.StatusPostponed, nil},
		{"postpone active", PostponeElection, models.StatusActive, t0, "", models.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := scheduled(tt.status)
			got, err := tt.op(e, tt.now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if got.Status != tt.status {
					t.Errorf("rejected transition changed status to %s", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if StatusRank(got.Status) < StatusRank(tt.status) {
				t.Errorf("%s moved backwards to %s", tt.status, got.Status)
			}
		})
	}
}

func TestStartElectionReportsPhase(t *testing.T) {
	_, err := StartElection(scheduled(models.StatusUpcoming), t0.Add(-time.Minute))
	var we *models.WindowError
	if !errors.As(err, &we) || we.Phase != models.PhaseNotStarted {
		t.Errorf("error = %v, want not_started window error", err)
	}
}

func TestPublishNeedsTwoCandidates(t *testing.T) {
	e := scheduled(models.StatusDraft)
	e.Candidates = e.Candidates[:1]
	if _, err := PublishElection(e, t0.Add(-time.Hour)); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestArchiveRestore(t *testing.T) {
	if _, err := ArchiveElection(scheduled(models.StatusActive), t0); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("archive active error = %v", err)
	}
	for _, status := range []string{models.StatusDraft, models.StatusUpcoming, models.StatusCompleted, models.StatusCancelled, models.StatusPostponed} {
		archived, err := ArchiveElection(scheduled(status), t0)
		if err != nil || !archived.Archived {
			t.Errorf("archive %s = %v, %v", status, archived.Archived, err)
		}
		if archived.Status != status {
			t.Errorf("archive changed status %s to %s", status, archived.Status)
		}
		if _, err := ArchiveElection(archived, t0); !errors.Is(err, models.ErrInvalidState) {
			t.Errorf("double archive error = %v", err)
		}
		restored, err := RestoreElection(archived, t0)
		if err != nil || restored.Archived {
			t.Errorf("restore %s = %v, %v", status, restored.Archived, err)
		}
	}
	if _, err := RestoreElection(scheduled(models.StatusDraft), t0); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("restore unarchived error = %v", err)
	}
}

func TestCheckDeletable(t *testing.T) {
	declared := scheduled(models.StatusCompleted)
	declared.Results.IsDeclared = true

	tests := []struct {
		name string
		e    models.Election
		ok   bool
	}{
		{"draft", scheduled(models.StatusDraft), true},
		{"upcoming", scheduled(models.StatusUpcoming), true},
		{"completed declared", declared, true},
		{"completed undeclared", scheduled(models.StatusCompleted), false},
		{"active", scheduled(models.StatusActive), false},
		{"cancelled", scheduled(models.StatusCancelled), false},
		{"postponed", scheduled(models.StatusPostponed), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDeletable(tt.e)
			if (err == nil) != tt.ok {
				t.Errorf("CheckDeletable() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestEditElection(t *testing.T) {
	title := "Governor"
	voters := 50
	later := t0.Add(10 * time.Hour)

	got, err := EditElection(scheduled(models.StatusUpcoming), models.UpdateElectionRequest{
		Title:               &title,
		TotalVoters:         &voters,
		ResultDeclarationAt: &later,
		CandidateIDs:        []string{"x", "y", "z"},
	}, t0)
	if err != nil {
		t.Fatalf("EditElection() error = %v", err)
	}
	if got.Title != title || got.TotalVoters != 50 || len(got.Candidates) != 3 || !got.ResultDeclarationAt.Equal(later) {
		t.Errorf("edit not applied: %+v", got)
	}

	early := t0.Add(-time.Hour)
	if _, err := EditElection(scheduled(models.StatusDraft), models.UpdateElectionRequest{VotingEnd: &early}, t0); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("invalid dates error = %v", err)
	}
	for _, status := range []string{models.StatusActive, models.StatusCompleted, models.StatusCancelled} {
		if _, err := EditElection(scheduled(status), models.UpdateElectionRequest{Title: &title}, t0); !errors.Is(err, models.ErrInvalidState) {
			t.Errorf("edit %s error = %v, want ErrInvalidState", status, err)
		}
	}
}
