// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-elect/memstore"
	"github.com/danielhkuo/quickly-elect/models"
)

func newLifecycle(clock Clock) (*Lifecycle, *memstore.Store) {
	store := memstore.New()
	return &Lifecycle{Elections: store, Voters: store, Clock: clock, Logger: quietLogger()}, store
}

func createRequest() models.CreateElectionRequest {
	return models.CreateElectionRequest{
		Title:               "School board",
		Jurisdiction:        "district-1",
		VotingStart:         t0,
		VotingEnd:           t0.Add(8 * time.Hour),
		ResultDeclarationAt: t0.Add(9 * time.Hour),
		CandidateIDs:        []string{"a", "b"},
	}
}

func TestCreateCountsJurisdictionVoters(t *testing.T) {
	lc, store := newLifecycle(newFakeClock(t0.Add(-24 * time.Hour)))
	seedVoter(store, "v1")
	seedVoter(store, "v2")
	store.PutVoter(models.Voter{ID: "v3", Jurisdiction: "elsewhere"})

	e, err := lc.Create(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.TotalVoters != 2 {
		t.Errorf("TotalVoters = %d, want 2", e.TotalVoters)
	}
	if e.ID == "" || e.Status != models.StatusDraft {
		t.Errorf("created election = %+v", e)
	}

	req := createRequest()
	req.TotalVoters = 500
	e, _ = lc.Create(context.Background(), req)
	if e.TotalVoters != 500 {
		t.Errorf("explicit TotalVoters overridden: %d", e.TotalVoters)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	clock := newFakeClock(t0.Add(-24 * time.Hour))
	lc, _ := newLifecycle(clock)
	ctx := context.Background()

	e, err := lc.Create(ctx, createRequest())
	if err != nil {
		t.Fatal(err)
	}
	if e, err = lc.Publish(ctx, e.ID); err != nil || e.Status != models.StatusUpcoming {
		t.Fatalf("Publish() = %s, %v", e.Status, err)
	}

	clock.Set(t0.Add(time.Minute))
	if e, err = lc.Start(ctx, e.ID); err != nil || e.Status != models.StatusActive {
		t.Fatalf("Start() = %s, %v", e.Status, err)
	}
	if _, err := lc.End(ctx, e.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("End() during window error = %v", err)
	}

	clock.Set(t0.Add(8 * time.Hour))
	if e, err = lc.End(ctx, e.ID); err != nil || e.Status != models.StatusCompleted {
		t.Fatalf("End() = %s, %v", e.Status, err)
	}

	stored, _ := lc.Get(ctx, e.ID)
	if stored.Status != models.StatusCompleted {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestSweepAdvancesAndIsIdempotent(t *testing.T) {
	clock := newFakeClock(t0.Add(-time.Hour))
	lc, store := newLifecycle(clock)
	ctx := context.Background()

	upcoming, _ := lc.Create(ctx, createRequest())
	lc.Publish(ctx, upcoming.ID)
	missed, _ := lc.Create(ctx, createRequest())
	lc.Publish(ctx, missed.ID)
	if err := store.UpdateElection(ctx, func() models.Election {
		e, _ := store.GetElection(ctx, missed.ID)
		e.VotingStart = t0.Add(-3 * time.Hour)
		e.VotingEnd = t0.Add(-2 * time.Hour)
		return e
	}(), models.StatusUpcoming); err != nil {
		t.Fatal(err)
	}
	archived, _ := lc.Create(ctx, createRequest())
	lc.Archive(ctx, archived.ID)

	clock.Set(t0.Add(time.Minute))
	report, err := lc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Advanced != 2 {
		t.Errorf("Advanced = %d, want 2", report.Advanced)
	}

	checks := map[string]string{
		upcoming.ID: models.StatusActive,
		missed.ID:   models.StatusCompleted,
		archived.ID: models.StatusDraft,
	}
	for id, want := range checks {
		got, _ := lc.Get(ctx, id)
		if got.Status != want {
			t.Errorf("election %s status = %s, want %s", id, got.Status, want)
		}
	}

	report, _ = lc.Sweep(ctx)
	if report.Advanced != 0 || report.Failed != 0 {
		t.Errorf("second sweep = %+v, want no changes", report)
	}
}

// racingStore flips an election's status between the sweep's read and its
// conditional write.
type racingStore struct {
	*memstore.Store
	raceID string
}

func (r racingStore) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	if id == r.raceID {
		r.Store.TransitionStatus(ctx, id, from, models.StatusCancelled, at)
	}
	return r.Store.TransitionStatus(ctx, id, from, to, at)
}

func TestSweepSkipsConcurrentlyChangedElection(t *testing.T) {
	clock := newFakeClock(t0.Add(-time.Hour))
	lc, store := newLifecycle(clock)
	ctx := context.Background()

	e, _ := lc.Create(ctx, createRequest())
	lc.Publish(ctx, e.ID)
	lc.Elections = racingStore{Store: store, raceID: e.ID}

	clock.Set(t0.Add(time.Minute))
	report, err := lc.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.Advanced != 0 {
		t.Errorf("report = %+v, want one skipped", report)
	}
	got, _ := store.GetElection(ctx, e.ID)
	if got.Status != models.StatusCancelled {
		t.Errorf("status = %s, operator change was overwritten", got.Status)
	}

	lc.Elections = store
	if _, err := lc.Start(ctx, e.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Start() on cancelled = %v", err)
	}
}

func TestUpdateOnlyBeforeVoting(t *testing.T) {
	clock := newFakeClock(t0.Add(-time.Hour))
	lc, _ := newLifecycle(clock)
	ctx := context.Background()

	e, _ := lc.Create(ctx, createRequest())
	title := "Renamed"
	got, err := lc.Update(ctx, e.ID, models.UpdateElectionRequest{Title: &title})
	if err != nil || got.Title != title {
		t.Fatalf("Update() = %q, %v", got.Title, err)
	}
	stored, _ := lc.Get(ctx, e.ID)
	if stored.Title != title {
		t.Errorf("stored title = %q", stored.Title)
	}

	lc.Publish(ctx, e.ID)
	clock.Set(t0.Add(time.Minute))
	lc.Sweep(ctx)
	if _, err := lc.Update(ctx, e.ID, models.UpdateElectionRequest{Title: &title}); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Update() on active = %v, want ErrInvalidState", err)
	}
}

func TestListHidesArchived(t *testing.T) {
	lc, _ := newLifecycle(newFakeClock(t0.Add(-time.Hour)))
	ctx := context.Background()

	a, _ := lc.Create(ctx, createRequest())
	b, _ := lc.Create(ctx, createRequest())
	if _, err := lc.Archive(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	list, _ := lc.List(ctx, models.ElectionFilter{})
	if len(list) != 1 || list[0].ID != a.ID {
		t.Errorf("List() = %d elections, want only the unarchived one", len(list))
	}
	all, _ := lc.List(ctx, models.ElectionFilter{IncludeArchived: true})
	if len(all) != 2 {
		t.Errorf("List(IncludeArchived) = %d, want 2", len(all))
	}

	if _, err := lc.Restore(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	list, _ = lc.List(ctx, models.ElectionFilter{})
	if len(list) != 2 {
		t.Errorf("List() after restore = %d, want 2", len(list))
	}
}

func TestDeleteRules(t *testing.T) {
	clock := newFakeClock(t0.Add(-time.Hour))
	lc, store := newLifecycle(clock)
	ctx := context.Background()

	draft, _ := lc.Create(ctx, createRequest())
	if err := lc.Delete(ctx, draft.ID); err != nil {
		t.Fatalf("Delete(draft) error = %v", err)
	}
	if _, err := lc.Get(ctx, draft.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after delete = %v", err)
	}

	active := seedActive(t, store, "active-1")
	if err := lc.Delete(ctx, active.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Delete(active) = %v", err)
	}

	store.TransitionStatus(ctx, active.ID, models.StatusActive, models.StatusCompleted, t0)
	if err := lc.Delete(ctx, active.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Delete(completed, undeclared) = %v", err)
	}

	at := t0
	store.MarkDeclared(ctx, active.ID, models.ElectionResults{IsDeclared: true, DeclaredAt: &at})
	if err := lc.Delete(ctx, active.ID); err != nil {
		t.Errorf("Delete(completed, declared) = %v", err)
	}
	if err := lc.Delete(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Delete(missing) = %v", err)
	}
}

func TestDeleteKeepsVotes(t *testing.T) {
	lc, store := newLifecycle(newFakeClock(t0))
	ctx := context.Background()
	e := seedActive(t, store, "e1")
	store.InsertVote(ctx, models.Vote{ID: "v", ElectionID: e.ID, VoterID: "voter", CandidateID: "1", CastAt: t0})
	store.TransitionStatus(ctx, e.ID, models.StatusActive, models.StatusCompleted, t0)
	at := t0
	store.MarkDeclared(ctx, e.ID, models.ElectionResults{IsDeclared: true, DeclaredAt: &at})

	if err := lc.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if voted, _ := store.HasVoted(ctx, e.ID, "voter"); !voted {
		t.Error("deleting the election removed its votes")
	}
}
