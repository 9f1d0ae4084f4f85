// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-elect/memstore"
	"github.com/danielhkuo/quickly-elect/models"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// outbox records notifications.
type outbox struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (o *outbox) Send(_ context.Context, n models.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return o.err
}

func (o *outbox) last(t *testing.T) models.Notification {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatal("no notification sent")
	}
	return o.sent[len(o.sent)-1]
}

func (o *outbox) byKind(kind string) []models.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.Notification
	for _, n := range o.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// mapCredentials is a plain CredentialStore for tests.
type mapCredentials struct {
	mu sync.Mutex
	m  map[string]models.VotingCredential
}

func newMapCredentials() *mapCredentials {
	return &mapCredentials{m: make(map[string]models.VotingCredential)}
}

func (s *mapCredentials) Put(key string, c models.VotingCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = c
}

func (s *mapCredentials) Get(key string) (models.VotingCredential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[key]
	return c, ok
}

func (s *mapCredentials) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *mapCredentials) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.m {
		if !now.Before(c.ExpiresAt) {
			delete(s.m, k)
			n++
		}
	}
	return n
}

// flakyTally fails RecordVote so reconciliation paths can be exercised.
type flakyTally struct {
	*memstore.Store
}

func (flakyTally) RecordVote(context.Context, string, string, time.Time) (models.Election, error) {
	return models.Election{}, errors.New("connection reset")
}

// flakyLedger fails the next InsertVote calls while failures is positive.
type flakyLedger struct {
	*memstore.Store
	mu       sync.Mutex
	failures int
}

func (l *flakyLedger) InsertVote(ctx context.Context, v models.Vote) error {
	l.mu.Lock()
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return errors.New("i/o timeout")
	}
	l.mu.Unlock()
	return l.Store.InsertVote(ctx, v)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedActive stores an active election open from t0-1h to t0+1h with
// candidates "1" and "2" and 10 eligible voters.
func seedActive(t *testing.T, store *memstore.Store, id string) models.Election {
	t.Helper()
	e := models.Election{
		ID:                  id,
		Title:               "Council " + id,
		Jurisdiction:        "district-1",
		Status:              models.StatusActive,
		VotingStart:         t0.Add(-time.Hour),
		VotingEnd:           t0.Add(time.Hour),
		ResultDeclarationAt: t0.Add(2 * time.Hour),
		Candidates: []models.CandidateTally{
			{CandidateID: "1"},
			{CandidateID: "2"},
		},
		TotalVoters: 10,
		CreatedAt:   t0.Add(-48 * time.Hour),
		UpdatedAt:   t0.Add(-48 * time.Hour),
	}
	if err := store.CreateElection(context.Background(), e); err != nil {
		t.Fatalf("seed election: %v", err)
	}
	return e
}

func seedVoter(store *memstore.Store, id string) models.Voter {
	v := models.Voter{
		ID:           id,
		Email:        id + "@example.com",
		CardNumber:   "CARD-" + id,
		Jurisdiction: "district-1",
	}
	store.PutVoter(v)
	return v
}
