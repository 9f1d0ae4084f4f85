// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
)

// Store keeps elections, votes and voters in maps guarded by one mutex.
// It satisfies the engine's ElectionStore, VoteLedger and VoterDirectory.
type Store struct {
	mu sync.RWMutex

	elections map[string]models.Election

	// votes is keyed by electionID then voterID; the nesting is the
	// uniqueness constraint.
	votes  map[string]map[string]models.Vote
	voters map[string]models.Voter
}

func New() *Store {
	return &Store{
		elections: make(map[string]models.Election),
		votes:     make(map[string]map[string]models.Vote),
		voters:    make(map[string]models.Voter),
	}
}

// PutVoter registers or replaces a voter profile.
func (s *Store) PutVoter(v models.Voter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters[v.ID] = v
}

func (s *Store) CreateElection(_ context.Context, e models.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.elections[e.ID]; exists {
		return fmt.Errorf("%w: election %s already exists", models.ErrConflict, e.ID)
	}
	s.elections[e.ID] = e.Clone()
	return nil
}

func (s *Store) GetElection(_ context.Context, id string) (models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[id]
	if !ok {
		return models.Election{}, models.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) ListElections(_ context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Election, 0, len(s.elections))
	for _, e := range s.elections {
		if e.Archived && !filter.IncludeArchived {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, e.Status) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateElection(_ context.Context, e models.Election, expectedStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.expect(e.ID, expectedStatus)
	if err != nil {
		return err
	}
	next := e.Clone()
	// Status, archive flag and results have their own writers.
	next.Status = cur.Status
	next.Archived = cur.Archived
	next.Results = cur.Results
	next.CreatedAt = cur.CreatedAt
	s.elections[e.ID] = next
	return nil
}

func (s *Store) TransitionStatus(_ context.Context, id, from, to string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if e.Status != from {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = at
	s.elections[id] = e
	return true, nil
}

func (s *Store) SetArchived(_ context.Context, id string, archived bool, expectedStatus string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.expect(id, expectedStatus)
	if err != nil {
		return err
	}
	e.Archived = archived
	e.UpdatedAt = at
	s.elections[id] = e
	return nil
}

func (s *Store) DeleteElection(_ context.Context, id, expectedStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.expect(id, expectedStatus); err != nil {
		return err
	}
	delete(s.elections, id)
	return nil
}

func (s *Store) RecordVote(_ context.Context, electionID, candidateID string, at time.Time) (models.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[electionID]
	if !ok {
		return models.Election{}, models.ErrNotFound
	}
	if !e.HasCandidate(candidateID) {
		return models.Election{}, models.ErrInvalidCandidate
	}
	count := 0
	for _, v := range s.votes[electionID] {
		if v.CandidateID == candidateID {
			count++
		}
	}
	e = e.Clone()
	for i := range e.Candidates {
		if e.Candidates[i].CandidateID == candidateID {
			e.Candidates[i].VoteCount = count
		}
	}
	e.RecomputeTally()
	e.UpdatedAt = at
	s.elections[electionID] = e
	return e.Clone(), nil
}

func (s *Store) RecountTally(_ context.Context, id string) (models.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return models.Election{}, models.ErrNotFound
	}
	counts := make(map[string]int)
	for _, v := range s.votes[id] {
		counts[v.CandidateID]++
	}
	e = e.Clone()
	e.ApplyCounts(counts)
	s.elections[id] = e
	return e.Clone(), nil
}

func (s *Store) MarkDeclared(_ context.Context, id string, results models.ElectionResults) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if e.Results.IsDeclared {
		return false, nil
	}
	e = e.Clone()
	e.Results = results
	if results.DeclaredAt != nil {
		at := *results.DeclaredAt
		e.Results.DeclaredAt = &at
		e.UpdatedAt = at
	}
	s.elections[id] = e
	return true, nil
}

func (s *Store) InsertVote(_ context.Context, v models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVoter, ok := s.votes[v.ElectionID]
	if !ok {
		byVoter = make(map[string]models.Vote)
		s.votes[v.ElectionID] = byVoter
	}
	if _, exists := byVoter[v.VoterID]; exists {
		return models.ErrAlreadyVoted
	}
	byVoter[v.VoterID] = v
	return nil
}

func (s *Store) GetVote(_ context.Context, electionID, voterID string) (models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[electionID][voterID]
	if !ok {
		return models.Vote{}, models.ErrNotFound
	}
	return v, nil
}

func (s *Store) HasVoted(_ context.Context, electionID, voterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.votes[electionID][voterID]
	return ok, nil
}

func (s *Store) RecordView(_ context.Context, electionID, voterID string, limit int, at time.Time) (models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[electionID][voterID]
	if !ok {
		return models.Vote{}, models.ErrNotFound
	}
	if v.ViewCount >= limit {
		return models.Vote{}, models.ErrViewLimitExceeded
	}
	v.ViewCount++
	viewed := at
	v.LastViewedAt = &viewed
	s.votes[electionID][voterID] = v
	return v, nil
}

func (s *Store) GetVoter(_ context.Context, voterID string) (models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voters[voterID]
	if !ok {
		return models.Voter{}, models.ErrNotFound
	}
	return v, nil
}

func (s *Store) ListVoters(_ context.Context, jurisdiction string) ([]models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Voter, 0)
	for _, v := range s.voters {
		if v.Jurisdiction == jurisdiction {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// expect returns the stored election if its status is expectedStatus.
// Callers must hold s.mu.
func (s *Store) expect(id, expectedStatus string) (models.Election, error) {
	e, ok := s.elections[id]
	if !ok {
		return models.Election{}, models.ErrNotFound
	}
	if e.Status != expectedStatus {
		return models.Election{}, fmt.Errorf("%w: election %s is %s, expected %s", models.ErrConflict, id, e.Status, expectedStatus)
	}
	return e, nil
}
