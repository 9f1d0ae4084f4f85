// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the engine's ElectionStore, VoteLedger and
// VoterDirectory on top of database/sql.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const electionColumns = `id, title, description, jurisdiction, status, archived,
	voting_start, voting_end, result_declaration_at,
	total_voters, total_votes_cast, turnout_percentage,
	winner_candidate_id, winner_votes, winner_percentage, results_tied, results_declared, declared_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (models.Election, error) {
	var (
		e          models.Election
		winner     sql.NullString
		declaredAt sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Jurisdiction, &e.Status, &e.Archived,
		&e.VotingStart, &e.VotingEnd, &e.ResultDeclarationAt,
		&e.TotalVoters, &e.TotalVotesCast, &e.TurnoutPercentage,
		&winner, &e.Results.WinnerVotes, &e.Results.WinnerPercentage, &e.Results.Tied, &e.Results.IsDeclared, &declaredAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return models.Election{}, err
	}
	e.Results.WinnerCandidateID = winner.String
	if declaredAt.Valid {
		at := declaredAt.Time.UTC()
		e.Results.DeclaredAt = &at
	}
	e.VotingStart = e.VotingStart.UTC()
	e.VotingEnd = e.VotingEnd.UTC()
	e.ResultDeclarationAt = e.ResultDeclarationAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func (s *Store) loadCandidates(ctx context.Context, q querier, e *models.Election) error {
	rows, err := q.QueryContext(ctx, `
		SELECT candidate_id, vote_count, vote_percentage
		FROM election_candidate
		WHERE election_id = $1
		ORDER BY ballot_order
	`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	e.Candidates = []models.CandidateTally{}
	for rows.Next() {
		var c models.CandidateTally
		if err := rows.Scan(&c.CandidateID, &c.VoteCount, &c.VotePercentage); err != nil {
			return fmt.Errorf("failed to scan candidate: %w", err)
		}
		e.Candidates = append(e.Candidates, c)
	}
	return rows.Err()
}

func (s *Store) getElection(ctx context.Context, q querier, id string) (models.Election, error) {
	e, err := scanElection(q.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM election WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Election{}, models.ErrNotFound
	}
	if err != nil {
		return models.Election{}, fmt.Errorf("failed to query election: %w", err)
	}
	if err := s.loadCandidates(ctx, q, &e); err != nil {
		return models.Election{}, err
	}
	return e, nil
}

func insertCandidates(ctx context.Context, q querier, e models.Election) error {
	for i, c := range e.Candidates {
		_, err := q.ExecContext(ctx, `
			INSERT INTO election_candidate (election_id, candidate_id, ballot_order, vote_count, vote_percentage)
			VALUES ($1, $2, $3, $4, $5)
		`, e.ID, c.CandidateID, i, c.VoteCount, c.VotePercentage)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.CandidateID, err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, rolling back if fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// missingOrConflict explains a conditional update that touched no rows.
func (s *Store) missingOrConflict(ctx context.Context, q querier, id, expectedStatus string) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM election WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query election status: %w", err)
	}
	return fmt.Errorf("%w: election %s is %s, expected %s", models.ErrConflict, id, status, expectedStatus)
}

func (s *Store) CreateElection(ctx context.Context, e models.Election) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO election (id, title, description, jurisdiction, status, archived,
				voting_start, voting_end, result_declaration_at,
				total_voters, total_votes_cast, turnout_percentage, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, e.ID, e.Title, e.Description, e.Jurisdiction, e.Status, e.Archived,
			e.VotingStart.UTC(), e.VotingEnd.UTC(), e.ResultDeclarationAt.UTC(),
			e.TotalVoters, e.TotalVotesCast, e.TurnoutPercentage, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: election %s already exists", models.ErrConflict, e.ID)
			}
			return fmt.Errorf("failed to insert election: %w", err)
		}
		return insertCandidates(ctx, tx, e)
	})
	if err != nil && !errors.Is(err, models.ErrConflict) {
		s.logger.Error("failed to create election", "election_id", e.ID, "error", err)
	}
	return err
}

func (s *Store) GetElection(ctx context.Context, id string) (models.Election, error) {
	return s.getElection(ctx, s.db, id)
}

func (s *Store) ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeArchived {
		args = append(args, false)
		where = append(where, "archived = $"+strconv.Itoa(len(args)))
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			marks[i] = "$" + strconv.Itoa(len(args))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	query := `SELECT ` + electionColumns + ` FROM election`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elections: %w", err)
	}
	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan election: %w", err)
		}
		elections = append(elections, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate elections: %w", err)
	}
	// Release the connection before loading candidates; SQLite has only one.
	rows.Close()

	for i := range elections {
		if err := s.loadCandidates(ctx, s.db, &elections[i]); err != nil {
			return nil, err
		}
	}
	return elections, nil
}

func (s *Store) UpdateElection(ctx context.Context, e models.Election, expectedStatus string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE election
			SET title = $1, description = $2, voting_start = $3, voting_end = $4, result_declaration_at = $5,
				total_voters = $6, total_votes_cast = $7, turnout_percentage = $8, updated_at = $9
			WHERE id = $10 AND status = $11
		`, e.Title, e.Description, e.VotingStart.UTC(), e.VotingEnd.UTC(), e.ResultDeclarationAt.UTC(),
			e.TotalVoters, e.TotalVotesCast, e.TurnoutPercentage, e.UpdatedAt.UTC(),
			e.ID, expectedStatus)
		if err != nil {
			return fmt.Errorf("failed to update election: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.missingOrConflict(ctx, tx, e.ID, expectedStatus)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM election_candidate WHERE election_id = $1`, e.ID); err != nil {
			return fmt.Errorf("failed to clear candidates: %w", err)
		}
		return insertCandidates(ctx, tx, e)
	})
}

func (s *Store) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE election SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, at.UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update election status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if err := s.missingOrConflict(ctx, s.db, id, from); errors.Is(err, models.ErrNotFound) {
		return false, err
	}
	return false, nil
}

func (s *Store) SetArchived(ctx context.Context, id string, archived bool, expectedStatus string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE election SET archived = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, archived, at.UTC(), id, expectedStatus)
	if err != nil {
		return fmt.Errorf("failed to update archive flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missingOrConflict(ctx, s.db, id, expectedStatus)
	}
	return nil
}

func (s *Store) DeleteElection(ctx context.Context, id, expectedStatus string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM election WHERE id = $1 AND status = $2`, id, expectedStatus)
		if err != nil {
			return fmt.Errorf("failed to delete election: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.missingOrConflict(ctx, tx, id, expectedStatus)
		}
		// SQLite only cascades with foreign_keys enabled.
		if _, err := tx.ExecContext(ctx, `DELETE FROM election_candidate WHERE election_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete candidates: %w", err)
		}
		return nil
	})
}

// writeTally stores the derived percentages and totals of e. Callers must
// already hold the election row lock inside tx.
func writeTally(ctx context.Context, tx *sql.Tx, e models.Election) error {
	for _, c := range e.Candidates {
		_, err := tx.ExecContext(ctx, `
			UPDATE election_candidate SET vote_count = $1, vote_percentage = $2
			WHERE election_id = $3 AND candidate_id = $4
		`, c.VoteCount, c.VotePercentage, e.ID, c.CandidateID)
		if err != nil {
			return fmt.Errorf("failed to update candidate tally: %w", err)
		}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE election SET total_votes_cast = $1, turnout_percentage = $2, updated_at = $3
		WHERE id = $4
	`, e.TotalVotesCast, e.TurnoutPercentage, e.UpdatedAt.UTC(), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update election tally: %w", err)
	}
	return nil
}

// lockElection takes the row lock that serializes tally writers. On
// PostgreSQL the UPDATE holds it until commit; SQLite has one writer anyway.
func lockElection(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE election SET updated_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to lock election: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) RecordVote(ctx context.Context, electionID, candidateID string, at time.Time) (models.Election, error) {
	var updated models.Election
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockElection(ctx, tx, electionID, at); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE election_candidate
			SET vote_count = (SELECT COUNT(*) FROM vote WHERE election_id = $1 AND candidate_id = $2)
			WHERE election_id = $1 AND candidate_id = $2
		`, electionID, candidateID)
		if err != nil {
			return fmt.Errorf("failed to update vote count: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrInvalidCandidate
		}

		e, err := s.getElection(ctx, tx, electionID)
		if err != nil {
			return err
		}
		e.RecomputeTally()
		e.UpdatedAt = at.UTC()
		if err := writeTally(ctx, tx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return models.Election{}, err
	}
	return updated, nil
}

// RecountTally rebuilds the tally from the vote table while holding the
// election lock, so a RecordVote cannot land between the count and the write.
func (s *Store) RecountTally(ctx context.Context, id string) (models.Election, error) {
	var recounted models.Election
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if err := lockElection(ctx, tx, id, now); err != nil {
			return err
		}
		counts, err := countByCandidate(ctx, tx, id)
		if err != nil {
			return err
		}
		e, err := s.getElection(ctx, tx, id)
		if err != nil {
			return err
		}
		e.ApplyCounts(counts)
		e.UpdatedAt = now
		if err := writeTally(ctx, tx, e); err != nil {
			return err
		}
		recounted = e
		return nil
	})
	if err != nil {
		return models.Election{}, err
	}
	return recounted, nil
}

func (s *Store) MarkDeclared(ctx context.Context, id string, r models.ElectionResults) (bool, error) {
	var winner sql.NullString
	if r.WinnerCandidateID != "" {
		winner = sql.NullString{String: r.WinnerCandidateID, Valid: true}
	}
	var declaredAt sql.NullTime
	updatedAt := time.Now().UTC()
	if r.DeclaredAt != nil {
		declaredAt = sql.NullTime{Time: r.DeclaredAt.UTC(), Valid: true}
		updatedAt = r.DeclaredAt.UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE election
		SET winner_candidate_id = $1, winner_votes = $2, winner_percentage = $3, results_tied = $4,
			results_declared = $5, declared_at = $6, updated_at = $7
		WHERE id = $8 AND results_declared = $9
	`, winner, r.WinnerVotes, r.WinnerPercentage, r.Tied, true, declaredAt, updatedAt, id, false)
	if err != nil {
		return false, fmt.Errorf("failed to store results: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := s.getElection(ctx, s.db, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) InsertVote(ctx context.Context, v models.Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote (id, election_id, voter_id, candidate_id, cast_at, view_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.ElectionID, v.VoterID, v.CandidateID, v.CastAt.UTC(), 0)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyVoted
		}
		s.logger.Error("failed to insert vote", "election_id", v.ElectionID, "error", err)
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

func (s *Store) GetVote(ctx context.Context, electionID, voterID string) (models.Vote, error) {
	var (
		v          models.Vote
		lastViewed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, election_id, voter_id, candidate_id, cast_at, view_count, last_viewed_at
		FROM vote
		WHERE election_id = $1 AND voter_id = $2
	`, electionID, voterID).Scan(&v.ID, &v.ElectionID, &v.VoterID, &v.CandidateID, &v.CastAt, &v.ViewCount, &lastViewed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vote{}, models.ErrNotFound
	}
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to query vote: %w", err)
	}
	v.CastAt = v.CastAt.UTC()
	if lastViewed.Valid {
		at := lastViewed.Time.UTC()
		v.LastViewedAt = &at
	}
	return v, nil
}

func (s *Store) HasVoted(ctx context.Context, electionID, voterID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vote WHERE election_id = $1 AND voter_id = $2
	`, electionID, voterID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return count > 0, nil
}

func (s *Store) RecordView(ctx context.Context, electionID, voterID string, limit int, at time.Time) (models.Vote, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vote SET view_count = view_count + 1, last_viewed_at = $1
		WHERE election_id = $2 AND voter_id = $3 AND view_count < $4
	`, at.UTC(), electionID, voterID, limit)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to record view: %w", err)
	}
	n, _ := res.RowsAffected()
	v, err := s.GetVote(ctx, electionID, voterID)
	if err != nil {
		return models.Vote{}, err
	}
	if n == 0 {
		return models.Vote{}, models.ErrViewLimitExceeded
	}
	return v, nil
}

func countByCandidate(ctx context.Context, q querier, electionID string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT candidate_id, COUNT(*)
		FROM vote
		WHERE election_id = $1
		GROUP BY candidate_id
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			candidateID string
			count       int
		)
		if err := rows.Scan(&candidateID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[candidateID] = count
	}
	return counts, rows.Err()
}

// PutVoter registers or replaces a voter profile.
func (s *Store) PutVoter(ctx context.Context, v models.Voter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voter (id, email, card_number, jurisdiction)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = excluded.email, card_number = excluded.card_number, jurisdiction = excluded.jurisdiction
	`, v.ID, v.Email, v.CardNumber, v.Jurisdiction)
	if err != nil {
		return fmt.Errorf("failed to upsert voter: %w", err)
	}
	return nil
}

func (s *Store) GetVoter(ctx context.Context, voterID string) (models.Voter, error) {
	var v models.Voter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, card_number, jurisdiction FROM voter WHERE id = $1
	`, voterID).Scan(&v.ID, &v.Email, &v.CardNumber, &v.Jurisdiction)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Voter{}, models.ErrNotFound
	}
	if err != nil {
		return models.Voter{}, fmt.Errorf("failed to query voter: %w", err)
	}
	return v, nil
}

func (s *Store) ListVoters(ctx context.Context, jurisdiction string) ([]models.Voter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, card_number, jurisdiction
		FROM voter
		WHERE jurisdiction = $1
		ORDER BY id
	`, jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("failed to query voters: %w", err)
	}
	defer rows.Close()

	voters := []models.Voter{}
	for rows.Next() {
		var v models.Voter
		if err := rows.Scan(&v.ID, &v.Email, &v.CardNumber, &v.Jurisdiction); err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters = append(voters, v)
	}
	return voters, rows.Err()
}
