// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The schema is shared by PostgreSQL and SQLite, so it sticks to types and
// syntax both accept. Timestamps are stored in UTC without a zone.
const schema = `
-- Elections
CREATE TABLE IF NOT EXISTS election (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    jurisdiction TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'upcoming', 'active', 'completed', 'cancelled', 'postponed')),
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    voting_start TIMESTAMP NOT NULL,
    voting_end TIMESTAMP NOT NULL,
    result_declaration_at TIMESTAMP NOT NULL,
    total_voters INTEGER NOT NULL DEFAULT 0,
    total_votes_cast INTEGER NOT NULL DEFAULT 0,
    turnout_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    winner_candidate_id TEXT,
    winner_votes INTEGER NOT NULL DEFAULT 0,
    winner_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    results_tied BOOLEAN NOT NULL DEFAULT FALSE,
    results_declared BOOLEAN NOT NULL DEFAULT FALSE,
    declared_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    CHECK (voting_start < voting_end),
    CHECK (voting_end <= result_declaration_at)
);

CREATE INDEX IF NOT EXISTS idx_election_status ON election(status);

-- Candidates on the ballot, with their running tally
CREATE TABLE IF NOT EXISTS election_candidate (
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL,
    ballot_order INTEGER NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
    vote_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (election_id, candidate_id)
);

-- Votes outlive their election record, so there is no foreign key here.
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    cast_at TIMESTAMP NOT NULL,
    view_count INTEGER NOT NULL DEFAULT 0 CHECK (view_count >= 0 AND view_count <= 2),
    last_viewed_at TIMESTAMP,
    UNIQUE (election_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_election_candidate ON vote(election_id, candidate_id);

-- Voter profiles (written by the registration service)
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    card_number TEXT NOT NULL,
    jurisdiction TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_voter_jurisdiction ON voter(jurisdiction);
`
