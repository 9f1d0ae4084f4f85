// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db is the SQL storage layer for elections, votes and voters.

# Connecting

Open accepts "postgres" (lib/pq) or "sqlite" (modernc.org/sqlite):

	conn, err := db.Open(ctx, db.TypeSQLite, "elections.db?_pragma=busy_timeout(5000)")
	if err != nil {
		log.Fatal(err)
	}
	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

CreateSchema is safe to call multiple times - uses IF NOT EXISTS for all
tables and indexes. SQLite connections are capped at one, so the store never
queries outside an open transaction while that transaction is running.

# Tables

  - election: metadata, schedule, status, tally aggregates and results
  - election_candidate: ballot order and per-candidate tally
  - vote: one row per (election_id, voter_id), enforced by UNIQUE
  - voter: profiles used for identity checks and notifications

# Relationships

	election 1──* election_candidate
	election 1──* vote (no foreign key; votes survive deletion)

# Store

Store implements the engine's ElectionStore, VoteLedger and VoterDirectory.
Status-dependent writes carry the expected status in their WHERE clause, so a
write based on a stale read affects no rows and reports a conflict. RecordVote
takes the election row lock before touching candidate counts, which keeps
concurrent PostgreSQL transactions from losing increments.
*/
package db
