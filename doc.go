// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Elect API server.

Quickly Elect runs single-winner elections: operators schedule an election
with a fixed candidate list, voters prove who they are with an emailed
one-time credential and cast exactly one vote, and results stay sealed until
the declaration time.

# Starting the Server

The server reads CLI flags, then environment variables (including .env),
then an optional YAML file:

	ADMIN_KEY_SALT=... DATABASE_URL=elections.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -admin-salt ...

# Configuration

Required settings:

  - ADMIN_KEY_SALT (-admin-salt): Secret for admin key HMAC
  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string,
    not needed with -t memory

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default), postgres or memory
  - CONFIG_FILE (-config): YAML file with any of the settings above and a
    voters roster
  - SWEEP_INTERVAL (-sweep): scheduler period (default: 1m)
  - CREDENTIAL_TTL, BALLOT_WINDOW, MAX_VERIFY_ATTEMPTS: credential tuning
  - NATS_URL (-nats), NATS_SUBJECT_PREFIX: publish notifications to NATS
    instead of the log
  - DEBUG (-debug): debug logging; the log notifier then shows codes

Logs are text on a terminal and JSON otherwise.

# Architecture

  - engine: lifecycle, credentials, ballots and results
  - db, memstore: ElectionStore, VoteLedger and VoterDirectory backends
  - credstore, otp: in-memory credential and challenge tables
  - notify: log and NATS notifiers
  - scheduler: periodic status and results sweeps
  - handlers, router, middleware: HTTP surface
  - models, auth, cliparse: shared types, keys and configuration

The HTTP server and the scheduler run side by side and stop together on
SIGINT or SIGTERM.
*/
package main
