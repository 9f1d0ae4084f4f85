// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseType: sqlite, postgres or memory (default: sqlite)
  - DatabaseURL: Connection string (required unless memory)
  - AdminKeySalt: Secret for admin key HMAC (required)
  - SweepInterval: Status and results sweep period (default: 1m)
  - CredentialTTL: Voting credential lifetime (default: 24h)
  - BallotWindow: Time allowed between verification and casting (default: 15m)
  - MaxVerifyAttempts: Wrong secrets before lockout, 0 = unlimited (default: 5)
  - NatsURL, NatsSubjectPrefix: Notification transport; empty URL logs instead
  - Debug: Debug-level logging
  - Voters: Voter roster, read only from the config file

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	-config          YAML config file
	--admin-salt     Admin key salt
	--sweep          Sweep interval
	--credential-ttl Credential lifetime
	--ballot-window  Ballot window
	--max-attempts   Verification attempts
	--nats           NATS URL
	--nats-prefix    NATS subject prefix
	--debug          Debug logging

# Environment Variables

Flags fall back to environment variables. A .env file in the working
directory is loaded first and never overrides variables already set.

	PORT                → -p
	DATABASE_URL        → -d
	DATABASE_TYPE       → -t
	CONFIG_FILE         → -config
	ADMIN_KEY_SALT      → --admin-salt
	SWEEP_INTERVAL      → --sweep
	CREDENTIAL_TTL      → --credential-ttl
	BALLOT_WINDOW       → --ballot-window
	MAX_VERIFY_ATTEMPTS → --max-attempts
	NATS_URL            → --nats
	NATS_SUBJECT_PREFIX → --nats-prefix
	DEBUG               → --debug

CLI flags take precedence over environment variables, which take precedence
over the config file. Keys in the YAML file use snake_case field names:

	admin_key_salt: change-me
	database_type: memory
	voters:
	  - id: alice
	    email: alice@example.com
	    card_number: CARD-1
	    jurisdiction: district-1

# Validation

ParseFlags returns an error if required values are missing or malformed:

  - DATABASE_URL must be provided for sqlite and postgres
  - ADMIN_KEY_SALT must be provided
  - Durations must parse and be positive
  - Every voter needs an id, email and card_number
*/
package cliparse
