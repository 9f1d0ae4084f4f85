// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Elect API.

# Handler Types

Each handler is a struct holding the engine Services and the config:

  - ElectionHandler: election CRUD and operator actions
  - VotingHandler: challenges, credentials, casting and viewing votes
  - ResultsHandler: declared results

Services is built once over a storage Backend (db.Store or memstore.Store):

	svc := handlers.NewServices(backend, notifier, cfg, nil, logger)
	electionHandler := handlers.NewElectionHandler(svc, cfg)

# Operator Actions

Creating an election returns an admin_key. Every other write needs it in the
X-Admin-Key header:

	POST   /elections               → CreateElection (returns admin_key)
	PATCH  /elections/{id}          → UpdateElection (draft and upcoming only)
	DELETE /elections/{id}          → DeleteElection
	POST   /elections/{id}/publish  → PublishElection
	POST   /elections/{id}/declare  → DeclareResults

and likewise start, end, cancel, postpone, archive, restore and reconcile.

# Voting Flow

The upstream gateway identifies the voter in X-Voter-ID. A voter then:

	POST /voters/{voterId}/challenge         → IssueChallenge (code by email)
	POST /elections/{id}/credential          → RequestCredential (secret by email)
	POST /elections/{id}/credential/verify   → VerifyCredential (opens the ballot)
	POST /elections/{id}/votes               → CastVote
	GET  /elections/{id}/votes/me/status     → GetVoteStatus
	POST /elections/{id}/votes/me/view       → ViewMyVote (twice at most)

Codes and secrets are only ever delivered through the Notifier.

# Errors

writeError maps engine errors to a status and a stable code in the JSON
body, for example already_voted (409), voting_ended (403) or
credential_expired (410).
*/
package handlers
