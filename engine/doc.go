// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine implements the election lifecycle and voting rules.

# Components

  - Lifecycle: create, edit, publish, start, end, cancel, postpone,
    archive, restore and delete elections; Sweep advances them on schedule
  - CredentialBroker: issues single-use voting secrets and verifies them
  - BallotCaster: casts votes exactly once, lets a voter view their vote
    twice, and rebuilds tallies from the ledger
  - ResultDeclarer: declares winners manually or when the declaration
    time arrives

All components depend on the small interfaces in ports.go. The db and
memstore packages provide the storage side; credstore, otp and notify provide
the ephemeral stores and delivery.

# Status Machine

	draft ──publish──▶ upcoming ──start/sweep──▶ active ──end/sweep──▶ completed
	  │                  │
	  │                  ├──postpone──▶ postponed
	  │                  │                 │
	  └──────────────────┴──cancel──▶ cancelled ◀──┘

Statuses never move backwards. The sweep may take a draft or upcoming
election straight to completed when its whole window has passed.

# Concurrency

Storage enforces one vote per (election, voter). Status changes are written
with TransitionStatus, which only applies when the stored status still matches
the one that was read, so the sweep and an operator cannot both apply a
transition. Credential match-and-delete runs under the broker's mutex.

# Tally

	turnout           = round2(votes cast / total voters * 100)
	vote percentage_i = round2(votes_i / votes cast * 100)

Both are 0 when the denominator is 0. The winner is the candidate with the
most votes; on a tie the first one on the ballot wins and Results.Tied is set.
*/
package engine
