// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"

	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/credstore"
	"github.com/danielhkuo/quickly-elect/engine"
	"github.com/danielhkuo/quickly-elect/otp"
)

// Backend is the durable storage the engine runs on. Both db.Store and
// memstore.Store satisfy it.
type Backend interface {
	engine.ElectionStore
	engine.VoteLedger
	engine.VoterDirectory
}

// Services bundles the engine components the handlers call.
type Services struct {
	Lifecycle  *engine.Lifecycle
	Broker     *engine.CredentialBroker
	Caster     *engine.BallotCaster
	Declarer   *engine.ResultDeclarer
	Challenges engine.ChallengeIssuer
}

// NewServices wires every engine component over backend. A nil clock means
// the wall clock.
func NewServices(backend Backend, notifier engine.Notifier, cfg cliparse.Config, clock engine.Clock, logger *slog.Logger) Services {
	if clock == nil {
		clock = engine.SystemClock()
	}
	logger = engine.ResolveLogger(logger)

	challenges := otp.NewIssuer(notifier, logger.With("component", "otp"))
	challenges.Voters = backend
	challenges.Clock = clock

	broker := &engine.CredentialBroker{
		Elections:    backend,
		Votes:        backend,
		Voters:       backend,
		Store:        credstore.New(credstore.DefaultCleanupInterval),
		Notifier:     notifier,
		Clock:        clock,
		Logger:       logger.With("component", "credentials"),
		TTL:          cfg.CredentialTTL,
		BallotWindow: cfg.BallotWindow,
		MaxAttempts:  cfg.MaxVerifyAttempts,
	}

	return Services{
		Lifecycle: &engine.Lifecycle{
			Elections: backend,
			Voters:    backend,
			Clock:     clock,
			Logger:    logger.With("component", "lifecycle"),
		},
		Broker: broker,
		Caster: &engine.BallotCaster{
			Elections: backend,
			Votes:     backend,
			Gate:      broker,
			Clock:     clock,
			Logger:    logger.With("component", "ballots"),
		},
		Declarer: &engine.ResultDeclarer{
			Elections: backend,
			Voters:    backend,
			Notifier:  notifier,
			Clock:     clock,
			Logger:    logger.With("component", "results"),
		},
		Challenges: challenges,
	}
}
