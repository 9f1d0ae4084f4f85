// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/handlers"
	"github.com/danielhkuo/quickly-elect/middleware"
)

func NewRouter(svc handlers.Services, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	electionHandler := handlers.NewElectionHandler(svc, cfg)
	votingHandler := handlers.NewVotingHandler(svc, cfg)
	resultsHandler := handlers.NewResultsHandler(svc, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Election management
	mux.HandleFunc("POST /elections", middleware.WithLogging(electionHandler.CreateElection))
	mux.HandleFunc("GET /elections", middleware.WithLogging(electionHandler.ListElections))
	mux.HandleFunc("GET /elections/{id}", middleware.WithLogging(electionHandler.GetElection))
	mux.HandleFunc("PATCH /elections/{id}", middleware.WithLogging(electionHandler.UpdateElection))
	mux.HandleFunc("DELETE /elections/{id}", middleware.WithLogging(electionHandler.DeleteElection))

	// Operator actions (X-Admin-Key)
	mux.HandleFunc("POST /elections/{id}/publish", middleware.WithLogging(electionHandler.PublishElection))
	mux.HandleFunc("POST /elections/{id}/start", middleware.WithLogging(electionHandler.StartElection))
	mux.HandleFunc("POST /elections/{id}/end", middleware.WithLogging(electionHandler.EndElection))
	mux.HandleFunc("POST /elections/{id}/cancel", middleware.WithLogging(electionHandler.CancelElection))
	mux.HandleFunc("POST /elections/{id}/postpone", middleware.WithLogging(electionHandler.PostponeElection))
	mux.HandleFunc("POST /elections/{id}/archive", middleware.WithLogging(electionHandler.ArchiveElection))
	mux.HandleFunc("POST /elections/{id}/restore", middleware.WithLogging(electionHandler.RestoreElection))
	mux.HandleFunc("POST /elections/{id}/declare", middleware.WithLogging(electionHandler.DeclareResults))
	mux.HandleFunc("POST /elections/{id}/reconcile", middleware.WithLogging(electionHandler.ReconcileTally))

	// Voter operations (X-Voter-ID)
	mux.HandleFunc("POST /voters/{voterId}/challenge", middleware.WithLogging(votingHandler.IssueChallenge))
	mux.HandleFunc("POST /elections/{id}/credential", middleware.WithLogging(votingHandler.RequestCredential))
	mux.HandleFunc("POST /elections/{id}/credential/verify", middleware.WithLogging(votingHandler.VerifyCredential))
	mux.HandleFunc("POST /elections/{id}/votes", middleware.WithLogging(votingHandler.CastVote))
	mux.HandleFunc("GET /elections/{id}/votes/me/status", middleware.WithLogging(votingHandler.GetVoteStatus))
	mux.HandleFunc("POST /elections/{id}/votes/me/view", middleware.WithLogging(votingHandler.ViewMyVote))

	// Results (sealed until declared)
	mux.HandleFunc("GET /elections/{id}/results", middleware.WithLogging(resultsHandler.GetResults))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-elect API v1"))
	})

	return mux
}
