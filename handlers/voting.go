// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/engine"
	"github.com/danielhkuo/quickly-elect/middleware"
	"github.com/danielhkuo/quickly-elect/models"
)

type VotingHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewVotingHandler(svc Services, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{svc: svc, cfg: cfg}
}

// voterID returns the X-Voter-ID set by the upstream auth gateway.
func voterID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Voter-ID")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-ID header required")
		return "", false
	}
	return id, true
}

// IssueChallenge handles POST /voters/{voterId}/challenge
func (h *VotingHandler) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	caller, ok := voterID(w, r)
	if !ok {
		return
	}
	target := r.PathValue("voterId")
	if target != caller {
		middleware.ErrorResponse(w, http.StatusForbidden, "challenges can only be issued to yourself")
		return
	}

	var req models.ChallengeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Purpose == "" {
		req.Purpose = models.PurposeVotingCredential
	}
	if req.Purpose != models.PurposeVotingCredential {
		middleware.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", "unsupported challenge purpose")
		return
	}

	// The code travels only through the notifier.
	if _, err := h.svc.Challenges.Issue(r.Context(), caller, req.Purpose); err != nil {
		slog.Error("failed to issue challenge", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to issue challenge")
		return
	}

	middleware.JSONResponse(w, http.StatusAccepted, models.ChallengeReceipt{
		Purpose: req.Purpose,
		Sent:    true,
	})
}

// RequestCredential handles POST /elections/{id}/credential
func (h *VotingHandler) RequestCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := voterID(w, r)
	if !ok {
		return
	}
	electionID := r.PathValue("id")

	var req models.CredentialRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ChallengeCode == "" {
		middleware.ErrorWithCode(w, http.StatusUnauthorized, "challenge_required", "challenge_code is required")
		return
	}

	claim := engine.IdentityClaim{
		VoterID:    caller,
		ElectionID: electionID,
		Email:      req.Email,
		CardNumber: req.CardNumber,
	}
	// A claim that would be refused anyway leaves the challenge unspent.
	if err := h.svc.Broker.CheckEligibility(r.Context(), claim); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Challenges.Verify(r.Context(), caller, req.ChallengeCode, models.PurposeVotingCredential)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Valid {
		slog.Warn("challenge rejected", "election_id", electionID, "reason", res.Reason)
		middleware.ErrorWithCode(w, http.StatusUnauthorized, "challenge_"+res.Reason, "challenge code was not accepted")
		return
	}

	receipt, err := h.svc.Broker.RequestCredential(r.Context(), claim)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusAccepted, receipt)
}

// VerifyCredential handles POST /elections/{id}/credential/verify
func (h *VotingHandler) VerifyCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := voterID(w, r)
	if !ok {
		return
	}

	var req models.VerifyCredentialRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Secret == "" {
		middleware.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", "secret is required")
		return
	}

	resp, err := h.svc.Broker.VerifyCredential(r.Context(), engine.IdentityClaim{
		VoterID:    caller,
		ElectionID: r.PathValue("id"),
		Email:      req.Email,
		CardNumber: req.CardNumber,
	}, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// CastVote handles POST /elections/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := voterID(w, r)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, err := h.svc.Caster.CastVote(r.Context(), caller, r.PathValue("id"), req.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		VoteID:  vote.ID,
		Message: "Vote recorded",
	})
}

// GetVoteStatus handles GET /elections/{id}/votes/me/status
func (h *VotingHandler) GetVoteStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := voterID(w, r)
	if !ok {
		return
	}
	status, err := h.svc.Caster.CheckStatus(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, status)
}

// ViewMyVote handles POST /elections/{id}/votes/me/view
func (h *VotingHandler) ViewMyVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := voterID(w, r)
	if !ok {
		return
	}
	resp, err := h.svc.Caster.ViewVote(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
