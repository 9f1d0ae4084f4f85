// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-elect/auth"
	"github.com/danielhkuo/quickly-elect/middleware"
	"github.com/danielhkuo/quickly-elect/models"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{models.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{models.ErrInvalidCandidate, http.StatusBadRequest, "invalid_candidate"},
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrAlreadyVoted, http.StatusConflict, "already_voted"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
	{models.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{models.ErrIdentityMismatch, http.StatusForbidden, "identity_mismatch"},
	{models.ErrCredentialNotFound, http.StatusNotFound, "credential_not_found"},
	{models.ErrCredentialMismatch, http.StatusUnauthorized, "credential_mismatch"},
	{models.ErrCredentialExpired, http.StatusGone, "credential_expired"},
	{models.ErrBallotNotAuthorized, http.StatusForbidden, "ballot_not_authorized"},
	{models.ErrViewLimitExceeded, http.StatusForbidden, "view_limit_exceeded"},
	{auth.ErrInvalidAdminKey, http.StatusForbidden, "invalid_admin_key"},
	{models.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// writeError maps an engine error to its HTTP status and code.
func writeError(w http.ResponseWriter, err error) {
	var window *models.WindowError
	if errors.As(err, &window) {
		if window.Phase == models.PhaseNotDue {
			middleware.ErrorWithCode(w, http.StatusConflict, window.Phase, err.Error())
			return
		}
		middleware.ErrorWithCode(w, http.StatusForbidden, "voting_"+window.Phase, err.Error())
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status == http.StatusServiceUnavailable {
				slog.Error("storage unavailable", "error", err)
				middleware.ErrorWithCode(w, m.status, m.code, "Storage temporarily unavailable")
				return
			}
			middleware.ErrorWithCode(w, m.status, m.code, err.Error())
			return
		}
	}

	slog.Error("unhandled error", "error", err)
	middleware.ErrorWithCode(w, http.StatusInternalServerError, "internal", "Internal server error")
}
