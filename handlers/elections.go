// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/quickly-elect/auth"
	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/middleware"
	"github.com/danielhkuo/quickly-elect/models"
)

type ElectionHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewElectionHandler(svc Services, cfg cliparse.Config) *ElectionHandler {
	return &ElectionHandler{svc: svc, cfg: cfg}
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := h.svc.Lifecycle.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	adminKey := auth.GenerateAdminKey(e.ID, h.cfg.AdminKeySalt)
	slog.Info("election created", "election_id", e.ID, "title", e.Title)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateElectionResponse{
		Election: e,
		AdminKey: adminKey,
	})
}

// ListElections handles GET /elections?status=active,completed&include_archived=true
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ElectionFilter{IncludeArchived: q.Get("include_archived") == "true"}
	for _, raw := range q["status"] {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}

	list, err := h.svc.Lifecycle.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetElection handles GET /elections/{id}
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Lifecycle.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// UpdateElection handles PATCH /elections/{id}
func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	electionID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req models.UpdateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	e, err := h.svc.Lifecycle.Update(r.Context(), electionID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteElection handles DELETE /elections/{id}
func (h *ElectionHandler) DeleteElection(w http.ResponseWriter, r *http.Request) {
	electionID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := h.svc.Lifecycle.Delete(r.Context(), electionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishElection handles POST /elections/{id}/publish
func (h *ElectionHandler) PublishElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.Publish)
}

// StartElection handles POST /elections/{id}/start
func (h *ElectionHandler) StartElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.Start)
}

// EndElection handles POST /elections/{id}/end
func (h *ElectionHandler) EndElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.End)
}

// CancelElection handles POST /elections/{id}/cancel
func (h *ElectionHandler) CancelElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.Cancel)
}

// PostponeElection handles POST /elections/{id}/postpone
func (h *ElectionHandler) PostponeElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.Postpone)
}

// ArchiveElection handles POST /elections/{id}/archive
func (h *ElectionHandler) ArchiveElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.Archive)
}

// RestoreElection handles POST /elections/{id}/restore
func (h *ElectionHandler) RestoreElection(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Lifecycle.Restore)
}

// DeclareResults handles POST /elections/{id}/declare
func (h *ElectionHandler) DeclareResults(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Declarer.DeclareResults)
}

// ReconcileTally handles POST /elections/{id}/reconcile
func (h *ElectionHandler) ReconcileTally(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.svc.Caster.Reconcile)
}

func (h *ElectionHandler) operate(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (models.Election, error)) {
	electionID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	e, err := op(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// requireAdmin checks X-Admin-Key against the election in the path.
func (h *ElectionHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election id is required")
		return "", false
	}
	adminKey := r.Header.Get("X-Admin-Key")
	if adminKey == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Admin-Key header required")
		return "", false
	}
	if err := auth.ValidateAdminKey(electionID, adminKey, h.cfg.AdminKeySalt); err != nil {
		slog.Warn("invalid admin key", "election_id", electionID, "remote", middleware.GetClientIP(r))
		writeError(w, err)
		return "", false
	}
	return electionID, true
}
