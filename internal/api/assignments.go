package api

import (
	"net/http"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/engine"
	"github.com/erazemk/oprema/internal/store"
)

// AssignmentsHandler handles assignment and return endpoints.
type AssignmentsHandler struct {
	DB     *db.DB
	Engine *engine.Engine
}

type createAssignmentRequest struct {
	ItemID  int64 `json:"item_id"`
	StaffID int64 `json:"staff_id"`
}

// Mine handles GET /api/me/assignments.
func (h *AssignmentsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	assignments, err := store.ListAssignmentsByStaff(r.Context(), h.DB, identity(r).SubjectID)
	if err != nil {
		storageError(w, r, "list assignments", err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(assignments))
}

// RequestReturn handles POST /api/me/assignments/{id}/return.
func (h *AssignmentsHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	a, err := h.Engine.RequestReturn(r.Context(), identity(r), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// Create handles POST /api/assignments.
func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 || req.StaffID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id and staff_id required")
		return
	}

	a, err := h.Engine.CreateAssignment(r.Context(), identity(r), req.ItemID, req.StaffID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, a)
}

// PendingReturns handles GET /api/assignments/returns.
func (h *AssignmentsHandler) PendingReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := store.ListPendingReturns(r.Context(), h.DB)
	if err != nil {
		storageError(w, r, "list returns", err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(returns))
}

// CompleteReturn handles POST /api/assignments/{id}/complete-return.
func (h *AssignmentsHandler) CompleteReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	a, err := h.Engine.CompleteReturn(r.Context(), identity(r), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, a)
}
