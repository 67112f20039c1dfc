package api

import (
	"net/http"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/engine"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// historyLimit bounds the processed requests shown in the queue.
const historyLimit = 10

// RequestsHandler handles item request endpoints.
type RequestsHandler struct {
	DB     *db.DB
	Engine *engine.Engine
}

type submitRequest struct {
	ItemName      string `json:"item_name"`
	Justification string `json:"justification"`
}

type approveRequest struct {
	ItemID int64 `json:"item_id"`
}

type requestQueue struct {
	Pending        []model.Request    `json:"pending"`
	History        []model.Request    `json:"history"`
	PendingReturns []model.Assignment `json:"pending_returns"`
}

// Submit handles POST /api/requests.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Engine.SubmitRequest(r.Context(), identity(r), req.ItemName, req.Justification)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Mine handles GET /api/me/requests.
func (h *RequestsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	requests, err := store.ListRequestsByStaff(r.Context(), h.DB, identity(r).SubjectID)
	if err != nil {
		storageError(w, r, "list requests", err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(requests))
}

// Queue handles GET /api/requests.
func (h *RequestsHandler) Queue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := store.ListPendingRequests(ctx, h.DB)
	if err != nil {
		storageError(w, r, "list requests", err)
		return
	}
	history, err := store.RequestHistory(ctx, h.DB, historyLimit)
	if err != nil {
		storageError(w, r, "list requests", err)
		return
	}
	returns, err := store.ListPendingReturns(ctx, h.DB)
	if err != nil {
		storageError(w, r, "list returns", err)
		return
	}

	jsonResponse(w, http.StatusOK, requestQueue{
		Pending:        orEmpty(pending),
		History:        orEmpty(history),
		PendingReturns: orEmpty(returns),
	})
}

// Approve handles POST /api/requests/{id}/approve.
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	res, err := h.Engine.ApproveRequest(r.Context(), identity(r), id, req.ItemID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Reject handles POST /api/requests/{id}/reject.
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req, err := h.Engine.RejectRequest(r.Context(), identity(r), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, req)
}
