package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// FeedbackHandler handles staff feedback.
type FeedbackHandler struct {
	DB *db.DB
}

type feedbackRequest struct {
	Rating  int                             `json:"rating"`
	Answers [model.FeedbackQuestions]string `json:"answers"`
}

// Submit handles POST /api/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidateRating(req.Rating); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := identity(r)
	fb, err := store.CreateFeedback(r.Context(), h.DB, id.SubjectID, req.Rating, model.TrimAnswers(req.Answers))
	if err != nil {
		storageError(w, r, "save feedback", err)
		return
	}

	slog.Info("feedback submitted", "staff", id.SubjectID, "rating", req.Rating)
	jsonResponse(w, http.StatusCreated, fb)
}
