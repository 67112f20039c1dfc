package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/engine"
	"github.com/erazemk/oprema/internal/imaging"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// ItemsHandler handles inventory item endpoints.
type ItemsHandler struct {
	DB     *db.DB
	Engine *engine.Engine
}

type availableItem struct {
	ID                int64  `json:"id"`
	Label             string `json:"label"`
	QuantityAvailable int    `json:"quantity_available"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB, r.URL.Query().Get("q"))
	if err != nil {
		storageError(w, r, "list items", err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(items))
}

// Available handles GET /api/items/available.
func (h *ItemsHandler) Available(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListAvailableItems(r.Context(), h.DB)
	if err != nil {
		storageError(w, r, "list items", err)
		return
	}

	out := make([]availableItem, 0, len(items))
	for _, it := range items {
		out = append(out, availableItem{ID: it.ID, Label: it.Label(), QuantityAvailable: it.QuantityAvailable})
	}
	jsonResponse(w, http.StatusOK, out)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, in)
	if err != nil {
		storageError(w, r, "create item", err)
		return
	}

	slog.Info("item created", "item", item.ID, "name", item.Name, "user", identity(r).SubjectID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storageError(w, r, "get item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var in model.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.UpdateItem(r.Context(), identity(r), id, in)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	removed, err := h.Engine.DeleteItem(r.Context(), identity(r), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message":             "item deleted",
		"removed_assignments": removed,
	})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Prepare(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := store.SetItemImage(r.Context(), h.DB, id, photo.Image, photo.Thumbnail, photo.MIME)
	if err != nil {
		storageError(w, r, "save image", err)
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	slog.Info("item image uploaded", "item", id, "bytes", len(photo.Image))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image. ?thumb=1 selects the thumbnail.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id, r.URL.Query().Get("thumb") == "1")
	if err != nil {
		storageError(w, r, "get image", err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
