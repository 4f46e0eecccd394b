package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"storyforge/auth"
	"storyforge/db"
	"storyforge/models"
)

// ListResponse wraps a page of resources.
type ListResponse struct {
	Items []*models.Resource `json:"items"`
	Count int                `json:"count"`
}

// collectionFor resolves the {kind} route variable. Unknown kinds reply 404.
func (h *Handler) collectionFor(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind, err := models.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	name, err := h.repo.Collections().Name(kind)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return name, true
}

// resourceID parses the {id} route variable in the active backend's format.
func (h *Handler) resourceID(ctx context.Context, w http.ResponseWriter, r *http.Request) (db.ID, bool) {
	id, err := h.repo.ParseID(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return db.ID{}, false
	}
	return id, true
}

// decodeObject reads a JSON object body.
func decodeObject(r *http.Request) (bson.M, error) {
	var data bson.M
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return data, validPayload(data)
}

// List handles GET /api/{kind}
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionFor(w, r)
	if !ok {
		return
	}
	filter, opts, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	items, err := h.repo.Find(ctx, collection, filter, auth.OwnerFromContext(ctx), opts)
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// Create handles POST /api/{kind}
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionFor(w, r)
	if !ok {
		return
	}
	data, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.repo.Create(ctx, collection, data, auth.OwnerFromContext(ctx))
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Count handles GET /api/{kind}/count
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionFor(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	n, err := h.repo.Count(ctx, collection, filter, auth.OwnerFromContext(ctx))
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// Get handles GET /api/{kind}/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionFor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := h.resourceID(ctx, w, r)
	if !ok {
		return
	}
	res, err := h.repo.FindByID(ctx, collection, id, auth.OwnerFromContext(ctx))
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Update handles PUT /api/{kind}/{id}. The body is merged into the stored payload.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionFor(w, r)
	if !ok {
		return
	}
	patch, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := h.resourceID(ctx, w, r)
	if !ok {
		return
	}
	res, err := h.repo.Update(ctx, collection, id, patch, auth.OwnerFromContext(ctx))
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Delete handles DELETE /api/{kind}/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionFor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := h.resourceID(ctx, w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(ctx, collection, id, auth.OwnerFromContext(ctx)); err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := h.repo.GetUserStats(ctx, auth.OwnerFromContext(ctx))
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
