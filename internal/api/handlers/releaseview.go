package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/releaseview"
)

// ReleaseViewHandler exposes the Release View Store (C9) over §6's
// create/get/list/delete operations.
type ReleaseViewHandler struct {
	registry *releaseview.Registry
}

// NewReleaseViewHandler builds a ReleaseViewHandler.
func NewReleaseViewHandler(registry *releaseview.Registry) *ReleaseViewHandler {
	return &ReleaseViewHandler{registry: registry}
}

type createReleaseViewRequest struct {
	Name       string               `json:"name"`
	Dimensions []domain.DimensionKV `json:"dimensions"`
}

// Create handles POST /organisations/{org}/applications/{app}/release_view.
func (h *ReleaseViewHandler) Create(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	var req createReleaseViewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.registry.Create(org, app, req.Name, req.Dimensions)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// Get handles GET /organisations/{org}/applications/{app}/release_view/{name}.
func (h *ReleaseViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	name := mux.Vars(r)["name"]

	v, err := h.registry.Get(org, app, name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// List handles GET /organisations/{org}/applications/{app}/release_view.
func (h *ReleaseViewHandler) List(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	page, count := pageCount(r)

	views, err := h.registry.List(org, app, page, count)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Delete handles DELETE /organisations/{org}/applications/{app}/release_view/{name}.
func (h *ReleaseViewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	name := mux.Vars(r)["name"]

	if err := h.registry.Delete(org, app, name); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
