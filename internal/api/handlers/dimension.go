package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skyline-ota/releasectl/internal/dimension"
	"github.com/skyline-ota/releasectl/internal/domain"
)

// DimensionHandler exposes the Dimension Registry (C1) over §6's
// dimension create/list/update/delete operations.
type DimensionHandler struct {
	registry *dimension.Registry
}

// NewDimensionHandler builds a DimensionHandler.
func NewDimensionHandler(registry *dimension.Registry) *DimensionHandler {
	return &DimensionHandler{registry: registry}
}

type createDimensionRequest struct {
	Name        string                 `json:"name"`
	Schema      map[string]interface{} `json:"schema"`
	Description string                 `json:"description"`
	Type        domain.DimensionType   `json:"dimension_type"`
	DependsOn   string                 `json:"depends_on,omitempty"`
}

// Create handles POST /organisations/{org}/applications/{app}/dimension.
func (h *DimensionHandler) Create(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	var req createDimensionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.registry.Create(org, app, req.Name, req.Schema, req.Description, req.Type, req.DependsOn)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// List handles GET /organisations/{org}/applications/{app}/dimension.
func (h *DimensionHandler) List(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	page, count := pageCount(r)

	dims, err := h.registry.List(org, app, page, count)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dims)
}

type updateDimensionRequest struct {
	Position     *int   `json:"position,omitempty"`
	ChangeReason string `json:"change_reason"`
}

// Update handles PATCH /organisations/{org}/applications/{app}/dimension/{name}.
func (h *DimensionHandler) Update(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	name := mux.Vars(r)["name"]

	var req updateDimensionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.registry.Update(org, app, name, req.Position, req.ChangeReason); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /organisations/{org}/applications/{app}/dimension/{name}.
func (h *DimensionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	name := mux.Vars(r)["name"]

	if err := h.registry.Delete(org, app, name); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
