package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skyline-ota/releasectl/internal/cohort"
	"github.com/skyline-ota/releasectl/internal/domain"
)

// CohortHandler exposes the Cohort Schema Engine (C2) over §6's checkpoint,
// group, and priority operations.
type CohortHandler struct {
	engine *cohort.Engine
}

// NewCohortHandler builds a CohortHandler.
func NewCohortHandler(engine *cohort.Engine) *CohortHandler {
	return &CohortHandler{engine: engine}
}

type insertCheckpointRequest struct {
	Name       domain.CohortName `json:"name"`
	Value      string            `json:"value"`
	Comparator cohort.Comparator `json:"comparator"`
}

// InsertCheckpoint handles POST .../dimension/{name}/cohort/checkpoint.
func (h *CohortHandler) InsertCheckpoint(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	dimensionName := mux.Vars(r)["name"]

	var req insertCheckpointRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.InsertCheckpoint(org, app, dimensionName, req.Name, req.Value, req.Comparator); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type insertGroupRequest struct {
	Name    domain.CohortName `json:"name"`
	Members []string          `json:"members"`
}

// InsertGroup handles POST .../dimension/{name}/cohort/group.
func (h *CohortHandler) InsertGroup(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	dimensionName := mux.Vars(r)["name"]

	var req insertGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.InsertGroup(org, app, dimensionName, req.Name, req.Members); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePriority handles PATCH .../dimension/{name}/cohort/priority.
func (h *CohortHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	dimensionName := mux.Vars(r)["name"]

	var req map[domain.CohortName]int
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.UpdatePriority(org, app, dimensionName, req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
