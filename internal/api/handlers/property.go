package handlers

import (
	"net/http"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/property"
)

// PropertyHandler exposes the Property Schema Manager (C3) over §6's
// default_config apply operation.
type PropertyHandler struct {
	manager   *property.Manager
	configSvc property.ConfigService
}

// NewPropertyHandler builds a PropertyHandler. configSvc is reused to load
// the workspace's current property set for diffing against the request.
func NewPropertyHandler(manager *property.Manager, configSvc property.ConfigService) *PropertyHandler {
	return &PropertyHandler{manager: manager, configSvc: configSvc}
}

// Apply handles PUT /organisations/{org}/applications/{app}/default_config:
// diffs the submitted property set against the workspace's current one and
// applies the three-way diff.
func (h *PropertyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)

	var desired []domain.Property
	if !decodeJSON(w, r, &desired) {
		return
	}

	current, err := h.configSvc.ListProperties(org, app)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	diff := property.ComputeDiff(current, desired)
	if err := h.manager.Apply(org, app, diff); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /organisations/{org}/applications/{app}/default_config.
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)

	props, err := h.configSvc.ListProperties(org, app)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}
