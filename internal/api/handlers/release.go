package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/metrics"
	"github.com/skyline-ota/releasectl/internal/release"
)

// ReleaseHandler exposes the Release Orchestrator (C5) over §6's create,
// update, ramp, conclude, get, and list operations.
type ReleaseHandler struct {
	orchestrator *release.Orchestrator
}

// NewReleaseHandler builds a ReleaseHandler.
func NewReleaseHandler(orchestrator *release.Orchestrator) *ReleaseHandler {
	return &ReleaseHandler{orchestrator: orchestrator}
}

type packageOverride struct {
	Index      *domain.FileRef  `json:"index,omitempty"`
	Important  []domain.FileRef `json:"important,omitempty"`
	Lazy       []domain.FileRef `json:"lazy,omitempty"`
	Properties map[string]any   `json:"properties,omitempty"`
}

type configOverride struct {
	BootTimeout          int            `json:"boot_timeout"`
	ReleaseConfigTimeout int            `json:"release_config_timeout"`
	Properties           map[string]any `json:"properties,omitempty"`
}

type createReleaseRequest struct {
	Dimensions     map[string]string `json:"dimensions"`
	PackageVersion int               `json:"package_version"`
	ConfigVersion  string            `json:"config_version"`
	Package        packageOverride   `json:"package"`
	Config         configOverride    `json:"config"`
	Resources      []domain.FileRef  `json:"resources,omitempty"`
}

// Create handles POST /organisations/{org}/applications/{app}/release.
func (h *ReleaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	var req createReleaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := release.CreateInput{
		Org:                  org,
		App:                  app,
		Dimensions:           req.Dimensions,
		PackageVersion:       req.PackageVersion,
		ConfigVersion:        req.ConfigVersion,
		BootTimeout:          req.Config.BootTimeout,
		ReleaseConfigTimeout: req.Config.ReleaseConfigTimeout,
		PackageProperties:    req.Package.Properties,
		ConfigProperties:     req.Config.Properties,
		Index:                req.Package.Index,
		Important:            req.Package.Important,
		Lazy:                 req.Package.Lazy,
		Resources:            req.Resources,
	}

	rel, err := h.orchestrator.Create(in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	metrics.ReleasesCreated.WithLabelValues(firstReleaseLabel(rel)).Inc()
	metrics.ReleaseStatusTransitions.WithLabelValues(string(rel.Status)).Inc()
	writeJSON(w, http.StatusCreated, rel)
}

// Ramp handles POST /organisations/{org}/applications/{app}/release/{id}/ramp.
func (h *ReleaseHandler) Ramp(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	releaseID := mux.Vars(r)["id"]

	var req struct {
		TrafficPercentage int `json:"traffic_percentage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.orchestrator.Ramp(org, app, releaseID, req.TrafficPercentage); err != nil {
		writeDomainError(w, r, err)
		return
	}
	metrics.ReleaseStatusTransitions.WithLabelValues(string(domain.ReleaseInProgress)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// Conclude handles POST /organisations/{org}/applications/{app}/release/{id}/conclude.
func (h *ReleaseHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	releaseID := mux.Vars(r)["id"]

	var req struct {
		Discard bool `json:"discard"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.orchestrator.Conclude(org, app, releaseID, req.Discard); err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := domain.ReleaseConcluded
	if req.Discard {
		status = domain.ReleaseDiscarded
	}
	metrics.ReleaseStatusTransitions.WithLabelValues(string(status)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /organisations/{org}/applications/{app}/release/{id}.
func (h *ReleaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	releaseID := mux.Vars(r)["id"]

	rel, err := h.orchestrator.Get(org, app, releaseID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// List handles GET /organisations/{org}/applications/{app}/release.
func (h *ReleaseHandler) List(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	page, count := pageCount(r)

	releases, err := h.orchestrator.List(org, app, page, count)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, releases)
}

func firstReleaseLabel(r domain.Release) string {
	if r.Status == domain.ReleaseConcluded && r.TrafficPercentage == 100 {
		return "true"
	}
	return "false"
}
