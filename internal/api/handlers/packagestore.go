package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skyline-ota/releasectl/internal/packagestore"
)

// PackageStoreHandler exposes the Package Store (C4) over §6's group and
// package create/get operations.
type PackageStoreHandler struct {
	store *packagestore.Store
}

// NewPackageStoreHandler builds a PackageStoreHandler.
func NewPackageStoreHandler(store *packagestore.Store) *PackageStoreHandler {
	return &PackageStoreHandler{store: store}
}

type createGroupRequest struct {
	Name string `json:"name"`
}

// CreateGroup handles POST /organisations/{org}/applications/{app}/package_group.
func (h *PackageStoreHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.store.CreateGroup(org, app, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type createPackageRequest struct {
	Index *string  `json:"index,omitempty"`
	Tag   *string  `json:"tag,omitempty"`
	Files []string `json:"files"`
}

// CreatePackage handles POST .../package_group/{group_id}/package.
func (h *PackageStoreHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	groupID := mux.Vars(r)["group_id"]

	var req createPackageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pkg, err := h.store.CreatePackage(org, app, groupID, req.Index, req.Tag, req.Files)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

// GetPackage handles GET .../package_group/{group_id}/package: version lookup
// takes priority over tag; absent both, tag defaults to "latest".
func (h *PackageStoreHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)
	groupID := mux.Vars(r)["group_id"]

	version := queryIntPtr(r, "version")
	tag := queryStringPtr(r, "tag")

	pkg, err := h.store.GetPackage(org, app, groupID, version, tag)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}
