// Package handlers implements the HTTP surface over the release
// orchestration engine's internal packages: one handler type per domain
// component, each a thin adapter translating mux path/query/body into a
// call against the already-validated business package and the result back
// into JSON, per §6's REST operation set.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apierrors "github.com/skyline-ota/releasectl/internal/api/errors"
	"github.com/skyline-ota/releasectl/internal/api/middleware"
)

// decodeJSON reads and validates a JSON request body into v. A malformed
// or missing body is reported as a validation error, never a 500.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, r, apierrors.ValidationError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps a domainerrors-wrapped error to the wire taxonomy
// and writes it, attaching the request ID for correlation.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	writeAPIError(w, r, apierrors.FromDomainError(err))
}

func writeAPIError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	requestID := middleware.GetRequestID(r.Context())
	apierrors.WriteError(w, apiErr.WithRequestID(requestID))
}

// orgApp extracts the (org, app) path variables every route under
// /organisations/{org}/applications/{app} carries.
func orgApp(r *http.Request) (string, string) {
	vars := mux.Vars(r)
	return vars["org"], vars["app"]
}

// pageCount parses the page/count pagination query parameters, defaulting
// to page 1 / 50 entries.
func pageCount(r *http.Request) (int, int) {
	page := queryInt(r, "page", 1)
	count := queryInt(r, "count", 50)
	if page < 1 {
		page = 1
	}
	if count < 1 || count > 1000 {
		count = 50
	}
	return page, count
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryIntPtr(r *http.Request, key string) *int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func queryStringPtr(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}
