package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/skyline-ota/releasectl/internal/metrics"
	"github.com/skyline-ota/releasectl/internal/resolver"
)

// ResolverHandler exposes the Resolver (C6) over §6's serve operation.
type ResolverHandler struct {
	resolver *resolver.Resolver
}

// NewResolverHandler builds a ResolverHandler.
func NewResolverHandler(resolver *resolver.Resolver) *ResolverHandler {
	return &ResolverHandler{resolver: resolver}
}

// Serve handles GET /organisations/{org}/applications/{app}/release_config:
// dimensions are passed as ?k=v query parameters, toss defaults to 99 when
// absent (§4.6).
func (h *ResolverHandler) Serve(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)

	toss := 99
	dimensions := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "toss" {
			if n, err := strconv.Atoi(values[0]); err == nil {
				toss = n
			}
			continue
		}
		dimensions[key] = values[0]
	}

	// Alternatively a single "x-dimension" header of "k1=v1;k2=v2" form, per
	// the ZIP/AAR asset-embedding convention described in §4.7.
	if header := r.Header.Get("x-dimension"); header != "" {
		for _, pair := range strings.Split(header, ";") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) == 2 {
				dimensions[kv[0]] = kv[1]
			}
		}
	}

	resolved, err := h.resolver.Serve(org, app, dimensions, toss)
	if err != nil {
		metrics.ResolverCacheResults.WithLabelValues("error").Inc()
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}
