package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/skyline-ota/releasectl/internal/assembler"
	"github.com/skyline-ota/releasectl/internal/build"
	"github.com/skyline-ota/releasectl/internal/cdn"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
	"github.com/skyline-ota/releasectl/internal/mavenmeta"
	"github.com/skyline-ota/releasectl/internal/metrics"
	"github.com/skyline-ota/releasectl/internal/objectstorage"
	"github.com/skyline-ota/releasectl/internal/release"
	"github.com/skyline-ota/releasectl/internal/resolver"
	"github.com/skyline-ota/releasectl/internal/semver"
)

// BuildHandler exposes the Build Pipeline (C7): claiming a SemVer for the
// release currently resolved under a dimension context, assembling its
// ZIP/AAR/POM artifacts, and updating Maven metadata, per §4.7.
type BuildHandler struct {
	pipeline     *build.Pipeline
	resolver     *resolver.Resolver
	orchestrator *release.Orchestrator
	assembler    *assembler.Assembler
	objects      *objectstorage.Store
	cdn          *cdn.Invalidator
}

// NewBuildHandler builds a BuildHandler.
func NewBuildHandler(pipeline *build.Pipeline, resolver *resolver.Resolver, orchestrator *release.Orchestrator, asm *assembler.Assembler, objects *objectstorage.Store, invalidator *cdn.Invalidator) *BuildHandler {
	return &BuildHandler{pipeline: pipeline, resolver: resolver, orchestrator: orchestrator, assembler: asm, objects: objects, cdn: invalidator}
}

type buildResponse struct {
	Version string `json:"version"`
	ZipURL  string `json:"zip_url,omitempty"`
	AARURL  string `json:"aar_url,omitempty"`
	POMURL  string `json:"pom_url,omitempty"`
}

// Serve handles GET /organisations/{org}/applications/{app}/build:
// resolves the dimension context's current release, claims a build
// version for it, assembles artifacts on first claim, and returns the
// published SemVer and artifact URLs. force defaults to true (§6); when
// it is false and a Ready build already exists, that build's artifacts
// are returned immediately and a rebuild is kicked off asynchronously
// rather than reassembling and reuploading inline.
func (h *BuildHandler) Serve(w http.ResponseWriter, r *http.Request) {
	org, app := orgApp(r)

	dimensions := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) == 0 || key == "force" {
			continue
		}
		dimensions[key] = values[0]
	}
	force := true
	if header := r.Header.Get("x-force"); header != "" {
		force = header == "true"
	}

	resolved, err := h.resolver.Serve(org, app, dimensions, 99)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	releaseID, _ := resolved["release_id"].(string)
	if releaseID == "" {
		writeDomainError(w, r, fmt.Errorf("%w: no release resolved for the given dimensions", domainerrors.ErrNotFound))
		return
	}

	version, alreadyReady, err := h.pipeline.ClaimVersion(org, app, releaseID, force)
	if err != nil {
		metrics.BuildVersionClaims.WithLabelValues("failed").Inc()
		writeDomainError(w, r, err)
		return
	}

	if alreadyReady && !force {
		metrics.BuildVersionClaims.WithLabelValues("cached").Inc()
		writeJSON(w, http.StatusOK, h.artifactURLs(org, app, version))
		go func() {
			if _, err := h.assembleAndPublish(org, app, releaseID, resolved, version); err != nil {
				metrics.BuildVersionClaims.WithLabelValues("async_rebuild_failed").Inc()
			}
		}()
		return
	}

	response, err := h.assembleAndPublish(org, app, releaseID, resolved, version)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	metrics.BuildVersionClaims.WithLabelValues("claimed").Inc()
	writeJSON(w, http.StatusOK, response)
}

// assembleAndPublish runs §4.7 step 4 onward: assembles the ZIP/AAR/POM,
// uploads them to their well-known paths, extends the Maven metadata
// document, and marks the Build row Ready.
func (h *BuildHandler) assembleAndPublish(org, app, releaseID string, resolved map[string]any, version semver.Version) (buildResponse, error) {
	rel, err := h.orchestrator.Get(org, app, releaseID)
	if err != nil {
		return buildResponse{}, err
	}

	zipBytes, err := h.assembler.BuildZIP(org, app, rel.Important, resolved)
	if err != nil {
		metrics.BuildVersionClaims.WithLabelValues("assembly_failed").Inc()
		return buildResponse{}, err
	}
	aarBytes, err := h.assembler.BuildAAR(org, app, rel.Important, resolved, version)
	if err != nil {
		metrics.BuildVersionClaims.WithLabelValues("assembly_failed").Inc()
		return buildResponse{}, err
	}
	pomContent := mavenmeta.GeneratePOM(org, app, version)

	keys := buildKeys(org, app, version)

	zipURL, err := h.objects.Put(keys.zip, zipBytes, "application/zip")
	if err != nil {
		return buildResponse{}, err
	}
	aarURL, err := h.objects.Put(keys.aar, aarBytes, "application/octet-stream")
	if err != nil {
		return buildResponse{}, err
	}
	pomURL, err := h.objects.Put(keys.pom, []byte(pomContent), "application/xml")
	if err != nil {
		return buildResponse{}, err
	}

	if err := h.updateMavenMetadata(keys.metadata, org, app, version); err != nil {
		return buildResponse{}, err
	}

	if err := h.pipeline.MarkReady(org, app, releaseID); err != nil {
		return buildResponse{}, err
	}

	if h.cdn != nil {
		h.cdn.Invalidate(org, app)
	}

	return buildResponse{Version: version.String(), ZipURL: zipURL, AARURL: aarURL, POMURL: pomURL}, nil
}

// artifactURLs derives the well-known artifact URLs for an already-Ready
// build without touching object storage: the paths are deterministic
// functions of (org, app, version).
func (h *BuildHandler) artifactURLs(org, app string, version semver.Version) buildResponse {
	keys := buildKeys(org, app, version)
	return buildResponse{
		Version: version.String(),
		ZipURL:  h.objects.URL(keys.zip),
		AARURL:  h.objects.URL(keys.aar),
		POMURL:  h.objects.URL(keys.pom),
	}
}

type buildObjectKeys struct {
	zip, aar, pom, metadata string
}

// buildKeys implements the §6 well-known object-storage path contract the
// SDK fetches build artifacts from.
func buildKeys(org, app string, version semver.Version) buildObjectKeys {
	mavenRoot := fmt.Sprintf("builds/hyper-sdk/%s/%s-airborne-assets", org, app)
	versioned := fmt.Sprintf("%s/%s/%s-airborne-assets-%s", mavenRoot, version.String(), app, version.String())
	return buildObjectKeys{
		zip:      fmt.Sprintf("builds/%s/%s/%s.zip", org, app, version.String()),
		aar:      versioned + ".aar",
		pom:      versioned + ".pom",
		metadata: mavenRoot + "/maven-metadata.xml",
	}
}

// updateMavenMetadata reads, extends, and rewrites the Maven metadata
// document for (org, app), per §4.7 step 5. A missing document (first
// build ever) is treated as an empty version list.
func (h *BuildHandler) updateMavenMetadata(key, org, app string, version semver.Version) error {
	var versions []semver.Version

	existing, err := h.objects.Get(key)
	switch {
	case err == nil:
		versions, err = mavenmeta.ParseVersions(string(existing))
		if err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	case errors.Is(err, domainerrors.ErrNotFound):
		// first build for (org, app): start from an empty version list.
	default:
		return err
	}

	versions = appendVersionIfAbsent(versions, version)
	semver.Sort(versions)

	content := mavenmeta.GenerateMetadata(org, app, versions, time.Now())
	_, err = h.objects.Put(key, []byte(content), "application/xml")
	return err
}

// appendVersionIfAbsent keeps maven-metadata.xml growing by exactly one
// entry per new version: a rebuild of an already-published version (the
// force=false asynchronous refresh path) must not duplicate it.
func appendVersionIfAbsent(versions []semver.Version, version semver.Version) []semver.Version {
	for _, v := range versions {
		if v == version {
			return versions
		}
	}
	return append(versions, version)
}
