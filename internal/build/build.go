// Package build implements the Build Pipeline (C7): claiming a new patch
// version for a release under contention, and tracking Building/Ready
// status, per §4.7.
//
// Grounded on build.rs's build(): a stale-BUILDING reclamation (rows older
// than 5 minutes are deleted so a crashed build doesn't wedge the release
// forever), then a bounded retry loop that re-queries the latest version
// and retries on a unique-constraint conflict, giving up after a 5-second
// deadline.
package build

import (
	"fmt"
	"time"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
	"github.com/skyline-ota/releasectl/internal/semver"
)

// ErrVersionClaimTimedOut is returned when no version could be claimed
// within the deadline because of sustained contention.
var ErrVersionClaimTimedOut = fmt.Errorf("%w: timed out claiming a build version", domainerrors.ErrDependencyFailure)

const (
	claimDeadline = 5 * time.Second
	retryPause    = 10 * time.Millisecond
)

// ErrUniqueViolation is returned by Store.Insert when the (org, app,
// major, minor, patch) row already exists.
var ErrUniqueViolation = fmt.Errorf("unique violation")

// Store is the persistence slice the pipeline depends on.
type Store interface {
	GetByReleaseID(org, app, releaseID string) (domain.Build, bool, error)
	LatestVersion(org, app string) (semver.Version, bool, error)
	Insert(b domain.Build) error
	DeleteStale(org, app, releaseID string) error
	MarkReady(org, app, releaseID string) error
}

// Pipeline claims build versions and marks them ready once artifact
// assembly completes.
type Pipeline struct {
	store Store
	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a Pipeline. now/sleep default to time.Now/time.Sleep when nil.
func New(store Store, now func() time.Time, sleep func(time.Duration)) *Pipeline {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Pipeline{store: store, now: now, sleep: sleep}
}

// ClaimVersion implements §4.7's version-claim loop for a release. If a
// Ready build already exists for releaseID, its version is returned
// unchanged (force=false semantics: idempotent on repeat calls) and
// alreadyReady reports true so the caller can short-circuit artifact
// re-assembly and instead kick off the rebuild asynchronously. A stale
// Building row (older than domain.StaleBuildAge) is reclaimed so a crashed
// attempt does not wedge the release.
func (p *Pipeline) ClaimVersion(org, app, releaseID string, force bool) (version semver.Version, alreadyReady bool, err error) {
	existing, found, err := p.store.GetByReleaseID(org, app, releaseID)
	if err != nil {
		return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if found {
		if existing.Status == domain.BuildReady && !force {
			return parseBuildVersion(existing), true, nil
		}
		if existing.Status == domain.BuildBuilding {
			if existing.IsStale(p.now()) {
				if err := p.store.DeleteStale(org, app, releaseID); err != nil {
					return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
				}
			}
			// else: a live attempt is in flight; fall through and let the
			// unique-constraint retry loop dedup against it.
		}
	}

	deadline := p.now().Add(claimDeadline)

	latest, hasLatest, err := p.store.LatestVersion(org, app)
	if err != nil {
		return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	var candidate semver.Version
	if hasLatest {
		candidate = latest.IncrementPatch()
	} else {
		candidate = semver.Default
	}

	for {
		if p.now().After(deadline) {
			return semver.Version{}, false, ErrVersionClaimTimedOut
		}

		b := domain.Build{
			Org:       org,
			App:       app,
			ReleaseID: releaseID,
			Major:     candidate.Major,
			Minor:     candidate.Minor,
			Patch:     candidate.Patch,
			Status:    domain.BuildBuilding,
			CreatedAt: p.now(),
		}

		err := p.store.Insert(b)
		if err == nil {
			return candidate, false, nil
		}
		if err != ErrUniqueViolation {
			return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
		}

		existing, found, lookupErr := p.store.GetByReleaseID(org, app, releaseID)
		if lookupErr != nil {
			return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, lookupErr)
		}
		if found && existing.Status == domain.BuildReady {
			return parseBuildVersion(existing), true, nil
		}

		latest, hasLatest, err = p.store.LatestVersion(org, app)
		if err != nil {
			return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
		}
		if hasLatest {
			candidate = latest.IncrementPatch()
		} else {
			candidate = semver.Default
		}

		p.sleep(retryPause)
	}
}

// MarkReady transitions a Building build row to Ready once artifact
// assembly (ZIP/AAR/POM) has finished.
func (p *Pipeline) MarkReady(org, app, releaseID string) error {
	if err := p.store.MarkReady(org, app, releaseID); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return nil
}

func parseBuildVersion(b domain.Build) semver.Version {
	return semver.Version{Major: b.Major, Minor: b.Minor, Patch: b.Patch}
}
