package domain

import "time"

// BuildStatus tracks the version-claim lifecycle (§4.7).
type BuildStatus string

const (
	BuildBuilding BuildStatus = "Building"
	BuildReady    BuildStatus = "Ready"
)

// StaleBuildAge is the threshold past which a Building row is considered
// abandoned and reclaimable (§3, §5).
const StaleBuildAge = 5 * time.Minute

// Build is a materialised ZIP/AAR for a given resolved release, identified
// by a strictly monotonic SemVer per (org, app).
type Build struct {
	ID        int64
	Org       string
	App       string
	ReleaseID string
	Major     int
	Minor     int
	Patch     int
	Status    BuildStatus
	CreatedAt time.Time
}

// IsStale reports whether a Building row is older than StaleBuildAge as of
// now.
func (b Build) IsStale(now time.Time) bool {
	return b.Status == BuildBuilding && now.Sub(b.CreatedAt) > StaleBuildAge
}
