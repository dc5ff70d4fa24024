// Package semver implements the strict MAJOR.MINOR.PATCH grammar required
// by the build pipeline (§6, §9): all three components are non-negative
// integers, no pre-release or build-metadata suffixes, ordering is
// lexicographic on the triple. It wraps github.com/Masterminds/semver/v3
// for comparison once a triple has been validated against the strict
// grammar, rather than accepting that library's broader SemVer 2.0 surface
// (pre-release tags, build metadata, partial versions) which §9 explicitly
// rejects at the Maven metadata parser layer.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Version is a strict MAJOR.MINOR.PATCH triple.
type Version struct {
	Major, Minor, Patch int
}

// String renders "MAJOR.MINOR.PATCH".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 comparing v to other, lexicographically on
// the triple.
func (v Version) Compare(other Version) int {
	a, _ := mmsemver.NewVersion(v.String())
	b, _ := mmsemver.NewVersion(other.String())
	return a.Compare(b)
}

// Less reports whether v < other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// IncrementPatch returns a new Version with Patch bumped by one.
func (v Version) IncrementPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// Default is the first build version assigned when no prior Build exists
// for an (org, app) pair (§4.7 step 3.2).
var Default = Version{Major: 1, Minor: 0, Patch: 1}

// Parse enforces the strict grammar: exactly three dot-separated,
// non-negative integer components, no leading 'v', no pre-release or
// build-metadata suffix. Rejects "1.0" and "1.0.0-beta" per §9.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("semver: %q is not MAJOR.MINOR.PATCH", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" {
			return Version{}, fmt.Errorf("semver: %q has an empty component", s)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return Version{}, fmt.Errorf("semver: %q has a non-numeric component", s)
			}
		}
		if len(p) > 1 && p[0] == '0' {
			return Version{}, fmt.Errorf("semver: %q has a leading-zero component", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("semver: %q: %w", s, err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Sort sorts versions ascending in place.
func Sort(versions []Version) {
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j].Less(versions[j-1]); j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
}

// Max returns the largest version in a non-empty slice.
func Max(versions []Version) Version {
	max := versions[0]
	for _, v := range versions[1:] {
		if max.Less(v) {
			max = v
		}
	}
	return max
}
