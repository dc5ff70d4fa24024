package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReleaseStatus_BlocksPropertyDeletion(t *testing.T) {
	assert.True(t, ReleaseCreated.BlocksPropertyDeletion())
	assert.True(t, ReleaseInProgress.BlocksPropertyDeletion())
	assert.False(t, ReleaseConcluded.BlocksPropertyDeletion())
	assert.False(t, ReleaseDiscarded.BlocksPropertyDeletion())
}

func TestDisjoint(t *testing.T) {
	a := []FileRef{{FilePath: "a", Version: 1}, {FilePath: "b", Version: 1}}
	b := []FileRef{{FilePath: "c", Version: 1}}
	assert.True(t, Disjoint(a, b))

	c := []FileRef{{FilePath: "a", Version: 1}}
	assert.False(t, Disjoint(a, c))
}

func TestDimension_IsCohort(t *testing.T) {
	assert.True(t, Dimension{Type: DimensionCohort}.IsCohort())
	assert.False(t, Dimension{Type: DimensionStandard}.IsCohort())
}

func TestPackage_ContainsFile(t *testing.T) {
	p := Package{Files: []FileRef{{FilePath: "a.js", Version: 1}}}
	assert.True(t, p.ContainsFile(FileRef{FilePath: "a.js", Version: 1}))
	assert.False(t, p.ContainsFile(FileRef{FilePath: "a.js", Version: 2}))
}

func TestProperty_FullKey(t *testing.T) {
	p := Property{Key: "timeout"}
	assert.Equal(t, "config.properties.timeout", p.FullKey())
}

func TestBuild_IsStale(t *testing.T) {
	now := time.Now()
	fresh := Build{Status: BuildBuilding, CreatedAt: now.Add(-1 * time.Minute)}
	assert.False(t, fresh.IsStale(now))

	stale := Build{Status: BuildBuilding, CreatedAt: now.Add(-10 * time.Minute)}
	assert.True(t, stale.IsStale(now))

	ready := Build{Status: BuildReady, CreatedAt: now.Add(-10 * time.Minute)}
	assert.False(t, ready.IsStale(now), "a Ready build is never stale regardless of age")
}
