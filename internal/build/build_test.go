package build

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/semver"
)

type fakeStore struct {
	mu     sync.Mutex
	builds map[string]domain.Build // keyed by releaseID
	all    []domain.Build
}

func newFakeStore() *fakeStore {
	return &fakeStore{builds: map[string]domain.Build{}}
}

func (f *fakeStore) GetByReleaseID(org, app, releaseID string) (domain.Build, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builds[releaseID]
	return b, ok, nil
}

func (f *fakeStore) LatestVersion(org, app string) (semver.Version, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.all) == 0 {
		return semver.Version{}, false, nil
	}
	max := semver.Version{Major: f.all[0].Major, Minor: f.all[0].Minor, Patch: f.all[0].Patch}
	for _, b := range f.all[1:] {
		v := semver.Version{Major: b.Major, Minor: b.Minor, Patch: b.Patch}
		if max.Less(v) {
			max = v
		}
	}
	return max, true, nil
}

func (f *fakeStore) Insert(b domain.Build) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.all {
		if existing.Major == b.Major && existing.Minor == b.Minor && existing.Patch == b.Patch {
			return ErrUniqueViolation
		}
	}
	f.builds[b.ReleaseID] = b
	f.all = append(f.all, b)
	return nil
}

func (f *fakeStore) DeleteStale(org, app, releaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.builds, releaseID)
	kept := f.all[:0]
	for _, b := range f.all {
		if b.ReleaseID != releaseID {
			kept = append(kept, b)
		}
	}
	f.all = kept
	return nil
}

func (f *fakeStore) MarkReady(org, app, releaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.builds[releaseID]
	b.Status = domain.BuildReady
	f.builds[releaseID] = b
	for i, existing := range f.all {
		if existing.ReleaseID == releaseID {
			f.all[i].Status = domain.BuildReady
		}
	}
	return nil
}

func TestClaimVersion_FirstBuildIsDefault(t *testing.T) {
	store := newFakeStore()
	p := New(store, nil, func(time.Duration) {})

	v, alreadyReady, err := p.ClaimVersion("acme", "app1", "rel-1", false)
	require.NoError(t, err)
	assert.False(t, alreadyReady)
	assert.Equal(t, semver.Default, v)
}

func TestClaimVersion_IncrementsPatchOnSubsequentRelease(t *testing.T) {
	store := newFakeStore()
	p := New(store, nil, func(time.Duration) {})

	v1, _, err := p.ClaimVersion("acme", "app1", "rel-1", false)
	require.NoError(t, err)
	require.NoError(t, store.MarkReady("acme", "app1", "rel-1"))

	v2, _, err := p.ClaimVersion("acme", "app1", "rel-2", false)
	require.NoError(t, err)

	assert.True(t, v1.Less(v2))
	assert.Equal(t, v1.IncrementPatch(), v2)
}

func TestClaimVersion_ReadyBuildIsIdempotent(t *testing.T) {
	store := newFakeStore()
	p := New(store, nil, func(time.Duration) {})

	v1, alreadyReady1, err := p.ClaimVersion("acme", "app1", "rel-1", false)
	require.NoError(t, err)
	assert.False(t, alreadyReady1)
	require.NoError(t, store.MarkReady("acme", "app1", "rel-1"))

	v2, alreadyReady2, err := p.ClaimVersion("acme", "app1", "rel-1", false)
	require.NoError(t, err)
	assert.True(t, alreadyReady2, "a repeat force=false claim against a Ready build must report alreadyReady")
	assert.Equal(t, v1, v2)
}

func TestClaimVersion_StaleBuildingRowIsReclaimed(t *testing.T) {
	store := newFakeStore()
	fakeNow := time.Now()
	p := New(store, func() time.Time { return fakeNow }, func(time.Duration) {})

	_, _, err := p.ClaimVersion("acme", "app1", "rel-1", false)
	require.NoError(t, err)
	// still BUILDING, not stale yet
	_, found, _ := store.GetByReleaseID("acme", "app1", "rel-1")
	require.True(t, found)

	fakeNow = fakeNow.Add(domain.StaleBuildAge + time.Second)
	v2, _, err := p.ClaimVersion("acme", "app1", "rel-1", false)
	require.NoError(t, err)
	assert.Equal(t, semver.Default, v2)
}
