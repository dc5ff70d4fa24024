package releaseview

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

type fakeDimensionLookup struct {
	known map[string]bool
}

func (f *fakeDimensionLookup) Exists(org, app, name string) (bool, error) {
	return f.known[name], nil
}

type fakeStore struct {
	views map[string]domain.ReleaseView
}

func newFakeStore() *fakeStore { return &fakeStore{views: map[string]domain.ReleaseView{}} }

func (f *fakeStore) Create(v domain.ReleaseView) error {
	f.views[v.Name] = v
	return nil
}

func (f *fakeStore) Get(org, app, name string) (domain.ReleaseView, error) {
	v, ok := f.views[name]
	if !ok {
		return domain.ReleaseView{}, fmt.Errorf("not found")
	}
	return v, nil
}

func (f *fakeStore) List(org, app string, page, count int) ([]domain.ReleaseView, error) {
	out := make([]domain.ReleaseView, 0, len(f.views))
	for _, v := range f.views {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) Delete(org, app, name string) error {
	delete(f.views, name)
	return nil
}

func TestCreate_RejectsUnknownDimensionKey(t *testing.T) {
	dims := &fakeDimensionLookup{known: map[string]bool{"env": true}}
	reg := New(newFakeStore(), dims)

	_, err := reg.Create("acme", "app1", "beta-view", []domain.DimensionKV{{Key: "not-a-dimension", Value: "x"}})
	assert.Error(t, err)
}

func TestCreate_SucceedsWithKnownDimensions(t *testing.T) {
	dims := &fakeDimensionLookup{known: map[string]bool{"env": true}}
	store := newFakeStore()
	reg := New(store, dims)

	v, err := reg.Create("acme", "app1", "beta-view", []domain.DimensionKV{{Key: "env", Value: "staging"}})
	require.NoError(t, err)
	assert.Equal(t, "beta-view", v.Name)

	got, err := reg.Get("acme", "app1", "beta-view")
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
