package property

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

type fakeConfigService struct {
	mu         sync.Mutex
	properties map[string]domain.Property
	failCreate map[string]bool
}

func newFakeConfigService() *fakeConfigService {
	return &fakeConfigService{
		properties: make(map[string]domain.Property),
		failCreate: make(map[string]bool),
	}
}

func (f *fakeConfigService) ListProperties(org, app string) ([]domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Property, 0, len(f.properties))
	for _, p := range f.properties {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeConfigService) CreateProperty(org, app string, p domain.Property) error {
	if f.failCreate[p.Key] {
		return errors.New("simulated create failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties[p.Key] = p
	return nil
}

func (f *fakeConfigService) UpdateProperty(org, app string, p domain.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties[p.Key] = p
	return nil
}

func (f *fakeConfigService) DeleteProperty(org, app, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.properties, key)
	return nil
}

func TestComputeDiff_PartitionsCreateUpdateDelete(t *testing.T) {
	current := []domain.Property{{Key: "a"}, {Key: "b"}}
	desired := []domain.Property{{Key: "a", DefaultValue: "new"}, {Key: "c"}}

	diff := ComputeDiff(current, desired)

	require.Len(t, diff.ToCreate, 1)
	assert.Equal(t, "c", diff.ToCreate[0].Key)

	require.Len(t, diff.ToUpdate, 1)
	assert.Equal(t, "a", diff.ToUpdate[0].Key)

	require.Len(t, diff.ToDelete, 1)
	assert.Equal(t, "b", diff.ToDelete[0].Key)
}

func TestApply_SucceedsAppliesAllPhases(t *testing.T) {
	cs := newFakeConfigService()
	cs.properties["b"] = domain.Property{Key: "b"}
	m := New(cs, nil)

	diff := Diff{
		ToCreate: []domain.Property{{Key: "c"}},
		ToDelete: []domain.Property{{Key: "b"}},
	}

	require.NoError(t, m.Apply("acme", "app1", diff))

	_, stillHasB := cs.properties["b"]
	assert.False(t, stillHasB)
	_, hasC := cs.properties["c"]
	assert.True(t, hasC)
}

type fakeReleaseLookup struct {
	referenced map[string]bool
}

func (f *fakeReleaseLookup) PropertyReferenced(org, app, key string) (bool, error) {
	return f.referenced[key], nil
}

func TestApply_BlocksDeleteOfReferencedProperty(t *testing.T) {
	cs := newFakeConfigService()
	cs.properties["b"] = domain.Property{Key: "b"}
	releases := &fakeReleaseLookup{referenced: map[string]bool{"b": true}}
	m := New(cs, releases)

	diff := Diff{ToDelete: []domain.Property{{Key: "b"}}}

	err := m.Apply("acme", "app1", diff)
	assert.Error(t, err)

	_, stillHasB := cs.properties["b"]
	assert.True(t, stillHasB, "a property referenced by a live release must not be deleted")
}

func TestApply_RollsBackCreatesOnFailure(t *testing.T) {
	cs := newFakeConfigService()
	cs.failCreate["bad"] = true
	m := New(cs, nil)

	diff := Diff{
		ToCreate: []domain.Property{{Key: "good"}, {Key: "bad"}},
	}

	err := m.Apply("acme", "app1", diff)
	assert.Error(t, err)

	_, goodStillPresent := cs.properties["good"]
	assert.False(t, goodStillPresent, "successfully-created property must be compensated after a sibling create fails")
}
