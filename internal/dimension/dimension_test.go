package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

type fakeConfigService struct {
	dims map[string]domain.Dimension
}

func newFakeConfigService() *fakeConfigService {
	return &fakeConfigService{dims: make(map[string]domain.Dimension)}
}

func (f *fakeConfigService) ListDimensions(org, app string, page, count int) ([]domain.Dimension, error) {
	out := make([]domain.Dimension, 0, len(f.dims))
	for _, d := range f.dims {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeConfigService) GetDimension(org, app, name string) (domain.Dimension, error) {
	d, ok := f.dims[name]
	if !ok {
		return domain.Dimension{}, assert.AnError
	}
	return d, nil
}

func (f *fakeConfigService) CreateDimension(org, app string, d domain.Dimension) error {
	f.dims[d.Name] = d
	return nil
}

func (f *fakeConfigService) UpdateDimension(org, app, name string, position *int, changeReason string) error {
	d := f.dims[name]
	if position != nil {
		d.Position = *position
	}
	f.dims[name] = d
	return nil
}

func (f *fakeConfigService) DeleteDimension(org, app, name string) error {
	delete(f.dims, name)
	return nil
}

func (f *fakeConfigService) WeightRecompute(org, app string) error { return nil }

type fakeReleaseLookup struct {
	referenced map[string]bool
}

func (f *fakeReleaseLookup) DimensionReferenced(org, app, name string) (bool, error) {
	return f.referenced[name], nil
}

func newRegistry() (*Registry, *fakeConfigService) {
	cs := newFakeConfigService()
	rl := &fakeReleaseLookup{referenced: map[string]bool{}}
	return New(cs, rl, nil), cs
}

// TestCreate_CohortPositionMatchesDependsOn is seed scenario 1: create
// Standard dimension "env" (position 1), then Cohort dimension "cohort_env"
// depending on "env" — its position must equal env's position.
func TestCreate_CohortPositionMatchesDependsOn(t *testing.T) {
	reg, _ := newRegistry()

	env, err := reg.Create("acme", "app1", "env", nil, "deployment environment", domain.DimensionStandard, "")
	require.NoError(t, err)
	assert.Equal(t, 1, env.Position)

	cohortEnv, err := reg.Create("acme", "app1", "cohort_env", nil, "cohort over env", domain.DimensionCohort, "env")
	require.NoError(t, err)
	assert.Equal(t, env.Position, cohortEnv.Position)
}

func TestCreate_StandardPositionIsMaxPlusOne(t *testing.T) {
	reg, _ := newRegistry()

	d1, err := reg.Create("acme", "app1", "d1", nil, "", domain.DimensionStandard, "")
	require.NoError(t, err)
	assert.Equal(t, 1, d1.Position)

	d2, err := reg.Create("acme", "app1", "d2", nil, "", domain.DimensionStandard, "")
	require.NoError(t, err)
	assert.Equal(t, 2, d2.Position)
}

func TestCreate_CohortRejectsMissingDependsOn(t *testing.T) {
	reg, _ := newRegistry()
	_, err := reg.Create("acme", "app1", "cohort_env", nil, "", domain.DimensionCohort, "does-not-exist")
	assert.Error(t, err)
}

func TestDelete_RejectsWhenReferencedByRelease(t *testing.T) {
	reg, _ := newRegistry()
	_, err := reg.Create("acme", "app1", "env", nil, "", domain.DimensionStandard, "")
	require.NoError(t, err)

	reg.releases.(*fakeReleaseLookup).referenced["env"] = true

	err = reg.Delete("acme", "app1", "env")
	assert.Error(t, err)
}

func TestDelete_SucceedsWhenUnreferenced(t *testing.T) {
	reg, cs := newRegistry()
	_, err := reg.Create("acme", "app1", "env", nil, "", domain.DimensionStandard, "")
	require.NoError(t, err)

	require.NoError(t, reg.Delete("acme", "app1", "env"))
	_, ok := cs.dims["env"]
	assert.False(t, ok)
}
