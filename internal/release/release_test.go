package release

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

type fakeExperiments struct {
	ramped         map[string]int
	concluded      map[string]string
	nextExpID      int
	resolvedConfig map[string]any
	lastControl    map[string]any
	lastExperimental map[string]any
}

func newFakeExperiments() *fakeExperiments {
	return &fakeExperiments{ramped: map[string]int{}, concluded: map[string]string{}}
}

func (f *fakeExperiments) CreateContext(org, app string, override map[string]any) (string, error) {
	return "ctx-1", nil
}

func (f *fakeExperiments) CreateExperiment(org, app, contextID string, controlOverrides, experimentalOverrides map[string]any) (string, error) {
	f.nextExpID++
	f.lastControl = controlOverrides
	f.lastExperimental = experimentalOverrides
	return fmt.Sprintf("exp-%d", f.nextExpID), nil
}

func (f *fakeExperiments) RampExperiment(org, app, experimentID string, trafficPercentage int) error {
	f.ramped[experimentID] = trafficPercentage
	return nil
}

func (f *fakeExperiments) ConcludeExperiment(org, app, experimentID, winnerVariantID string) error {
	f.concluded[experimentID] = winnerVariantID
	return nil
}

func (f *fakeExperiments) GetResolvedConfig(org, app string, context map[string]any) (map[string]any, error) {
	return f.resolvedConfig, nil
}

type fakeStore struct {
	isFirst   bool
	releases  map[string]domain.Release
	nextID    int
}

func newFakeStore(isFirst bool) *fakeStore {
	return &fakeStore{isFirst: isFirst, releases: map[string]domain.Release{}}
}

func (f *fakeStore) IsFirstRelease(org, app string) (bool, error) { return f.isFirst, nil }

func (f *fakeStore) Save(r domain.Release) error {
	f.nextID++
	r.ID = fmt.Sprintf("rel-%d", f.nextID)
	f.releases[r.ID] = r
	f.isFirst = false
	return nil
}

func (f *fakeStore) Get(org, app, releaseID string) (domain.Release, error) {
	r, ok := f.releases[releaseID]
	if !ok {
		return domain.Release{}, fmt.Errorf("not found")
	}
	return r, nil
}

func (f *fakeStore) List(org, app string, page, count int) ([]domain.Release, error) {
	out := make([]domain.Release, 0, len(f.releases))
	for _, r := range f.releases {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) Update(r domain.Release) error {
	f.releases[r.ID] = r
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestCreate_FirstReleaseAutoConcludesAt50Percent(t *testing.T) {
	exp := newFakeExperiments()
	store := newFakeStore(true)
	orch := New(exp, store, nil, fixedNow)

	r, err := orch.Create(CreateInput{Org: "acme", App: "app1", PackageVersion: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.ReleaseConcluded, r.Status)
	assert.Equal(t, 100, r.TrafficPercentage)
	assert.Equal(t, 50, exp.ramped[r.ExperimentID])
	assert.NotEmpty(t, exp.concluded[r.ExperimentID])
}

func TestCreate_SubsequentReleaseStaysCreated(t *testing.T) {
	exp := newFakeExperiments()
	store := newFakeStore(false)
	orch := New(exp, store, nil, fixedNow)

	r, err := orch.Create(CreateInput{Org: "acme", App: "app1", PackageVersion: 2})
	require.NoError(t, err)

	assert.Equal(t, domain.ReleaseCreated, r.Status)
	assert.Equal(t, 0, r.TrafficPercentage)
	_, wasRamped := exp.ramped[r.ExperimentID]
	assert.False(t, wasRamped)
}

func TestCreate_RejectsOverlappingImportantAndLazy(t *testing.T) {
	exp := newFakeExperiments()
	store := newFakeStore(false)
	orch := New(exp, store, nil, fixedNow)

	shared := domain.FileRef{FilePath: "bundle/index.js", Version: 1}
	_, err := orch.Create(CreateInput{
		Org: "acme", App: "app1",
		Important: []domain.FileRef{shared},
		Lazy:      []domain.FileRef{shared},
	})
	assert.Error(t, err)
}

func TestCreate_OverridesCarryFullVariantShape(t *testing.T) {
	exp := newFakeExperiments()
	exp.resolvedConfig = map[string]any{
		"package.version": 4,
		"config.version":  "old-uuid",
	}
	store := newFakeStore(false)
	orch := New(exp, store, nil, fixedNow)

	index := domain.FileRef{FilePath: "bundle/index.js", Version: 1}
	_, err := orch.Create(CreateInput{
		Org: "acme", App: "app1",
		PackageVersion:    5,
		ConfigVersion:     "new-uuid",
		BootTimeout:       30,
		PackageProperties: map[string]any{"theme": "dark"},
		ConfigProperties:  map[string]any{"timeout": 10},
		Index:             &index,
		Important:         []domain.FileRef{{FilePath: "bundle/index.js", Version: 1}},
		Resources:         []domain.FileRef{{FilePath: "logo.png", Version: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, exp.lastControl["package.version"])
	assert.Equal(t, "old-uuid", exp.lastControl["config.version"], "control must inherit base_config")

	assert.Equal(t, "app1", exp.lastExperimental["package.name"])
	assert.Equal(t, 5, exp.lastExperimental["package.version"])
	assert.Equal(t, &index, exp.lastExperimental["package.index"])
	assert.Equal(t, "dark", exp.lastExperimental["package.properties.theme"])
	assert.Equal(t, 10, exp.lastExperimental["config.properties.timeout"])
	assert.NotContains(t, exp.lastExperimental, "package.properties")
	assert.NotContains(t, exp.lastExperimental, "config.properties")
	assert.NotNil(t, exp.lastExperimental["resources"])
	assert.NotNil(t, exp.lastExperimental["package.important"])
}

func TestRamp_RejectsConcludedRelease(t *testing.T) {
	exp := newFakeExperiments()
	store := newFakeStore(false)
	store.releases["rel-done"] = domain.Release{ID: "rel-done", Status: domain.ReleaseConcluded}
	orch := New(exp, store, nil, fixedNow)

	err := orch.Ramp("acme", "app1", "rel-done", 75)
	assert.Error(t, err)
}

func TestConclude_DiscardPicksControlVariant(t *testing.T) {
	exp := newFakeExperiments()
	store := newFakeStore(false)
	store.releases["rel-1"] = domain.Release{ID: "rel-1", ExperimentID: "exp-1", Status: domain.ReleaseInProgress}
	orch := New(exp, store, nil, fixedNow)

	require.NoError(t, orch.Conclude("acme", "app1", "rel-1", true))

	assert.Equal(t, "control", exp.concluded["exp-1"])
	assert.Equal(t, domain.ReleaseDiscarded, store.releases["rel-1"].Status)
}
