package packagestore

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

func strPtr(s string) *string { return &s }

type fakeFileStore struct {
	byVersion map[string]domain.File // key: path@version
	byTag     map[string]domain.File // key: path@tag
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{byVersion: map[string]domain.File{}, byTag: map[string]domain.File{}}
}

func (f *fakeFileStore) GetByVersion(org, app, path string, version int) (domain.File, error) {
	k := fmt.Sprintf("%s@%d", path, version)
	file, ok := f.byVersion[k]
	if !ok {
		return domain.File{}, fmt.Errorf("not found")
	}
	return file, nil
}

func (f *fakeFileStore) GetByTag(org, app, path, tag string) (domain.File, error) {
	k := path + "@" + tag
	file, ok := f.byTag[k]
	if !ok {
		return domain.File{}, fmt.Errorf("not found")
	}
	return file, nil
}

type fakeGroupStore struct {
	nextID   int64
	groups   map[string]domain.PackageGroup
	packages map[string][]domain.Package // keyed by the string groupID
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{groups: map[string]domain.PackageGroup{}, packages: map[string][]domain.Package{}}
}

// addGroup seeds a group directly, as a real caller would only ever reach
// one via CreateGroup or GetPrimaryGroup.
func (g *fakeGroupStore) addGroup(groupID string, isPrimary bool) {
	g.nextID++
	g.groups[groupID] = domain.PackageGroup{ID: g.nextID, IsPrimary: isPrimary}
}

func (g *fakeGroupStore) CreateGroup(org, app, name string, isPrimary bool) (domain.PackageGroup, error) {
	g.nextID++
	pg := domain.PackageGroup{ID: g.nextID, Org: org, App: app, Name: name, IsPrimary: isPrimary}
	g.groups[name] = pg
	return pg, nil
}

func (g *fakeGroupStore) GetGroup(org, app, groupID string) (domain.PackageGroup, error) {
	pg, ok := g.groups[groupID]
	if !ok {
		return domain.PackageGroup{}, fmt.Errorf("not found")
	}
	return pg, nil
}

func (g *fakeGroupStore) GetPrimaryGroup(org, app string) (domain.PackageGroup, error) {
	for _, pg := range g.groups {
		if pg.IsPrimary {
			return pg, nil
		}
	}
	return domain.PackageGroup{}, fmt.Errorf("not found")
}

func (g *fakeGroupStore) RenameGroup(org, app, groupID, newName string) (domain.PackageGroup, error) {
	pg := g.groups[groupID]
	pg.Name = newName
	g.groups[groupID] = pg
	return pg, nil
}

func (g *fakeGroupStore) ListGroups(org, app string, page, count int) ([]domain.PackageGroup, error) {
	out := make([]domain.PackageGroup, 0, len(g.groups))
	for _, pg := range g.groups {
		out = append(out, pg)
	}
	return out, nil
}

func (g *fakeGroupStore) LatestVersion(org, app, groupID string) (int, bool, error) {
	pkgs := g.packages[groupID]
	if len(pkgs) == 0 {
		return 0, false, nil
	}
	max := 0
	for _, p := range pkgs {
		if p.Version > max {
			max = p.Version
		}
	}
	return max, true, nil
}

func (g *fakeGroupStore) SavePackage(org, app string, p domain.Package) error {
	key := strconv.FormatInt(p.GroupID, 10)
	for groupID, pg := range g.groups {
		if pg.ID == p.GroupID {
			key = groupID
			break
		}
	}
	g.packages[key] = append(g.packages[key], p)
	return nil
}

func (g *fakeGroupStore) GetPackageByVersion(org, app, groupID string, version int) (domain.Package, error) {
	for _, p := range g.packages[groupID] {
		if p.Version == version {
			return p, nil
		}
	}
	return domain.Package{}, fmt.Errorf("not found")
}

func (g *fakeGroupStore) GetPackageByTag(org, app, groupID, tag string) (domain.Package, error) {
	for _, p := range g.packages[groupID] {
		if p.Tag != nil && *p.Tag == tag {
			return p, nil
		}
	}
	return domain.Package{}, fmt.Errorf("not found")
}

func TestParseFileKey_Version(t *testing.T) {
	path, version, hasVersion, _, hasTag, err := ParseFileKey("bundle/index.js@version:3")
	require.NoError(t, err)
	assert.Equal(t, "bundle/index.js", path)
	assert.True(t, hasVersion)
	assert.Equal(t, 3, version)
	assert.False(t, hasTag)
}

func TestParseFileKey_Tag(t *testing.T) {
	path, _, hasVersion, tag, hasTag, err := ParseFileKey("bundle/index.js@tag:stable")
	require.NoError(t, err)
	assert.Equal(t, "bundle/index.js", path)
	assert.False(t, hasVersion)
	assert.True(t, hasTag)
	assert.Equal(t, "stable", tag)
}

func TestParseFileKey_RejectsMalformed(t *testing.T) {
	_, _, _, _, _, err := ParseFileKey("bundle/index.js")
	assert.Error(t, err)
}

func TestCreatePackage_PrimaryGroupRequiresIndex(t *testing.T) {
	files := newFakeFileStore()
	groups := newFakeGroupStore()
	groups.addGroup("g1", true)
	store := New(files, groups)

	_, err := store.CreatePackage("acme", "app1", "g1", nil, nil, nil)
	assert.Error(t, err)
}

func TestCreatePackage_NonPrimaryRejectsIndex(t *testing.T) {
	files := newFakeFileStore()
	groups := newFakeGroupStore()
	groups.addGroup("g2", false)
	store := New(files, groups)

	idx := "bundle@version:1"
	_, err := store.CreatePackage("acme", "app1", "g2", &idx, nil, nil)
	assert.Error(t, err)
}

func TestCreatePackage_VersionAutoIncrements(t *testing.T) {
	files := newFakeFileStore()
	files.byVersion["bundle@1"] = domain.File{FilePath: "bundle", Version: 1}
	groups := newFakeGroupStore()
	groups.addGroup("g1", true)
	store := New(files, groups)

	idx := "bundle@version:1"
	p1, err := store.CreatePackage("acme", "app1", "g1", &idx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Version)

	p2, err := store.CreatePackage("acme", "app1", "g1", &idx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p2.Version)
}

func TestGetPackage_VersionTakesPriorityOverTag(t *testing.T) {
	files := newFakeFileStore()
	groups := newFakeGroupStore()
	groups.addGroup("g1", false)
	groupPK := groups.groups["g1"].ID
	groups.packages["g1"] = []domain.Package{
		{GroupID: groupPK, Version: 1, Tag: strPtr("latest")},
		{GroupID: groupPK, Version: 2, Tag: strPtr("stable")},
	}
	store := New(files, groups)

	v := 1
	got, err := store.GetPackage("acme", "app1", "g1", &v, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestGetPackage_DefaultsToLatestTag(t *testing.T) {
	files := newFakeFileStore()
	groups := newFakeGroupStore()
	groups.addGroup("g1", false)
	groupPK := groups.groups["g1"].ID
	groups.packages["g1"] = []domain.Package{
		{GroupID: groupPK, Version: 3, Tag: strPtr("latest")},
	}
	store := New(files, groups)

	got, err := store.GetPackage("acme", "app1", "g1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
}
