package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
)

type fakeExperiments struct {
	calls       int
	lastContext map[string]any
	variants    []string
	config      map[string]any
}

func (f *fakeExperiments) ApplicableVariants(org, app string, context map[string]any, toss int) ([]string, error) {
	f.calls++
	return f.variants, nil
}

func (f *fakeExperiments) GetResolvedConfig(org, app string, context map[string]any) (map[string]any, error) {
	f.lastContext = context
	out := make(map[string]any, len(f.config))
	for k, v := range f.config {
		out[k] = v
	}
	return out, nil
}

type fakeFiles struct {
	byRef map[domain.FileRef]domain.File
}

func newFakeFiles() *fakeFiles { return &fakeFiles{byRef: map[domain.FileRef]domain.File{}} }

func (f *fakeFiles) ResolveMany(org, app string, refs []domain.FileRef) (map[domain.FileRef]domain.File, error) {
	out := make(map[domain.FileRef]domain.File, len(refs))
	for _, ref := range refs {
		if file, ok := f.byRef[ref]; ok {
			out[ref] = file
		}
	}
	return out, nil
}

type fakeCache struct {
	store map[string]map[string]any
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string]map[string]any{}} }

func (c *fakeCache) Get(key string) (map[string]any, bool) {
	v, ok := c.store[key]
	return v, ok
}

func (c *fakeCache) Set(key string, value map[string]any) { c.store[key] = value }

func TestServe_CachesResolvedPayload(t *testing.T) {
	exp := &fakeExperiments{variants: []string{"control"}, config: map[string]any{"config.version": "v1"}}
	cache := newFakeCache()
	r := New(exp, newFakeFiles(), cache)

	dims := map[string]string{"env": "prod"}

	first, err := r.Serve("acme", "app1", dims, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"control"}, first["applicable_variants"])
	assert.Equal(t, 1, exp.calls)

	second, err := r.Serve("acme", "app1", dims, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, exp.calls, "a cache hit must not re-invoke the experiments backend")
}

func TestServe_PinsVariantIdsPseudoDimension(t *testing.T) {
	exp := &fakeExperiments{variants: []string{"exp-1-experimental_1"}, config: map[string]any{}}
	r := New(exp, newFakeFiles(), nil)

	_, err := r.Serve("acme", "app1", map[string]string{"env": "prod"}, 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"exp-1-experimental_1"}, exp.lastContext["variantIds"])
	assert.Equal(t, "prod", exp.lastContext["env"])
}

func TestServe_MaterializesFileReferencesInOrder(t *testing.T) {
	indexRef := domain.FileRef{FilePath: "bundle/index.js", Version: 1}
	importantRef := domain.FileRef{FilePath: "bundle/a.js", Version: 1}
	missingRef := domain.FileRef{FilePath: "bundle/missing.js", Version: 1}

	files := newFakeFiles()
	files.byRef[indexRef] = domain.File{FilePath: indexRef.FilePath, Version: 1, URL: "https://cdn/index.js", Checksum: "sha-index"}
	files.byRef[importantRef] = domain.File{FilePath: importantRef.FilePath, Version: 1, URL: "https://cdn/a.js", Checksum: "sha-a"}

	exp := &fakeExperiments{
		variants: []string{"control"},
		config: map[string]any{
			"package.version": 3,
			"package.index":   map[string]any{"FilePath": indexRef.FilePath, "Version": float64(indexRef.Version)},
			"package.important": []any{
				map[string]any{"FilePath": importantRef.FilePath, "Version": float64(importantRef.Version)},
				map[string]any{"FilePath": missingRef.FilePath, "Version": float64(missingRef.Version)},
			},
		},
	}
	r := New(exp, files, nil)

	resolved, err := r.Serve("acme", "app1", map[string]string{}, 42)
	require.NoError(t, err)

	pkg := resolved["package"].(map[string]any)
	important := pkg["important"].([]map[string]any)
	require.Len(t, important, 2)
	assert.Equal(t, "https://cdn/a.js", important[0]["url"])
	assert.Equal(t, "sha-a", important[0]["checksum"])
	assert.Equal(t, "", important[1]["url"], "an unresolvable file yields an empty url in place")
	assert.Equal(t, "", important[1]["checksum"])

	index := pkg["index"].(map[string]any)
	assert.Equal(t, "https://cdn/index.js", index["url"])
}

func TestServe_RebuildsNestedPropertiesFromDottedKeys(t *testing.T) {
	exp := &fakeExperiments{
		variants: []string{"control"},
		config: map[string]any{
			"config.properties.timeout": float64(10),
			"config.properties.retries": float64(3),
			"package.properties.theme":  "dark",
		},
	}
	r := New(exp, newFakeFiles(), nil)

	resolved, err := r.Serve("acme", "app1", map[string]string{}, 42)
	require.NoError(t, err)

	cfg := resolved["config"].(map[string]any)
	props := cfg["properties"].(map[string]any)
	assert.Equal(t, float64(10), props["timeout"])
	assert.Equal(t, float64(3), props["retries"])

	pkg := resolved["package"].(map[string]any)
	pkgProps := pkg["properties"].(map[string]any)
	assert.Equal(t, "dark", pkgProps["theme"])
}

func TestServe_KeyIsOrderIndependentOverDimensions(t *testing.T) {
	k1 := cacheKey("acme", "app1", map[string]string{"env": "prod", "region": "us"}, 1)
	k2 := cacheKey("acme", "app1", map[string]string{"region": "us", "env": "prod"}, 1)
	assert.Equal(t, k1, k2)
}

func TestServe_DistinctTossYieldsDistinctKey(t *testing.T) {
	k1 := cacheKey("acme", "app1", map[string]string{"env": "prod"}, 1)
	k2 := cacheKey("acme", "app1", map[string]string{"env": "prod"}, 2)
	assert.NotEqual(t, k1, k2)
}
