package assembler

import (
	"archive/zip"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/semver"
)

type fakeFileFetcher struct {
	files map[string]domain.File
}

func (f *fakeFileFetcher) GetByVersion(org, app, filePath string, version int) (domain.File, error) {
	file, ok := f.files[filePath]
	if !ok {
		return domain.File{}, assertNotFound{}
	}
	return file, nil
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

func readZipEntries(t *testing.T, content []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = data
	}
	return out
}

func TestBuildZIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello asset"))
	}))
	defer server.Close()

	fetcher := &fakeFileFetcher{files: map[string]domain.File{
		"assets/intro.json": {FilePath: "assets/intro.json", URL: server.URL},
	}}
	a := New(fetcher, nil)

	refs := []domain.FileRef{{FilePath: "assets/intro.json", Version: 1}}
	content, err := a.BuildZIP("acme", "app1", refs, map[string]any{"key": "value"})
	require.NoError(t, err)

	entries := readZipEntries(t, content)
	assert.Equal(t, []byte("hello asset"), entries["AirborneAssets/assets/intro.json"])
	assert.Contains(t, string(entries["AirborneAssets/release_config.json"]), "value")
}

func TestBuildAAR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset bytes"))
	}))
	defer server.Close()

	fetcher := &fakeFileFetcher{files: map[string]domain.File{
		"assets/intro.json": {FilePath: "assets/intro.json", URL: server.URL},
	}}
	a := New(fetcher, nil)

	refs := []domain.FileRef{{FilePath: "assets/intro.json", Version: 1}}
	version := semver.Version{Major: 1, Minor: 2, Patch: 3}
	content, err := a.BuildAAR("acme", "app1", refs, map[string]any{}, version)
	require.NoError(t, err)

	entries := readZipEntries(t, content)
	assert.Contains(t, entries, "assets/acme/app1/app/package/assets/intro.json")
	assert.Contains(t, entries, "AndroidManifest.xml")
	assert.Contains(t, entries, "classes.jar")
	assert.Contains(t, string(entries["res/values/strings.xml"]), "1.2.3")
}

func TestBuildZIP_MissingAssetFails(t *testing.T) {
	fetcher := &fakeFileFetcher{files: map[string]domain.File{}}
	a := New(fetcher, nil)

	refs := []domain.FileRef{{FilePath: "assets/missing.json", Version: 1}}
	_, err := a.BuildZIP("acme", "app1", refs, nil)
	assert.Error(t, err)
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "assets/intro.json", sanitizePath("/assets/intro.json"))
	assert.Equal(t, "//etc/passwd", sanitizePath("../../etc/passwd"))
}
