// Package assembler materialises the two native artifact shapes the Build
// Pipeline (C7) publishes for a resolved release: a raw ZIP of bundle
// assets and an Android AAR (itself a ZIP) carrying the same assets under
// the AAR's expected layout, per §4.7 step "assembles ZIP+AAR+POM".
//
// Grounded on build.rs's artifact-assembly step: file bytes are fetched
// from wherever the File's public URL already points (the upload path is
// an external collaborator, per the scope's object-storage non-goal), and
// the archives are written with the standard library's archive/zip — the
// example pack carries no third-party zip library, and archive/zip is the
// idiomatic Go way to build one.
package assembler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
	"github.com/skyline-ota/releasectl/internal/semver"
)

// FileFetcher resolves a FileRef to its stored File metadata (including
// public URL), as already implemented by packagestore.FileStore.
type FileFetcher interface {
	GetByVersion(org, app, filePath string, version int) (domain.File, error)
}

// Assembler downloads resolved files and packs them into ZIP/AAR archives.
type Assembler struct {
	files  FileFetcher
	client *http.Client
}

// New builds an Assembler. client defaults to a 30-second-timeout client
// when nil.
func New(files FileFetcher, client *http.Client) *Assembler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Assembler{files: files, client: client}
}

func (a *Assembler) resolve(org, app string, refs []domain.FileRef) ([]domain.File, error) {
	out := make([]domain.File, 0, len(refs))
	for _, ref := range refs {
		f, err := a.files.GetByVersion(org, app, ref.FilePath, ref.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: asset %s@%d not found", domainerrors.ErrDependencyFailure, ref.FilePath, ref.Version)
		}
		out = append(out, f)
	}
	return out, nil
}

func (a *Assembler) download(url string) ([]byte, error) {
	resp, err := a.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: fetching %s returned %d", domainerrors.ErrDependencyFailure, url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func sanitizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.ReplaceAll(p, "..", "")
}

// BuildZIP implements the raw ZIP artifact: every resolved asset at
// AirborneAssets/<sanitized file_path>, plus AirborneAssets/release_config.json
// holding the resolved configuration payload.
func (a *Assembler) BuildZIP(org, app string, refs []domain.FileRef, releaseConfig map[string]any) ([]byte, error) {
	files, err := a.resolve(org, app, refs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		content, err := a.download(f.URL)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(zw, "AirborneAssets/"+sanitizePath(f.FilePath), content); err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}

	configJSON, err := json.Marshal(releaseConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	if err := writeEntry(zw, "AirborneAssets/release_config.json", configJSON); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	return buf.Bytes(), nil
}

// BuildAAR implements the Android AAR artifact: assets under
// assets/<org>/<app>/app/package/<file_path>, a release_config.json
// sibling, a manifest declaring package <org>.<app>.assets, an empty (but
// valid) classes.jar, and the strings.xml/R.txt/raw-keep trio that records
// the asset version and prevents the build's resource shrinker from
// stripping it.
func (a *Assembler) BuildAAR(org, app string, refs []domain.FileRef, releaseConfig map[string]any, version semver.Version) ([]byte, error) {
	files, err := a.resolve(org, app, refs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	prefix := fmt.Sprintf("assets/%s/%s/app/package/", org, app)
	for _, f := range files {
		content, err := a.download(f.URL)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(zw, prefix+sanitizePath(f.FilePath), content); err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}

	configJSON, err := json.Marshal(releaseConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	if err := writeEntry(zw, fmt.Sprintf("assets/%s/%s/app/release_config.json", org, app), configJSON); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	manifestPkg := fmt.Sprintf("%s.%s.assets", strings.ReplaceAll(org, "-", "."), strings.ReplaceAll(app, "-", "."))
	manifest := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="%s">
</manifest>`, manifestPkg)
	if err := writeEntry(zw, "AndroidManifest.xml", []byte(manifest)); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	if err := writeEmptyJAR(zw); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	strings_ := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<resources>
    <string name="airborne_asset_version">%s</string>
</resources>`, version.String())
	if err := writeEntry(zw, "res/values/strings.xml", []byte(strings_)); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	rtxt := "int string airborne_asset_version 0x00000000\n"
	if err := writeEntry(zw, "R.txt", []byte(rtxt)); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	keep := `<?xml version="1.0" encoding="utf-8"?>
<resources xmlns:tools="http://schemas.android.com/tools"
    tools:keep="@string/airborne_asset_version" />`
	if err := writeEntry(zw, "res/raw/airborne_keep.xml", []byte(keep)); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

// writeEmptyJAR writes classes.jar as a valid, empty zip archive nested
// inside the outer AAR zip.
func writeEmptyJAR(zw *zip.Writer) error {
	var jarBuf bytes.Buffer
	jw := zip.NewWriter(&jarBuf)
	if err := jw.Close(); err != nil {
		return err
	}
	return writeEntry(zw, "classes.jar", jarBuf.Bytes())
}
