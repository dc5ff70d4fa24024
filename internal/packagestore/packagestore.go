// Package packagestore implements the Package Store (C4): package groups
// and the packages within them, resolving file references of the form
// "path@version:N" or "path@tag:T" into concrete Files (§4.4).
//
// Grounded on package.rs's create_package / create_packages_v2 / get_package
// handlers: a primary group requires an index file reference and gets new
// packages auto-numbered from its own latest version; a non-primary group
// rejects an index reference entirely.
package packagestore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// FileStore resolves a file path/version/tag key against persisted Files.
type FileStore interface {
	GetByVersion(org, app, filePath string, version int) (domain.File, error)
	GetByTag(org, app, filePath, tag string) (domain.File, error)
}

// GroupStore persists package groups and packages.
type GroupStore interface {
	CreateGroup(org, app, name string, isPrimary bool) (domain.PackageGroup, error)
	GetGroup(org, app, groupID string) (domain.PackageGroup, error)
	GetPrimaryGroup(org, app string) (domain.PackageGroup, error)
	RenameGroup(org, app, groupID, newName string) (domain.PackageGroup, error)
	ListGroups(org, app string, page, count int) ([]domain.PackageGroup, error)

	LatestVersion(org, app, groupID string) (int, bool, error)
	SavePackage(org, app string, p domain.Package) error
	GetPackageByVersion(org, app, groupID string, version int) (domain.Package, error)
	GetPackageByTag(org, app, groupID, tag string) (domain.Package, error)
}

// Store is the Package Store.
type Store struct {
	files  FileStore
	groups GroupStore
}

// New builds a Store.
func New(files FileStore, groups GroupStore) *Store {
	return &Store{files: files, groups: groups}
}

// ParseFileKey splits "path@version:N" or "path@tag:T" into its path and
// either a version number or a tag. Exactly one of version/tag is returned.
func ParseFileKey(key string) (path string, version int, hasVersion bool, tag string, hasTag bool, err error) {
	at := strings.LastIndex(key, "@")
	if at < 0 {
		return "", 0, false, "", false, fmt.Errorf("%w: invalid file key %q, expected path@version:N or path@tag:T", domainerrors.ErrBadRequest, key)
	}
	path = key[:at]
	selector := key[at+1:]

	if v, ok := strings.CutPrefix(selector, "version:"); ok {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return "", 0, false, "", false, fmt.Errorf("%w: invalid version in file key %q", domainerrors.ErrBadRequest, key)
		}
		return path, n, true, "", false, nil
	}
	if t, ok := strings.CutPrefix(selector, "tag:"); ok {
		return path, 0, false, t, true, nil
	}
	return "", 0, false, "", false, fmt.Errorf("%w: invalid file key %q, expected path@version:N or path@tag:T", domainerrors.ErrBadRequest, key)
}

// resolveFileRefs resolves each file key against the file store, failing
// the whole call if any key cannot be resolved (§4.4 "some files not
// found").
func (s *Store) resolveFileRefs(org, app string, keys []string) ([]domain.File, error) {
	files := make([]domain.File, 0, len(keys))
	for _, key := range keys {
		path, version, hasVersion, tag, hasTag, err := ParseFileKey(key)
		if err != nil {
			return nil, err
		}

		var f domain.File
		if hasVersion {
			f, err = s.files.GetByVersion(org, app, path, version)
		} else if hasTag {
			f, err = s.files.GetByTag(org, app, path, tag)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: file %q not found", domainerrors.ErrBadRequest, key)
		}
		files = append(files, f)
	}
	return files, nil
}

// CreateGroup implements §4.4 create_package_group: name must be unique
// within (org, app).
func (s *Store) CreateGroup(org, app, name string) (domain.PackageGroup, error) {
	return s.groups.CreateGroup(org, app, name, false)
}

// CreatePackage implements §4.4 create_package for an explicit group. A
// primary group requires a non-empty index file reference; a non-primary
// group must not be given one. Version is the group's current max plus
// one (1 if none exist yet).
func (s *Store) CreatePackage(org, app, groupID string, index *string, tag *string, fileKeys []string) (domain.Package, error) {
	group, err := s.groups.GetGroup(org, app, groupID)
	if err != nil {
		return domain.Package{}, fmt.Errorf("%w: %v", domainerrors.ErrNotFound, err)
	}

	var indexRef *domain.FileRef
	if group.IsPrimary {
		if index == nil || strings.TrimSpace(*index) == "" {
			return domain.Package{}, fmt.Errorf("%w: index file is required for a primary package group", domainerrors.ErrBadRequest)
		}
		files, err := s.resolveFileRefs(org, app, []string{*index})
		if err != nil {
			return domain.Package{}, err
		}
		indexRef = &domain.FileRef{FilePath: files[0].FilePath, Version: filesVersion(files[0])}
	} else if index != nil {
		return domain.Package{}, fmt.Errorf("%w: index file must not be provided for a non-primary package group", domainerrors.ErrBadRequest)
	}

	resolved, err := s.resolveFileRefs(org, app, fileKeys)
	if err != nil {
		return domain.Package{}, err
	}

	latest, _, err := s.groups.LatestVersion(org, app, groupID)
	if err != nil {
		return domain.Package{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	refs := make([]domain.FileRef, 0, len(resolved))
	for _, f := range resolved {
		refs = append(refs, domain.FileRef{FilePath: f.FilePath, Version: filesVersion(f)})
	}

	pkg := domain.Package{
		GroupID: group.ID,
		Version: latest + 1,
		Tag:     tag,
		Index:   indexRef,
		Files:   refs,
	}

	if err := s.groups.SavePackage(org, app, pkg); err != nil {
		return domain.Package{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return pkg, nil
}

// GetPackage implements §4.4 get_package: version lookup takes priority
// over tag lookup; absent both, the tag defaults to "latest".
func (s *Store) GetPackage(org, app, groupID string, version *int, tag *string) (domain.Package, error) {
	if version != nil {
		return s.groups.GetPackageByVersion(org, app, groupID, *version)
	}
	resolvedTag := "latest"
	if tag != nil {
		resolvedTag = *tag
	}
	return s.groups.GetPackageByTag(org, app, groupID, resolvedTag)
}

func filesVersion(f domain.File) int {
	return f.Version
}
