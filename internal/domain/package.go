package domain

// PackageGroup scopes a set of versioned Packages; exactly one group per
// (org, app) may be primary, and only the primary group's packages require
// an index file (§3).
type PackageGroup struct {
	ID        int64
	Org       string
	App       string
	Name      string
	IsPrimary bool
}

// Package is an immutable, monotonically versioned bundle of files within
// a PackageGroup. The primary group's packages additionally carry an index
// file (the JS entrypoint).
type Package struct {
	ID      int64
	GroupID int64
	Version int
	Tag     *string
	Index   *FileRef
	Files   []FileRef
}

// ContainsFile reports whether ref is present in the package's file list.
func (p Package) ContainsFile(ref FileRef) bool {
	for _, f := range p.Files {
		if f == ref {
			return true
		}
	}
	return false
}
