// Package domain holds the entity types shared across the release
// orchestration engine: Dimension, CohortSchema, Property, File,
// PackageGroup, Package, Release, Build, and ReleaseView.
package domain

// DimensionType distinguishes a plain context dimension from one whose
// value space is segmented into cohorts.
type DimensionType string

const (
	DimensionStandard DimensionType = "Standard"
	DimensionCohort    DimensionType = "Cohort"
)

// Dimension is a named attribute of a client over which release context is
// segmented (e.g. env, os, app_version).
type Dimension struct {
	Name         string
	Position     int
	Schema       map[string]any
	Description  string
	Type         DimensionType
	DependsOn    string // only set when Type == DimensionCohort
}

// IsCohort reports whether this dimension carries a CohortSchema.
func (d Dimension) IsCohort() bool {
	return d.Type == DimensionCohort
}
