// Package dimension implements the Dimension Registry (C1): the
// position-ordered set of context dimensions, including cohort dimensions,
// per §4.1.
package dimension

import (
	"fmt"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// ConfigService is the narrow slice of the external config service the
// registry depends on (§6: create/update/delete/list/get_dimension,
// weight_recompute).
type ConfigService interface {
	ListDimensions(org, app string, page, count int) ([]domain.Dimension, error)
	GetDimension(org, app, name string) (domain.Dimension, error)
	CreateDimension(org, app string, d domain.Dimension) error
	UpdateDimension(org, app, name string, position *int, changeReason string) error
	DeleteDimension(org, app, name string) error
	WeightRecompute(org, app string) error
}

// ReleaseLookup reports whether a dimension name is referenced by any
// existing release, gating delete (§4.1).
type ReleaseLookup interface {
	DimensionReferenced(org, app, name string) (bool, error)
}

// Registry implements the Dimension Registry operations.
type Registry struct {
	configSvc ConfigService
	releases  ReleaseLookup
	cdn       CDNInvalidator
}

// CDNInvalidator purges cached serve responses on mutation (§4.8).
type CDNInvalidator interface {
	Invalidate(org, app string)
}

// New builds a Registry.
func New(configSvc ConfigService, releases ReleaseLookup, cdn CDNInvalidator) *Registry {
	return &Registry{configSvc: configSvc, releases: releases, cdn: cdn}
}

// Create implements §4.1 create(name, schema, description, dimension_type,
// depends_on?). Position assignment: Standard gets one greater than the
// current maximum; Cohort gets the position of its depends_on dimension.
func (r *Registry) Create(org, app, name string, schema map[string]any, description string, dimType domain.DimensionType, dependsOn string) (domain.Dimension, error) {
	existing, err := r.configSvc.ListDimensions(org, app, 1, 1000)
	if err != nil {
		return domain.Dimension{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	var position int
	switch dimType {
	case domain.DimensionStandard:
		position = maxPosition(existing) + 1
	case domain.DimensionCohort:
		dep, ok := findByName(existing, dependsOn)
		if !ok {
			return domain.Dimension{}, fmt.Errorf("%w: depends_on dimension %q not found", domainerrors.ErrBadRequest, dependsOn)
		}
		position = dep.Position
	default:
		return domain.Dimension{}, fmt.Errorf("%w: unknown dimension_type %q", domainerrors.ErrBadRequest, dimType)
	}

	d := domain.Dimension{
		Name:        name,
		Position:    position,
		Schema:      schema,
		Description: description,
		Type:        dimType,
		DependsOn:   dependsOn,
	}

	if err := r.configSvc.CreateDimension(org, app, d); err != nil {
		return domain.Dimension{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	r.recompute(org, app)
	return d, nil
}

// List implements §4.1 list(page, count).
func (r *Registry) List(org, app string, page, count int) ([]domain.Dimension, error) {
	dims, err := r.configSvc.ListDimensions(org, app, page, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return dims, nil
}

// Update implements §4.1 update(name, position?, change_reason). Every
// mutation triggers a workspace weight-recompute.
func (r *Registry) Update(org, app, name string, position *int, changeReason string) error {
	if err := r.configSvc.UpdateDimension(org, app, name, position, changeReason); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	r.recompute(org, app)
	return nil
}

// Delete implements §4.1 delete(name): refused if referenced by an
// existing release.
func (r *Registry) Delete(org, app, name string) error {
	referenced, err := r.releases.DimensionReferenced(org, app, name)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if referenced {
		return fmt.Errorf("%w: dimension %q is referenced by an existing release", domainerrors.ErrBadRequest, name)
	}

	if err := r.configSvc.DeleteDimension(org, app, name); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	r.recompute(org, app)
	return nil
}

func (r *Registry) recompute(org, app string) {
	_ = r.configSvc.WeightRecompute(org, app)
	if r.cdn != nil {
		r.cdn.Invalidate(org, app)
	}
}

func maxPosition(dims []domain.Dimension) int {
	max := 0
	for _, d := range dims {
		if d.Position > max {
			max = d.Position
		}
	}
	return max
}

func findByName(dims []domain.Dimension, name string) (domain.Dimension, bool) {
	for _, d := range dims {
		if d.Name == name {
			return d, true
		}
	}
	return domain.Dimension{}, false
}
