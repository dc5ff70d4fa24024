// Package releaseview implements the Release View Store (C9): named,
// reusable dimension-key presets scoped to (org, app), per §4.9.
package releaseview

import (
	"fmt"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// DimensionLookup validates that every dimension key named in a view
// actually exists for (org, app), per §4.9's "unknown dimension key"
// rejection.
type DimensionLookup interface {
	Exists(org, app, name string) (bool, error)
}

// Store persists ReleaseViews.
type Store interface {
	Create(v domain.ReleaseView) error
	Get(org, app, name string) (domain.ReleaseView, error)
	List(org, app string, page, count int) ([]domain.ReleaseView, error)
	Delete(org, app, name string) error
}

// Registry implements the Release View Store operations.
type Registry struct {
	store Store
	dims  DimensionLookup
}

// New builds a Registry.
func New(store Store, dims DimensionLookup) *Registry {
	return &Registry{store: store, dims: dims}
}

// Create implements §4.9 create: every dimension key referenced in the
// view must already exist for (org, app).
func (r *Registry) Create(org, app, name string, dims []domain.DimensionKV) (domain.ReleaseView, error) {
	for _, kv := range dims {
		exists, err := r.dims.Exists(org, app, kv.Key)
		if err != nil {
			return domain.ReleaseView{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
		}
		if !exists {
			return domain.ReleaseView{}, fmt.Errorf("%w: dimension %q does not exist", domainerrors.ErrBadRequest, kv.Key)
		}
	}

	v := domain.ReleaseView{Org: org, App: app, Name: name, Dimensions: dims}
	if err := r.store.Create(v); err != nil {
		return domain.ReleaseView{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return v, nil
}

// Get implements §4.9 get.
func (r *Registry) Get(org, app, name string) (domain.ReleaseView, error) {
	return r.store.Get(org, app, name)
}

// List implements §4.9 list.
func (r *Registry) List(org, app string, page, count int) ([]domain.ReleaseView, error) {
	return r.store.List(org, app, page, count)
}

// Delete implements §4.9 delete.
func (r *Registry) Delete(org, app, name string) error {
	return r.store.Delete(org, app, name)
}
