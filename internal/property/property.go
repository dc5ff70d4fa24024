// Package property implements the Property Schema Manager (C3): a
// three-way diff between a submitted property set and the workspace's
// current default_config entries, applied concurrently against the
// config service with ordered compensating rollback on first failure
// (§4.3).
package property

import (
	"fmt"
	"sync"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// ConfigService is the config-service slice the manager depends on (§6
// default_config create/update/delete/list).
type ConfigService interface {
	ListProperties(org, app string) ([]domain.Property, error)
	CreateProperty(org, app string, p domain.Property) error
	UpdateProperty(org, app string, p domain.Property) error
	DeleteProperty(org, app, key string) error
}

// ReleaseLookup reports whether a property key is still referenced by a
// Created or InProgress release, gating delete (§4.5).
type ReleaseLookup interface {
	PropertyReferenced(org, app, key string) (bool, error)
}

// Manager diffs and applies property sets.
type Manager struct {
	configSvc ConfigService
	releases  ReleaseLookup
}

// New builds a Manager. releases may be nil to skip the release-reference
// check entirely (no release orchestrator wired).
func New(configSvc ConfigService, releases ReleaseLookup) *Manager {
	return &Manager{configSvc: configSvc, releases: releases}
}

// Diff is the three-way partition between desired and current property
// sets (§4.3): ToCreate, ToUpdate, ToDelete.
type Diff struct {
	ToCreate []domain.Property
	ToUpdate []domain.Property
	ToDelete []domain.Property
}

// ComputeDiff partitions desired against the workspace's current
// properties, keyed by Property.Key.
func ComputeDiff(current, desired []domain.Property) Diff {
	currentByKey := make(map[string]domain.Property, len(current))
	for _, p := range current {
		currentByKey[p.Key] = p
	}
	desiredByKey := make(map[string]domain.Property, len(desired))
	for _, p := range desired {
		desiredByKey[p.Key] = p
	}

	var diff Diff
	for _, p := range desired {
		if _, exists := currentByKey[p.Key]; exists {
			diff.ToUpdate = append(diff.ToUpdate, p)
		} else {
			diff.ToCreate = append(diff.ToCreate, p)
		}
	}
	for _, p := range current {
		if _, keep := desiredByKey[p.Key]; !keep {
			diff.ToDelete = append(diff.ToDelete, p)
		}
	}
	return diff
}

// applied records one successfully-applied step so Apply can compensate
// it in reverse order if a later step fails.
type applied struct {
	kind string // "create", "update", "delete"
	prop domain.Property
}

// Apply executes the diff's three phases (create, update, delete) in
// order, running the steps of each phase concurrently. If any step fails,
// the current phase still runs to completion, the later phases are
// skipped, and rollback walks the already-applied steps in reverse order.
// Only creates are compensated (by a delete); applied updates and deletes
// are not undone. The first error is returned.
func (m *Manager) Apply(org, app string, diff Diff) error {
	var (
		mu           sync.Mutex
		appliedSteps []applied
		firstErr     error
	)

	recordAndMaybeFail := func(kind string, p domain.Property, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		appliedSteps = append(appliedSteps, applied{kind: kind, prop: p})
	}

	runPhase := func(items []domain.Property, kind string, op func(domain.Property) error) {
		var wg sync.WaitGroup
		for _, p := range items {
			wg.Add(1)
			go func(p domain.Property) {
				defer wg.Done()
				err := op(p)
				recordAndMaybeFail(kind, p, err)
			}(p)
		}
		wg.Wait()
	}

	runPhase(diff.ToCreate, "create", func(p domain.Property) error {
		return m.configSvc.CreateProperty(org, app, p)
	})
	if firstErr == nil {
		runPhase(diff.ToUpdate, "update", func(p domain.Property) error {
			return m.configSvc.UpdateProperty(org, app, p)
		})
	}
	if firstErr == nil {
		runPhase(diff.ToDelete, "delete", func(p domain.Property) error {
			if m.releases != nil {
				referenced, err := m.releases.PropertyReferenced(org, app, p.Key)
				if err != nil {
					return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
				}
				if referenced {
					return fmt.Errorf("%w: property %q is referenced by a created or in-progress release", domainerrors.ErrBadRequest, p.Key)
				}
			}
			return m.configSvc.DeleteProperty(org, app, p.Key)
		})
	}

	if firstErr == nil {
		return nil
	}

	m.rollback(org, app, appliedSteps)
	return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, firstErr)
}

// rollback undoes already-applied steps in reverse order: a create is
// compensated by a delete, an update or delete has no inverse available
// without the prior value and is left to manual reconciliation — matching
// the best-effort compensation the Rust implementation performs.
func (m *Manager) rollback(org, app string, steps []applied) {
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.kind == "create" {
			_ = m.configSvc.DeleteProperty(org, app, s.prop.Key)
		}
	}
}
