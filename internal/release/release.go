// Package release implements the Release Orchestrator (C5): creating,
// updating, ramping, and concluding experiment-backed releases, per §4.5.
//
// Grounded on release.rs's create_release: the PATCH-style override
// computation (control variant carries the baseline, experimental variant
// carries the new package+config), and the "first release for this
// (org,app)" special case that ramps straight to 50% and immediately
// concludes in favor of the experimental variant so it goes live without
// waiting on a human-driven ramp.
package release

import (
	"errors"
	"fmt"
	"time"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// Experiments is the slice of the config service the orchestrator depends
// on (§6 create_context, experiment create/ramp/conclude, get_resolved_config).
type Experiments interface {
	CreateContext(org, app string, override map[string]any) (string, error)
	CreateExperiment(org, app string, contextID string, controlOverrides, experimentalOverrides map[string]any) (string, error)
	RampExperiment(org, app, experimentID string, trafficPercentage int) error
	ConcludeExperiment(org, app, experimentID, winnerVariantID string) error
	GetResolvedConfig(org, app string, context map[string]any) (map[string]any, error)
}

// Store persists Release rows and answers "is this the first release for
// (org,app)".
type Store interface {
	IsFirstRelease(org, app string) (bool, error)
	Save(r domain.Release) error
	Get(org, app, releaseID string) (domain.Release, error)
	List(org, app string, page, count int) ([]domain.Release, error)
	Update(r domain.Release) error
}

// CDNInvalidator purges the serve cache when a release mutates (§4.8).
type CDNInvalidator interface {
	Invalidate(org, app string)
}

// Orchestrator implements the Release Orchestrator operations.
type Orchestrator struct {
	experiments Experiments
	store       Store
	cdn         CDNInvalidator
	now         func() time.Time
}

// New builds an Orchestrator. now defaults to time.Now when nil.
func New(experiments Experiments, store Store, cdn CDNInvalidator, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{experiments: experiments, store: store, cdn: cdn, now: now}
}

// CreateInput is the payload for §4.5 create_release.
type CreateInput struct {
	Org, App             string
	Dimensions           map[string]string
	PackageVersion       int
	ConfigVersion        string
	BootTimeout          int
	ReleaseConfigTimeout int
	PackageProperties    map[string]any
	ConfigProperties     map[string]any
	Index                *domain.FileRef
	Important            []domain.FileRef
	Lazy                 []domain.FileRef
	Resources            []domain.FileRef
}

// Create implements §4.5 create_release: computes the PATCH-style
// overrides, creates the backing experiment, and — for the first release
// of an (org,app) — ramps to 50% and immediately concludes in favor of the
// experimental variant so the release is live without a manual ramp step.
func (o *Orchestrator) Create(in CreateInput) (domain.Release, error) {
	if !domain.Disjoint(in.Important, in.Lazy) {
		return domain.Release{}, fmt.Errorf("%w: important and lazy file sets must be disjoint", domainerrors.ErrBadRequest)
	}

	isFirst, err := o.store.IsFirstRelease(in.Org, in.App)
	if err != nil {
		return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	// Step 1: resolve the current configuration for dimensions. A
	// not-found base_config is treated as empty. Whether this is the first
	// release is decided by store.IsFirstRelease above, not by base_config.
	baseConfig, err := o.experiments.GetResolvedConfig(in.Org, in.App, dimensionsToOverride(in.Dimensions))
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	contextID, err := o.experiments.CreateContext(in.Org, in.App, dimensionsToOverride(in.Dimensions))
	if err != nil {
		return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	// Step 8 control: {package.version: pkg_version} merged over base_config.
	controlOverrides := make(map[string]any, len(baseConfig)+1)
	for k, v := range baseConfig {
		controlOverrides[k] = v
	}
	controlOverrides["package.version"] = in.PackageVersion

	// Step 8 experimental: the full package+config override set. Property
	// maps are flattened to dotted leaf keys per the "flat override keys"
	// convention — the config service diffs/overrides each leaf
	// independently and never sees a nested object.
	experimentalOverrides := map[string]any{
		"package.name":                   in.App,
		"package.version":                in.PackageVersion,
		"package.index":                  in.Index,
		"package.important":              in.Important,
		"package.lazy":                   in.Lazy,
		"resources":                      in.Resources,
		"config.version":                 in.ConfigVersion,
		"config.boot_timeout":            in.BootTimeout,
		"config.release_config_timeout":  in.ReleaseConfigTimeout,
	}
	flattenInto(experimentalOverrides, "package.properties", in.PackageProperties)
	flattenInto(experimentalOverrides, "config.properties", in.ConfigProperties)

	experimentID, err := o.experiments.CreateExperiment(in.Org, in.App, contextID, controlOverrides, experimentalOverrides)
	if err != nil {
		return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	status := domain.ReleaseCreated
	trafficPercentage := 0
	if isFirst {
		if err := o.experiments.RampExperiment(in.Org, in.App, experimentID, 50); err != nil {
			return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
		}
		if err := o.experiments.ConcludeExperiment(in.Org, in.App, experimentID, experimentVariantID(experimentID)); err != nil {
			return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
		}
		status = domain.ReleaseConcluded
		trafficPercentage = 100
	}

	r := domain.Release{
		Org:                  in.Org,
		App:                  in.App,
		ExperimentID:         experimentID,
		Dimensions:           in.Dimensions,
		PackageVersion:       in.PackageVersion,
		ConfigVersion:        in.ConfigVersion,
		BootTimeout:          in.BootTimeout,
		ReleaseConfigTimeout: in.ReleaseConfigTimeout,
		PackageProperties:    in.PackageProperties,
		ConfigProperties:     in.ConfigProperties,
		Important:            in.Important,
		Lazy:                 in.Lazy,
		Resources:            in.Resources,
		Status:               status,
		TrafficPercentage:    trafficPercentage,
		CreatedAt:            o.now(),
	}

	if err := o.store.Save(r); err != nil {
		return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	o.invalidate(in.Org, in.App)
	return r, nil
}

// Ramp implements §4.5 ramp: only a Created/InProgress release may ramp.
func (o *Orchestrator) Ramp(org, app, releaseID string, trafficPercentage int) error {
	r, err := o.store.Get(org, app, releaseID)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrNotFound, err)
	}
	if r.Status == domain.ReleaseConcluded || r.Status == domain.ReleaseDiscarded {
		return fmt.Errorf("%w: release %q is already %s", domainerrors.ErrConflict, releaseID, r.Status)
	}

	if err := o.experiments.RampExperiment(org, app, r.ExperimentID, trafficPercentage); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	r.Status = domain.ReleaseInProgress
	r.TrafficPercentage = trafficPercentage
	if err := o.store.Update(r); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	o.invalidate(org, app)
	return nil
}

// Conclude implements §4.5 conclude: picks the experimental variant as
// winner, unless discard is requested, in which case the control variant
// wins and the release is marked Discarded rather than Concluded.
func (o *Orchestrator) Conclude(org, app, releaseID string, discard bool) error {
	r, err := o.store.Get(org, app, releaseID)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrNotFound, err)
	}
	if r.Status == domain.ReleaseConcluded || r.Status == domain.ReleaseDiscarded {
		return fmt.Errorf("%w: release %q is already %s", domainerrors.ErrConflict, releaseID, r.Status)
	}

	winner := experimentVariantID(r.ExperimentID)
	newStatus := domain.ReleaseConcluded
	if discard {
		winner = "control"
		newStatus = domain.ReleaseDiscarded
	}

	if err := o.experiments.ConcludeExperiment(org, app, r.ExperimentID, winner); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	r.Status = newStatus
	if err := o.store.Update(r); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	o.invalidate(org, app)
	return nil
}

// Get implements §4.5 get_release.
func (o *Orchestrator) Get(org, app, releaseID string) (domain.Release, error) {
	return o.store.Get(org, app, releaseID)
}

// List implements §4.5 list_releases.
func (o *Orchestrator) List(org, app string, page, count int) ([]domain.Release, error) {
	return o.store.List(org, app, page, count)
}

func (o *Orchestrator) invalidate(org, app string) {
	if o.cdn != nil {
		o.cdn.Invalidate(org, app)
	}
}

// flattenInto writes each entry of props into dst under "<prefix>.<name>",
// the dotted-leaf convention the config service expects (§9 "flat override
// keys") — a nested object is never sent as a single override value.
func flattenInto(dst map[string]any, prefix string, props map[string]any) {
	for name, value := range props {
		dst[prefix+"."+name] = value
	}
}

func dimensionsToOverride(dims map[string]string) map[string]any {
	out := make(map[string]any, len(dims))
	for k, v := range dims {
		out[k] = v
	}
	return out
}

func experimentVariantID(experimentID string) string {
	return fmt.Sprintf("%s-experimental_1", experimentID)
}
