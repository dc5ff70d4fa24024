package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// ReleaseRepository implements release.Store and dimension.ReleaseLookup:
// the two concerns share a table since "is this dimension referenced by a
// release" is a query over the same row set create_release writes to.
type ReleaseRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReleaseRepository builds a ReleaseRepository.
func NewReleaseRepository(pool *pgxpool.Pool, logger *slog.Logger) *ReleaseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReleaseRepository{pool: pool, logger: logger}
}

func (r *ReleaseRepository) IsFirstRelease(org, app string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `SELECT COUNT(*) FROM releases WHERE org = $1 AND app = $2`
	var count int
	if err := r.pool.QueryRow(ctx, q, org, app).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return count == 0, nil
}

func (r *ReleaseRepository) Save(rel domain.Release) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}

	dims, err := json.Marshal(rel.Dimensions)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	packageProps, err := json.Marshal(rel.PackageProperties)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	configProps, err := json.Marshal(rel.ConfigProperties)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	important, err := json.Marshal(rel.Important)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	lazy, err := json.Marshal(rel.Lazy)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	resources, err := json.Marshal(rel.Resources)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	const q = `
		INSERT INTO releases (
			id, org, app, experiment_id, dimensions, package_version, config_version,
			boot_timeout, release_config_timeout, package_properties, config_properties,
			important, lazy, resources, status, traffic_percentage, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.pool.Exec(ctx, q,
		rel.ID, rel.Org, rel.App, rel.ExperimentID, dims, rel.PackageVersion, rel.ConfigVersion,
		rel.BootTimeout, rel.ReleaseConfigTimeout, packageProps, configProps,
		important, lazy, resources, rel.Status, rel.TrafficPercentage, rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return nil
}

func (r *ReleaseRepository) Get(org, app, releaseID string) (domain.Release, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT id, org, app, experiment_id, dimensions, package_version, config_version,
			boot_timeout, release_config_timeout, package_properties, config_properties,
			important, lazy, resources, status, traffic_percentage, created_at
		FROM releases WHERE org = $1 AND app = $2 AND id = $3
	`
	rel, err := scanRelease(r.pool.QueryRow(ctx, q, org, app, releaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Release{}, fmt.Errorf("%w: release %q not found", domainerrors.ErrNotFound, releaseID)
		}
		return domain.Release{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return rel, nil
}

func (r *ReleaseRepository) List(org, app string, page, count int) ([]domain.Release, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT id, org, app, experiment_id, dimensions, package_version, config_version,
			boot_timeout, release_config_timeout, package_properties, config_properties,
			important, lazy, resources, status, traffic_percentage, created_at
		FROM releases WHERE org = $1 AND app = $2
		ORDER BY created_at DESC OFFSET $3 LIMIT $4
	`
	rows, err := r.pool.Query(ctx, q, org, app, offset(page, count), count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	defer rows.Close()

	var out []domain.Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *ReleaseRepository) Update(rel domain.Release) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `UPDATE releases SET status = $1, traffic_percentage = $2 WHERE org = $3 AND app = $4 AND id = $5`
	tag, err := r.pool.Exec(ctx, q, rel.Status, rel.TrafficPercentage, rel.Org, rel.App, rel.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: release %q not found", domainerrors.ErrNotFound, rel.ID)
	}
	return nil
}

// DimensionReferenced implements dimension.ReleaseLookup: true when any
// release for (org, app) still carries this dimension key, gating delete
// per §4.1.
func (r *ReleaseRepository) DimensionReferenced(org, app, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `SELECT COUNT(*) FROM releases WHERE org = $1 AND app = $2 AND dimensions ? $3`
	var count int
	if err := r.pool.QueryRow(ctx, q, org, app, name).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return count > 0, nil
}

// PropertyReferenced reports whether any non-terminal release still
// carries key in its package/config properties, gating property deletion
// per §4.5 (ReleaseStatus.BlocksPropertyDeletion).
func (r *ReleaseRepository) PropertyReferenced(org, app, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT COUNT(*) FROM releases
		WHERE org = $1 AND app = $2 AND status IN ('Created', 'InProgress')
		  AND (package_properties ? $3 OR config_properties ? $3)
	`
	var count int
	if err := r.pool.QueryRow(ctx, q, org, app, key).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return count > 0, nil
}

func scanRelease(row rowScanner) (domain.Release, error) {
	var rel domain.Release
	var dims, packageProps, configProps, important, lazy, resources []byte
	err := row.Scan(
		&rel.ID, &rel.Org, &rel.App, &rel.ExperimentID, &dims, &rel.PackageVersion, &rel.ConfigVersion,
		&rel.BootTimeout, &rel.ReleaseConfigTimeout, &packageProps, &configProps,
		&important, &lazy, &resources, &rel.Status, &rel.TrafficPercentage, &rel.CreatedAt,
	)
	if err != nil {
		return domain.Release{}, err
	}
	for _, pair := range []struct {
		raw []byte
		out any
	}{
		{dims, &rel.Dimensions},
		{packageProps, &rel.PackageProperties},
		{configProps, &rel.ConfigProperties},
		{important, &rel.Important},
		{lazy, &rel.Lazy},
		{resources, &rel.Resources},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.out); err != nil {
				return domain.Release{}, err
			}
		}
	}
	return rel, nil
}
