package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-ota/releasectl/internal/build"
	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
	"github.com/skyline-ota/releasectl/internal/semver"
)

// BuildRepository implements build.Store over the builds table, with the
// (org, app, major, minor, patch) unique index build.Pipeline's claim loop
// relies on for contention detection.
type BuildRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewBuildRepository builds a BuildRepository.
func NewBuildRepository(pool *pgxpool.Pool, logger *slog.Logger) *BuildRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildRepository{pool: pool, logger: logger}
}

func (r *BuildRepository) GetByReleaseID(org, app, releaseID string) (domain.Build, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT id, org, app, release_id, major, minor, patch, status, created_at
		FROM builds WHERE org = $1 AND app = $2 AND release_id = $3
	`
	var b domain.Build
	err := r.pool.QueryRow(ctx, q, org, app, releaseID).
		Scan(&b.ID, &b.Org, &b.App, &b.ReleaseID, &b.Major, &b.Minor, &b.Patch, &b.Status, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Build{}, false, nil
		}
		return domain.Build{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return b, true, nil
}

func (r *BuildRepository) LatestVersion(org, app string) (semver.Version, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT major, minor, patch FROM builds
		WHERE org = $1 AND app = $2
		ORDER BY major DESC, minor DESC, patch DESC LIMIT 1
	`
	var v semver.Version
	err := r.pool.QueryRow(ctx, q, org, app).Scan(&v.Major, &v.Minor, &v.Patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return semver.Version{}, false, nil
		}
		return semver.Version{}, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return v, true, nil
}

func (r *BuildRepository) Insert(b domain.Build) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		INSERT INTO builds (org, app, release_id, major, minor, patch, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, q, b.Org, b.App, b.ReleaseID, b.Major, b.Minor, b.Patch, b.Status, b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return build.ErrUniqueViolation
		}
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return nil
}

func (r *BuildRepository) DeleteStale(org, app, releaseID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `DELETE FROM builds WHERE org = $1 AND app = $2 AND release_id = $3 AND status = 'Building'`
	if _, err := r.pool.Exec(ctx, q, org, app, releaseID); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return nil
}

func (r *BuildRepository) MarkReady(org, app, releaseID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `UPDATE builds SET status = 'Ready' WHERE org = $1 AND app = $2 AND release_id = $3`
	tag, err := r.pool.Exec(ctx, q, org, app, releaseID)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: build for release %q not found", domainerrors.ErrNotFound, releaseID)
	}
	return nil
}
