package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// PackageRepository implements packagestore.GroupStore: package groups and
// the immutable, monotonically-versioned packages within them. The group
// identifier packagestore's exported API passes around is the group's
// numeric primary key formatted as a string, since it travels through
// route variables.
type PackageRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPackageRepository builds a PackageRepository.
func NewPackageRepository(pool *pgxpool.Pool, logger *slog.Logger) *PackageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackageRepository{pool: pool, logger: logger}
}

func (r *PackageRepository) CreateGroup(org, app, name string, isPrimary bool) (domain.PackageGroup, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	g := domain.PackageGroup{Org: org, App: app, Name: name, IsPrimary: isPrimary}
	const q = `
		INSERT INTO package_groups (org, app, name, is_primary)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, q, org, app, name, isPrimary).Scan(&g.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.PackageGroup{}, fmt.Errorf("%w: package group %q already exists", domainerrors.ErrConflict, name)
		}
		return domain.PackageGroup{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return g, nil
}

func (r *PackageRepository) GetGroup(org, app, groupID string) (domain.PackageGroup, error) {
	id, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return domain.PackageGroup{}, fmt.Errorf("%w: invalid group id %q", domainerrors.ErrBadRequest, groupID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `SELECT id, org, app, name, is_primary FROM package_groups WHERE org = $1 AND app = $2 AND id = $3`
	var g domain.PackageGroup
	err = r.pool.QueryRow(ctx, q, org, app, id).Scan(&g.ID, &g.Org, &g.App, &g.Name, &g.IsPrimary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PackageGroup{}, fmt.Errorf("%w: package group %q not found", domainerrors.ErrNotFound, groupID)
		}
		return domain.PackageGroup{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return g, nil
}

func (r *PackageRepository) GetPrimaryGroup(org, app string) (domain.PackageGroup, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `SELECT id, org, app, name, is_primary FROM package_groups WHERE org = $1 AND app = $2 AND is_primary`
	var g domain.PackageGroup
	err := r.pool.QueryRow(ctx, q, org, app).Scan(&g.ID, &g.Org, &g.App, &g.Name, &g.IsPrimary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PackageGroup{}, fmt.Errorf("%w: no primary package group for %s/%s", domainerrors.ErrNotFound, org, app)
		}
		return domain.PackageGroup{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return g, nil
}

func (r *PackageRepository) RenameGroup(org, app, groupID, newName string) (domain.PackageGroup, error) {
	g, err := r.GetGroup(org, app, groupID)
	if err != nil {
		return domain.PackageGroup{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `UPDATE package_groups SET name = $1 WHERE id = $2`
	if _, err := r.pool.Exec(ctx, q, newName, g.ID); err != nil {
		return domain.PackageGroup{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	g.Name = newName
	return g, nil
}

func (r *PackageRepository) ListGroups(org, app string, page, count int) ([]domain.PackageGroup, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT id, org, app, name, is_primary FROM package_groups
		WHERE org = $1 AND app = $2 ORDER BY id OFFSET $3 LIMIT $4
	`
	rows, err := r.pool.Query(ctx, q, org, app, offset(page, count), count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	defer rows.Close()

	var out []domain.PackageGroup
	for rows.Next() {
		var g domain.PackageGroup
		if err := rows.Scan(&g.ID, &g.Org, &g.App, &g.Name, &g.IsPrimary); err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PackageRepository) LatestVersion(org, app, groupID string) (int, bool, error) {
	id, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid group id %q", domainerrors.ErrBadRequest, groupID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `SELECT MAX(version) FROM packages_v2 WHERE org = $1 AND app = $2 AND group_id = $3`
	var max *int
	if err := r.pool.QueryRow(ctx, q, org, app, id).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *PackageRepository) SavePackage(org, app string, p domain.Package) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	files, err := json.Marshal(p.Files)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	var index []byte
	if p.Index != nil {
		index, err = json.Marshal(p.Index)
		if err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}

	const q = `
		INSERT INTO packages_v2 (org, app, group_id, version, tag, index_file, files, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`
	err = r.pool.QueryRow(ctx, q, org, app, p.GroupID, p.Version, p.Tag, nullableJSON(index), files).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: package version %d already exists in group", domainerrors.ErrConflict, p.Version)
		}
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return nil
}

func (r *PackageRepository) GetPackageByVersion(org, app, groupID string, version int) (domain.Package, error) {
	id, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return domain.Package{}, fmt.Errorf("%w: invalid group id %q", domainerrors.ErrBadRequest, groupID)
	}
	const q = `
		SELECT id, group_id, version, tag, index_file, files FROM packages_v2
		WHERE org = $1 AND app = $2 AND group_id = $3 AND version = $4
	`
	return r.scanOnePackage(q, org, app, id, version)
}

func (r *PackageRepository) GetPackageByTag(org, app, groupID, tag string) (domain.Package, error) {
	id, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return domain.Package{}, fmt.Errorf("%w: invalid group id %q", domainerrors.ErrBadRequest, groupID)
	}
	const q = `
		SELECT id, group_id, version, tag, index_file, files FROM packages_v2
		WHERE org = $1 AND app = $2 AND group_id = $3 AND tag = $4
		ORDER BY version DESC LIMIT 1
	`
	return r.scanOnePackage(q, org, app, id, tag)
}

func (r *PackageRepository) scanOnePackage(q string, args ...any) (domain.Package, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var p domain.Package
	var index, files []byte
	err := r.pool.QueryRow(ctx, q, args...).Scan(&p.ID, &p.GroupID, &p.Version, &p.Tag, &index, &files)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Package{}, fmt.Errorf("%w: package not found", domainerrors.ErrNotFound)
		}
		return domain.Package{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if len(index) > 0 {
		p.Index = &domain.FileRef{}
		if err := json.Unmarshal(index, p.Index); err != nil {
			return domain.Package{}, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &p.Files); err != nil {
			return domain.Package{}, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}
	return p, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
