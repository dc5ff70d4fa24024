package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// ReleaseViewRepository implements releaseview.Store over the
// release_views table: named, reusable dimension-key presets scoped to
// (org, app).
type ReleaseViewRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReleaseViewRepository builds a ReleaseViewRepository.
func NewReleaseViewRepository(pool *pgxpool.Pool, logger *slog.Logger) *ReleaseViewRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReleaseViewRepository{pool: pool, logger: logger}
}

func (r *ReleaseViewRepository) Create(v domain.ReleaseView) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	dims, err := json.Marshal(v.Dimensions)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	const q = `
		INSERT INTO release_views (org, app, name, dimensions, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err = r.pool.Exec(ctx, q, v.Org, v.App, v.Name, dims)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: release view %q already exists", domainerrors.ErrConflict, v.Name)
		}
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return nil
}

func (r *ReleaseViewRepository) Get(org, app, name string) (domain.ReleaseView, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `SELECT id, org, app, name, dimensions, created_at FROM release_views WHERE org = $1 AND app = $2 AND name = $3`
	var v domain.ReleaseView
	var dims []byte
	err := r.pool.QueryRow(ctx, q, org, app, name).Scan(&v.ID, &v.Org, &v.App, &v.Name, &dims, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReleaseView{}, fmt.Errorf("%w: release view %q not found", domainerrors.ErrNotFound, name)
		}
		return domain.ReleaseView{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if len(dims) > 0 {
		if err := json.Unmarshal(dims, &v.Dimensions); err != nil {
			return domain.ReleaseView{}, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}
	return v, nil
}

func (r *ReleaseViewRepository) List(org, app string, page, count int) ([]domain.ReleaseView, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT id, org, app, name, dimensions, created_at FROM release_views
		WHERE org = $1 AND app = $2 ORDER BY created_at DESC OFFSET $3 LIMIT $4
	`
	rows, err := r.pool.Query(ctx, q, org, app, offset(page, count), count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	defer rows.Close()

	var out []domain.ReleaseView
	for rows.Next() {
		var v domain.ReleaseView
		var dims []byte
		if err := rows.Scan(&v.ID, &v.Org, &v.App, &v.Name, &dims, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
		if len(dims) > 0 {
			if err := json.Unmarshal(dims, &v.Dimensions); err != nil {
				return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *ReleaseViewRepository) Delete(org, app, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `DELETE FROM release_views WHERE org = $1 AND app = $2 AND name = $3`
	tag, err := r.pool.Exec(ctx, q, org, app, name)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: release view %q not found", domainerrors.ErrNotFound, name)
	}
	return nil
}
