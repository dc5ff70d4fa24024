// Package postgres implements the durable repositories backing the
// Package Store, Release Orchestrator, Build Pipeline, and Release View
// Store over the same pgxpool.Pool the migration runner connects with.
// Every repository has the same shape: a pool+logger struct,
// context-scoped queries, and pgconn.PgError code 23505 mapped to a
// domain-level error (domainerrors.ErrConflict, or build.ErrUniqueViolation
// for builds) instead of a driver-specific one.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// queryTimeout bounds every repository call so a wedged connection never
// blocks a request indefinitely.
const queryTimeout = 10 * time.Second

// FileRepository persists uploaded assets (§3 files table) and resolves
// the version/tag lookups packagestore.FileStore needs.
type FileRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewFileRepository builds a FileRepository.
func NewFileRepository(pool *pgxpool.Pool, logger *slog.Logger) *FileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRepository{pool: pool, logger: logger}
}

// Create inserts a new File row. (org, app, file_path, version) is unique;
// (org, app, file_path, tag) is unique when tag is set (§3).
func (r *FileRepository) Create(f domain.File) (domain.File, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return domain.File{}, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}

	const q = `
		INSERT INTO files (org, app, file_path, version, tag, url, checksum, size, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`
	err = r.pool.QueryRow(ctx, q, f.Org, f.App, f.FilePath, f.Version, f.Tag, f.URL, f.Checksum, f.Size, metadata).
		Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.File{}, fmt.Errorf("%w: file %s already exists at that version or tag", domainerrors.ErrConflict, f.FilePath)
		}
		r.logger.Error("insert file failed", "org", f.Org, "app", f.App, "file_path", f.FilePath, "error", err)
		return domain.File{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return f, nil
}

// GetByVersion implements packagestore.FileStore.
func (r *FileRepository) GetByVersion(org, app, filePath string, version int) (domain.File, error) {
	const q = `
		SELECT id, org, app, file_path, version, tag, url, checksum, size, metadata, created_at
		FROM files WHERE org = $1 AND app = $2 AND file_path = $3 AND version = $4
	`
	return r.scanOne(q, org, app, filePath, version)
}

// GetByTag implements packagestore.FileStore.
func (r *FileRepository) GetByTag(org, app, filePath, tag string) (domain.File, error) {
	const q = `
		SELECT id, org, app, file_path, version, tag, url, checksum, size, metadata, created_at
		FROM files WHERE org = $1 AND app = $2 AND file_path = $3 AND tag = $4
	`
	return r.scanOne(q, org, app, filePath, tag)
}

// ResolveMany implements resolver.Files: resolves every (file_path, version)
// pair in one round trip instead of one query per reference, keyed by the
// matching domain.FileRef so callers can look up results in any order.
func (r *FileRepository) ResolveMany(org, app string, refs []domain.FileRef) (map[domain.FileRef]domain.File, error) {
	out := make(map[domain.FileRef]domain.File, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	paths := make([]string, len(refs))
	versions := make([]int32, len(refs))
	for i, ref := range refs {
		paths[i] = ref.FilePath
		versions[i] = int32(ref.Version)
	}

	const q = `
		SELECT id, org, app, file_path, version, tag, url, checksum, size, metadata, created_at
		FROM files
		WHERE org = $1 AND app = $2
		  AND (file_path, version) IN (SELECT * FROM unnest($3::text[], $4::int[]))
	`
	rows, err := r.pool.Query(ctx, q, org, app, paths, versions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
		out[domain.FileRef{FilePath: f.FilePath, Version: f.Version}] = f
	}
	return out, rows.Err()
}

// List paginates every File uploaded under (org, app), newest first.
func (r *FileRepository) List(org, app string, page, count int) ([]domain.File, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT id, org, app, file_path, version, tag, url, checksum, size, metadata, created_at
		FROM files WHERE org = $1 AND app = $2
		ORDER BY created_at DESC
		OFFSET $3 LIMIT $4
	`
	rows, err := r.pool.Query(ctx, q, org, app, offset(page, count), count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	defer rows.Close()

	var out []domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FileRepository) scanOne(q string, args ...any) (domain.File, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, q, args...)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.File{}, fmt.Errorf("%w: file not found", domainerrors.ErrNotFound)
		}
		return domain.File{}, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (domain.File, error) {
	var f domain.File
	var metadata []byte
	if err := row.Scan(&f.ID, &f.Org, &f.App, &f.FilePath, &f.Version, &f.Tag, &f.URL, &f.Checksum, &f.Size, &metadata, &f.CreatedAt); err != nil {
		return domain.File{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			return domain.File{}, err
		}
	}
	return f, nil
}

func offset(page, count int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * count
}
