package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// setupReleasesTestDB starts a disposable PostgreSQL container and creates
// the releases table, matching migrations/00003_create_releases.sql.
func setupReleasesTestDB(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("releasectl_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	schema := `
	CREATE TABLE releases (
		id                     TEXT PRIMARY KEY,
		org                    TEXT NOT NULL,
		app                    TEXT NOT NULL,
		experiment_id          TEXT NOT NULL,
		dimensions             JSONB NOT NULL DEFAULT '{}',
		package_version        INTEGER NOT NULL,
		config_version         TEXT NOT NULL,
		boot_timeout           INTEGER NOT NULL,
		release_config_timeout INTEGER NOT NULL,
		package_properties     JSONB NOT NULL DEFAULT '{}',
		config_properties      JSONB NOT NULL DEFAULT '{}',
		important              JSONB NOT NULL DEFAULT '[]',
		lazy                   JSONB NOT NULL DEFAULT '[]',
		resources              JSONB NOT NULL DEFAULT '[]',
		status                 TEXT NOT NULL,
		traffic_percentage     INTEGER NOT NULL DEFAULT 0,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)

	return pool
}

func TestReleaseRepository_SaveAndGet(t *testing.T) {
	pool := setupReleasesTestDB(t)
	defer pool.Close()

	repo := NewReleaseRepository(pool, nil)

	rel := domain.Release{
		Org:          "acme",
		App:          "app1",
		ExperimentID: "exp-1",
		Dimensions:   map[string]string{"region": "eu"},
		ConfigVersion: "v1",
		Status:        domain.ReleaseCreated,
		PackageProperties: map[string]any{"minApiLevel": 21.0},
		CreatedAt:         time.Now(),
	}
	require.NoError(t, repo.Save(rel))

	got, err := repo.Get(rel.Org, rel.App, rel.ID)
	require.NoError(t, err)
	require.Equal(t, rel.ExperimentID, got.ExperimentID)
	require.Equal(t, "eu", got.Dimensions["region"])
	require.Equal(t, domain.ReleaseCreated, got.Status)
}

func TestReleaseRepository_Get_NotFound(t *testing.T) {
	pool := setupReleasesTestDB(t)
	defer pool.Close()

	repo := NewReleaseRepository(pool, nil)

	_, err := repo.Get("acme", "app1", "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestReleaseRepository_IsFirstRelease(t *testing.T) {
	pool := setupReleasesTestDB(t)
	defer pool.Close()

	repo := NewReleaseRepository(pool, nil)

	first, err := repo.IsFirstRelease("acme", "app1")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, repo.Save(domain.Release{
		Org: "acme", App: "app1", ExperimentID: "exp-1",
		ConfigVersion: "v1", Status: domain.ReleaseCreated, CreatedAt: time.Now(),
	}))

	first, err = repo.IsFirstRelease("acme", "app1")
	require.NoError(t, err)
	require.False(t, first)
}

func TestReleaseRepository_DimensionReferenced(t *testing.T) {
	pool := setupReleasesTestDB(t)
	defer pool.Close()

	repo := NewReleaseRepository(pool, nil)

	require.NoError(t, repo.Save(domain.Release{
		Org: "acme", App: "app1", ExperimentID: "exp-1",
		Dimensions:    map[string]string{"region": "eu"},
		ConfigVersion: "v1", Status: domain.ReleaseCreated, CreatedAt: time.Now(),
	}))

	referenced, err := repo.DimensionReferenced("acme", "app1", "region")
	require.NoError(t, err)
	require.True(t, referenced)

	referenced, err = repo.DimensionReferenced("acme", "app1", "cohort")
	require.NoError(t, err)
	require.False(t, referenced)
}

func TestReleaseRepository_PropertyReferenced_OnlyNonTerminal(t *testing.T) {
	pool := setupReleasesTestDB(t)
	defer pool.Close()

	repo := NewReleaseRepository(pool, nil)

	require.NoError(t, repo.Save(domain.Release{
		Org: "acme", App: "app1", ExperimentID: "exp-1",
		PackageProperties: map[string]any{"featureFlag": true},
		ConfigVersion:     "v1", Status: domain.ReleaseConcluded, CreatedAt: time.Now(),
	}))

	referenced, err := repo.PropertyReferenced("acme", "app1", "featureFlag")
	require.NoError(t, err)
	require.False(t, referenced, "a concluded release must not block property deletion")

	require.NoError(t, repo.Save(domain.Release{
		Org: "acme", App: "app1", ExperimentID: "exp-2",
		ConfigProperties: map[string]any{"timeout": 30.0},
		ConfigVersion:    "v2", Status: domain.ReleaseInProgress, CreatedAt: time.Now(),
	}))

	referenced, err = repo.PropertyReferenced("acme", "app1", "timeout")
	require.NoError(t, err)
	require.True(t, referenced, "an in-progress release referencing the property must block deletion")
}
