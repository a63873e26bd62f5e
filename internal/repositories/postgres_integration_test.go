//go:build integration

// Run with: go test -tags integration ./internal/repositories/
// Requires Docker.
package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tropicaldog17/mangaguard/internal/db"
	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
)

func setupPostgres(t *testing.T) *db.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("mangaguard_test"),
		postgres.WithUsername("mangaguard"),
		postgres.WithPassword("mangaguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	database, err := db.Connect(&db.Config{
		Driver:   db.DriverPostgres,
		Host:     host,
		Port:     port.Port(),
		User:     "mangaguard",
		Password: "mangaguard",
		Name:     "mangaguard_test",
		SSLMode:  "disable",
		Quiet:    true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })
	return database
}

func TestPostgres_RowLockSerializesTransitions(t *testing.T) {
	database := setupPostgres(t)
	require.True(t, database.IsPostgres())
	repo := NewPostRepository(database)
	ctx := context.Background()

	p := createPost(t, repo, "u1", "犯人は田中先生でした")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.ApplyTransition(ctx, p.ID, classifyTransition(0.7, models.StatusPending, models.ActionAIReview, models.RiskList{models.RiskSpoiler}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	logs, err := repo.ListLogs(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RiskList{models.RiskSpoiler}, got.DetectedRisks)
}

func TestPostgres_SimilarCandidates(t *testing.T) {
	database := setupPostgres(t)
	posts := NewPostRepository(database)
	reports := NewReportingRepository(database)
	ctx := context.Background()

	target := createPost(t, posts, "u1", "最終回 ネタバレ")
	other := createPost(t, posts, "u2", "最終回よかった")
	_, err := posts.ApplyTransition(ctx, other.ID, classifyTransition(0.1, models.StatusApproved, models.ActionAutoApprove, nil))
	require.NoError(t, err)

	found, err := reports.SimilarCandidates(ctx, target.ID, []string{"最終回"}, 3)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, other.ID, found[0].ID)
}
