package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tropicaldog17/mangaguard/internal/db"
	"github.com/tropicaldog17/mangaguard/internal/moderation"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/repositories"
)

func newSQLiteServices(t *testing.T, c *mockClassifier) (ModerationService, ReportingService) {
	t.Helper()
	database, err := db.Connect(&db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "services_test.db"),
		Quiet:  true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })

	engine, err := moderation.NewEngine(moderation.DefaultThresholds())
	require.NoError(t, err)
	posts := repositories.NewPostRepository(database)
	reports := repositories.NewReportingRepository(database)
	return NewModerationService(posts, c, engine, nil), NewReportingService(posts, reports, nil, time.Minute, nil)
}

func TestReportingService_SimilarPostsFullWidthContent(t *testing.T) {
	ctx := context.Background()
	modSvc, reportSvc := newSQLiteServices(t, &mockClassifier{result: classification(0.1, nil)})

	submit := func(content string) int64 {
		res, err := modSvc.SubmitPost(ctx, &SubmitPostRequest{UserID: "reader", Content: content})
		require.NoError(t, err)
		require.Equal(t, models.StatusApproved, res.Status)
		return res.PostID
	}
	match := submit("ＯＮＥＰＩＥＣＥ最高 です")
	submit("全然関係ない感想")
	target := submit("ＯＮＥＰＩＥＣＥ最高！！")

	res, err := reportSvc.SimilarPosts(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"ＯＮＥＰＩＥＣＥ最高"}, res.KeywordsUsed)
	require.Len(t, res.SimilarPosts, 1)
	assert.Equal(t, match, res.SimilarPosts[0].ID)
	require.NotNil(t, res.SimilarPosts[0].FinalDecision)
	assert.Equal(t, models.ActionAutoApprove, *res.SimilarPosts[0].FinalDecision)
}
