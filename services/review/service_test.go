package review

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/config"
	"errandbit/pkg/errutil"
	"errandbit/pkg/repository"
	"errandbit/services/job"
	"errandbit/services/testutil"
	"errandbit/services/user"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &job.Job{}, &user.User{}, &Review{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Platform.SatsPerUSD = 1000

	jobs := job.NewService(job.ServiceParams{DB: db, Node: node, Config: cfg})
	svc := NewService(ServiceParams{DB: db, Node: node, Jobs: jobs})

	return svc, db
}

func seedJob(t *testing.T, db *gorm.DB, id string, status job.Status) {
	t.Helper()
	jobs := repository.ProvideStore[job.Job](db)
	require.NoError(t, jobs.Create(context.Background(), &job.Job{
		ID:         id,
		Title:      "Errand",
		ClientID:   "client-1",
		RunnerID:   "runner-1",
		PriceCents: 1000,
		Status:     status,
	}))
}

func TestCreateReview(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)

	r, err := svc.Create(context.Background(), "client-1", CreateReviewInput{
		JobID:   "job-1",
		Rating:  5,
		Comment: "Fast and friendly",
	})
	require.NoError(t, err)
	require.Equal(t, "runner-1", r.RevieweeID)
	require.Equal(t, 5, r.Rating)
}

func TestRunnerCanReviewClient(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)

	r, err := svc.Create(context.Background(), "runner-1", CreateReviewInput{JobID: "job-1", Rating: 4})
	require.NoError(t, err)
	require.Equal(t, "client-1", r.RevieweeID)
}

func TestRatingBounds(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)
	ctx := context.Background()

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-1", Rating: rating})
		require.Error(t, err)
		require.Equal(t, errutil.StatusValidationFailed, errutil.FromError(err).Code)
	}

	_, err := svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-1", Rating: 1})
	require.NoError(t, err)
}

func TestCommentLength(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)

	_, err := svc.Create(context.Background(), "client-1", CreateReviewInput{
		JobID:   "job-1",
		Rating:  3,
		Comment: strings.Repeat("x", maxCommentLength+1),
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.FromError(err).Code)
}

func TestReviewRequiresPaidJob(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-completed", job.StatusCompleted)
	seedJob(t, db, "job-open", job.StatusOpen)
	ctx := context.Background()

	for _, jobID := range []string{"job-completed", "job-open"} {
		_, err := svc.Create(ctx, "client-1", CreateReviewInput{JobID: jobID, Rating: 5})
		require.Error(t, err)
		require.Equal(t, errutil.StatusConflict, errutil.FromError(err).Code)
	}
}

func TestOnlyPartiesCanReview(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)

	_, err := svc.Create(context.Background(), "stranger", CreateReviewInput{JobID: "job-1", Rating: 5})
	require.Error(t, err)
	require.Equal(t, errutil.StatusForbidden, errutil.FromError(err).Code)
}

func TestDuplicateReviewConflicts(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)
	ctx := context.Background()

	_, err := svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-1", Rating: 5})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-1", Rating: 1})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.FromError(err).Code)
}

func TestRatingSummary(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)
	seedJob(t, db, "job-2", job.StatusPaid)
	ctx := context.Background()

	_, err := svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-1", Rating: 5})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-2", Rating: 2})
	require.NoError(t, err)

	summary, err := svc.GetRatingSummary(ctx, "runner-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.ReviewCount)
	require.InDelta(t, 3.5, summary.AverageRating, 0.001)
}

func TestRatingSummaryWithoutReviews(t *testing.T) {
	svc, _ := newTestService(t)

	summary, err := svc.GetRatingSummary(context.Background(), "nobody")
	require.NoError(t, err)
	require.Zero(t, summary.ReviewCount)
	require.Zero(t, summary.AverageRating)
}

func TestListByUser(t *testing.T) {
	svc, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusPaid)
	ctx := context.Background()

	_, err := svc.Create(ctx, "client-1", CreateReviewInput{JobID: "job-1", Rating: 4})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "runner-1", CreateReviewInput{JobID: "job-1", Rating: 5})
	require.NoError(t, err)

	aboutRunner, err := svc.ListByUser(ctx, "runner-1")
	require.NoError(t, err)
	require.Len(t, aboutRunner, 1)
	require.Equal(t, 4, aboutRunner[0].Rating)

	aboutClient, err := svc.ListByUser(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, aboutClient, 1)
	require.Equal(t, 5, aboutClient[0].Rating)
}
