package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
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

func newTestService(t *testing.T) (*Service, *job.Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &job.Job{}, &user.User{}, &Payment{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Platform.SatsPerUSD = 1000

	jobs := job.NewService(job.ServiceParams{DB: db, Node: node, Config: cfg})
	svc := NewService(ServiceParams{DB: db, Node: node, Jobs: jobs})

	return svc, jobs, db
}

func seedJob(t *testing.T, db *gorm.DB, id string, status job.Status) {
	t.Helper()
	jobs := repository.ProvideStore[job.Job](db)
	require.NoError(t, jobs.Create(context.Background(), &job.Job{
		ID:              id,
		Title:           "Errand",
		ClientID:        "client-1",
		RunnerID:        "runner-1",
		PriceCents:      1000,
		AgreedPriceSats: 10000,
		Status:          status,
	}))
}

// settlementProof returns a preimage and its sha256 hash, both hex encoded.
func settlementProof() (string, string) {
	preimage := bytes.Repeat([]byte{0xab}, 32)
	hash := sha256.Sum256(preimage)
	return hex.EncodeToString(preimage), hex.EncodeToString(hash[:])
}

func TestConfirmPayment(t *testing.T) {
	svc, jobs, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusCompleted)
	ctx := context.Background()

	preimage, hash := settlementProof()
	p, err := svc.Confirm(ctx, "job-1", "client-1", ConfirmInput{Preimage: preimage, PaymentHash: hash})
	require.NoError(t, err)
	require.Equal(t, "job-1", p.JobID)
	require.Equal(t, int64(10000), p.AmountSats)
	require.NotNil(t, p.PaidAt)

	j, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, job.StatusPaid, j.Status)
	require.NotNil(t, j.PaidAt)
}

func TestConfirmRejectsBadPreimage(t *testing.T) {
	svc, jobs, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusCompleted)
	ctx := context.Background()

	_, hash := settlementProof()
	wrongPreimage := hex.EncodeToString(bytes.Repeat([]byte{0xcd}, 32))

	_, err := svc.Confirm(ctx, "job-1", "client-1", ConfirmInput{Preimage: wrongPreimage, PaymentHash: hash})
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.FromError(err).Code)

	// the job must not move on a failed verification
	j, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, j.Status)
}

func TestConfirmOnlyByClient(t *testing.T) {
	svc, _, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusCompleted)

	_, err := svc.Confirm(context.Background(), "job-1", "runner-1", ConfirmInput{})
	require.Error(t, err)
	require.Equal(t, errutil.StatusForbidden, errutil.FromError(err).Code)
}

func TestConfirmRequiresCompletedJob(t *testing.T) {
	svc, _, db := newTestService(t)
	seedJob(t, db, "job-open", job.StatusOpen)
	seedJob(t, db, "job-progress", job.StatusInProgress)

	for _, jobID := range []string{"job-open", "job-progress"} {
		_, err := svc.Confirm(context.Background(), jobID, "client-1", ConfirmInput{})
		require.Error(t, err)
		require.Equal(t, errutil.StatusConflict, errutil.FromError(err).Code)
	}
}

func TestConfirmTwiceConflicts(t *testing.T) {
	svc, _, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusCompleted)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, "job-1", "client-1", ConfirmInput{})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "job-1", "client-1", ConfirmInput{})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.FromError(err).Code)
}

func TestGetByJob(t *testing.T) {
	svc, _, db := newTestService(t)
	seedJob(t, db, "job-1", job.StatusCompleted)
	ctx := context.Background()

	_, err := svc.GetByJob(ctx, "job-1")
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.FromError(err).Code)

	_, err = svc.Confirm(ctx, "job-1", "client-1", ConfirmInput{})
	require.NoError(t, err)

	p, err := svc.GetByJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", p.JobID)
}
