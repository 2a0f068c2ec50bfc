package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestHandleProcessPayoutTask(t *testing.T) {
	f := newFixture(t, 0)
	f.seedCompletedJob(t, "job-1", 1000, "runner@wallet.example")

	task := asynq.NewTask("payout:process", []byte(`{"job_id":"job-1"}`))
	require.NoError(t, f.svc.HandleProcessPayoutTask(context.Background(), task))

	e := f.earning(t, "job-1")
	require.Equal(t, StatusCompleted, e.Status)
}

func TestHandleProcessPayoutTaskFailureDoesNotRequeue(t *testing.T) {
	f := newFixture(t, 0)
	f.seedCompletedJob(t, "job-1", 1000, "")

	// the failure lives in the ledger, the queue must not retry
	task := asynq.NewTask("payout:process", []byte(`{"job_id":"job-1"}`))
	require.NoError(t, f.svc.HandleProcessPayoutTask(context.Background(), task))

	e := f.earning(t, "job-1")
	require.Equal(t, StatusFailed, e.Status)
}

func TestHandleProcessPayoutTaskBadPayload(t *testing.T) {
	f := newFixture(t, 0)

	for _, payload := range [][]byte{[]byte("not json"), []byte(`{}`)} {
		err := f.svc.HandleProcessPayoutTask(context.Background(), asynq.NewTask("payout:process", payload))
		require.Error(t, err)
		require.True(t, errors.Is(err, asynq.SkipRetry))
	}
}
