package payout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type processPayoutPayload struct {
	JobID string `json:"job_id"`
}

// HandleProcessPayoutTask consumes payout:process tasks. The outcome lives in
// the earnings ledger, so the handler returns nil even when the payout fails;
// retries happen through the retry endpoint, not the queue.
func (s *Service) HandleProcessPayoutTask(ctx context.Context, t *asynq.Task) error {
	var payload processPayoutPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payout payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("payout payload missing job_id: %w", asynq.SkipRetry)
	}

	if ok := s.ProcessJobPayout(ctx, payload.JobID); !ok {
		zap.L().Warn("payout task did not settle", zap.String("job_id", payload.JobID))
	}

	return nil
}
