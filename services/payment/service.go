package payment

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/errutil"
	"errandbit/pkg/lightning"
	"errandbit/pkg/repository"
	"errandbit/services/job"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	jobs *job.Service

	payments repository.Repository[Payment]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Jobs *job.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		jobs:     p.Jobs,
		payments: repository.ProvideStore[Payment](p.DB),
	}
}

type ConfirmInput struct {
	Preimage    string `json:"preimage"`
	PaymentHash string `json:"payment_hash"`
}

// Confirm records the client's payment for a completed job and flips the job
// to paid. Payment row and status change commit together or not at all.
func (s *Service) Confirm(ctx context.Context, jobID, actorID string, input ConfirmInput) (*Payment, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	j, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if actorID != j.ClientID {
		return nil, errutil.Forbidden("only the client can confirm payment", nil)
	}

	if j.Status == job.StatusPaid {
		return nil, errutil.Conflict("payment already confirmed", nil)
	}
	if j.Status != job.StatusCompleted {
		return nil, errutil.Conflict("job is not awaiting payment", nil)
	}

	if input.Preimage != "" && input.PaymentHash != "" {
		if !lightning.VerifyPreimage(input.Preimage, input.PaymentHash) {
			return nil, errutil.BadRequest("invalid preimage", nil)
		}
	}

	now := time.Now()
	p := &Payment{
		ID:          s.node.Generate().String(),
		JobID:       jobID,
		PaymentHash: input.PaymentHash,
		AmountSats:  j.AgreedPriceSats,
		Preimage:    input.Preimage,
		PaidAt:      &now,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		exist, err := s.payments.WithTrx(tx).FindOne(ctx, &Payment{JobID: jobID})
		if err != nil {
			return err
		}
		if exist != nil {
			return errutil.Conflict("payment already confirmed", nil)
		}

		if err := s.payments.WithTrx(tx).Create(ctx, p); err != nil {
			return err
		}
		return s.jobs.MarkPaid(ctx, tx, jobID)
	}); err != nil {
		if base, ok := err.(errutil.BaseError); ok {
			return nil, base
		}
		zap.L().Error("failed to confirm payment", zap.String("job_id", jobID), zap.Error(err))
		return nil, errutil.Internal("failed to confirm payment", err)
	}

	return p, nil
}

// GetByJob returns the payment row for a job, if any.
func (s *Service) GetByJob(ctx context.Context, jobID string) (*Payment, error) {
	p, err := s.payments.FindOne(ctx, &Payment{JobID: jobID})
	if err != nil {
		zap.L().Error("failed to query payment", zap.Error(err))
		return nil, errutil.Internal("failed to load payment", err)
	}
	if p == nil {
		return nil, errutil.NotFound("payment not found", nil)
	}
	return p, nil
}
