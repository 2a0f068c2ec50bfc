package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/config"
	"errandbit/pkg/currency"
	"errandbit/pkg/db/option"
	"errandbit/pkg/errutil"
	"errandbit/pkg/lightning"
	"errandbit/pkg/repository"
	"errandbit/services/job"
	"errandbit/services/user"
)

const errNoLightningAddress = "No Lightning address configured"

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	payer  lightning.Payer
	config *config.Config

	earnings repository.Repository[Earning]
	jobs     repository.Repository[job.Job]
	profiles repository.Repository[user.RunnerProfile]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Payer  lightning.Payer
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		payer:    p.Payer,
		config:   p.Config,
		earnings: repository.ProvideStore[Earning](p.DB),
		jobs:     repository.ProvideStore[job.Job](p.DB),
		profiles: repository.ProvideStore[user.RunnerProfile](p.DB),
	}
}

// ProcessJobPayout ensures the earning row for a completed job exists and
// attempts to settle it. The boolean reports whether the runner was paid;
// every failure mode lands in the ledger, never in a returned error.
func (s *Service) ProcessJobPayout(ctx context.Context, jobID string) bool {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	j, err := s.jobs.FindOne(ctx, &job.Job{ID: jobID})
	if err != nil {
		zap.L().Error("failed to query job for payout", zap.String("job_id", jobID), zap.Error(err))
		return false
	}
	if j == nil {
		zap.L().Error("payout requested for unknown job", zap.String("job_id", jobID))
		return false
	}
	if j.RunnerID == "" {
		zap.L().Error("payout requested for unassigned job", zap.String("job_id", jobID))
		return false
	}
	if j.Status != job.StatusCompleted && j.Status != job.StatusPaid {
		zap.L().Warn("payout requested before job completion",
			zap.String("job_id", jobID), zap.String("status", string(j.Status)))
		return false
	}

	e, err := s.findOrCreateEarning(ctx, j)
	if err != nil {
		zap.L().Error("failed to record earning", zap.String("job_id", jobID), zap.Error(err))
		return false
	}

	return s.ProcessPayout(ctx, e.ID)
}

// findOrCreateEarning returns the single earning for a job, creating it on
// first sight. The unique index on job_id resolves concurrent creators: the
// loser re-reads the winner's row.
func (s *Service) findOrCreateEarning(ctx context.Context, j *job.Job) (*Earning, error) {
	exist, err := s.earnings.FindOne(ctx, &Earning{JobID: j.ID})
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return exist, nil
	}

	grossCents := j.AgreedPriceCents
	if grossCents == 0 {
		grossCents = j.PriceCents
	}
	feeCents, netCents := currency.FeeSplit(grossCents, s.config.Platform.FeePercent)

	grossSats := currency.CentsToSats(grossCents, s.config.Platform.SatsPerUSD)
	netSats := currency.CentsToSats(netCents, s.config.Platform.SatsPerUSD)

	e := &Earning{
		ID:               s.node.Generate().String(),
		RunnerID:         j.RunnerID,
		JobID:            j.ID,
		AmountCents:      grossCents,
		AmountSats:       grossSats,
		PlatformFeeCents: feeCents,
		PlatformFeeSats:  grossSats - netSats,
		NetAmountCents:   netCents,
		NetAmountSats:    netSats,
		Status:           StatusPending,
	}

	if err := s.earnings.Create(ctx, e); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.earnings.FindOne(ctx, &Earning{JobID: j.ID})
		}
		exist, ferr := s.earnings.FindOne(ctx, &Earning{JobID: j.ID})
		if ferr == nil && exist != nil {
			return exist, nil
		}
		return nil, err
	}

	return e, nil
}

// ProcessPayout attempts to settle one earning over Lightning. Only pending
// and failed earnings are eligible; anything else is left untouched. The
// outcome is recorded on the row before the boolean is returned.
func (s *Service) ProcessPayout(ctx context.Context, earningID string) (ok bool) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	e, err := s.earnings.FindOne(ctx, &Earning{ID: earningID})
	if err != nil {
		zap.L().Error("failed to query earning", zap.String("earning_id", earningID), zap.Error(err))
		return false
	}
	if e == nil {
		zap.L().Error("payout requested for unknown earning", zap.String("earning_id", earningID))
		return false
	}

	if e.Status != StatusPending && e.Status != StatusFailed {
		zap.L().Warn("earning not in a payable state",
			zap.String("earning_id", e.ID), zap.String("status", string(e.Status)))
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("panic during payout", zap.String("earning_id", e.ID), zap.Any("panic", r))
			s.markFailed(ctx, e, fmt.Sprintf("internal error: %v", r))
			ok = false
		}
	}()

	// The claim succeeds for exactly one caller; a concurrent retry loses here
	// instead of paying twice.
	res := s.db.WithContext(ctx).Model(&Earning{}).
		Where("id = ? AND status IN ?", e.ID, []EarningStatus{StatusPending, StatusFailed}).
		Update("status", StatusProcessing)
	if res.Error != nil {
		zap.L().Error("failed to claim earning", zap.String("earning_id", e.ID), zap.Error(res.Error))
		return false
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("earning already claimed", zap.String("earning_id", e.ID))
		return false
	}

	profile, err := s.profiles.FindOne(ctx, &user.RunnerProfile{UserID: e.RunnerID})
	if err != nil {
		zap.L().Error("failed to query runner profile", zap.String("runner_id", e.RunnerID), zap.Error(err))
		s.markFailed(ctx, e, "failed to load runner profile")
		return false
	}
	if profile == nil || profile.LightningAddress == "" {
		s.markFailed(ctx, e, errNoLightningAddress)
		return false
	}

	payCtx, cancel := context.WithTimeout(ctx, s.config.Lightning.Timeout)
	defer cancel()

	memo := fmt.Sprintf("ErrandBit payout for job %s", e.JobID)
	result, err := s.payer.Pay(payCtx, profile.LightningAddress, e.NetAmountSats, memo)
	if err != nil {
		zap.L().Warn("lightning payout failed",
			zap.String("earning_id", e.ID),
			zap.String("lightning_address", profile.LightningAddress),
			zap.Error(err))
		s.markFailed(ctx, e, err.Error())
		return false
	}

	now := time.Now()
	if err := s.earnings.Update(ctx, e.ID, map[string]any{
		"status":           StatusCompleted,
		"payment_hash":     result.PaymentHash,
		"payment_preimage": result.PaymentPreimage,
		"error_message":    "",
		"completed_at":     now,
	}); err != nil {
		// The sats left the wallet; the ledger row must not stay processing.
		zap.L().Error("payout succeeded but ledger update failed",
			zap.String("earning_id", e.ID),
			zap.String("payment_hash", result.PaymentHash),
			zap.Error(err))
		return false
	}

	zap.L().Info("payout completed",
		zap.String("earning_id", e.ID),
		zap.String("job_id", e.JobID),
		zap.Int64("net_amount_sats", e.NetAmountSats))

	return true
}

func (s *Service) markFailed(ctx context.Context, e *Earning, reason string) {
	if err := s.earnings.Update(ctx, e.ID, map[string]any{
		"status":        StatusFailed,
		"error_message": reason,
		"retry_count":   gorm.Expr("retry_count + 1"),
	}); err != nil {
		zap.L().Error("failed to mark earning failed", zap.String("earning_id", e.ID), zap.Error(err))
	}
}

// Get returns one earning by ID.
func (s *Service) Get(ctx context.Context, earningID string) (*Earning, error) {
	e, err := s.earnings.FindOne(ctx, &Earning{ID: earningID})
	if err != nil {
		zap.L().Error("failed to query earning", zap.Error(err))
		return nil, errutil.Internal("failed to load earning", err)
	}
	if e == nil {
		return nil, errutil.NotFound("earning not found", nil)
	}
	return e, nil
}

// ListByRunner returns a runner's earnings, newest first.
func (s *Service) ListByRunner(ctx context.Context, runnerID string) ([]*Earning, error) {
	earnings, err := s.earnings.Find(ctx, &Earning{RunnerID: runnerID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
	if err != nil {
		zap.L().Error("failed to list earnings", zap.Error(err))
		return nil, errutil.Internal("failed to list earnings", err)
	}
	return earnings, nil
}
