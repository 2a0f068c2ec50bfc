package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/config"
	"errandbit/pkg/currency"
	"errandbit/pkg/db/option"
	"errandbit/pkg/db/pagination"
	"errandbit/pkg/errutil"
	"errandbit/pkg/repository"
	"errandbit/pkg/task"
	"errandbit/pkg/taskname"
	"errandbit/services/user"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	asynq  task.Enqueuer
	config *config.Config

	jobs  repository.Repository[Job]
	users repository.Repository[user.User]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Asynq  task.Enqueuer `optional:"true"`
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		asynq:  p.Asynq,
		config: p.Config,
		jobs:   repository.ProvideStore[Job](p.DB),
		users:  repository.ProvideStore[user.User](p.DB),
	}
}

type CreateJobInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	PriceCents  int64          `json:"price_cents"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Service) Create(ctx context.Context, clientID string, input CreateJobInput) (*Job, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errutil.ValidationFailed("title is required", nil)
	}
	if input.PriceCents <= 0 {
		return nil, errutil.ValidationFailed("price_cents must be > 0", nil)
	}

	client, err := s.users.FindOne(ctx, &user.User{ID: clientID})
	if err != nil {
		zap.L().Error("failed to query client", zap.Error(err))
		return nil, errutil.Internal("failed to create job", err)
	}
	if client == nil {
		return nil, errutil.NotFound("client not found", nil)
	}

	id := s.node.Generate().String()
	metaBytes, _ := json.Marshal(input.Metadata)
	j := &Job{
		ID:          id,
		Slug:        fmt.Sprintf("%s-%s", slug.Make(title), id[len(id)-6:]),
		Title:       title,
		Description: input.Description,
		ClientID:    clientID,
		PriceCents:  input.PriceCents,
		Status:      StatusOpen,
		Metadata:    metaBytes,
	}

	if err := s.jobs.Create(ctx, j); err != nil {
		zap.L().Error("failed to create job", zap.Error(err))
		return nil, errutil.Internal("failed to create job", err)
	}

	return j, nil
}

func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	j, err := s.jobs.FindOne(ctx, &Job{ID: jobID})
	if err != nil {
		zap.L().Error("failed to query job", zap.Error(err))
		return nil, errutil.Internal("failed to load job", err)
	}
	if j == nil {
		return nil, errutil.NotFound("job not found", nil)
	}
	return j, nil
}

type ListFilter struct {
	Status        Status `form:"status"`
	ClientID      string `form:"client_id"`
	RunnerID      string `form:"runner_id"`
	MinPriceCents int64  `form:"min_price_cents"`
	MaxPriceCents int64  `form:"max_price_cents"`
	pagination.Pagination
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Job, *pagination.PageInfo, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	query := &Job{
		Status:   filter.Status,
		ClientID: filter.ClientID,
		RunnerID: filter.RunnerID,
	}

	opts := []option.QueryOption{
		option.ApplyPagination(pagination.Pagination{Cursor: filter.Cursor, Limit: limit + 1}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	}
	if filter.MinPriceCents > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "price_cents", Operator: option.GTE, Value: filter.MinPriceCents}))
	}
	if filter.MaxPriceCents > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "price_cents", Operator: option.LTE, Value: filter.MaxPriceCents}))
	}

	jobs, err := s.jobs.Find(ctx, query, opts...)
	if err != nil {
		zap.L().Error("failed to list jobs", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list jobs", err)
	}

	pageInfo := pagination.BuildCursorPageInfo(jobs, limit, func(j *Job) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        j.ID,
		})
		return cursor
	})

	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	return jobs, pageInfo, nil
}

// TransitionExtra carries per-transition parameters.
type TransitionExtra struct {
	// AgreedPriceCents overrides the listed price at accept time when the
	// parties negotiated a different amount.
	AgreedPriceCents int64 `json:"agreed_price_cents"`
}

// Transition moves a job to target on behalf of actorID, enforcing the
// transition table and per-transition authorization. The completed->paid
// step is owned by payment confirmation and not reachable here.
func (s *Service) Transition(ctx context.Context, jobID, actorID string, target Status, extra TransitionExtra) (*Job, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	j, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !j.Status.CanTransitionTo(target) {
		return nil, errutil.Conflict(fmt.Sprintf("invalid transition from %s to %s", j.Status, target), nil)
	}

	switch target {
	case StatusAccepted:
		return s.accept(ctx, j, actorID, extra)
	case StatusInProgress:
		return s.start(ctx, j, actorID)
	case StatusCompleted:
		return s.complete(ctx, j, actorID)
	case StatusCancelled:
		return s.cancel(ctx, j, actorID)
	default:
		return nil, errutil.Conflict(fmt.Sprintf("transition to %s is not permitted via this operation", target), nil)
	}
}

// accept assigns the acting runner. The WHERE clause is the only guard
// against two runners racing for the same job: the update succeeds for
// exactly one of them.
func (s *Service) accept(ctx context.Context, j *Job, runnerID string, extra TransitionExtra) (*Job, error) {
	if runnerID == j.ClientID {
		return nil, errutil.Forbidden("cannot run your own job", nil)
	}

	runner, err := s.users.FindOne(ctx, &user.User{ID: runnerID})
	if err != nil {
		zap.L().Error("failed to query runner", zap.Error(err))
		return nil, errutil.Internal("failed to accept job", err)
	}
	if runner == nil {
		return nil, errutil.NotFound("runner account not found", nil)
	}

	agreedCents := j.PriceCents
	if extra.AgreedPriceCents > 0 {
		agreedCents = extra.AgreedPriceCents
	}
	agreedSats := currency.CentsToSats(agreedCents, s.config.Platform.SatsPerUSD)

	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ? AND runner_id = ''", j.ID, StatusOpen).
		Updates(map[string]any{
			"status":             StatusAccepted,
			"runner_id":          runnerID,
			"agreed_price_cents": agreedCents,
			"agreed_price_sats":  agreedSats,
			"accepted_at":        time.Now(),
		})
	if res.Error != nil {
		zap.L().Error("failed to assign runner", zap.Error(res.Error))
		return nil, errutil.Internal("failed to accept job", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("job no longer available", nil)
	}

	return s.Get(ctx, j.ID)
}

func (s *Service) start(ctx context.Context, j *Job, actorID string) (*Job, error) {
	if actorID != j.RunnerID {
		return nil, errutil.Forbidden("only the assigned runner can start this job", nil)
	}

	return s.conditionalUpdate(ctx, j, StatusAccepted, map[string]any{
		"status":     StatusInProgress,
		"started_at": time.Now(),
	})
}

func (s *Service) complete(ctx context.Context, j *Job, actorID string) (*Job, error) {
	if actorID != j.RunnerID {
		return nil, errutil.Forbidden("only the assigned runner can complete this job", nil)
	}

	updated, err := s.conditionalUpdate(ctx, j, StatusInProgress, map[string]any{
		"status":       StatusCompleted,
		"completed_at": time.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.enqueuePayout(updated.ID)

	return updated, nil
}

func (s *Service) cancel(ctx context.Context, j *Job, actorID string) (*Job, error) {
	if actorID != j.ClientID {
		return nil, errutil.Forbidden("only the client can cancel this job", nil)
	}

	return s.conditionalUpdate(ctx, j, j.Status, map[string]any{
		"status":       StatusCancelled,
		"cancelled_at": time.Now(),
	})
}

// conditionalUpdate applies updates only if the job is still in the status
// the caller observed, so interleaved requests fail with a conflict instead
// of silently overwriting each other.
func (s *Service) conditionalUpdate(ctx context.Context, j *Job, expected Status, updates map[string]any) (*Job, error) {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", j.ID, expected).
		Updates(updates)
	if res.Error != nil {
		zap.L().Error("failed to update job status", zap.Error(res.Error))
		return nil, errutil.Internal("failed to update job", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict(fmt.Sprintf("job is no longer %s", expected), nil)
	}

	return s.Get(ctx, j.ID)
}

// MarkPaid performs the completed->paid transition inside the caller's
// transaction. Only payment confirmation calls this.
func (s *Service) MarkPaid(ctx context.Context, tx *gorm.DB, jobID string) error {
	res := tx.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, StatusCompleted).
		Updates(map[string]any{
			"status":  StatusPaid,
			"paid_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("job is not awaiting payment", nil)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, jobID, actorID string) error {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if actorID != j.ClientID {
		return errutil.Forbidden("only the client can delete this job", nil)
	}

	deletable := j.Status == StatusCancelled || (j.Status == StatusOpen && j.RunnerID == "")
	if !deletable {
		return errutil.Conflict("only cancelled or unassigned open jobs can be deleted", nil)
	}

	if err := s.db.WithContext(ctx).Delete(&Job{}, "id = ?", j.ID).Error; err != nil {
		zap.L().Error("failed to delete job", zap.Error(err))
		return errutil.Internal("failed to delete job", err)
	}

	return nil
}

type payoutPayload struct {
	JobID string `json:"job_id"`
}

// enqueuePayout hands the completed job to the payout worker. Enqueue
// failures are logged, not surfaced: the payout can always be retried
// manually and the job completion itself already succeeded.
func (s *Service) enqueuePayout(jobID string) {
	if s.asynq == nil {
		zap.L().Warn("no task enqueuer configured, skipping payout dispatch", zap.String("job_id", jobID))
		return
	}

	payload, _ := json.Marshal(payoutPayload{JobID: jobID})
	if _, err := s.asynq.Enqueue(asynq.NewTask(taskname.PayoutProcess, payload)); err != nil {
		zap.L().Error("failed to enqueue payout task", zap.String("job_id", jobID), zap.Error(err))
	}
}
