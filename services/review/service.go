package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/db/option"
	"errandbit/pkg/errutil"
	"errandbit/pkg/repository"
	"errandbit/services/job"
)

const (
	maxCommentLength = 1000
	ratingCacheTTL   = 5 * time.Minute
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	jobs  *job.Service
	redis *redis.Client

	reviews repository.Repository[Review]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Jobs  *job.Service
	Redis *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		jobs:    p.Jobs,
		redis:   p.Redis,
		reviews: repository.ProvideStore[Review](p.DB),
	}
}

type CreateReviewInput struct {
	JobID   string `json:"job_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create records the reviewer's feedback on the other party of a paid job.
// The reviewee is derived from the job, never taken from the request.
func (s *Service) Create(ctx context.Context, reviewerID string, input CreateReviewInput) (*Review, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	j, err := s.jobs.Get(ctx, input.JobID)
	if err != nil {
		return nil, err
	}

	if j.Status != job.StatusPaid {
		return nil, errutil.Conflict("job must be paid before it can be reviewed", nil)
	}

	var revieweeID string
	switch reviewerID {
	case j.ClientID:
		revieweeID = j.RunnerID
	case j.RunnerID:
		revieweeID = j.ClientID
	default:
		return nil, errutil.Forbidden("only the client or runner of this job can review it", nil)
	}

	exist, err := s.reviews.FindOne(ctx, &Review{JobID: j.ID, ReviewerID: reviewerID})
	if err != nil {
		zap.L().Error("failed to query review", zap.Error(err))
		return nil, errutil.Internal("failed to create review", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("you have already reviewed this job", nil)
	}

	if input.Rating < 1 || input.Rating > 5 {
		return nil, errutil.ValidationFailed("rating must be between 1 and 5", nil)
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxCommentLength {
		return nil, errutil.ValidationFailed(fmt.Sprintf("comment must be at most %d characters", maxCommentLength), nil)
	}

	r := &Review{
		ID:         s.node.Generate().String(),
		JobID:      j.ID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     input.Rating,
		Comment:    comment,
	}

	if err := s.reviews.Create(ctx, r); err != nil {
		zap.L().Error("failed to create review", zap.Error(err))
		return nil, errutil.Internal("failed to create review", err)
	}

	s.invalidateRatingCache(ctx, revieweeID)

	return r, nil
}

// ListByUser returns all reviews written about a user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Review, error) {
	reviews, err := s.reviews.Find(ctx, &Review{RevieweeID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
	if err != nil {
		zap.L().Error("failed to list reviews", zap.Error(err))
		return nil, errutil.Internal("failed to list reviews", err)
	}
	return reviews, nil
}

// GetRatingSummary returns the average rating and review count for a user.
// A user with no reviews gets a zero summary, not an error.
func (s *Service) GetRatingSummary(ctx context.Context, userID string) (*RatingSummary, error) {
	if cached := s.cachedRating(ctx, userID); cached != nil {
		return cached, nil
	}

	var row struct {
		Average float64
		Count   int64
	}
	err := s.db.WithContext(ctx).Model(&Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("reviewee_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		zap.L().Error("failed to aggregate rating", zap.Error(err))
		return nil, errutil.Internal("failed to load rating", err)
	}

	summary := &RatingSummary{
		UserID:        userID,
		AverageRating: row.Average,
		ReviewCount:   row.Count,
	}

	s.cacheRating(ctx, summary)

	return summary, nil
}

func ratingCacheKey(userID string) string {
	return "rating:avg:" + userID
}

func (s *Service) cachedRating(ctx context.Context, userID string) *RatingSummary {
	if s.redis == nil {
		return nil
	}

	raw, err := s.redis.Get(ctx, ratingCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("failed to read rating cache", zap.Error(err))
		}
		return nil
	}

	var summary RatingSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *Service) cacheRating(ctx context.Context, summary *RatingSummary) {
	if s.redis == nil {
		return
	}

	raw, _ := json.Marshal(summary)
	if err := s.redis.Set(ctx, ratingCacheKey(summary.UserID), raw, ratingCacheTTL).Err(); err != nil {
		zap.L().Warn("failed to cache rating", zap.Error(err))
	}
}

func (s *Service) invalidateRatingCache(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, ratingCacheKey(userID)).Err(); err != nil {
		zap.L().Warn("failed to invalidate rating cache", zap.Error(err))
	}
}
