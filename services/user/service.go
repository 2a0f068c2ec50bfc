package user

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/errutil"
	"errandbit/pkg/lightning"
	"errandbit/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	users    repository.Repository[User]
	profiles repository.Repository[RunnerProfile]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		users:    repository.ProvideStore[User](p.DB),
		profiles: repository.ProvideStore[RunnerProfile](p.DB),
	}
}

type CreateUserInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (s *Service) Create(ctx context.Context, input CreateUserInput) (*User, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errutil.ValidationFailed("a valid email is required", nil)
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		return nil, errutil.ValidationFailed("display_name is required", nil)
	}

	exist, err := s.users.FindOne(ctx, &User{Email: email})
	if err != nil {
		zap.L().Error("failed to query user by email", zap.Error(err))
		return nil, errutil.Internal("failed to create user", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("email already registered", nil)
	}

	u := &User{
		ID:          s.node.Generate().String(),
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
	}
	if err := s.users.Create(ctx, u); err != nil {
		zap.L().Error("failed to create user", zap.Error(err))
		return nil, errutil.Internal("failed to create user", err)
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	u, err := s.users.FindOne(ctx, &User{ID: userID})
	if err != nil {
		zap.L().Error("failed to query user", zap.Error(err))
		return nil, errutil.Internal("failed to load user", err)
	}
	if u == nil {
		return nil, errutil.NotFound("user not found", nil)
	}
	return u, nil
}

type UpsertProfileInput struct {
	LightningAddress string `json:"lightning_address"`
	Bio              string `json:"bio"`
}

// UpsertRunnerProfile creates or updates the runner profile for a user. The
// lightning address may be cleared by passing an empty string; a non-empty
// one must parse as name@domain.
func (s *Service) UpsertRunnerProfile(ctx context.Context, userID string, input UpsertProfileInput) (*RunnerProfile, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	address := strings.TrimSpace(input.LightningAddress)
	if address != "" {
		if _, _, err := lightning.ParseAddress(address); err != nil {
			return nil, errutil.ValidationFailed("invalid lightning address", err)
		}
	}

	profile, err := s.profiles.FindOne(ctx, &RunnerProfile{UserID: userID})
	if err != nil {
		zap.L().Error("failed to query runner profile", zap.Error(err))
		return nil, errutil.Internal("failed to load runner profile", err)
	}

	if profile == nil {
		profile = &RunnerProfile{
			ID:               s.node.Generate().String(),
			UserID:           userID,
			LightningAddress: address,
			Bio:              input.Bio,
		}
		if err := s.profiles.Create(ctx, profile); err != nil {
			zap.L().Error("failed to create runner profile", zap.Error(err))
			return nil, errutil.Internal("failed to save runner profile", err)
		}
		return profile, nil
	}

	updates := map[string]any{
		"lightning_address": address,
		"bio":               input.Bio,
	}
	if err := s.profiles.Update(ctx, profile.ID, updates); err != nil {
		zap.L().Error("failed to update runner profile", zap.Error(err))
		return nil, errutil.Internal("failed to save runner profile", err)
	}

	return s.profiles.FindOne(ctx, &RunnerProfile{UserID: userID})
}

// GetRunnerProfile returns nil when the user has never configured one.
func (s *Service) GetRunnerProfile(ctx context.Context, userID string) (*RunnerProfile, error) {
	profile, err := s.profiles.FindOne(ctx, &RunnerProfile{UserID: userID})
	if err != nil {
		zap.L().Error("failed to query runner profile", zap.Error(err))
		return nil, errutil.Internal("failed to load runner profile", err)
	}
	return profile, nil
}
