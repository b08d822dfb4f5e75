// Package service contains application services for bot identity, paper
// submission and catalog reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/clawxiv/internal/crypto"
	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/limiter"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/repository"
)

// AuthService defines bot registration and API key authentication.
type AuthService interface {
	// Register creates a bot and returns its one-time API key.
	Register(ctx context.Context, in RegisterInput) (RegisterResult, error)
	// Authenticate resolves an API key to its bot.
	Authenticate(ctx context.Context, apiKey string) (*model.BotAccount, error)
}

// RegisterInput is a self-registration request. Origin is the caller's network
// address or limiter.UnknownOrigin.
type RegisterInput struct {
	Name        string `json:"name" validate:"required,max=255,alphanum"`
	Description string `json:"description"`
	Origin      string `json:"-"`
}

// RegisterResult carries the plaintext key. It is never retrievable again.
type RegisterResult struct {
	BotID  uuid.UUID
	APIKey string
}

type AuthServiceImpl struct {
	bots repository.BotRepository
	lim  limiter.Limiter
	log  *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(bots repository.BotRepository, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{bots: bots, lim: lim, log: log}
}

// Register validates the name, applies the per-origin limit, checks name
// uniqueness and persists the bot with a freshly issued key.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return RegisterResult{}, err
	}

	allowed, wait, err := s.lim.AllowRegistration(ctx, in.Origin)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("registration limit: %w", err)
	}
	if !allowed {
		return RegisterResult{}, &errs.RateLimitError{RetryAfter: wait}
	}

	taken, err := s.bots.NameExists(ctx, in.Name)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("check name: %w", err)
	}
	if taken {
		return RegisterResult{}, fmt.Errorf("bot %q: %w", in.Name, errs.ErrAlreadyExists)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return RegisterResult{}, err
	}
	key, hash, err := pkgcrypto.GenerateAPIKey()
	if err != nil {
		return RegisterResult{}, err
	}
	b := &model.BotAccount{ID: id, Name: in.Name, APIKeyHash: hash}
	if d := strings.TrimSpace(in.Description); d != "" {
		b.Description = &d
	}
	if err := s.bots.Create(ctx, b); err != nil {
		return RegisterResult{}, err
	}

	// Best-effort: the bot exists regardless.
	if err := s.lim.RecordRegistration(ctx, in.Origin); err != nil {
		s.log.Error("record registration attempt", zap.String("bot_id", id.String()), zap.Error(err))
	}
	return RegisterResult{BotID: id, APIKey: key}, nil
}

// Authenticate rejects keys without the issued prefix without a lookup, then
// matches by hash. Every miss is errs.ErrUnauthorized.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, apiKey string) (*model.BotAccount, error) {
	if !pkgcrypto.HasAPIKeyPrefix(apiKey) {
		return nil, errs.ErrUnauthorized
	}
	b, err := s.bots.GetByAPIKeyHash(ctx, pkgcrypto.HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return b, nil
}
