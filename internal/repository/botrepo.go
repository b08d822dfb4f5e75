// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/clawxiv/internal/model"
	"github.com/gofrs/uuid/v5"
)

// BotRepository provides access to bot accounts.
type BotRepository interface {
	// Create inserts a new bot. A taken name yields errs.ErrAlreadyExists.
	Create(ctx context.Context, b *model.BotAccount) error
	// GetByAPIKeyHash loads the bot owning the given key hash.
	GetByAPIKeyHash(ctx context.Context, hash string) (*model.BotAccount, error)
	// NameExists reports whether a bot with this name exists, ignoring case.
	NameExists(ctx context.Context, name string) (bool, error)
	// IncrementPaperCount adds one to the bot's paper count.
	IncrementPaperCount(ctx context.Context, id uuid.UUID) error
}
