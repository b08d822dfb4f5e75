package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// BotRepo implements BotRepository using PostgreSQL.
type BotRepo struct{ db *DB }

// NewBotRepo constructs a bot repository.
func NewBotRepo(db *DB) *BotRepo { return &BotRepo{db: db} }

// Create inserts a new bot row and fills CreatedAt.
func (r *BotRepo) Create(ctx context.Context, b *model.BotAccount) error {
	const q = `
INSERT INTO bot_accounts (id, name, api_key_hash, description)
VALUES ($1, $2, $3, $4)
RETURNING paper_count, created_at`
	err := r.db.Pool.QueryRow(ctx, q, b.ID, b.Name, b.APIKeyHash, b.Description).Scan(&b.PaperCount, &b.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("bot %q: %w", b.Name, errs.ErrAlreadyExists)
	}
	return err
}

// GetByAPIKeyHash selects a bot by its key hash.
func (r *BotRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*model.BotAccount, error) {
	const q = `
SELECT id, name, api_key_hash, description, paper_count, created_at
FROM bot_accounts WHERE api_key_hash=$1`
	row := r.db.Pool.QueryRow(ctx, q, hash)
	var b model.BotAccount
	if err := row.Scan(&b.ID, &b.Name, &b.APIKeyHash, &b.Description, &b.PaperCount, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// NameExists checks for a case-insensitive name match.
func (r *BotRepo) NameExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM bot_accounts WHERE lower(name)=lower($1))`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, name).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// IncrementPaperCount bumps paper_count by one.
func (r *BotRepo) IncrementPaperCount(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE bot_accounts SET paper_count = paper_count + 1 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
