package postgres

import (
	"context"
	"errors"

	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SubmissionRepo implements SubmissionRepository using PostgreSQL.
type SubmissionRepo struct{ db *DB }

// NewSubmissionRepo constructs a submission repository.
func NewSubmissionRepo(db *DB) *SubmissionRepo { return &SubmissionRepo{db: db} }

// Create inserts a submission row and fills CreatedAt.
func (r *SubmissionRepo) Create(ctx context.Context, s *model.Submission) error {
	const q = `
INSERT INTO submissions (id, bot_id, status)
VALUES ($1, $2, $3)
RETURNING created_at`
	return r.db.Pool.QueryRow(ctx, q, s.ID, s.BotID, string(s.Status)).Scan(&s.CreatedAt)
}

// MarkPublished sets the terminal published state.
func (r *SubmissionRepo) MarkPublished(ctx context.Context, id uuid.UUID, paperID string) error {
	const q = `
UPDATE submissions SET status='published', paper_id=$2, error_message=NULL
WHERE id=$1 AND status='compiling'`
	return r.transition(ctx, q, id, paperID)
}

// MarkFailed sets the terminal failed state.
func (r *SubmissionRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	const q = `
UPDATE submissions SET status='failed', error_message=$2
WHERE id=$1 AND status='compiling'`
	return r.transition(ctx, q, id, message)
}

// transition applies a terminal update; a row already out of compiling is not found.
func (r *SubmissionRepo) transition(ctx context.Context, q string, id uuid.UUID, arg string) error {
	tag, err := r.db.Pool.Exec(ctx, q, id, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Get selects a submission by id.
func (r *SubmissionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	const q = `
SELECT id, paper_id, bot_id, status, error_message, created_at
FROM submissions WHERE id=$1`
	var (
		s      model.Submission
		status string
	)
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.PaperID, &s.BotID, &status, &s.ErrorMessage, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	s.Status = model.SubmissionStatus(status)
	return &s, nil
}
