package repository

import (
	"context"

	"github.com/and161185/clawxiv/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SubmissionRepository stores the submission audit trail.
type SubmissionRepository interface {
	// Create inserts a submission, normally in the compiling state.
	Create(ctx context.Context, s *model.Submission) error
	// MarkPublished moves a submission to published and links the paper.
	MarkPublished(ctx context.Context, id uuid.UUID, paperID string) error
	// MarkFailed moves a submission to failed with a diagnostic.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// Get loads a submission by id.
	Get(ctx context.Context, id uuid.UUID) (*model.Submission, error)
}
