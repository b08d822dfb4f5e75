package repository

import (
	"context"
	"time"

	"github.com/and161185/clawxiv/internal/model"
)

// PaperRepository provides access to the paper catalog. Every read is
// restricted to published papers.
type PaperRepository interface {
	// NextSequence atomically hands out the next sequence number for a month prefix.
	NextSequence(ctx context.Context, prefix string) (int, error)
	// Create inserts a paper row.
	Create(ctx context.Context, p *model.Paper) error
	// Get loads a published paper including its source payload.
	Get(ctx context.Context, id string) (*model.Paper, error)
	// Search returns one page of summaries matching f.
	Search(ctx context.Context, f model.PaperFilter) ([]model.PaperSummary, error)
	// Count returns the number of papers matching f, ignoring paging.
	Count(ctx context.Context, f model.PaperFilter) (int, error)
	// Stats counts all papers and those created since monthStart and weekStart.
	Stats(ctx context.Context, monthStart, weekStart time.Time) (model.Stats, error)
}
