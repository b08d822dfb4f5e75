package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/jackc/pgx/v5"
)

// PaperRepo implements PaperRepository using PostgreSQL.
type PaperRepo struct{ db *DB }

// NewPaperRepo constructs a paper repository.
func NewPaperRepo(db *DB) *PaperRepo { return &PaperRepo{db: db} }

// NextSequence increments the month counter. The first call for a prefix
// seeds it from the highest id already stored under that prefix.
func (r *PaperRepo) NextSequence(ctx context.Context, prefix string) (int, error) {
	const q = `
INSERT INTO paper_id_counters (prefix, last_seq)
VALUES ($1, COALESCE((SELECT max(split_part(id, '.', 3)::int) FROM papers WHERE id LIKE $1 || '.%'), 0) + 1)
ON CONFLICT (prefix) DO UPDATE SET last_seq = paper_id_counters.last_seq + 1
RETURNING last_seq`
	var seq int
	if err := r.db.Pool.QueryRow(ctx, q, prefix).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Create inserts a paper and fills CreatedAt.
func (r *PaperRepo) Create(ctx context.Context, p *model.Paper) error {
	authors, err := json.Marshal(p.Authors)
	if err != nil {
		return fmt.Errorf("encode authors: %w", err)
	}
	cats, err := json.Marshal(nonNil(p.Categories))
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	var src []byte
	if p.Source != nil {
		if src, err = json.Marshal(p.Source); err != nil {
			return fmt.Errorf("encode source: %w", err)
		}
	}
	status := p.Status
	if status == "" {
		status = model.PaperPublished
	}

	const q = `
INSERT INTO papers (id, bot_id, title, abstract, authors, pdf_path, latex_source, categories, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`
	err = r.db.Pool.QueryRow(ctx, q,
		p.ID, p.BotID, p.Title, p.Abstract, authors, p.PDFPath, src, cats, string(status),
	).Scan(&p.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("paper %s: %w", p.ID, errs.ErrAlreadyExists)
	}
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}

// Get selects a published paper by id.
func (r *PaperRepo) Get(ctx context.Context, id string) (*model.Paper, error) {
	const q = `
SELECT id, bot_id, title, abstract, authors, pdf_path, latex_source, categories, status, created_at
FROM papers WHERE id=$1 AND status='published'`
	var (
		p                  model.Paper
		authors, src, cats []byte
		status             string
	)
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.BotID, &p.Title, &p.Abstract, &authors, &p.PDFPath, &src, &cats, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := unmarshalLists(authors, cats, &p.Authors, &p.Categories); err != nil {
		return nil, fmt.Errorf("paper %s: %w", id, err)
	}
	if len(src) > 0 && string(src) != "null" {
		p.Source = &model.Source{}
		if err := json.Unmarshal(src, p.Source); err != nil {
			return nil, fmt.Errorf("paper %s source: %w", id, err)
		}
	}
	p.Status = model.PaperStatus(status)
	return &p, nil
}

// Search returns one page of summaries, newest first unless ascending date order is requested.
func (r *PaperRepo) Search(ctx context.Context, f model.PaperFilter) ([]model.PaperSummary, error) {
	where, args := buildWhere(f)
	q := `
SELECT id, title, abstract, authors, categories, pdf_path, created_at
FROM papers` + where + orderBy(f) + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.PaperSummary, 0, f.Limit)
	for rows.Next() {
		var (
			s             model.PaperSummary
			authors, cats []byte
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Abstract, &authors, &cats, &s.PDFPath, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalLists(authors, cats, &s.Authors, &s.Categories); err != nil {
			return nil, fmt.Errorf("paper %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of papers matching f.
func (r *PaperRepo) Count(ctx context.Context, f model.PaperFilter) (int, error) {
	where, args := buildWhere(f)
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM papers`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats counts published papers overall and since the given instants.
func (r *PaperRepo) Stats(ctx context.Context, monthStart, weekStart time.Time) (model.Stats, error) {
	const q = `
SELECT count(*),
       count(*) FILTER (WHERE created_at >= $1),
       count(*) FILTER (WHERE created_at >= $2)
FROM papers WHERE status='published'`
	var s model.Stats
	if err := r.db.Pool.QueryRow(ctx, q, monthStart, weekStart).Scan(&s.Total, &s.ThisMonth, &s.ThisWeek); err != nil {
		return model.Stats{}, err
	}
	return s, nil
}

func unmarshalLists(authors, cats []byte, a *[]model.Author, c *[]string) error {
	if len(authors) > 0 {
		if err := json.Unmarshal(authors, a); err != nil {
			return fmt.Errorf("decode authors: %w", err)
		}
	}
	if len(cats) > 0 {
		if err := json.Unmarshal(cats, c); err != nil {
			return fmt.Errorf("decode categories: %w", err)
		}
	}
	if *c == nil {
		*c = []string{}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
