package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/bibtex"
	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/paperid"
	"github.com/and161185/clawxiv/internal/repository"
	"github.com/and161185/clawxiv/internal/storage"
)

// Paging bounds shared by every listing endpoint.
const (
	MaxLimit          = 200
	DefaultPapersSize = 20
	DefaultSearchSize = 25
	DefaultListSize   = 50
)

// List views.
const (
	ViewNew      = "new"
	ViewRecent   = "recent"
	ViewPastWeek = "pastweek"
)

const dateLayout = "2006-01-02"

// CatalogService answers read-only queries over published papers.
type CatalogService interface {
	Get(ctx context.Context, id string) (*model.Paper, error)
	Recent(ctx context.Context, page, limit int) (model.PaperPage, error)
	Search(ctx context.Context, c model.SearchCriteria) (model.PaperPage, error)
	List(ctx context.Context, p model.ListParams) (model.PaperPage, error)
	Stats(ctx context.Context) (model.Stats, error)
	PDF(ctx context.Context, id string) ([]byte, error)
	PDFURL(ctx context.Context, id string, pdfPath *string) string
	BibTeX(ctx context.Context, id string) (string, error)
	Source(ctx context.Context, id string) (string, error)
}

type CatalogServiceImpl struct {
	papers  repository.PaperRepository
	store   storage.Store
	log     *zap.Logger
	baseURL string
	loc     *time.Location
	now     func() time.Time
}

// NewCatalogService constructs CatalogService. Calendar views use loc.
func NewCatalogService(papers repository.PaperRepository, store storage.Store, baseURL string, log *zap.Logger) *CatalogServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogServiceImpl{
		papers:  papers,
		store:   store,
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     time.Local,
		now:     time.Now,
	}
}

// ClampPage returns page, or 1 if it is below 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampLimit bounds limit to [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Get returns a published paper. Malformed ids are not found.
func (s *CatalogServiceImpl) Get(ctx context.Context, id string) (*model.Paper, error) {
	if !paperid.Valid(paperid.Namespace, id) {
		return nil, errs.ErrNotFound
	}
	return s.papers.Get(ctx, id)
}

// Recent pages through all published papers, newest first.
func (s *CatalogServiceImpl) Recent(ctx context.Context, page, limit int) (model.PaperPage, error) {
	return s.query(ctx, model.PaperFilter{SortBy: model.SortDate, SortOrder: model.SortDesc}, page, limit)
}

// Search applies c. Dates that do not parse as YYYY-MM-DD are ignored.
func (s *CatalogServiceImpl) Search(ctx context.Context, c model.SearchCriteria) (model.PaperPage, error) {
	f := model.PaperFilter{
		Query:     c.Query,
		Title:     c.Title,
		Author:    c.Author,
		Abstract:  c.Abstract,
		Category:  c.Category,
		SortBy:    c.SortBy,
		SortOrder: c.SortOrder,
	}
	if f.SortBy != model.SortRelevance {
		f.SortBy = model.SortDate
	}
	if f.SortOrder != model.SortAsc {
		f.SortOrder = model.SortDesc
	}
	if t, err := time.Parse(dateLayout, strings.TrimSpace(c.DateFrom)); err == nil {
		f.CreatedFrom = &t
	}
	if t, err := time.Parse(dateLayout, strings.TrimSpace(c.DateTo)); err == nil {
		end := t.AddDate(0, 0, 1)
		f.CreatedBefore = &end
	}
	return s.query(ctx, f, c.Page, c.Limit)
}

// List pages through one category under a named view. Unknown views behave as recent.
func (s *CatalogServiceImpl) List(ctx context.Context, p model.ListParams) (model.PaperPage, error) {
	f := model.PaperFilter{Category: p.Category, SortBy: model.SortDate, SortOrder: model.SortDesc}
	f.CreatedFrom, f.CreatedBefore = s.viewRange(p.View)
	return s.query(ctx, f, p.Page, p.Limit)
}

func (s *CatalogServiceImpl) viewRange(view string) (from, before *time.Time) {
	now := s.now().In(s.loc)
	switch view {
	case ViewNew:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		return &start, nil
	case ViewPastWeek:
		start := now.AddDate(0, 0, -7)
		return &start, nil
	}
	if start, ok := parseYYMM(view, s.loc); ok {
		end := start.AddDate(0, 1, 0)
		return &start, &end
	}
	return nil, nil
}

// parseYYMM reads a zero-padded two-digit year and month, e.g. 2601.
func parseYYMM(v string, loc *time.Location) (time.Time, bool) {
	if len(v) != 4 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	yy, mm := n/100, n%100
	if mm < 1 || mm > 12 {
		return time.Time{}, false
	}
	return time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, loc), true
}

func (s *CatalogServiceImpl) query(ctx context.Context, f model.PaperFilter, page, limit int) (model.PaperPage, error) {
	page, limit = ClampPage(page), ClampLimit(limit)
	f.Limit, f.Offset = limit, (page-1)*limit

	total, err := s.papers.Count(ctx, f)
	if err != nil {
		return model.PaperPage{}, fmt.Errorf("count papers: %w", err)
	}
	papers, err := s.papers.Search(ctx, f)
	if err != nil {
		return model.PaperPage{}, fmt.Errorf("search papers: %w", err)
	}
	return model.PaperPage{
		Papers:     papers,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Stats counts published papers: all, since the first of the local month, and the trailing 7 days.
func (s *CatalogServiceImpl) Stats(ctx context.Context) (model.Stats, error) {
	now := s.now().In(s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	return s.papers.Stats(ctx, monthStart, now.AddDate(0, 0, -7))
}

// PDF downloads the rendered document of a published paper.
func (s *CatalogServiceImpl) PDF(ctx context.Context, id string) ([]byte, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.PDFPath == nil || *p.PDFPath == "" {
		return nil, errs.ErrNotFound
	}
	return s.store.Download(ctx, *p.PDFPath)
}

// PDFURL returns a signed link for pdfPath, or the server's own PDF route when
// signing fails. It returns "" when the paper has no document.
func (s *CatalogServiceImpl) PDFURL(ctx context.Context, id string, pdfPath *string) string {
	if pdfPath == nil || *pdfPath == "" {
		return ""
	}
	u, err := s.store.SignedURL(ctx, *pdfPath)
	if err != nil {
		s.log.Warn("sign pdf url", zap.String("paper_id", id), zap.Error(err))
		return s.baseURL + "/api/pdf/" + id
	}
	return u
}

// BibTeX renders a citation for a published paper.
func (s *CatalogServiceImpl) BibTeX(ctx context.Context, id string) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return bibtex.Render(bibtex.FromPaper(p, s.baseURL)), nil
}

// Source returns the submitted LaTeX main file exactly as received.
func (s *CatalogServiceImpl) Source(ctx context.Context, id string) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.Source == nil {
		return "", errs.ErrNotFound
	}
	return p.Source.Source, nil
}
