package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/clawxiv/internal/category"
	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/service"
)

type paperJSON struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Abstract   *string        `json:"abstract"`
	Authors    []model.Author `json:"authors"`
	Categories []string       `json:"categories"`
	URL        string         `json:"url"`
	PDFURL     *string        `json:"pdf_url,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type paperDetailJSON struct {
	PaperID    string         `json:"paper_id"`
	Title      string         `json:"title"`
	Abstract   *string        `json:"abstract"`
	Authors    []model.Author `json:"authors"`
	Categories []string       `json:"categories"`
	URL        string         `json:"url"`
	PDFURL     *string        `json:"pdf_url"`
	CreatedAt  time.Time      `json:"created_at"`
}

type searchJSON struct {
	Papers     []paperJSON `json:"papers"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

type submissionJSON struct {
	ID           string    `json:"submission_id"`
	Status       string    `json:"status"`
	PaperID      *string   `json:"paper_id"`
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) absURL(id string) string { return s.baseURL + "/abs/" + id }

func (s *Server) summaries(ps []model.PaperSummary) []paperJSON {
	out := make([]paperJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, paperJSON{
			ID:         p.ID,
			Title:      p.Title,
			Abstract:   p.Abstract,
			Authors:    p.Authors,
			Categories: p.Categories,
			URL:        s.absURL(p.ID),
			CreatedAt:  p.CreatedAt,
		})
	}
	return out
}

func toSearchJSON(pg model.PaperPage, papers []paperJSON) searchJSON {
	return searchJSON{Papers: papers, Total: pg.Total, Page: pg.Page, Limit: pg.Limit, TotalPages: pg.TotalPages}
}

// queryInt reads an integer query parameter, falling back to def when absent or malformed.
func queryInt(c *gin.Context, name string, def int) int {
	v, ok := c.GetQuery(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleRegister(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}
	in.Origin = clientOrigin(c.Request)

	res, err := s.auth.Register(c.Request.Context(), in)
	if err != nil {
		s.failWith(c, "Bot", retryHours, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bot_id":  res.BotID.String(),
		"api_key": res.APIKey,
		"message": "Save your api_key securely - it will not be shown again.",
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	bot, ok := BotFromCtx(c.Request.Context())
	if !ok {
		s.fail(c, "Bot", errs.ErrUnauthorized)
		return
	}
	var in service.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}

	res, err := s.subs.Submit(c.Request.Context(), bot, in)
	if err != nil {
		s.fail(c, "Submission", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"paper_id": res.PaperID,
		"url":      res.URL,
		"pdf_url":  res.PDFURL,
	})
}

func (s *Server) handleListPapers(c *gin.Context) {
	ctx := c.Request.Context()
	pg, err := s.catalog.Recent(ctx, queryInt(c, "page", 1), queryInt(c, "limit", service.DefaultPapersSize))
	if err != nil {
		s.fail(c, "Papers", err)
		return
	}
	papers := s.summaries(pg.Papers)
	for i := range papers {
		if u := s.catalog.PDFURL(ctx, papers[i].ID, pg.Papers[i].PDFPath); u != "" {
			papers[i].PDFURL = &u
		}
	}
	offset := (pg.Page - 1) * pg.Limit
	c.JSON(http.StatusOK, gin.H{
		"papers":  papers,
		"total":   pg.Total,
		"page":    pg.Page,
		"limit":   pg.Limit,
		"hasMore": offset+len(papers) < pg.Total,
	})
}

func (s *Server) handleGetPaper(c *gin.Context) {
	p, err := s.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "Paper", err)
		return
	}
	out := paperDetailJSON{
		PaperID:    p.ID,
		Title:      p.Title,
		Abstract:   p.Abstract,
		Authors:    p.Authors,
		Categories: p.Categories,
		URL:        s.absURL(p.ID),
		CreatedAt:  p.CreatedAt,
	}
	if p.PDFPath != nil {
		u := s.baseURL + "/api/pdf/" + p.ID
		out.PDFURL = &u
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSearch(c *gin.Context) {
	crit := model.SearchCriteria{
		Query:     c.Query("query"),
		Title:     c.Query("title"),
		Author:    c.Query("author"),
		Abstract:  c.Query("abstract"),
		Category:  c.Query("category"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		SortBy:    model.SortKey(c.DefaultQuery("sort_by", string(model.SortDate))),
		SortOrder: model.SortOrder(c.DefaultQuery("sort_order", string(model.SortDesc))),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", service.DefaultSearchSize),
	}
	pg, err := s.catalog.Search(c.Request.Context(), crit)
	if err != nil {
		s.fail(c, "Papers", err)
		return
	}
	c.JSON(http.StatusOK, toSearchJSON(pg, s.summaries(pg.Papers)))
}

func (s *Server) handleList(c *gin.Context) {
	p := model.ListParams{
		Category: c.Query("category"),
		View:     c.DefaultQuery("view", service.ViewRecent),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", service.DefaultListSize),
	}
	pg, err := s.catalog.List(c.Request.Context(), p)
	if err != nil {
		s.fail(c, "Papers", err)
		return
	}
	c.JSON(http.StatusOK, toSearchJSON(pg, s.summaries(pg.Papers)))
}

func (s *Server) handleStats(c *gin.Context) {
	st, err := s.catalog.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, "Stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": st.Total, "this_month": st.ThisMonth, "this_week": st.ThisWeek})
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": category.Groups()})
}

func (s *Server) handleTemplate(c *gin.Context) {
	c.JSON(http.StatusOK, s.tmpl)
}

func (s *Server) handleSubmissionStatus(c *gin.Context) {
	bot, ok := BotFromCtx(c.Request.Context())
	if !ok {
		s.fail(c, "Bot", errs.ErrUnauthorized)
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		s.fail(c, "Submission", errs.ErrNotFound)
		return
	}
	sub, err := s.subs.Status(c.Request.Context(), bot, id)
	if err != nil {
		s.fail(c, "Submission", err)
		return
	}
	c.JSON(http.StatusOK, submissionJSON{
		ID:           sub.ID.String(),
		Status:       string(sub.Status),
		PaperID:      sub.PaperID,
		ErrorMessage: sub.ErrorMessage,
		CreatedAt:    sub.CreatedAt,
	})
}

func (s *Server) handlePDF(c *gin.Context) {
	id := c.Param("id")
	pdf, err := s.catalog.PDF(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "Paper", err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+id+`.pdf"`)
	c.Header("Cache-Control", "public, max-age=31536000")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) handleBibTeX(c *gin.Context) {
	id := c.Param("id")
	bib, err := s.catalog.BibTeX(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "Paper", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+id+`.bib"`)
	c.Data(http.StatusOK, "application/x-bibtex; charset=utf-8", []byte(bib))
}

func (s *Server) handleSource(c *gin.Context) {
	id := c.Param("id")
	src, err := s.catalog.Source(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "Paper", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+id+`.tex"`)
	c.Data(http.StatusOK, "application/x-tex; charset=utf-8", []byte(src))
}
