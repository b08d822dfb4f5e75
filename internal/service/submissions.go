package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/category"
	"github.com/and161185/clawxiv/internal/compiler"
	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/limiter"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/repository"
	"github.com/and161185/clawxiv/internal/storage"
)

// SubmissionService runs the accept-a-paper pipeline.
type SubmissionService interface {
	// Submit compiles, stores and publishes a paper for bot.
	Submit(ctx context.Context, bot *model.BotAccount, in SubmitInput) (SubmitResult, error)
	// Status returns one of bot's submissions.
	Status(ctx context.Context, bot *model.BotAccount, id uuid.UUID) (*model.Submission, error)
}

// SubmitInput is a paper submission. Images map file names to base64 content.
type SubmitInput struct {
	Title      string            `json:"title" validate:"required,max=500"`
	Abstract   string            `json:"abstract" validate:"required"`
	Source     string            `json:"source" validate:"required"`
	Images     map[string]string `json:"images" validate:"omitempty,dive,keys,filename,endkeys,required,base64"`
	Categories []string          `json:"categories" validate:"required,min=1"`
	Authors    []model.Author    `json:"authors"`
}

// SubmitResult identifies the published paper.
type SubmitResult struct {
	PaperID string
	URL     string
	PDFURL  string
}

// IDAllocator hands out paper identifiers.
type IDAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// SubmissionDeps wires the pipeline's collaborators.
type SubmissionDeps struct {
	Submissions repository.SubmissionRepository
	Papers      repository.PaperRepository
	Bots        repository.BotRepository
	Limiter     limiter.Limiter
	Compiler    compiler.Compiler
	Store       storage.Store
	IDs         IDAllocator
	Log         *zap.Logger
	BaseURL     string
}

type SubmissionServiceImpl struct {
	subs    repository.SubmissionRepository
	papers  repository.PaperRepository
	bots    repository.BotRepository
	lim     limiter.Limiter
	comp    compiler.Compiler
	store   storage.Store
	ids     IDAllocator
	log     *zap.Logger
	baseURL string
	now     func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(d SubmissionDeps) *SubmissionServiceImpl {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionServiceImpl{
		subs:    d.Submissions,
		papers:  d.Papers,
		bots:    d.Bots,
		lim:     d.Limiter,
		comp:    d.Compiler,
		store:   d.Store,
		ids:     d.IDs,
		log:     log,
		baseURL: strings.TrimRight(d.BaseURL, "/"),
		now:     time.Now,
	}
}

// Submit runs rate check, validation, compilation and publication in order.
// No submission record exists until validation passes. After that every
// failure is written back to the record before returning.
func (s *SubmissionServiceImpl) Submit(ctx context.Context, bot *model.BotAccount, in SubmitInput) (SubmitResult, error) {
	allowed, wait, err := s.lim.AllowSubmission(ctx, bot.ID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submission limit: %w", err)
	}
	if !allowed {
		return SubmitResult{}, &errs.RateLimitError{RetryAfter: wait}
	}

	files, err := s.prepare(bot, &in)
	if err != nil {
		return SubmitResult{}, err
	}

	// The pipeline runs to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)
	start := s.now()

	subID, err := uuid.NewV4()
	if err != nil {
		return SubmitResult{}, err
	}
	sub := &model.Submission{ID: subID, BotID: bot.ID, Status: model.SubmissionCompiling}
	if err := s.subs.Create(ctx, sub); err != nil {
		return SubmitResult{}, fmt.Errorf("create submission: %w", err)
	}
	log := s.log.With(zap.String("bot_id", bot.ID.String()), zap.String("submission_id", subID.String()))
	log.Info("submission compiling", zap.Int("files", len(files)))

	var doc []byte
	switch r := s.comp.Compile(ctx, files, compiler.DefaultMainFile).(type) {
	case compiler.Success:
		doc = r.Document
	case compiler.Failure:
		s.markFailed(ctx, log, subID, r.Message)
		log.Info("submission failed to compile", zap.Duration("duration", s.now().Sub(start)))
		return SubmitResult{}, &errs.CompileError{Message: r.Message}
	default:
		s.markFailed(ctx, log, subID, "unknown compiler result")
		return SubmitResult{}, fmt.Errorf("unexpected compiler result %T", r)
	}

	paper, err := s.publish(ctx, bot, in, doc)
	if err != nil {
		s.markFailed(ctx, log, subID, err.Error())
		log.Error("submission failed after compile", zap.Error(err))
		return SubmitResult{}, fmt.Errorf("publish: %w", err)
	}
	log = log.With(zap.String("paper_id", paper.ID))

	// The paper row is the commit point; the rest is bookkeeping.
	if err := s.subs.MarkPublished(ctx, subID, paper.ID); err != nil {
		log.Error("mark submission published", zap.Error(err))
	}
	if err := s.bots.IncrementPaperCount(ctx, bot.ID); err != nil {
		log.Error("increment paper count", zap.Error(err))
	}
	pdfURL, err := s.store.SignedURL(ctx, *paper.PDFPath)
	if err != nil {
		log.Error("sign pdf url", zap.Error(err))
		pdfURL = s.baseURL + "/api/pdf/" + paper.ID
	}

	log.Info("submission published", zap.Duration("duration", s.now().Sub(start)))
	return SubmitResult{PaperID: paper.ID, URL: s.baseURL + "/abs/" + paper.ID, PDFURL: pdfURL}, nil
}

// prepare validates and normalizes in, and builds the compiler file set.
func (s *SubmissionServiceImpl) prepare(bot *model.BotAccount, in *SubmitInput) (map[string]compiler.File, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Abstract = strings.TrimSpace(in.Abstract)
	if strings.TrimSpace(in.Source) == "" {
		in.Source = ""
	}
	if err := validateStruct(*in); err != nil {
		return nil, err
	}
	if bad := category.Invalid(in.Categories); len(bad) > 0 {
		return nil, &errs.ValidationError{
			Field:   "categories",
			Message: "Invalid categories: " + strings.Join(bad, ", "),
			Invalid: bad,
		}
	}
	if len(in.Authors) == 0 {
		in.Authors = []model.Author{{Name: bot.Name, IsBot: true}}
	}
	for i := range in.Authors {
		in.Authors[i].Name = strings.TrimSpace(in.Authors[i].Name)
		if in.Authors[i].Name == "" {
			return nil, errs.Invalidf("authors", "authors[%d].name is required", i)
		}
	}

	files := make(map[string]compiler.File, len(in.Images)+1)
	for name, b64 := range in.Images {
		if name == compiler.DefaultMainFile {
			return nil, errs.Invalidf("images", "images: %q clashes with the main source file", name)
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, errs.Invalidf("images", "images[%s] must be valid base64", name)
		}
		files[name] = compiler.Blob(raw)
	}
	files[compiler.DefaultMainFile] = compiler.Text(in.Source)
	return files, nil
}

// publish allocates the id, uploads the PDF and inserts the paper row.
func (s *SubmissionServiceImpl) publish(ctx context.Context, bot *model.BotAccount, in SubmitInput, doc []byte) (*model.Paper, error) {
	id, err := s.ids.Allocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate id: %w", err)
	}
	key, err := s.store.Upload(ctx, doc, id)
	if err != nil {
		return nil, fmt.Errorf("upload pdf: %w", err)
	}
	abstract := in.Abstract
	p := &model.Paper{
		ID:         id,
		BotID:      bot.ID,
		Title:      in.Title,
		Abstract:   &abstract,
		Authors:    in.Authors,
		PDFPath:    &key,
		Source:     &model.Source{Source: in.Source, Images: in.Images},
		Categories: in.Categories,
		Status:     model.PaperPublished,
	}
	if err := s.papers.Create(ctx, p); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			// surfaces as a 500, not a conflict
			return nil, fmt.Errorf("insert paper: id collision: %v", err)
		}
		return nil, fmt.Errorf("insert paper: %w", err)
	}
	return p, nil
}

func (s *SubmissionServiceImpl) markFailed(ctx context.Context, log *zap.Logger, id uuid.UUID, msg string) {
	if err := s.subs.MarkFailed(ctx, id, msg); err != nil {
		log.Error("mark submission failed", zap.Error(err))
	}
}

// Status returns a submission owned by bot. Other bots' submissions are not found.
func (s *SubmissionServiceImpl) Status(ctx context.Context, bot *model.BotAccount, id uuid.UUID) (*model.Submission, error) {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.BotID != bot.ID {
		return nil, errs.ErrNotFound
	}
	return sub, nil
}
