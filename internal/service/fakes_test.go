package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/clawxiv/internal/compiler"
	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/limiter"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/repository"
	"github.com/and161185/clawxiv/internal/storage"
)

/************ bots ************/
type fakeBots struct {
	mu     sync.Mutex
	byHash map[string]*model.BotAccount

	createErr error
	existsErr error
	incErr    error

	incCalls int
}

var _ repository.BotRepository = (*fakeBots)(nil)

func newFakeBots() *fakeBots { return &fakeBots{byHash: map[string]*model.BotAccount{}} }

func (f *fakeBots) Create(_ context.Context, b *model.BotAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byHash {
		if strings.EqualFold(x.Name, b.Name) {
			return errs.ErrAlreadyExists
		}
	}
	cpy := *b
	cpy.CreatedAt = time.Now()
	f.byHash[b.APIKeyHash] = &cpy
	return nil
}

func (f *fakeBots) GetByAPIKeyHash(_ context.Context, hash string) (*model.BotAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byHash[hash]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeBots) NameExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, x := range f.byHash {
		if strings.EqualFold(x.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBots) IncrementPaperCount(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incCalls++
	if f.incErr != nil {
		return f.incErr
	}
	for _, x := range f.byHash {
		if x.ID == id {
			x.PaperCount++
			return nil
		}
	}
	return errs.ErrNotFound
}

/************ limiter ************/
type fakeLimiter struct {
	regOK   bool
	regWait time.Duration
	regErr  error

	subOK   bool
	subWait time.Duration
	subErr  error

	recordErr error

	regCalls    int
	recordCalls int
	subCalls    int
	origins     []string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func allowAll() *fakeLimiter { return &fakeLimiter{regOK: true, subOK: true} }

func (l *fakeLimiter) AllowRegistration(_ context.Context, origin string) (bool, time.Duration, error) {
	l.regCalls++
	l.origins = append(l.origins, origin)
	return l.regOK, l.regWait, l.regErr
}

func (l *fakeLimiter) RecordRegistration(context.Context, string) error {
	l.recordCalls++
	return l.recordErr
}

func (l *fakeLimiter) AllowSubmission(context.Context, uuid.UUID) (bool, time.Duration, error) {
	l.subCalls++
	return l.subOK, l.subWait, l.subErr
}

/************ submissions ************/
type fakeSubs struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Submission

	createErr error
	markErr   error
}

var _ repository.SubmissionRepository = (*fakeSubs)(nil)

func newFakeSubs() *fakeSubs { return &fakeSubs{byID: map[uuid.UUID]*model.Submission{}} }

func (f *fakeSubs) Create(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	c := *s
	f.byID[s.ID] = &c
	return nil
}

func (f *fakeSubs) MarkPublished(_ context.Context, id uuid.UUID, paperID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	s, ok := f.byID[id]
	if !ok || s.Status != model.SubmissionCompiling {
		return errs.ErrNotFound
	}
	s.Status = model.SubmissionPublished
	s.PaperID = &paperID
	return nil
}

func (f *fakeSubs) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	s, ok := f.byID[id]
	if !ok || s.Status != model.SubmissionCompiling {
		return errs.ErrNotFound
	}
	s.Status = model.SubmissionFailed
	s.ErrorMessage = &msg
	return nil
}

func (f *fakeSubs) Get(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSubs) all() []model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Submission, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, *s)
	}
	return out
}

/************ papers ************/
type fakePapers struct {
	mu     sync.Mutex
	byID   map[string]*model.Paper
	seq    map[string]int
	search []model.PaperSummary
	total  int
	stats  model.Stats

	createErr error
	searchErr error

	lastFilter  model.PaperFilter
	statsMonth  time.Time
	statsWeek   time.Time
	createCalls int
}

var _ repository.PaperRepository = (*fakePapers)(nil)

func newFakePapers() *fakePapers {
	return &fakePapers{byID: map[string]*model.Paper{}, seq: map[string]int{}}
}

func (f *fakePapers) NextSequence(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq[prefix]++
	return f.seq[prefix], nil
}

func (f *fakePapers) Create(_ context.Context, p *model.Paper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byID[p.ID]; ok {
		return errs.ErrAlreadyExists
	}
	p.CreatedAt = time.Now()
	c := *p
	f.byID[p.ID] = &c
	return nil
}

func (f *fakePapers) Get(_ context.Context, id string) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePapers) Search(_ context.Context, fl model.PaperFilter) ([]model.PaperSummary, error) {
	f.lastFilter = fl
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search, nil
}

func (f *fakePapers) Count(_ context.Context, fl model.PaperFilter) (int, error) {
	f.lastFilter = fl
	return f.total, f.searchErr
}

func (f *fakePapers) Stats(_ context.Context, monthStart, weekStart time.Time) (model.Stats, error) {
	f.statsMonth, f.statsWeek = monthStart, weekStart
	return f.stats, nil
}

/************ compiler ************/
type fakeCompiler struct {
	result compiler.Result
	files  map[string]compiler.File
	main   string
	calls  int
}

var _ compiler.Compiler = (*fakeCompiler)(nil)

func (c *fakeCompiler) Compile(_ context.Context, files map[string]compiler.File, mainFile string) compiler.Result {
	c.calls++
	c.files, c.main = files, mainFile
	return c.result
}

/************ store ************/
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	uploadErr error
	signErr   error
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) Upload(_ context.Context, data []byte, paperID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	key := storage.KeyFor(paperID)
	s.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *fakeStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) SignedURL(_ context.Context, key string) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://blobs.test/" + key + "?sig=1", nil
}
