package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	pkgcrypto "github.com/and161185/clawxiv/internal/crypto"
	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/limiter"
	"github.com/and161185/clawxiv/internal/model"
)

var keyRe = regexp.MustCompile(`^clx_[0-9a-f]{32}$`)

func TestAuth_Register_HappyPath(t *testing.T) {
	t.Parallel()
	bots := newFakeBots()
	lim := allowAll()
	s := NewAuthService(bots, lim, zaptest.NewLogger(t))

	res, err := s.Register(context.Background(), RegisterInput{Name: " Claude42 ", Description: "writes papers", Origin: "10.0.0.1"})
	require.NoError(t, err)
	assert.Regexp(t, keyRe, res.APIKey)
	assert.False(t, res.BotID.IsNil())

	stored, ok := bots.byHash[pkgcrypto.HashAPIKey(res.APIKey)]
	require.True(t, ok, "bot must be stored under the key hash")
	assert.Equal(t, "Claude42", stored.Name)
	assert.NotEqual(t, res.APIKey, stored.APIKeyHash)
	require.NotNil(t, stored.Description)
	assert.Equal(t, "writes papers", *stored.Description)
	assert.Equal(t, 1, lim.recordCalls)
	assert.Equal(t, []string{"10.0.0.1"}, lim.origins)
}

func TestAuth_Register_KeysAreDistinct(t *testing.T) {
	t.Parallel()
	s := NewAuthService(newFakeBots(), allowAll(), nil)
	a, err := s.Register(context.Background(), RegisterInput{Name: "alpha", Origin: limiter.UnknownOrigin})
	require.NoError(t, err)
	b, err := s.Register(context.Background(), RegisterInput{Name: "beta", Origin: limiter.UnknownOrigin})
	require.NoError(t, err)
	assert.NotEqual(t, a.APIKey, b.APIKey)
	assert.NotEqual(t, a.BotID, b.BotID)
}

func TestAuth_Register_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		field   string
		message string
	}{
		{"empty", "", "name", "name is required"},
		{"blank", "   ", "name", "name is required"},
		{"too long", strings.Repeat("a", 256), "name", "name must be 255 characters or less"},
		{"punctuation", "bad-name!", "name", "name must contain only letters and numbers"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lim := allowAll()
			s := NewAuthService(newFakeBots(), lim, nil)
			_, err := s.Register(context.Background(), RegisterInput{Name: tc.in})
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, tc.message, ve.Message)
			assert.Zero(t, lim.regCalls, "limiter must not be consulted for invalid input")
		})
	}
}

func TestAuth_Register_RateLimited(t *testing.T) {
	t.Parallel()
	bots := newFakeBots()
	lim := &fakeLimiter{regOK: false, regWait: 90 * time.Minute}
	s := NewAuthService(bots, lim, nil)

	_, err := s.Register(context.Background(), RegisterInput{Name: "alpha", Origin: "1.2.3.4"})
	var rl *errs.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.True(t, errors.Is(err, errs.ErrRateLimited))
	assert.Equal(t, 2, rl.Hours())
	assert.Empty(t, bots.byHash)
	assert.Zero(t, lim.recordCalls)
}

func TestAuth_Register_DuplicateNameIgnoresCase(t *testing.T) {
	t.Parallel()
	bots := newFakeBots()
	lim := allowAll()
	s := NewAuthService(bots, lim, nil)

	_, err := s.Register(context.Background(), RegisterInput{Name: "Alpha"})
	require.NoError(t, err)
	_, err = s.Register(context.Background(), RegisterInput{Name: "alpha"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	assert.Len(t, bots.byHash, 1)
	assert.Equal(t, 1, lim.recordCalls)
}

func TestAuth_Register_ErrorsPropagate(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	s := NewAuthService(newFakeBots(), &fakeLimiter{regErr: boom}, nil)
	_, err := s.Register(context.Background(), RegisterInput{Name: "alpha"})
	require.ErrorIs(t, err, boom)

	bots := newFakeBots()
	bots.existsErr = boom
	s = NewAuthService(bots, allowAll(), nil)
	_, err = s.Register(context.Background(), RegisterInput{Name: "alpha"})
	require.ErrorIs(t, err, boom)

	bots = newFakeBots()
	bots.createErr = errs.ErrAlreadyExists
	s = NewAuthService(bots, allowAll(), nil)
	_, err = s.Register(context.Background(), RegisterInput{Name: "alpha"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestAuth_Register_RecordFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	s := NewAuthService(newFakeBots(), &fakeLimiter{regOK: true, recordErr: errors.New("db down")}, zaptest.NewLogger(t))
	res, err := s.Register(context.Background(), RegisterInput{Name: "alpha"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.APIKey)
}

func TestAuth_Authenticate(t *testing.T) {
	t.Parallel()
	bots := newFakeBots()
	s := NewAuthService(bots, allowAll(), nil)
	res, err := s.Register(context.Background(), RegisterInput{Name: "alpha"})
	require.NoError(t, err)

	b, err := s.Authenticate(context.Background(), res.APIKey)
	require.NoError(t, err)
	assert.Equal(t, res.BotID, b.ID)
	assert.Equal(t, "alpha", b.Name)

	_, err = s.Authenticate(context.Background(), "clx_"+"00000000000000000000000000000000")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = s.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

type countingBots struct {
	*fakeBots
	lookups int
}

func (c *countingBots) GetByAPIKeyHash(ctx context.Context, hash string) (*model.BotAccount, error) {
	c.lookups++
	return c.fakeBots.GetByAPIKeyHash(ctx, hash)
}

func TestAuth_Authenticate_WrongPrefixSkipsLookup(t *testing.T) {
	t.Parallel()
	bots := &countingBots{fakeBots: newFakeBots()}
	s := NewAuthService(bots, allowAll(), nil)
	_, err := s.Authenticate(context.Background(), "sk_0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Zero(t, bots.lookups)
}
