package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/clawxiv/migrations"
)

const testDSN = "postgres://u:p@127.0.0.1:1/db?sslmode=disable"

type fakeUpper struct {
	res []*goose.MigrationResult
	err error
}

func (f fakeUpper) Up(context.Context) ([]*goose.MigrationResult, error) { return f.res, f.err }

func stubProvider(t *testing.T, u upper, err error) {
	t.Helper()
	orig := newProvider
	t.Cleanup(func() { newProvider = orig })
	newProvider = func(db *sql.DB) (upper, error) {
		require.NotNil(t, db)
		return u, err
	}
}

func TestUp_LogsAppliedVersions(t *testing.T) {
	stubProvider(t, fakeUpper{res: []*goose.MigrationResult{
		{Source: &goose.Source{Type: goose.TypeSQL, Path: "00001_init.sql", Version: 1}, Duration: time.Millisecond},
		nil,
	}}, nil)

	core, logs := observer.New(zapcore.DebugLevel)
	require.NoError(t, Up(context.Background(), testDSN, zap.New(core)))

	applied := logs.FilterMessage("migration applied").All()
	require.Len(t, applied, 1)
	require.Equal(t, int64(1), applied[0].ContextMap()["version"])
	require.Equal(t, "00001_init.sql", applied[0].ContextMap()["file"])
}

func TestUp_NothingPending(t *testing.T) {
	stubProvider(t, fakeUpper{}, nil)

	core, logs := observer.New(zapcore.DebugLevel)
	require.NoError(t, Up(context.Background(), testDSN, zap.New(core)))
	require.Equal(t, 1, logs.FilterMessage("schema up to date").Len())
}

func TestUp_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("provider", func(t *testing.T) {
		stubProvider(t, nil, boom)
		require.ErrorIs(t, Up(context.Background(), testDSN, nil), boom)
	})
	t.Run("up", func(t *testing.T) {
		stubProvider(t, fakeUpper{err: boom}, nil)
		require.ErrorIs(t, Up(context.Background(), testDSN, nil), boom)
	})
}

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		b, err := fs.ReadFile(migrations.FS, e.Name())
		require.NoError(t, err)
		body := string(b)
		require.True(t, strings.Contains(body, "-- +goose Up"), e.Name())
		require.True(t, strings.Contains(body, "-- +goose Down"), e.Name())
	}
}
