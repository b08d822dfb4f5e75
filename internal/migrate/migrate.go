// Package migrate applies the embedded schema migrations on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/migrations"
)

type upper interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
}

// newProvider is swapped in tests.
var newProvider = func(db *sql.DB) (upper, error) {
	return goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
}

// Up applies every pending migration and logs each applied version.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	p, err := newProvider(db)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	res, err := p.Up(ctx)
	for _, r := range res {
		if r == nil || r.Source == nil {
			continue
		}
		log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("dur", r.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	if len(res) == 0 {
		log.Debug("schema up to date")
	}
	return nil
}
