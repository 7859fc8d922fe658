package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/migrations"
)

// RunMigrations applies the embedded goose migrations to the database behind dsn.
func RunMigrations(ctx context.Context, dsn string, logger *zap.Logger) error {
	if dsn == "" {
		logger.Warn("no postgres dsn; skipping migrations")
		return nil
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("migrations applied", zap.Int64("version", version))
	return nil
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }
