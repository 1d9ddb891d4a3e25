// Package repository provides the operation ledger and DB bootstrap helpers
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/repository/oppostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type OperationRepo interface {
	Create(ctx context.Context, rec *model.OperationRecord) error
	GetList(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error)
}

func NewPostgresOperationRepo(dbconn *dbpg.DB) OperationRepo {
	return oppostgres.PostgresRepo{DB: dbconn}
}

// RetryStrategy for connecting to and migrating the DB at startup
var RetryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func ConnectWithRetries(ctx context.Context, dsn string, strategy retry.Strategy) (*dbpg.DB, error) {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}

	var dbConn *dbpg.DB
	err := retry.DoContext(ctx, strategy, func() error {
		conn, err := dbpg.New(dsn, nil, &dbOptions)
		if err != nil {
			zlog.Logger.Warn().Err(err).Msg("Failed to connect to PGDB, retrying...")
			return err
		}
		if err := conn.Master.PingContext(ctx); err != nil {
			_ = conn.Master.Close()
			zlog.Logger.Warn().Err(err).Msg("PGDB is not ready, retrying...")
			return err
		}
		dbConn = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return dbConn, nil
}

func MigrateWithRetries(ctx context.Context, db *sql.DB, migrationsPath string, strategy retry.Strategy) error {
	try := 0
	err := retry.DoContext(ctx, strategy, func() error {
		try++
		zlog.Logger.Info().Int("try", try).Msg("Running migrations")
		if err := runMigrate(db, migrationsPath); err != nil {
			zlog.Logger.Warn().Err(err).Int("try", try).Msg("Migration try was unsuccessful")
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("out of migration retries: %w", err)
	}
	return nil
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	zlog.Logger.Info().Str("source", sourceURL).Msg("Running migrations")

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	zlog.Logger.Info().Msg("Database migrations applied successfully")
	return nil
}
