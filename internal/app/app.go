package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/rallyhq/league-etl/internal/config"
	"github.com/rallyhq/league-etl/internal/infrastructure/backup"
	"github.com/rallyhq/league-etl/internal/infrastructure/loader"
	"github.com/rallyhq/league-etl/internal/infrastructure/repository/postgres"
	"github.com/rallyhq/league-etl/internal/platform/logging"
	"github.com/rallyhq/league-etl/internal/usecase"
)

// OpenDB opens the traced connection pool. Import runs are mostly a single
// long transaction, so the pool stays small.
func OpenDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewImportService wires the full pipeline onto one connection pool.
func NewImportService(cfg config.Config, db *sqlx.DB, logger *logging.Logger) *usecase.ImportService {
	store := postgres.NewStore(db, cfg.ImportStatementTimeout)

	health := usecase.NewHealthService(usecase.HealthConfig{
		OrphanBaseline: cfg.HealthOrphanBaseline,
		OrphanCritical: cfg.HealthOrphanCritical,
	}, logger)

	var settings usecase.MaintenanceSwitch
	if cfg.MaintenanceEnabled {
		settings = postgres.NewSettingsRepository(db)
	}

	var backupRunner usecase.BackupRunner
	if cfg.BackupEnabled {
		backupRunner = backup.NewRunner(backup.Config{
			PgDumpPath:    cfg.PgDumpPath,
			PgRestorePath: cfg.PgRestorePath,
			Dir:           cfg.BackupDir,
			DatabaseURL:   cfg.DBURL,
		}, logger)
	}

	return usecase.NewImportService(
		storeAdapter{store},
		loader.New(logger),
		health,
		settings,
		backupRunner,
		usecase.ImportConfig{
			BatchSize:         cfg.ImportBatchSize,
			MaxRecordErrors:   cfg.ImportMaxRecordErrors,
			BackupRequired:    cfg.BackupRequired,
			MaintenanceReason: cfg.MaintenanceReason,
			MaintenanceETA:    cfg.MaintenanceETA,
		},
		logger,
	)
}

// storeAdapter narrows *postgres.Store to the usecase interface; Begin needs
// the wrap because Go does not convert concrete return types to interfaces.
type storeAdapter struct {
	*postgres.Store
}

func (a storeAdapter) Begin(ctx context.Context) (usecase.ImportTx, error) {
	tx, err := a.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
