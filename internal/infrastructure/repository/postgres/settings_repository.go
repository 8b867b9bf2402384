package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// SettingsRepository manages the system_settings key/value table. It runs on
// its own autocommit connection so the maintenance flag becomes visible to
// readers while the import transaction is still open.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

type settingModel struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (r *SettingsRepository) set(ctx context.Context, key, value string) error {
	query, args, err := qb.InsertModel("system_settings", settingModel{Key: key, Value: value},
		"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()")
	if err != nil {
		return fmt.Errorf("build setting upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// EnableMaintenance raises the maintenance flag with an operator-facing
// reason and estimated duration.
func (r *SettingsRepository) EnableMaintenance(ctx context.Context, reason string, eta time.Duration) error {
	if err := r.set(ctx, "maintenance_mode", "true"); err != nil {
		return err
	}
	if err := r.set(ctx, "maintenance_reason", reason); err != nil {
		return err
	}
	return r.set(ctx, "maintenance_eta", time.Now().Add(eta).UTC().Format(time.RFC3339))
}

// DisableMaintenance lowers the flag. Called on every exit path, success or
// rollback.
func (r *SettingsRepository) DisableMaintenance(ctx context.Context) error {
	return r.set(ctx, "maintenance_mode", "false")
}
