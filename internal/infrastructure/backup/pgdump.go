// Package backup shells out to pg_dump for the pre-import file backup.
package backup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rallyhq/league-etl/internal/platform/logging"
)

type Config struct {
	// PgDumpPath overrides the binary location; empty means $PATH lookup.
	// PgRestorePath does the same for the recovery path.
	PgDumpPath    string
	PgRestorePath string
	Dir           string
	DatabaseURL   string
}

// Runner produces one custom-format dump per invocation, named by timestamp.
type Runner struct {
	cfg    Config
	logger *logging.Logger
}

func NewRunner(cfg Config, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

func (r *Runner) Run(ctx context.Context) (string, error) {
	if r.cfg.DatabaseURL == "" {
		return "", fmt.Errorf("backup: database url is required")
	}
	dir := r.cfg.Dir
	if dir == "" {
		dir = "backups"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir %s: %w", dir, err)
	}

	binary := r.cfg.PgDumpPath
	if binary == "" {
		binary = "pg_dump"
	}
	path := filepath.Join(dir, fmt.Sprintf("pre_import_%s.dump", time.Now().UTC().Format("20060102_150405")))

	cmd := exec.CommandContext(ctx, binary,
		"--format=custom",
		"--no-owner",
		"--file", path,
		"--dbname", r.cfg.DatabaseURL,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Remove the partial file so a later restore cannot pick it up.
		_ = os.Remove(path)
		return "", fmt.Errorf("run pg_dump: %w: %s", err, string(output))
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat backup file: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return "", fmt.Errorf("backup file %s is empty", path)
	}
	r.logger.InfoContext(ctx, "database backup written", "path", path, "bytes", info.Size())
	return path, nil
}

// Restore loads a previously written dump back into the database. Used as
// secondary recovery when a rollback itself fails.
func (r *Runner) Restore(ctx context.Context, path string) error {
	if r.cfg.DatabaseURL == "" {
		return fmt.Errorf("restore: database url is required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat backup file: %w", err)
	}

	binary := r.cfg.PgRestorePath
	if binary == "" {
		binary = "pg_restore"
	}
	cmd := exec.CommandContext(ctx, binary,
		"--clean",
		"--if-exists",
		"--no-owner",
		"--dbname", r.cfg.DatabaseURL,
		path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run pg_restore: %w: %s", err, string(output))
	}
	r.logger.InfoContext(ctx, "database restored from backup", "path", path)
	return nil
}
