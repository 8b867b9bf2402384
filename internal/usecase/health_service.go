package usecase

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/platform/logging"
)

// healthProber is the pre-run probe surface. Probes run on the pool before
// the import transaction opens.
type healthProber interface {
	HasTeamNaturalKeyConstraint(ctx context.Context) (bool, error)
	CountDuplicateTeamKeys(ctx context.Context) (int, error)
	OrphanCounts(ctx context.Context) (etl.OrphanCounts, error)
}

// HealthConfig sets the orphan thresholds for post-run validation.
type HealthConfig struct {
	// OrphanBaseline is the count of stale team references tolerated without
	// intervention.
	OrphanBaseline int
	// OrphanCritical is the count past which the whole run rolls back.
	OrphanCritical int
}

// HealthService guards both ends of an import run: it blocks runs the schema
// cannot support, and it grades the referential damage a run leaves behind.
type HealthService struct {
	cfg    HealthConfig
	logger *logging.Logger
}

func NewHealthService(cfg HealthConfig, logger *logging.Logger) *HealthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthService{cfg: cfg, logger: logger}
}

// CheckPreconditions verifies the teams table carries the natural key unique
// constraint and that no duplicate natural keys exist. Either failure makes
// the identity-preserving upsert unsafe, so the run must not start.
func (s *HealthService) CheckPreconditions(ctx context.Context, prober healthProber) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.HealthService.CheckPreconditions")
	defer span.End()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		ok, err := prober.HasTeamNaturalKeyConstraint(ctx)
		if err != nil {
			return fmt.Errorf("probe natural key constraint: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: teams table lacks the (club_id, series_id, league_id) unique constraint", ErrPreconditionFailed)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		dupes, err := prober.CountDuplicateTeamKeys(ctx)
		if err != nil {
			return fmt.Errorf("probe duplicate team keys: %w", err)
		}
		if dupes > 0 {
			return fmt.Errorf("%w: %d duplicate team natural keys", ErrPreconditionFailed, dupes)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		orphans, err := prober.OrphanCounts(ctx)
		if err != nil {
			return fmt.Errorf("probe baseline orphans: %w", err)
		}
		if s.Grade(orphans) == etl.HealthCritical {
			return fmt.Errorf("%w: %d orphaned team references before the run", ErrPreconditionFailed, orphans.Total())
		}
		return nil
	})
	return p.Wait()
}

// Grade classifies an orphan count against the configured thresholds.
func (s *HealthService) Grade(orphans etl.OrphanCounts) etl.HealthStatus {
	total := orphans.Total()
	switch {
	case total > s.cfg.OrphanCritical:
		return etl.HealthCritical
	case total > s.cfg.OrphanBaseline:
		return etl.HealthDegraded
	default:
		return etl.HealthHealthy
	}
}
