// Package loader reads a scraped snapshot directory into typed records.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sonic "github.com/bytedance/sonic"
	validator "github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"

	"github.com/rallyhq/league-etl/internal/domain/snapshot"
	"github.com/rallyhq/league-etl/internal/platform/logging"
)

// Loader decodes the five fixed snapshot files. It never touches the
// database.
type Loader struct {
	validate *validator.Validate
	logger   *logging.Logger
}

func New(logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Load parses all five snapshot files from dir concurrently. A missing file
// surfaces as snapshot.ErrMissingFile and malformed JSON as
// snapshot.ErrParse; records failing struct validation are dropped and
// counted per file, not fatal.
func (l *Loader) Load(ctx context.Context, dir string) (snapshot.Bundle, error) {
	bundle := snapshot.Bundle{Rejected: make(map[string]int, 5)}

	tasks := []struct {
		file string
		run  func() (int, error)
	}{
		{snapshot.PlayersFile, func() (rejected int, err error) {
			bundle.Players, rejected, err = decodeFile[snapshot.PlayerRecord](l, dir, snapshot.PlayersFile, true)
			return rejected, err
		}},
		{snapshot.PlayerHistoryFile, func() (rejected int, err error) {
			bundle.PlayerHistory, rejected, err = decodeFile[snapshot.PlayerHistoryRecord](l, dir, snapshot.PlayerHistoryFile, true)
			return rejected, err
		}},
		{snapshot.MatchHistoryFile, func() (rejected int, err error) {
			bundle.Matches, rejected, err = decodeFile[snapshot.MatchRecord](l, dir, snapshot.MatchHistoryFile, true)
			return rejected, err
		}},
		{snapshot.SeriesStatsFile, func() (rejected int, err error) {
			bundle.SeriesStats, rejected, err = decodeFile[snapshot.SeriesStatsRecord](l, dir, snapshot.SeriesStatsFile, true)
			return rejected, err
		}},
		{snapshot.SchedulesFile, func() (rejected int, err error) {
			bundle.Schedules, rejected, err = decodeFile[snapshot.ScheduleRecord](l, dir, snapshot.SchedulesFile, true)
			return rejected, err
		}},
	}

	pool, err := ants.NewPool(len(tasks))
	if err != nil {
		return snapshot.Bundle{}, fmt.Errorf("create snapshot parse pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			rejected, err := task.run()
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if rejected > 0 {
				bundle.Rejected[task.file] = rejected
			}
		}); err != nil {
			wg.Done()
			return snapshot.Bundle{}, fmt.Errorf("submit snapshot parse task: %w", err)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return snapshot.Bundle{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return snapshot.Bundle{}, err
	}

	l.logger.InfoContext(ctx, "snapshot loaded",
		"dir", dir,
		"players", len(bundle.Players),
		"player_history", len(bundle.PlayerHistory),
		"matches", len(bundle.Matches),
		"series_stats", len(bundle.SeriesStats),
		"schedules", len(bundle.Schedules),
		"rejected", bundle.RejectedTotal(),
	)
	return bundle, nil
}

func decodeFile[T any](l *Loader, dir, name string, validateRecords bool) ([]T, int, error) {
	path := filepath.Join(dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", snapshot.ErrMissingFile, name)
		}
		return nil, 0, fmt.Errorf("read %s: %w", name, err)
	}

	var records []T
	if err := sonic.Unmarshal(raw, &records); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", snapshot.ErrParse, name, err)
	}
	if !validateRecords {
		return records, 0, nil
	}

	kept := records[:0]
	rejected := 0
	for _, record := range records {
		if err := l.validate.Struct(record); err != nil {
			rejected++
			continue
		}
		kept = append(kept, record)
	}
	if rejected > 0 {
		l.logger.Warn("snapshot records rejected at load", "file", name, "rejected", rejected)
	}
	return kept, rejected, nil
}
