package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rallyhq/league-etl/internal/app"
	"github.com/rallyhq/league-etl/internal/config"
	"github.com/rallyhq/league-etl/internal/observability"
	"github.com/rallyhq/league-etl/internal/platform/logging"
	"github.com/rallyhq/league-etl/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		env        = flag.String("env", "", "target environment: dev, stage or prod (default: APP_ENV)")
		dataDir    = flag.String("data-dir", "", "directory holding the snapshot JSON files (default: DATA_DIR)")
		leagues    = flag.String("leagues", "", "comma-separated league ids to import; empty imports all")
		dryRun     = flag.Bool("dry-run", false, "run the full pipeline and roll back instead of committing")
		backup     = flag.Bool("backup", true, "take a pg_dump file backup before the run (default: BACKUP_ENABLED)")
		skipBackup = flag.Bool("skip-backup", false, "skip the pg_dump file backup for this run only")
		yes        = flag.Bool("yes", false, "skip the interactive confirmation prompt")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *env != "" {
		cfg.AppEnv, err = config.ParseAppEnv(*env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse -env: %v\n", err)
			return 1
		}
	}
	// An explicit -backup beats BACKUP_ENABLED; BACKUP_REQUIRED still wins.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "backup" {
			cfg.BackupEnabled = *backup
		}
	})

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownUptrace(ctx); err != nil {
			logger.Error("shutdown uptrace", "error", err)
		}
	}()

	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		return 1
	}
	defer func() {
		if err := stopProfiler(); err != nil {
			logger.Error("stop pyroscope", "error", err)
		}
	}()

	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof server", "error", err)
		return 1
	}
	defer func() {
		if err := observability.StopPprofServer(pprofSrv, logger, 5*time.Second); err != nil {
			logger.Error("stop pprof server", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input := usecase.ImportInput{
		DataDir:    strings.TrimSpace(*dataDir),
		DryRun:     *dryRun,
		SkipBackup: *skipBackup,
	}
	if input.DataDir == "" {
		input.DataDir = cfg.DataDir
	}
	if raw := strings.TrimSpace(*leagues); raw != "" {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				input.Leagues = append(input.Leagues, item)
			}
		}
	}

	if !*yes && !input.DryRun {
		if !confirm(cfg.AppEnv, input.DataDir) {
			fmt.Fprintln(os.Stderr, "aborted")
			return 1
		}
	}

	db, err := app.OpenDB(ctx, cfg)
	if err != nil {
		logger.Error("open database", "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	service := app.NewImportService(cfg, db, logger)
	summary, err := service.Run(ctx, input)
	printSummary(summary)
	if err != nil {
		logger.Error("import failed", "phase", string(summary.Phase), "error", err)
		switch {
		case errors.Is(err, usecase.ErrPreconditionFailed):
			return 3
		case errors.Is(err, usecase.ErrHealthCritical):
			return 4
		case errors.Is(err, usecase.ErrTooManyRecordErrors):
			return 5
		default:
			return 1
		}
	}
	return 0
}

// confirm asks the operator to acknowledge the destructive replace.
func confirm(env, dataDir string) bool {
	fmt.Fprintf(os.Stderr, "This will replace %s league data from %s inside one transaction.\n", env, dataDir)
	fmt.Fprint(os.Stderr, "Type 'yes' to continue: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func printSummary(summary usecase.ImportSummary) {
	encoded, err := sonic.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}
