package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/closure-watch/cmd/closurewatch/cli"
	"github.com/odyssey-erp/closure-watch/internal/app"
	jobmetrics "github.com/odyssey-erp/closure-watch/internal/jobs"
	"github.com/odyssey-erp/closure-watch/internal/observability"
	scanhttp "github.com/odyssey-erp/closure-watch/internal/scan/http"
	"github.com/odyssey-erp/closure-watch/internal/store"
	"github.com/odyssey-erp/closure-watch/internal/view"
	"github.com/odyssey-erp/closure-watch/jobs"
)

const usage = `usage: closurewatch [command] [flags]

commands:
  serve     run the dashboard and API (default)
  scan      run one scan now and print flagged accounts
  latest    print the stored result of the previous scan
  probe     check that the ledger accepts the configured token
  trigger   enqueue a scan for the worker
  queue     print queue statistics
  migrate   create the postgres snapshot table

flags:
  -json     print JSON instead of a table
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	command := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.Usage = func() { _, _ = fmt.Fprint(os.Stderr, usage) }
	jsonOutput := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)
	output := cli.OutputOptions{JSONOutput: *jsonOutput}

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "scan", "latest", "probe":
		return runScanCommand(ctx, command, cfg, logger, output)
	case "trigger", "queue":
		return runJobsCommand(ctx, command, cfg, logger)
	case "migrate":
		if cfg.StoreDriver != store.DriverPostgres {
			_, _ = fmt.Fprintln(os.Stderr, "migrate: STORE_DRIVER is not postgres; nothing to do")
			return 0
		}
		_, closeStore, err := app.OpenStore(ctx, cfg, logger)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		closeStore()
		logger.Info("scan_snapshots table ready")
		return 0
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}
}

func runScanCommand(ctx context.Context, command string, cfg *app.Config, logger *slog.Logger, output cli.OutputOptions) int {
	st, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		return 1
	}
	defer closeStore()

	deps, err := app.NewScanDeps(cfg, logger, st, nil, nil)
	if err != nil {
		logger.Error("init scan", slog.Any("error", err))
		return 1
	}
	var prober cli.Prober
	if deps.Ledger != nil {
		prober = deps.Ledger
	}
	scanCLI := cli.NewScanCLI(deps.Service, prober)
	switch command {
	case "scan":
		return scanCLI.ScanCommand(ctx, output)
	case "latest":
		return scanCLI.LatestCommand(ctx, output)
	default:
		return scanCLI.ProbeCommand(ctx, output)
	}
}

func runJobsCommand(ctx context.Context, command string, cfg *app.Config, logger *slog.Logger) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	if command == "trigger" {
		info, err := jobsCLI.Trigger(ctx, jobs.TaskDormancyScan)
		if err != nil {
			logger.Error("enqueue scan", slog.Any("error", err))
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "enqueued %s on queue %s\n", info.ID, info.Queue)
		return 0
	}
	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		logger.Error("inspect queue", slog.Any("error", err))
		return 1
	}
	_, _ = fmt.Fprintf(os.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	st, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		return 1
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	deps, err := app.NewScanDeps(cfg, logger, st, jobmetrics.NewMetrics(metrics.Registerer()), metrics)
	if err != nil {
		logger.Error("init scan", slog.Any("error", err))
		return 1
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		return 1
	}

	handlerCfg := scanhttp.Config{
		Service:       deps.Service,
		Templates:     templates,
		Logger:        logger,
		ScanRateLimit: cfg.ScanRateLimit,
	}
	if deps.Ledger != nil {
		handlerCfg.Prober = deps.Ledger
	}

	var jobHandler *jobs.Handler
	if cfg.StoreDriver != store.DriverMemory {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		handlerCfg.Enqueuer = jobsClient
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		ScanHandler: scanhttp.NewHandler(handlerCfg),
		JobHandler:  jobHandler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("http server", slog.Any("error", err))
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return exitCode
}
