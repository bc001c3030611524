package app

import (
	"context"
	"fmt"
	"log/slog"

	jobmetrics "github.com/odyssey-erp/closure-watch/internal/jobs"
	"github.com/odyssey-erp/closure-watch/internal/ledger"
	"github.com/odyssey-erp/closure-watch/internal/notify"
	"github.com/odyssey-erp/closure-watch/internal/platform/cache"
	"github.com/odyssey-erp/closure-watch/internal/platform/db"
	"github.com/odyssey-erp/closure-watch/internal/scan"
	"github.com/odyssey-erp/closure-watch/internal/store"
)

// OpenStore connects the backend selected by STORE_DRIVER. The returned func releases it.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (scan.Store, func(), error) {
	switch cfg.StoreDriver {
	case store.DriverMemory:
		logger.Warn("using in-memory scan store; results are lost on restart")
		return store.NewMemory(), func() {}, nil
	case store.DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	case store.DriverRedis, "":
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedis(client), func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}

// ScanDeps is the wired scan stack.
type ScanDeps struct {
	Service *scan.Service
	// Ledger is nil when LEDGER_API_TOKEN is not set.
	Ledger *ledger.Client
}

// NewScanDeps wires the ledger client, notifier and scan service. A missing token is logged, not fatal.
// observer may be nil.
func NewScanDeps(cfg *Config, logger *slog.Logger, st scan.Store, metrics *jobmetrics.Metrics, observer ledger.RequestObserver) (ScanDeps, error) {
	svcCfg := scan.Config{
		Store:    st,
		Notifier: notify.New(cfg.WebhookURL),
		Policy:   cfg.ScanPolicy(),
		Logger:   logger,
		Metrics:  metrics,
	}
	deps := ScanDeps{}
	opts := cfg.LedgerOptions(logger)
	opts.Observer = observer
	client, err := ledger.NewClient(opts)
	switch {
	case ledger.IsConfiguration(err):
		logger.Warn("ledger token not configured; scans will fail until LEDGER_API_TOKEN is set")
	case err != nil:
		return ScanDeps{}, err
	default:
		deps.Ledger = client
		svcCfg.Ledger = client
	}
	deps.Service = scan.NewService(svcCfg)
	return deps, nil
}
