package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
	"github.com/odyssey-erp/closure-watch/internal/scan"
)

// ScanRunner executes one scan.
type ScanRunner interface {
	Run(ctx context.Context, trigger scan.Trigger) (scan.Result, error)
}

// DormancyScanJob runs queued and scheduled scans.
type DormancyScanJob struct {
	Runner ScanRunner
	Logger *slog.Logger
	clock  func() time.Time
}

// NewDormancyScanJob initialises the dormancy scan handler.
func NewDormancyScanJob(runner ScanRunner, logger *slog.Logger) *DormancyScanJob {
	return &DormancyScanJob{
		Runner: runner,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan. Configuration problems are not retried.
func (j *DormancyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("dormancy scan: handler not configured")
	}
	var payload DormancyScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dormancy scan: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Trigger == "" {
		payload.Trigger = scan.TriggerScheduled
	}

	start := j.now()
	logger := j.logger().With(slog.String("trigger", string(payload.Trigger)))
	if payload.ScheduledFor != nil {
		logger = logger.With(slog.Time("scheduled_for", payload.ScheduledFor.UTC()))
	}
	logger.Info("starting dormancy scan")

	result, err := j.Runner.Run(ctx, payload.Trigger)
	if err != nil {
		if ledger.IsConfiguration(err) {
			logger.Error("dormancy scan misconfigured", slog.Any("error", err))
			return fmt.Errorf("dormancy scan: %v: %w", err, asynq.SkipRetry)
		}
		logger.Error("dormancy scan failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed dormancy scan",
		slog.String("scan_id", result.ID.String()),
		slog.Int("alerts", result.Count),
		slog.Int("candidates", result.Stats.Candidates),
		slog.Int("failed", result.Stats.Failed),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

func (j *DormancyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *DormancyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDormancyScan))
	}
	return slog.Default().With(slog.String("job", TaskDormancyScan))
}
