package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/closure-watch/internal/jobs"
	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

// JobName labels scan runs in logs and metrics.
const JobName = "dormancy_scan"

// Config wires the collaborators of a Service. Ledger may be nil when credentials are missing;
// scans then fail with a ledger.ConfigurationError.
type Config struct {
	Ledger   Ledger
	Store    Store
	Notifier Notifier
	Policy   Policy
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Clock    func() time.Time
}

// Service runs dormancy scans end to end.
type Service struct {
	ledger    Ledger
	store     Store
	notifier  Notifier
	policy    Policy
	scanner   *Scanner
	evaluator *Evaluator
	assembler *Assembler
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	policy := cfg.Policy.withDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	svc := &Service{
		ledger:   cfg.Ledger,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		policy:   policy,
		logger:   logger.With(slog.String("job", JobName)),
		metrics:  cfg.Metrics,
		clock:    clock,
	}
	if cfg.Ledger != nil {
		svc.scanner = NewScanner(cfg.Ledger, policy)
		svc.evaluator = NewEvaluator(cfg.Ledger, policy, svc.logger, clock)
		svc.assembler = NewAssembler(cfg.Ledger, policy)
	}
	return svc
}

// Policy returns the effective scan policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// Latest returns the most recently persisted scan result.
func (s *Service) Latest(ctx context.Context) (Result, bool, error) {
	if s.store == nil {
		return Result{}, false, nil
	}
	return s.store.Latest(ctx)
}

// Run performs one scan. Failures on individual accounts are logged and counted, never returned.
// Errors fetching account pages abort the scan, as does ctx ending before every candidate is evaluated; nothing is
// persisted or notified then. A persistence error is returned with the computed result.
func (s *Service) Run(ctx context.Context, trigger Trigger) (Result, error) {
	if s.ledger == nil {
		return Result{}, &ledger.ConfigurationError{Setting: "LEDGER_API_TOKEN"}
	}

	tracker := s.metrics.Track(JobName)
	var runErr error
	defer func() {
		_ = tracker.End(runErr)
	}()

	start := s.clock()
	logger := s.logger.With(
		slog.String("trigger", string(trigger)),
		slog.Int("threshold_days", s.policy.ThresholdDays),
	)
	logger.Info("starting dormancy scan")

	candidates, pages, err := s.scanner.Collect(ctx)
	if err != nil {
		runErr = err
		logger.Error("collect negative balances", slog.Int("pages", pages), slog.Any("error", err))
		return Result{}, runErr
	}
	logger.Info("collected negative balances", slog.Int("pages", pages), slog.Int("candidates", len(candidates)))

	outcomes := s.evaluateAll(ctx, candidates)
	if err := ctx.Err(); err != nil {
		runErr = fmt.Errorf("scan: evaluate candidates: %w", err)
		logger.Error("dormancy scan interrupted", slog.Int("candidates", len(candidates)), slog.Any("error", err))
		return Result{}, runErr
	}

	result := Result{
		ID:            uuid.New(),
		Results:       make([]AlertRecord, 0),
		Timestamp:     start,
		ThresholdDays: s.policy.ThresholdDays,
		Trigger:       trigger,
		Stats:         Stats{PagesFetched: pages, Candidates: len(candidates)},
	}
	for _, outcome := range outcomes {
		switch outcome.Status {
		case StatusAlerted:
			result.Results = append(result.Results, *outcome.Alert)
			result.Stats.Alerted++
		case StatusBelowThreshold:
			result.Stats.BelowThreshold++
		case StatusSkipped:
			result.Stats.Skipped++
		case StatusFailed:
			result.Stats.Failed++
			logger.Warn("account excluded from scan", slog.String("account_id", outcome.AccountID), slog.Any("error", outcome.Err))
		}
	}
	result.Count = len(result.Results)
	s.recordMetrics(result)

	if s.store != nil {
		if err := s.store.SaveLatest(ctx, result.Clone()); err != nil {
			runErr = fmt.Errorf("scan: persist latest result: %w", err)
			logger.Error("persist scan result", slog.Any("error", err))
			return result, runErr
		}
	}

	if result.Count > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, result.Clone()); err != nil {
			logger.Error("notify scan result", slog.Any("error", err))
		}
	}

	logger.Info("completed dormancy scan",
		slog.String("scan_id", result.ID.String()),
		slog.Int("alerts", result.Count),
		slog.Int("below_threshold", result.Stats.BelowThreshold),
		slog.Int("skipped", result.Stats.Skipped),
		slog.Int("failed", result.Stats.Failed),
		slog.Duration("duration", s.clock().Sub(start)),
	)
	return result, nil
}

// evaluateAll processes candidates on a bounded pool. Outcomes keep the order of accounts.
func (s *Service) evaluateAll(ctx context.Context, accounts []ledger.Account) []Outcome {
	outcomes := make([]Outcome, len(accounts))
	var g errgroup.Group
	g.SetLimit(s.policy.Workers)
	for i, account := range accounts {
		g.Go(func() error {
			outcomes[i] = s.processAccount(ctx, account)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Service) processAccount(ctx context.Context, account ledger.Account) Outcome {
	outcome := Outcome{AccountID: account.ID}
	if !account.Negative() {
		outcome.Status = StatusSkipped
		return outcome
	}
	dormancy, err := s.evaluator.Evaluate(ctx, account)
	switch {
	case errors.Is(err, ErrNoHistory):
		outcome.Status = StatusSkipped
		return outcome
	case err != nil:
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}
	if dormancy.DaysInactive < s.policy.ThresholdDays {
		outcome.Status = StatusBelowThreshold
		return outcome
	}
	alert, err := s.assembler.Assemble(ctx, account, dormancy)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}
	outcome.Status = StatusAlerted
	outcome.Alert = &alert
	return outcome
}

func (s *Service) recordMetrics(result Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.AddOutcomes(string(StatusAlerted), result.Stats.Alerted)
	s.metrics.AddOutcomes(string(StatusBelowThreshold), result.Stats.BelowThreshold)
	s.metrics.AddOutcomes(string(StatusSkipped), result.Stats.Skipped)
	s.metrics.AddOutcomes(string(StatusFailed), result.Stats.Failed)
	atRisk, _ := BalanceAtRisk(result.Results).Float64()
	s.metrics.SetLatest(result.Count, atRisk)
}
