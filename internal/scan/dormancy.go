package scan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

const day = 24 * time.Hour

// Evaluator dates how long an overdrawn account has been inactive.
type Evaluator struct {
	ledger           Ledger
	transactionLimit int
	fallbackDays     int
	logger           *slog.Logger
	clock            func() time.Time
}

// NewEvaluator builds an Evaluator. A nil clock uses the current UTC time.
func NewEvaluator(l Ledger, policy Policy, logger *slog.Logger, clock func() time.Time) *Evaluator {
	policy = policy.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Evaluator{
		ledger:           l,
		transactionLimit: policy.TransactionLimit,
		fallbackDays:     policy.FallbackDays,
		logger:           logger,
		clock:            clock,
	}
}

// Evaluate returns the dormancy of account. It returns ErrNoHistory when the account never transacted.
//
// The latest transaction time is the primary signal. When that lookup fails the recent history is walked
// backwards from the current balance to find when the balance went negative; when no such point exists
// the fixed fallback window is assumed.
func (e *Evaluator) Evaluate(ctx context.Context, account ledger.Account) (Dormancy, error) {
	now := e.clock()
	latest, ok, err := e.ledger.LatestTransactionTime(ctx, account.ID)
	if err == nil {
		if !ok {
			return Dormancy{}, ErrNoHistory
		}
		return newDormancy(now, latest, SourceLatestTransaction), nil
	}

	e.logger.Warn("latest transaction lookup failed, reconstructing from history",
		slog.String("account_id", account.ID),
		slog.Any("error", err),
	)
	txs, err := e.ledger.ListRecentTransactions(ctx, account.ID, e.transactionLimit)
	if err != nil {
		return Dormancy{}, fmt.Errorf("scan: list transactions for account %s: %w", account.ID, err)
	}
	if len(txs) == 0 {
		return Dormancy{}, ErrNoHistory
	}
	if since, found := NegativeSince(account.Balance, txs); found {
		return newDormancy(now, since, SourceBalanceReconstruction), nil
	}
	return newDormancy(now, now.Add(-time.Duration(e.fallbackDays)*day), SourceFallback), nil
}

// NegativeSince walks txs newest to oldest, undoing each amount from balance, and returns the time of the
// transaction that took the balance below zero.
func NegativeSince(balance int64, txs []ledger.Transaction) (time.Time, bool) {
	if balance >= 0 {
		return time.Time{}, false
	}
	running := balance
	for _, tx := range txs {
		running -= tx.Amount
		if running >= 0 {
			return tx.CreatedAt, true
		}
	}
	return time.Time{}, false
}

// DaysBetween returns the whole number of days between a and b, rounded to the nearest day.
func DaysBetween(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Round(float64(diff) / float64(day)))
}

func newDormancy(now, since time.Time, source Source) Dormancy {
	return Dormancy{InactiveSince: since, DaysInactive: DaysBetween(now, since), Source: source}
}
