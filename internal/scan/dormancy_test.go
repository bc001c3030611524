package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

var evalNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func TestEvaluateUsesLatestTransaction(t *testing.T) {
	fake := newFakeLedger()
	fake.latest["a"] = evalNow.AddDate(0, 0, -60)
	evaluator := NewEvaluator(fake, DefaultPolicy(), nil, fixedClock(evalNow))

	d, err := evaluator.Evaluate(context.Background(), ledger.Account{ID: "a", Balance: -500})
	require.NoError(t, err)
	assert.Equal(t, 60, d.DaysInactive)
	assert.Equal(t, fake.latest["a"], d.InactiveSince)
	assert.Equal(t, SourceLatestTransaction, d.Source)
}

func TestEvaluateSkipsAccountsWithoutHistory(t *testing.T) {
	fake := newFakeLedger()
	evaluator := NewEvaluator(fake, DefaultPolicy(), nil, fixedClock(evalNow))

	_, err := evaluator.Evaluate(context.Background(), ledger.Account{ID: "a", Balance: -500})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestEvaluateReconstructsWhenLatestLookupFails(t *testing.T) {
	fake := newFakeLedger()
	fake.latestErr["a"] = errUpstream
	crossed := evalNow.AddDate(0, 0, -55)
	// Balance -500: undoing the newest debit (-300) gives -200, undoing the older debit (-400) gives 200.
	fake.transactions["a"] = []ledger.Transaction{
		{ID: "t3", AccountID: "a", Amount: -300, CreatedAt: evalNow.AddDate(0, 0, -20)},
		{ID: "t2", AccountID: "a", Amount: -400, CreatedAt: crossed},
		{ID: "t1", AccountID: "a", Amount: 1000, CreatedAt: evalNow.AddDate(0, 0, -90)},
	}
	evaluator := NewEvaluator(fake, DefaultPolicy(), nil, fixedClock(evalNow))

	d, err := evaluator.Evaluate(context.Background(), ledger.Account{ID: "a", Balance: -500})
	require.NoError(t, err)
	assert.Equal(t, SourceBalanceReconstruction, d.Source)
	assert.Equal(t, crossed, d.InactiveSince)
	assert.Equal(t, 55, d.DaysInactive)
}

func TestEvaluateFallsBackWhenNoCrossingFound(t *testing.T) {
	fake := newFakeLedger()
	fake.latestErr["a"] = errUpstream
	fake.transactions["a"] = []ledger.Transaction{
		{ID: "t1", AccountID: "a", Amount: -100, CreatedAt: evalNow.AddDate(0, 0, -3)},
	}
	evaluator := NewEvaluator(fake, DefaultPolicy(), nil, fixedClock(evalNow))

	d, err := evaluator.Evaluate(context.Background(), ledger.Account{ID: "a", Balance: -500})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, d.Source)
	assert.Equal(t, DefaultFallbackDays, d.DaysInactive)
}

func TestEvaluateFailsWhenBothSignalsFail(t *testing.T) {
	fake := newFakeLedger()
	fake.latestErr["a"] = errUpstream
	fake.txErr["a"] = errUpstream
	evaluator := NewEvaluator(fake, DefaultPolicy(), nil, fixedClock(evalNow))

	_, err := evaluator.Evaluate(context.Background(), ledger.Account{ID: "a", Balance: -500})
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
	assert.NotErrorIs(t, err, ErrNoHistory)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	fake := newFakeLedger()
	fake.latest["a"] = evalNow.Add(-51*day - 5*time.Hour)
	evaluator := NewEvaluator(fake, DefaultPolicy(), nil, fixedClock(evalNow))
	account := ledger.Account{ID: "a", Balance: -1}

	first, err := evaluator.Evaluate(context.Background(), account)
	require.NoError(t, err)
	second, err := evaluator.Evaluate(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 51, first.DaysInactive)
}

func TestNegativeSince(t *testing.T) {
	ts := evalNow.AddDate(0, 0, -10)
	_, ok := NegativeSince(100, []ledger.Transaction{{Amount: 500, CreatedAt: ts}})
	assert.False(t, ok, "non-negative balances never crossed below zero")

	since, ok := NegativeSince(-50, []ledger.Transaction{{Amount: -50, CreatedAt: ts}})
	assert.True(t, ok)
	assert.Equal(t, ts, since)

	_, ok = NegativeSince(-50, nil)
	assert.False(t, ok)
}

func TestDaysBetweenRounds(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(evalNow, evalNow))
	assert.Equal(t, 1, DaysBetween(evalNow, evalNow.Add(-13*time.Hour)))
	assert.Equal(t, 0, DaysBetween(evalNow, evalNow.Add(-11*time.Hour)))
	assert.Equal(t, 3, DaysBetween(evalNow.AddDate(0, 0, -3), evalNow))
}
