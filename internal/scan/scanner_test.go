package scan

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

func sortedAccounts(balances ...int64) []ledger.Account {
	accounts := make([]ledger.Account, len(balances))
	for i, b := range balances {
		accounts[i] = ledger.Account{ID: fmt.Sprintf("acc-%03d", i), Balance: b, CustomerID: fmt.Sprintf("cust-%03d", i)}
	}
	return accounts
}

func TestScannerStopsAtFirstPageWithoutNegatives(t *testing.T) {
	balances := make([]int64, 0, 25)
	for i := 0; i < 12; i++ {
		balances = append(balances, int64(-1000+i))
	}
	for i := 0; i < 13; i++ {
		balances = append(balances, int64(i*10))
	}
	fake := newFakeLedger(sortedAccounts(balances...)...)
	scanner := NewScanner(fake, Policy{PageSize: 5})

	accounts, pages, err := scanner.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 12)
	for _, a := range accounts {
		assert.Less(t, a.Balance, int64(0))
	}
	// Pages 1-3 hold negatives (page 3 is mixed), page 4 has none.
	assert.Equal(t, 4, pages)
	assert.Equal(t, []int{0, 5, 10, 15}, fake.pageCalls)
}

func TestScannerKeepsPageOrder(t *testing.T) {
	fake := newFakeLedger(sortedAccounts(-900, -500, -20, 0, 5)...)
	scanner := NewScanner(fake, DefaultPolicy())

	accounts, _, err := scanner.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, []string{"acc-000", "acc-001", "acc-002"}, []string{accounts[0].ID, accounts[1].ID, accounts[2].ID})
}

func TestScannerEmptyFirstPage(t *testing.T) {
	fake := newFakeLedger()
	scanner := NewScanner(fake, DefaultPolicy())

	accounts, pages, err := scanner.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, 1, pages)
	assert.Equal(t, []int{0}, fake.pageCalls)
}

func TestScannerStopsAtPageCeiling(t *testing.T) {
	balances := make([]int64, 40)
	for i := range balances {
		balances[i] = -100
	}
	fake := newFakeLedger(sortedAccounts(balances...)...)
	scanner := NewScanner(fake, Policy{PageSize: 2, MaxPages: 3})

	accounts, pages, err := scanner.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 6)
	assert.Equal(t, 3, pages)
}

func TestScannerPageErrorIsFatal(t *testing.T) {
	fake := newFakeLedger(sortedAccounts(-5, -4, -3, -2, -1)...)
	fake.pageErr[2] = errUpstream
	scanner := NewScanner(fake, Policy{PageSize: 2})

	accounts, _, err := scanner.Collect(context.Background())
	require.Error(t, err)
	assert.Nil(t, accounts)
	assert.ErrorIs(t, err, errUpstream)
}
