package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

var errUpstream = &ledger.UpstreamError{Op: "test", StatusCode: 502}

// fakeLedger serves a fixed account snapshot sorted by balance.
type fakeLedger struct {
	mu sync.Mutex

	accounts     []ledger.Account
	pageErr      map[int]error
	latest       map[string]time.Time
	latestErr    map[string]error
	transactions map[string][]ledger.Transaction
	txErr        map[string]error
	customers    map[string]ledger.Customer
	customerErr  map[string]error

	pageCalls     []int
	customerCalls int
}

func newFakeLedger(accounts ...ledger.Account) *fakeLedger {
	return &fakeLedger{
		accounts:     accounts,
		pageErr:      map[int]error{},
		latest:       map[string]time.Time{},
		latestErr:    map[string]error{},
		transactions: map[string][]ledger.Transaction{},
		txErr:        map[string]error{},
		customers:    map[string]ledger.Customer{},
		customerErr:  map[string]error{},
	}
}

func (f *fakeLedger) ListAccountsSortedByBalance(ctx context.Context, pageSize, offset int) ([]ledger.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, offset)
	if err := f.pageErr[offset]; err != nil {
		return nil, err
	}
	if offset >= len(f.accounts) {
		return nil, nil
	}
	end := offset + pageSize
	if end > len(f.accounts) {
		end = len(f.accounts)
	}
	page := make([]ledger.Account, end-offset)
	copy(page, f.accounts[offset:end])
	return page, nil
}

func (f *fakeLedger) ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.txErr[accountID]; err != nil {
		return nil, err
	}
	txs := f.transactions[accountID]
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (f *fakeLedger) LatestTransactionTime(ctx context.Context, accountID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.latestErr[accountID]; err != nil {
		return time.Time{}, false, err
	}
	ts, ok := f.latest[accountID]
	return ts, ok, nil
}

func (f *fakeLedger) GetCustomer(ctx context.Context, customerID string) (ledger.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	if err := f.customerErr[customerID]; err != nil {
		return ledger.Customer{}, err
	}
	c, ok := f.customers[customerID]
	if !ok {
		return ledger.Customer{}, &ledger.UpstreamError{Op: "get customer", StatusCode: 404}
	}
	return c, nil
}

type memoryStore struct {
	mu     sync.Mutex
	saved  []Result
	err    error
	latest *Result
}

func (m *memoryStore) SaveLatest(ctx context.Context, result Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, result)
	m.latest = &result
	return nil
}

func (m *memoryStore) Latest(ctx context.Context) (Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return Result{}, false, nil
	}
	return *m.latest, true, nil
}

type recordingNotifier struct {
	calls []Result
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, result Result) error {
	n.calls = append(n.calls, result)
	return n.err
}

var errNotifier = errors.New("webhook down")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
