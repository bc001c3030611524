// Package scan finds overdrawn accounts that have been dormant long enough to face involuntary closure.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

// Ledger is the upstream data the scan consumes.
type Ledger interface {
	ListAccountsSortedByBalance(ctx context.Context, pageSize, offset int) ([]ledger.Account, error)
	ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error)
	LatestTransactionTime(ctx context.Context, accountID string) (time.Time, bool, error)
	GetCustomer(ctx context.Context, customerID string) (ledger.Customer, error)
}

// Store persists the most recent scan result, overwriting the previous one.
type Store interface {
	SaveLatest(ctx context.Context, result Result) error
	Latest(ctx context.Context) (Result, bool, error)
}

// Notifier delivers a non-empty scan result to operators.
type Notifier interface {
	Notify(ctx context.Context, result Result) error
}

// Source names the signal used to date an account's inactivity.
type Source string

const (
	SourceLatestTransaction     Source = "latest_transaction"
	SourceBalanceReconstruction Source = "balance_reconstruction"
	SourceFallback              Source = "fallback"
)

// Trigger records what started a scan.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerCLI       Trigger = "cli"
)

// Dormancy describes how long an account has been inactive.
type Dormancy struct {
	InactiveSince time.Time
	DaysInactive  int
	Source        Source
}

// AlertRecord flags one account approaching closure.
type AlertRecord struct {
	AccountID     string    `json:"accountId"`
	CustomerID    string    `json:"customerId"`
	CustomerName  string    `json:"customerName"`
	Balance       string    `json:"balance"`
	DaysInactive  int       `json:"daysInactive"`
	InactiveSince time.Time `json:"inactiveSince"`
	Source        Source    `json:"source,omitempty"`
}

// Stats counts per-account outcomes of a scan.
type Stats struct {
	PagesFetched   int `json:"pagesFetched"`
	Candidates     int `json:"candidates"`
	Alerted        int `json:"alerted"`
	BelowThreshold int `json:"belowThreshold"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

// Result is the outcome of one scan. Results keep ascending balance order.
type Result struct {
	ID            uuid.UUID     `json:"scanId"`
	Results       []AlertRecord `json:"results"`
	Timestamp     time.Time     `json:"timestamp"`
	Count         int           `json:"count"`
	ThresholdDays int           `json:"thresholdDays"`
	Trigger       Trigger       `json:"trigger,omitempty"`
	Stats         Stats         `json:"stats"`
}

// Clone returns a copy that shares no slice storage with r.
func (r Result) Clone() Result {
	out := r
	out.Results = make([]AlertRecord, len(r.Results))
	copy(out.Results, r.Results)
	return out
}

// Status classifies what happened to one candidate account.
type Status string

const (
	StatusAlerted        Status = "alerted"
	StatusBelowThreshold Status = "below_threshold"
	StatusSkipped        Status = "skipped"
	StatusFailed         Status = "failed"
)

// Outcome is the per-account result of evaluation and assembly.
type Outcome struct {
	AccountID string
	Status    Status
	Alert     *AlertRecord
	Err       error
}

var (
	// ErrNoHistory marks an account that never transacted; it cannot be dormant.
	ErrNoHistory = errors.New("scan: account has no transactions")
	// ErrBelowThreshold is returned when assembling an alert for an account that does not qualify.
	ErrBelowThreshold = errors.New("scan: dormancy below threshold")
)

// CustomerLookupError reports that the owner of a qualifying account could not be resolved.
type CustomerLookupError struct {
	AccountID  string
	CustomerID string
	Err        error
}

func (e *CustomerLookupError) Error() string {
	if e.CustomerID == "" {
		return fmt.Sprintf("scan: account %s has no customer relationship", e.AccountID)
	}
	return fmt.Sprintf("scan: lookup customer %s for account %s: %v", e.CustomerID, e.AccountID, e.Err)
}

func (e *CustomerLookupError) Unwrap() error {
	return e.Err
}
