package scan

import (
	"context"
	"strings"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

// CustomerGetter resolves account owners.
type CustomerGetter interface {
	GetCustomer(ctx context.Context, customerID string) (ledger.Customer, error)
}

// Assembler turns a qualifying account into an AlertRecord.
type Assembler struct {
	customers     CustomerGetter
	thresholdDays int
}

// NewAssembler builds an Assembler enforcing the threshold of policy.
func NewAssembler(customers CustomerGetter, policy Policy) *Assembler {
	policy = policy.withDefaults()
	return &Assembler{customers: customers, thresholdDays: policy.ThresholdDays}
}

// Assemble fetches the account owner and builds the alert. Accounts below the threshold or with a
// non-negative balance are refused with ErrBelowThreshold.
func (a *Assembler) Assemble(ctx context.Context, account ledger.Account, dormancy Dormancy) (AlertRecord, error) {
	if !account.Negative() || dormancy.DaysInactive < a.thresholdDays {
		return AlertRecord{}, ErrBelowThreshold
	}
	customerID := strings.TrimSpace(account.CustomerID)
	if customerID == "" {
		return AlertRecord{}, &CustomerLookupError{AccountID: account.ID}
	}
	customer, err := a.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return AlertRecord{}, &CustomerLookupError{AccountID: account.ID, CustomerID: customerID, Err: err}
	}
	if customer.ID == "" {
		customer.ID = customerID
	}
	return AlertRecord{
		AccountID:     account.ID,
		CustomerID:    customer.ID,
		CustomerName:  customer.Name(),
		Balance:       FormatCents(account.Balance),
		DaysInactive:  dormancy.DaysInactive,
		InactiveSince: dormancy.InactiveSince,
		Source:        dormancy.Source,
	}, nil
}
