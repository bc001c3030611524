// Package ledger talks to the upstream ledger API that owns accounts, transactions and customers.
package ledger

import (
	"strings"
	"time"
)

// Account is a read-only snapshot of an upstream deposit account.
// Balance is expressed in cents.
type Account struct {
	ID         string
	Balance    int64
	Status     string
	CustomerID string
}

// Negative reports whether the account is overdrawn.
func (a Account) Negative() bool {
	return a.Balance < 0
}

// Transaction is a signed ledger movement on a single account. Debits are negative.
type Transaction struct {
	ID        string
	AccountID string
	Amount    int64
	CreatedAt time.Time
}

// Customer identifies the owner of an account.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
}

// UnknownCustomerName is reported when the customer has no name on file.
const UnknownCustomerName = "Unknown"

// Name returns the display name of the customer.
func (c Customer) Name() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name == "" {
		return UnknownCustomerName
	}
	return name
}

// ProbeResult summarises a connectivity check against the ledger.
type ProbeResult struct {
	AccountCount   int    `json:"accountCount"`
	FirstAccountID string `json:"firstAccountId,omitempty"`
}
