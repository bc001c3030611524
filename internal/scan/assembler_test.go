package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

func TestAssembleBuildsAlert(t *testing.T) {
	fake := newFakeLedger()
	fake.customers["c1"] = ledger.Customer{ID: "c1", FirstName: "Ada", LastName: "Lovelace"}
	assembler := NewAssembler(fake, DefaultPolicy())
	since := evalNow.AddDate(0, 0, -60)

	alert, err := assembler.Assemble(context.Background(),
		ledger.Account{ID: "a1", Balance: -12550, CustomerID: "c1"},
		Dormancy{InactiveSince: since, DaysInactive: 60, Source: SourceLatestTransaction},
	)
	require.NoError(t, err)
	assert.Equal(t, AlertRecord{
		AccountID:     "a1",
		CustomerID:    "c1",
		CustomerName:  "Ada Lovelace",
		Balance:       "-125.50",
		DaysInactive:  60,
		InactiveSince: since,
		Source:        SourceLatestTransaction,
	}, alert)
}

func TestAssembleDefaultsUnknownName(t *testing.T) {
	fake := newFakeLedger()
	fake.customers["c1"] = ledger.Customer{ID: "c1"}
	assembler := NewAssembler(fake, DefaultPolicy())

	alert, err := assembler.Assemble(context.Background(),
		ledger.Account{ID: "a1", Balance: -1, CustomerID: "c1"},
		Dormancy{DaysInactive: 50},
	)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", alert.CustomerName)
	assert.Equal(t, "-0.01", alert.Balance)
}

func TestAssembleCustomerLookupFailures(t *testing.T) {
	fake := newFakeLedger()
	assembler := NewAssembler(fake, DefaultPolicy())
	dormancy := Dormancy{DaysInactive: 70}

	_, err := assembler.Assemble(context.Background(), ledger.Account{ID: "a1", Balance: -10}, dormancy)
	var lookupErr *CustomerLookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "a1", lookupErr.AccountID)
	assert.Equal(t, 0, fake.customerCalls)

	_, err = assembler.Assemble(context.Background(), ledger.Account{ID: "a2", Balance: -10, CustomerID: "gone"}, dormancy)
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "gone", lookupErr.CustomerID)
	assert.Equal(t, 404, ledger.StatusCode(err))
}

func TestAssembleRefusesNonQualifyingAccounts(t *testing.T) {
	fake := newFakeLedger()
	fake.customers["c1"] = ledger.Customer{ID: "c1"}
	assembler := NewAssembler(fake, DefaultPolicy())

	_, err := assembler.Assemble(context.Background(), ledger.Account{ID: "a", Balance: -10, CustomerID: "c1"}, Dormancy{DaysInactive: 49})
	assert.ErrorIs(t, err, ErrBelowThreshold)

	_, err = assembler.Assemble(context.Background(), ledger.Account{ID: "a", Balance: 0, CustomerID: "c1"}, Dormancy{DaysInactive: 90})
	assert.ErrorIs(t, err, ErrBelowThreshold)
	assert.Equal(t, 0, fake.customerCalls)
}

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{
		-12550: "-125.50",
		-500:   "-5.00",
		-1:     "-0.01",
		0:      "0.00",
		123456: "1234.56",
	}
	for cents, want := range cases {
		assert.Equal(t, want, FormatCents(cents), "cents %d", cents)
	}
	assert.Equal(t, "-92233720368547758.07", FormatCents(-9223372036854775807))
}

func TestBalanceAtRisk(t *testing.T) {
	total := BalanceAtRisk([]AlertRecord{{Balance: "-125.50"}, {Balance: "-4.50"}, {Balance: "bogus"}})
	assert.Equal(t, "130.00", total.StringFixed(2))
}
