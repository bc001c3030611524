package scan

import "github.com/shopspring/decimal"

// FormatCents renders an amount of cents as a decimal string with two fraction digits.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// BalanceAtRisk sums the absolute balances of records. Unparseable balances are ignored.
func BalanceAtRisk(records []AlertRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		amount, err := decimal.NewFromString(rec.Balance)
		if err != nil {
			continue
		}
		total = total.Add(amount.Abs())
	}
	return total
}
