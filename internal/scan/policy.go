package scan

const (
	// DefaultThresholdDays is how long an account must stay negative and inactive before it is flagged.
	DefaultThresholdDays = 50
	// DefaultPageSize is the number of accounts requested per upstream page.
	DefaultPageSize = 100
	// DefaultMaxPages bounds how many pages a single scan may request.
	DefaultMaxPages = 50
	// DefaultTransactionLimit bounds the history walked when reconstructing a balance.
	DefaultTransactionLimit = 50
	// DefaultFallbackDays is assumed when no inactivity signal can be derived.
	DefaultFallbackDays = 7
	// DefaultWorkers is the number of accounts evaluated concurrently.
	DefaultWorkers = 4
)

// Policy tunes a scan. Zero values fall back to the defaults above.
type Policy struct {
	ThresholdDays    int
	PageSize         int
	MaxPages         int
	TransactionLimit int
	FallbackDays     int
	Workers          int
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{}.withDefaults()
}

func (p Policy) withDefaults() Policy {
	if p.ThresholdDays <= 0 {
		p.ThresholdDays = DefaultThresholdDays
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.TransactionLimit <= 0 {
		p.TransactionLimit = DefaultTransactionLimit
	}
	if p.FallbackDays <= 0 {
		p.FallbackDays = DefaultFallbackDays
	}
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	return p
}
