package scan

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
)

// Scanner walks balance-sorted account pages and collects the overdrawn ones.
type Scanner struct {
	ledger   Ledger
	pageSize int
	maxPages int
}

// NewScanner builds a Scanner using the paging settings of policy.
func NewScanner(l Ledger, policy Policy) *Scanner {
	policy = policy.withDefaults()
	return &Scanner{ledger: l, pageSize: policy.PageSize, maxPages: policy.MaxPages}
}

// Collect returns every negative-balance account in upstream order together with the number of pages fetched.
//
// Pages arrive in ascending balance order, so the first page without a negative balance ends the walk.
// An empty page also ends it, as does reaching the page ceiling. Any fetch error aborts the walk.
func (s *Scanner) Collect(ctx context.Context) ([]ledger.Account, int, error) {
	negatives := make([]ledger.Account, 0)
	pages := 0
	for page := 0; page < s.maxPages; page++ {
		accounts, err := s.ledger.ListAccountsSortedByBalance(ctx, s.pageSize, page*s.pageSize)
		pages++
		if err != nil {
			return nil, pages, fmt.Errorf("scan: fetch account page %d: %w", page+1, err)
		}
		if len(accounts) == 0 {
			break
		}
		found := 0
		for _, account := range accounts {
			if account.Negative() {
				negatives = append(negatives, account)
				found++
			}
		}
		if found == 0 {
			break
		}
	}
	return negatives, pages, nil
}
