// Package fakeledger serves a generated JSON:API ledger for local development and end-to-end tests.
package fakeledger

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
	"github.com/odyssey-erp/closure-watch/internal/platform/httpx"
)

// Dataset is the ledger state served by the fake.
type Dataset struct {
	// Accounts are kept sorted by ascending balance.
	Accounts []ledger.Account
	// Transactions are keyed by account and kept newest first.
	Transactions map[string][]ledger.Transaction
	Customers    map[string]ledger.Customer
}

// Generate builds a reproducible dataset of n accounts. Roughly a third are overdrawn and their last
// activity is spread over the past 120 days.
func Generate(seed uint64, n int, now time.Time) Dataset {
	faker := gofakeit.New(seed)
	ds := Dataset{
		Accounts:     make([]ledger.Account, 0, n),
		Transactions: make(map[string][]ledger.Transaction, n),
		Customers:    make(map[string]ledger.Customer, n),
	}
	for i := 0; i < n; i++ {
		accountID := strconv.Itoa(100000 + i)
		customerID := strconv.Itoa(500000 + i)
		ds.Customers[customerID] = ledger.Customer{ID: customerID, FirstName: faker.FirstName(), LastName: faker.LastName()}

		balance := int64(faker.IntRange(100, 250000))
		if faker.IntRange(0, 2) == 0 {
			balance = -int64(faker.IntRange(100, 60000))
		}
		ds.Accounts = append(ds.Accounts, ledger.Account{ID: accountID, Balance: balance, Status: "Open", CustomerID: customerID})

		txCount := faker.IntRange(0, 6)
		last := now.AddDate(0, 0, -faker.IntRange(0, 120))
		txs := make([]ledger.Transaction, 0, txCount)
		for j := 0; j < txCount; j++ {
			txs = append(txs, ledger.Transaction{
				ID:        fmt.Sprintf("%s-%d", accountID, j),
				AccountID: accountID,
				Amount:    int64(faker.IntRange(-20000, 20000)),
				CreatedAt: last.AddDate(0, 0, -j*faker.IntRange(1, 10)).Truncate(time.Second),
			})
		}
		ds.Transactions[accountID] = txs
	}
	sort.SliceStable(ds.Accounts, func(i, j int) bool { return ds.Accounts[i].Balance < ds.Accounts[j].Balance })
	return ds
}

// Server exposes a Dataset over the ledger's JSON:API routes.
type Server struct {
	data  Dataset
	token string
}

// NewServer returns a server that only accepts requests bearing token.
func NewServer(data Dataset, token string) *Server {
	return &Server{data: data, token: token}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authorize)
	r.Get("/accounts", s.listAccounts)
	r.Get("/transactions", s.listTransactions)
	r.Get("/customers/{id}", s.getCustomer)
	return r
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeErrors(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data resourceRef `json:"data"`
}

type resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]any          `json:"attributes"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type document struct {
	Data any `json:"data"`
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "page[limit]", 100)
	offset := intParam(r, "page[offset]", 0)
	page := []resource{}
	for i := offset; i < len(s.data.Accounts) && i < offset+limit; i++ {
		a := s.data.Accounts[i]
		page = append(page, resource{
			Type:       "depositAccount",
			ID:         a.ID,
			Attributes: map[string]any{"balance": a.Balance, "status": a.Status},
			Relationships: map[string]relationship{
				"customer": {Data: resourceRef{Type: "individualCustomer", ID: a.CustomerID}},
			},
		})
	}
	writeDocument(w, http.StatusOK, page)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("filter[accountId]")
	limit := intParam(r, "page[limit]", 100)
	page := []resource{}
	for i, tx := range s.data.Transactions[accountID] {
		if i >= limit {
			break
		}
		direction := "Credit"
		amount := tx.Amount
		if amount < 0 {
			direction = "Debit"
			amount = -amount
		}
		page = append(page, resource{
			Type:       "bookTransaction",
			ID:         tx.ID,
			Attributes: map[string]any{"amount": amount, "direction": direction, "createdAt": tx.CreatedAt.Format(time.RFC3339)},
			Relationships: map[string]relationship{
				"account": {Data: resourceRef{Type: "account", ID: tx.AccountID}},
			},
		})
	}
	writeDocument(w, http.StatusOK, page)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.data.Customers[chi.URLParam(r, "id")]
	if !ok {
		writeErrors(w, http.StatusNotFound, "customer not found")
		return
	}
	writeDocument(w, http.StatusOK, resource{
		Type: "individualCustomer",
		ID:   customer.ID,
		Attributes: map[string]any{
			"fullName": map[string]string{"first": customer.FirstName, "last": customer.LastName},
		},
	})
}

func intParam(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeDocument(w http.ResponseWriter, status int, data any) {
	httpx.JSON(w, status, document{Data: data})
}

func writeErrors(w http.ResponseWriter, status int, title string) {
	httpx.JSON(w, status, map[string]any{
		"errors": []map[string]string{{"status": strconv.Itoa(status), "title": title}},
	})
}
