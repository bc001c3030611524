package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	mediaType = "application/vnd.api+json"

	directionDebit = "Debit"
)

var errMissingData = errors.New("missing data member")

// document is the top-level JSON:API envelope.
type document struct {
	Data json.RawMessage `json:"data"`
}

type relationship struct {
	Data *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

func (r *relationship) id() string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data.ID
}

type accountResource struct {
	Type       string `json:"type" validate:"required"`
	ID         string `json:"id" validate:"required"`
	Attributes struct {
		Balance *json.Number `json:"balance" validate:"required"`
		Status  string       `json:"status"`
	} `json:"attributes"`
	Relationships struct {
		Customer *relationship `json:"customer"`
	} `json:"relationships"`
}

type transactionResource struct {
	Type       string `json:"type" validate:"required"`
	ID         string `json:"id" validate:"required"`
	Attributes struct {
		Amount    *json.Number `json:"amount" validate:"required"`
		Direction string       `json:"direction"`
		CreatedAt *time.Time   `json:"createdAt" validate:"required"`
	} `json:"attributes"`
	Relationships struct {
		Account *relationship `json:"account"`
	} `json:"relationships"`
}

type customerResource struct {
	Type       string `json:"type" validate:"required"`
	ID         string `json:"id" validate:"required"`
	Attributes struct {
		FullName *struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"fullName"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"attributes"`
}

func decodeDocument(body []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// decodeList unmarshals the data member as an array. A missing or null data member is an empty list.
func decodeList[T any](body []byte, validate *validator.Validate) ([]T, error) {
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(doc.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
	}
	return items, nil
}

func decodeOne[T any](body []byte, validate *validator.Validate) (T, error) {
	var item T
	doc, err := decodeDocument(body)
	if err != nil {
		return item, err
	}
	raw := bytes.TrimSpace(doc.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return item, errMissingData
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, err
	}
	if err := validate.Struct(item); err != nil {
		return item, err
	}
	return item, nil
}

func (r accountResource) toAccount() (Account, error) {
	balance, err := r.Attributes.Balance.Int64()
	if err != nil {
		return Account{}, fmt.Errorf("account %s: balance %q is not an integer amount of cents", r.ID, r.Attributes.Balance.String())
	}
	return Account{
		ID:         r.ID,
		Balance:    balance,
		Status:     r.Attributes.Status,
		CustomerID: r.Relationships.Customer.id(),
	}, nil
}

func (r transactionResource) toTransaction(accountID string) (Transaction, error) {
	amount, err := r.Attributes.Amount.Int64()
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: amount %q is not an integer amount of cents", r.ID, r.Attributes.Amount.String())
	}
	if strings.EqualFold(r.Attributes.Direction, directionDebit) && amount > 0 {
		amount = -amount
	}
	if id := r.Relationships.Account.id(); id != "" {
		accountID = id
	}
	return Transaction{
		ID:        r.ID,
		AccountID: accountID,
		Amount:    amount,
		CreatedAt: r.Attributes.CreatedAt.UTC(),
	}, nil
}

func (r customerResource) toCustomer() Customer {
	c := Customer{
		ID:        r.ID,
		FirstName: r.Attributes.FirstName,
		LastName:  r.Attributes.LastName,
	}
	if r.Attributes.FullName != nil {
		if c.FirstName == "" {
			c.FirstName = r.Attributes.FullName.First
		}
		if c.LastName == "" {
			c.LastName = r.Attributes.FullName.Last
		}
	}
	return c
}
