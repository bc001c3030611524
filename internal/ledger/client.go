package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL points at the Unit sandbox API.
	DefaultBaseURL = "https://api.s.unit.sh"

	maxErrorBody = 2048
	probeLimit   = 5
)

// RequestObserver receives the outcome of every upstream request. Status is 0 when no response arrived.
type RequestObserver interface {
	ObserveLedgerRequest(op string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   RequestObserver
}

// Client reads accounts, transactions and customers from a JSON:API ledger.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	validate   *validator.Validate
	logger     *slog.Logger
	observer   RequestObserver
}

// NewClient constructs a ledger client. A missing token is a ConfigurationError.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, &ConfigurationError{Setting: "LEDGER_API_TOKEN"}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("ledger: parse base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		validate:   validator.New(),
		logger:     logger.With(slog.String("component", "ledger")),
		observer:   opts.Observer,
	}, nil
}

// ListAccountsSortedByBalance returns one page of accounts ordered by ascending balance.
func (c *Client) ListAccountsSortedByBalance(ctx context.Context, pageSize, offset int) ([]Account, error) {
	const op = "list accounts"
	query := url.Values{}
	query.Set("page[limit]", strconv.Itoa(pageSize))
	query.Set("page[offset]", strconv.Itoa(offset))
	query.Set("sort", "balance")
	body, err := c.get(ctx, op, "/accounts", query)
	if err != nil {
		return nil, err
	}
	resources, err := decodeList[accountResource](body, c.validate)
	if err != nil {
		return nil, &ProtocolError{Op: op, Err: err}
	}
	accounts := make([]Account, 0, len(resources))
	for _, res := range resources {
		account, err := res.toAccount()
		if err != nil {
			return nil, &ProtocolError{Op: op, Err: err}
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// ListRecentTransactions returns up to limit transactions, newest first.
func (c *Client) ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	return c.listTransactions(ctx, "list transactions", accountID, limit)
}

// LatestTransactionTime returns the creation time of the newest transaction on the account.
// The boolean is false when the account has never transacted.
func (c *Client) LatestTransactionTime(ctx context.Context, accountID string) (time.Time, bool, error) {
	txs, err := c.listTransactions(ctx, "latest transaction", accountID, 1)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(txs) == 0 {
		return time.Time{}, false, nil
	}
	return txs[0].CreatedAt, true, nil
}

func (c *Client) listTransactions(ctx context.Context, op, accountID string, limit int) ([]Transaction, error) {
	query := url.Values{}
	query.Set("filter[accountId]", accountID)
	query.Set("page[limit]", strconv.Itoa(limit))
	query.Set("sort", "-createdAt")
	body, err := c.get(ctx, op, "/transactions", query)
	if err != nil {
		return nil, err
	}
	resources, err := decodeList[transactionResource](body, c.validate)
	if err != nil {
		return nil, &ProtocolError{Op: op, Err: err}
	}
	txs := make([]Transaction, 0, len(resources))
	for _, res := range resources {
		tx, err := res.toTransaction(accountID)
		if err != nil {
			return nil, &ProtocolError{Op: op, Err: err}
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetCustomer loads a customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	const op = "get customer"
	body, err := c.get(ctx, op, "/customers/"+url.PathEscape(customerID), nil)
	if err != nil {
		return Customer{}, err
	}
	res, err := decodeOne[customerResource](body, c.validate)
	if err != nil {
		return Customer{}, &ProtocolError{Op: op, Err: err}
	}
	return res.toCustomer(), nil
}

// Probe fetches a handful of accounts to confirm the ledger is reachable and the token is accepted.
func (c *Client) Probe(ctx context.Context) (ProbeResult, error) {
	const op = "probe"
	query := url.Values{}
	query.Set("page[limit]", strconv.Itoa(probeLimit))
	body, err := c.get(ctx, op, "/accounts", query)
	if err != nil {
		return ProbeResult{}, err
	}
	resources, err := decodeList[accountResource](body, c.validate)
	if err != nil {
		return ProbeResult{}, &ProtocolError{Op: op, Err: err}
	}
	result := ProbeResult{AccountCount: len(resources)}
	if len(resources) > 0 {
		result.FirstAccountID = resources[0].ID
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Op: op, Err: err}
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", mediaType)
	req.Header.Set("Content-Type", mediaType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		return nil, &UpstreamError{Op: op, Err: err}
	}
	c.observe(op, resp.StatusCode, time.Since(start))
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debug("ledger request",
		slog.String("op", op),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, &ProtocolError{Op: op, Err: errors.New("empty response body")}
	}
	return body, nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveLedgerRequest(op, status, elapsed)
	}
}
