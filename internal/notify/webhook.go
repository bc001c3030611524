// Package notify delivers scan results to chat operators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/odyssey-erp/closure-watch/internal/scan"
)

var (
	_ scan.Notifier = (*Webhook)(nil)
	_ scan.Notifier = Noop{}
)

// Noop discards notifications. It is used when no webhook is configured.
type Noop struct{}

// Notify implements scan.Notifier.
func (Noop) Notify(context.Context, scan.Result) error { return nil }

// Webhook posts Slack-compatible block messages to an incoming webhook URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook constructs a webhook notifier.
func NewWebhook(url string, httpClient *http.Client) *Webhook {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, httpClient: httpClient}
}

// New returns a Webhook when url is set and Noop otherwise.
func New(url string) scan.Notifier {
	if url == "" {
		return Noop{}
	}
	return NewWebhook(url, nil)
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

// maxAccountSections keeps a message under the 50 block limit of Slack incoming webhooks.
const maxAccountSections = 45

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

// Notify posts the alert summary. Empty results are not sent.
func (w *Webhook) Notify(ctx context.Context, result scan.Result) error {
	if len(result.Results) == 0 {
		return nil
	}
	body, err := json.Marshal(buildMessage(result))
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

func buildMessage(result scan.Result) message {
	count := len(result.Results)
	atRisk := scan.BalanceAtRisk(result.Results).StringFixed(2)
	msg := message{
		Text: fmt.Sprintf("Account close alert: %d account(s) approaching closure", count),
		Blocks: []block{
			{
				Type: "section",
				Text: &textObject{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Account Close Alert*\n%d account(s) have been negative and inactive for %d+ days.\nTotal balance at risk: $%s",
						count, result.ThresholdDays, atRisk),
				},
			},
			{Type: "divider"},
		},
	}
	shown := result.Results
	if len(shown) > maxAccountSections {
		shown = shown[:maxAccountSections]
	}
	for _, record := range shown {
		msg.Blocks = append(msg.Blocks, block{
			Type: "section",
			Text: &textObject{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*%s*\n• Customer ID: `%s`\n• Account ID: `%s`\n• Balance: $%s\n• Days inactive: %d",
					record.CustomerName, record.CustomerID, record.AccountID, record.Balance, record.DaysInactive),
			},
		})
	}
	if hidden := count - len(shown); hidden > 0 {
		msg.Blocks = append(msg.Blocks, block{
			Type: "context",
			Elements: []textObject{{
				Type: "mrkdwn",
				Text: fmt.Sprintf("…and %d more account(s). Open the dashboard for the full list.", hidden),
			}},
		})
	}
	return msg
}
