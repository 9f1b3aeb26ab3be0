// Package ledgerhttp implements ports.LedgerClient against the remote trade
// ledger's HTTP API. Calls are synchronous and fire-and-forget: a failed
// dispatch is reported to the caller and never retried here; recovering a
// lost event is the history synchronizer's job on a later run.
package ledgerhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds configuration for the ledger client.
type Config struct {
	BaseURL   string
	AccountID string
	Timeout   time.Duration
	Logger    ports.Logger
}

// Client implements ports.LedgerClient.
type Client struct {
	baseURL   string
	accountID string
	http      *http.Client
	logger    ports.Logger
}

// New creates a ledger client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for ledger client")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: ledger base URL is empty", ports.ErrConfiguration)
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("%w: account identifier is empty", ports.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		accountID: cfg.AccountID,
		http:      &http.Client{Timeout: timeout},
		logger:    cfg.Logger,
	}, nil
}

// tradePayload is the wire form of POST /trade.
type tradePayload struct {
	AccountID  string  `json:"account_id"`
	Ticket     int64   `json:"ticket"`
	StrategyID int64   `json:"strategy_id"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Volume     float64 `json:"volume"`
	PNL        float64 `json:"pnl"`
	Result     string  `json:"result"`
	Balance    float64 `json:"balance"`
	OpenTime   string  `json:"open_time"`
	CloseTime  string  `json:"close_time"`
	Comment    string  `json:"comment"`
}

// drawdownPayload is the wire form of POST /drawdown.
type drawdownPayload struct {
	AccountID           string  `json:"account_id"`
	StrategyID          int64   `json:"strategy_id"`
	Balance             float64 `json:"balance"`
	Equity              float64 `json:"equity"`
	PeakBalance         float64 `json:"peak_balance"`
	DrawdownAccount     float64 `json:"drawdown_account"`
	DrawdownAccountPct  float64 `json:"drawdown_account_pct"`
	DrawdownStrategy    float64 `json:"drawdown_strategy"`
	MaxDrawdownStrategy float64 `json:"max_drawdown_strategy"`
	PeakStrategy        float64 `json:"peak_strategy"`
	Timestamp           string  `json:"timestamp"`
}

// PostTrade reports one closed trade to the ledger.
func (c *Client) PostTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	payload := tradePayload{
		AccountID:  c.accountID,
		Ticket:     int64(trade.PositionID),
		StrategyID: trade.StrategyID,
		Symbol:     trade.Symbol,
		Direction:  string(trade.Direction),
		Volume:     trade.Volume,
		PNL:        trade.PNL,
		Result:     string(trade.Result()),
		Balance:    trade.Balance,
		OpenTime:   trade.OpenTime.UTC().Format(time.RFC3339),
		CloseTime:  trade.CloseTime.UTC().Format(time.RFC3339),
		Comment:    trade.Comment,
	}
	return c.post(ctx, "/trade", payload)
}

// PostDrawdown reports one drawdown snapshot to the ledger.
func (c *Client) PostDrawdown(ctx context.Context, report *domain.DrawdownReport) error {
	payload := drawdownPayload{
		AccountID:           c.accountID,
		StrategyID:          report.StrategyID,
		Balance:             report.Balance,
		Equity:              report.Equity,
		PeakBalance:         report.PeakBalance,
		DrawdownAccount:     report.AccountDrawdown,
		DrawdownAccountPct:  report.AccountDrawdownPct,
		DrawdownStrategy:    report.StrategyDrawdown,
		MaxDrawdownStrategy: report.MaxStrategyDrawdown,
		PeakStrategy:        report.PeakStrategyEquity,
		Timestamp:           report.Timestamp.UTC().Format(time.RFC3339),
	}
	return c.post(ctx, "/drawdown", payload)
}

// KnownTickets fetches the position ids the ledger already holds for this
// account. Malformed bodies degrade to an empty set; only transport failures
// surface as errors.
func (c *Client) KnownTickets(ctx context.Context) (map[domain.PositionID]struct{}, error) {
	endpoint := c.baseURL + "/tickets/" + c.accountID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ports.ErrTransport, endpoint, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ports.ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ports.ErrTransport, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ports.ErrTransport, endpoint, err)
	}

	tickets := ParseTicketList(string(body))
	c.logger.Debug(ctx, "Fetched known tickets from ledger", map[string]interface{}{"count": len(tickets)})
	return tickets, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", path, err)
	}
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %v", ports.ErrTransport, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error(ctx, err, "Ledger request failed", map[string]interface{}{"endpoint": endpoint, "payloadBytes": len(body)})
		return fmt.Errorf("%w: POST %s (%d bytes): %v", ports.ErrTransport, endpoint, len(body), err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error(ctx, nil, "Ledger rejected request", map[string]interface{}{"endpoint": endpoint, "status": resp.StatusCode, "payloadBytes": len(body)})
		return fmt.Errorf("%w: POST %s returned status %d", ports.ErrTransport, endpoint, resp.StatusCode)
	}
	return nil
}
