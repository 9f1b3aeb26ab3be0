// Package binancesource implements ports.PositionSource over Binance USD-M
// futures. The exchange keeps no ticket-based position book, so the adapter
// reconstructs position lifecycles from the account trade list (see
// positions.go) and serves the open set, the closed history and single-record
// lookups from that reconstruction.
package binancesource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// One observation cycle makes several reads (open set, lookups,
	// balance); a short-lived reconstruction cache keeps them on one
	// point-in-time view and off the rate limiter.
	defaultCacheTTL = 2 * time.Second
)

// Config holds configuration specific to the Binance source adapter.
type Config struct {
	APIKey       string
	SecretKey    string
	UseTestnet   bool
	Symbols      []string
	StrategyID   int64 // stamped on every record; the exchange has no strategy concept
	LookbackDays int   // fill-history window, 0 = exchange default
	Logger       ports.Logger
}

// Client implements the ports.PositionSource interface using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	symbols       []string
	strategyID    int64
	lookbackDays  int

	cacheTTL    time.Duration
	cachedAt    time.Time
	cachedOpen  map[domain.PositionID]struct{}
	cachedTrade map[domain.PositionID]*domain.ClosedTrade
}

// New creates a new Binance source adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance source")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrConfiguration)
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance source configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance source configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		symbols:       cfg.Symbols,
		strategyID:    cfg.StrategyID,
		lookbackDays:  cfg.LookbackDays,
		cacheTTL:      defaultCacheTTL,
	}, nil
}

// OpenPositionIDs returns the ids of all reconstructed open positions.
func (c *Client) OpenPositionIDs(ctx context.Context) (map[domain.PositionID]struct{}, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	ids := make(map[domain.PositionID]struct{}, len(c.cachedOpen))
	for id := range c.cachedOpen {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// ClosedPositions returns the reconstructed closed positions not older than since.
func (c *Client) ClosedPositions(ctx context.Context, since time.Time) ([]*domain.ClosedTrade, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	trades := make([]*domain.ClosedTrade, 0, len(c.cachedTrade))
	for _, t := range c.cachedTrade {
		if since.IsZero() || !t.CloseTime.Before(since) {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

// ClosedPosition looks up a single reconstructed closed position.
func (c *Client) ClosedPosition(ctx context.Context, id domain.PositionID) (*domain.ClosedTrade, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	trade, ok := c.cachedTrade[id]
	if !ok {
		return nil, fmt.Errorf("%w: no closed record for position %d", ports.ErrNotFound, id)
	}
	return trade, nil
}

// AccountBalance returns the total wallet balance.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching account: %v", ports.ErrSourceUnavailable, err)
	}
	return parseFloat(account.TotalWalletBalance)
}

// AccountEquity returns the total margin balance (wallet plus unrealized PNL).
func (c *Client) AccountEquity(ctx context.Context) (float64, error) {
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching account: %v", ports.ErrSourceUnavailable, err)
	}
	return parseFloat(account.TotalMarginBalance)
}

// refresh rebuilds the reconstruction if the cached view is stale.
func (c *Client) refresh(ctx context.Context) error {
	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.cacheTTL {
		return nil
	}

	balance, err := c.AccountBalance(ctx)
	if err != nil {
		return err
	}

	open := make(map[domain.PositionID]struct{})
	closed := make(map[domain.PositionID]*domain.ClosedTrade)

	for _, symbol := range c.symbols {
		fills, err := c.fetchFills(ctx, symbol)
		if err != nil {
			return err
		}
		openPos, closedTrades := reconstruct(symbol, c.strategyID, fills)
		if openPos != nil {
			open[openPos.ID] = struct{}{}
		}
		for _, t := range closedTrades {
			// The exchange does not expose the balance as of each close;
			// the current wallet balance is the closest available figure.
			t.Balance = balance
			closed[t.PositionID] = t
		}
	}

	c.cachedOpen = open
	c.cachedTrade = closed
	c.cachedAt = time.Now()
	return nil
}

func (c *Client) fetchFills(ctx context.Context, symbol string) ([]fill, error) {
	op := "fetchFills"
	svc := c.futuresClient.NewListAccountTradeService().Symbol(symbol).Limit(1000)
	if c.lookbackDays > 0 {
		start := time.Now().AddDate(0, 0, -c.lookbackDays)
		svc = svc.StartTime(start.UnixMilli())
	}
	raw, err := svc.Do(ctx)
	if err != nil {
		c.logger.Error(ctx, err, op+": account trade list query failed", map[string]interface{}{"symbol": symbol})
		return nil, fmt.Errorf("%w: listing fills for %s: %v", ports.ErrSourceUnavailable, symbol, err)
	}

	fills := make([]fill, 0, len(raw))
	for _, t := range raw {
		qty, err := parseFloat(t.Quantity)
		if err != nil {
			c.logger.Warn(ctx, op+": skipping fill with unparsable quantity", map[string]interface{}{"fillID": t.ID, "quantity": t.Quantity})
			continue
		}
		pnl, err := parseFloat(t.RealizedPnl)
		if err != nil {
			pnl = 0
		}
		commission, err := parseFloat(t.Commission)
		if err != nil {
			commission = 0
		}
		side := domain.Buy
		if t.Side == futures.SideTypeSell {
			side = domain.Sell
		}
		fills = append(fills, fill{
			ID:          t.ID,
			Symbol:      symbol,
			Side:        side,
			Qty:         qty,
			RealizedPnl: pnl,
			Commission:  commission,
			Time:        time.UnixMilli(t.Time),
		})
	}
	return fills, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %q as float: %v", ports.ErrSourceUnavailable, s, err)
	}
	return v, nil
}
