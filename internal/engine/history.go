package engine

import (
	"context"
	"fmt"
	"time"

	"tradesentry/internal/ports"
)

// HistorySynchronizer back-fills the gap between the engine's full historical
// closed-position set and what the remote ledger already holds. It runs once
// at startup, before steady-state detection begins, and only fills the trade
// ledger: replayed records never touch drawdown state, which is recomputed
// from live detection alone to avoid double counting against a possibly
// stale remote set.
type HistorySynchronizer struct {
	source     ports.PositionSource
	ledger     ports.LedgerClient
	dispatcher *Dispatcher
	logger     ports.Logger
	horizon    int // days; 0 = unbounded
	nowFn      func() time.Time
}

// SyncStats summarizes one synchronizer pass.
type SyncStats struct {
	Examined int
	Sent     int
	Skipped  int
	Failed   int
}

// NewHistorySynchronizer creates a synchronizer bounded by horizonDays.
func NewHistorySynchronizer(source ports.PositionSource, ledger ports.LedgerClient, dispatcher *Dispatcher, logger ports.Logger, horizonDays int) (*HistorySynchronizer, error) {
	if source == nil || ledger == nil || dispatcher == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for HistorySynchronizer")
	}
	if horizonDays < 0 {
		return nil, fmt.Errorf("history horizon cannot be negative")
	}
	return &HistorySynchronizer{
		source:     source,
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger,
		horizon:    horizonDays,
		nowFn:      time.Now,
	}, nil
}

// Run computes the symmetric difference between local history (within the
// horizon) and the ledger's known set, and replays the missing records. An
// empty or unusable known set degrades to "send everything in horizon"
// rather than failing.
func (h *HistorySynchronizer) Run(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	known, err := h.ledger.KnownTickets(ctx)
	if err != nil {
		h.logger.Warn(ctx, "Could not fetch known tickets, history sync will send everything in horizon", map[string]interface{}{"error": err})
		known = nil
	}

	var since time.Time
	if h.horizon > 0 {
		since = h.nowFn().AddDate(0, 0, -h.horizon)
	}
	history, err := h.source.ClosedPositions(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("%w: loading history for synchronization: %v", ports.ErrSourceUnavailable, err)
	}

	for _, trade := range history {
		stats.Examined++
		if _, recorded := known[trade.PositionID]; recorded {
			stats.Skipped++
			metricHistorySync.WithLabelValues("skipped").Inc()
			continue
		}
		if h.dispatcher.DispatchTrade(ctx, trade) {
			stats.Sent++
			metricHistorySync.WithLabelValues("sent").Inc()
		} else {
			stats.Failed++
			metricHistorySync.WithLabelValues("failed").Inc()
		}
	}

	h.logger.Info(ctx, "History synchronization finished", map[string]interface{}{
		"examined": stats.Examined,
		"sent":     stats.Sent,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
	})
	return stats, nil
}
