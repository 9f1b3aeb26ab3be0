package ports

import (
	"context"

	"tradesentry/internal/domain"
)

// StrategyPeaks are the persisted monotonic figures of one strategy's
// drawdown state, reloaded at startup. MaxDrawdown cannot be recomputed from
// equity history alone, so it survives restarts only through the journal.
type StrategyPeaks struct {
	PeakEquity  float64
	MaxDrawdown float64
}

// Journal is the local audit trail of everything the engine dispatched, plus
// the persisted drawdown peaks.
type Journal interface {
	// RecordTrade appends a successfully dispatched trade.
	RecordTrade(ctx context.Context, trade *domain.ClosedTrade) error
	// RecordDrawdown appends a successfully dispatched drawdown report and
	// updates the persisted peaks for its strategy and the account.
	RecordDrawdown(ctx context.Context, report *domain.DrawdownReport) error
	// PersistPeaks raises the stored peaks from a report that never reached
	// the ledger. The peaks must keep moving locally while the ledger is
	// down, or a restart during an outage regresses them.
	PersistPeaks(ctx context.Context, report *domain.DrawdownReport) error
	// LoadStrategyPeaks returns the persisted peaks per strategy id.
	LoadStrategyPeaks(ctx context.Context) (map[int64]StrategyPeaks, error)
	// LoadAccountPeak returns the persisted account peak balance, or 0 when
	// nothing has been recorded yet.
	LoadAccountPeak(ctx context.Context) (float64, error)
	// Close releases the underlying store.
	Close() error
}
