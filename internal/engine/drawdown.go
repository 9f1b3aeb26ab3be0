package engine

import (
	"context"
	"fmt"
	"time"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

// DrawdownTracker folds closure events and account observations into the
// store's drawdown states. A strategy's aggregate realized equity is
// recomputed from the full closed-position history on every closure rather
// than accumulated incrementally, so the figures stay consistent if history
// is amended upstream. O(n) per closure, acceptable at per-account trade
// volumes.
type DrawdownTracker struct {
	source ports.PositionSource
	store  *SnapshotStore
	logger ports.Logger
}

// NewDrawdownTracker creates a tracker over the given store.
func NewDrawdownTracker(source ports.PositionSource, store *SnapshotStore, logger ports.Logger) (*DrawdownTracker, error) {
	if source == nil || store == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for DrawdownTracker")
	}
	return &DrawdownTracker{source: source, store: store, logger: logger}, nil
}

// SeedFromHistory creates drawdown state for every strategy present in the
// historical closed-position set, seeded with its aggregate realized equity.
// Persisted peaks from a previous run are layered on top.
func (t *DrawdownTracker) SeedFromHistory(ctx context.Context, persisted map[int64]ports.StrategyPeaks) error {
	history, err := t.source.ClosedPositions(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("%w: loading history for drawdown seeding: %v", ports.ErrSourceUnavailable, err)
	}

	equities := make(map[int64]float64)
	for _, trade := range history {
		equities[trade.StrategyID] += trade.PNL
	}
	for id, equity := range equities {
		t.store.GetOrCreateStrategy(id, equity)
	}
	// Strategies known only from the journal (their history may have been
	// truncated upstream) still get their peaks back.
	for id, peaks := range persisted {
		st := t.store.GetOrCreateStrategy(id, 0)
		st.RestorePeaks(peaks.PeakEquity, peaks.MaxDrawdown)
	}

	t.logger.Info(ctx, "Strategy drawdown states seeded", map[string]interface{}{
		"fromHistory": len(equities),
		"fromJournal": len(persisted),
	})
	return nil
}

// OnClosure recomputes the closed strategy's aggregate realized equity from
// the source of truth and folds it into the strategy's state. Returns the
// updated state.
func (t *DrawdownTracker) OnClosure(ctx context.Context, trade *domain.ClosedTrade) (*domain.StrategyDrawdown, error) {
	equity, err := t.aggregateEquity(ctx, trade.StrategyID)
	if err != nil {
		return nil, err
	}
	st := t.store.Strategy(trade.StrategyID)
	if st == nil {
		return t.store.GetOrCreateStrategy(trade.StrategyID, equity), nil
	}
	st.ObserveEquity(equity)
	return st, nil
}

// ObserveAccount folds the current account balance into the account state.
// Called every observation cycle, not only on closures: the balance can move
// independently of any single strategy.
func (t *DrawdownTracker) ObserveAccount(balance float64) *domain.AccountDrawdown {
	account := t.store.Account()
	account.ObserveBalance(balance)
	return account
}

func (t *DrawdownTracker) aggregateEquity(ctx context.Context, strategyID int64) (float64, error) {
	history, err := t.source.ClosedPositions(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("%w: recomputing aggregate equity for strategy %d: %v", ports.ErrSourceUnavailable, strategyID, err)
	}
	var equity float64
	for _, trade := range history {
		if trade.StrategyID == strategyID {
			equity += trade.PNL
		}
	}
	return equity, nil
}
