package engine

import (
	"tradesentry/internal/domain"
)

// SnapshotStore owns the set of currently-known-open position ids and all
// drawdown state. It is pure data: no I/O, no side effects beyond its own
// fields. Access is strictly serial (one driver, one thread of control), so
// no locking is required; a future concurrent driver must add mutual
// exclusion around mutation and preserve the atomic-replace semantics of
// ReplaceOpenSnapshot.
type SnapshotStore struct {
	open       map[domain.PositionID]struct{}
	strategies map[int64]*domain.StrategyDrawdown
	account    *domain.AccountDrawdown
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		open:       make(map[domain.PositionID]struct{}),
		strategies: make(map[int64]*domain.StrategyDrawdown),
	}
}

// ReplaceOpenSnapshot swaps in a new point-in-time read of the open-position
// set. The previous snapshot is discarded whole; no partial state is ever
// observable.
func (s *SnapshotStore) ReplaceOpenSnapshot(ids map[domain.PositionID]struct{}) {
	if ids == nil {
		ids = make(map[domain.PositionID]struct{})
	}
	s.open = ids
}

// OpenSnapshot returns the current open-position set. Callers must treat the
// returned map as read-only.
func (s *SnapshotStore) OpenSnapshot() map[domain.PositionID]struct{} {
	return s.open
}

// DiffClosed returns the ids present in previous but absent from current:
// the candidates for closure. Pure function, no side effects.
func DiffClosed(previous, current map[domain.PositionID]struct{}) []domain.PositionID {
	var closed []domain.PositionID
	for id := range previous {
		if _, stillOpen := current[id]; !stillOpen {
			closed = append(closed, id)
		}
	}
	return closed
}

// GetOrCreateStrategy returns the drawdown state for a strategy, creating it
// lazily on first sight seeded with the strategy's aggregate realized equity.
// States are never destroyed during a run.
func (s *SnapshotStore) GetOrCreateStrategy(id int64, seedEquity float64) *domain.StrategyDrawdown {
	if st, ok := s.strategies[id]; ok {
		return st
	}
	st := domain.NewStrategyDrawdown(id, seedEquity)
	s.strategies[id] = st
	return st
}

// Strategy returns the existing state for a strategy id, or nil.
func (s *SnapshotStore) Strategy(id int64) *domain.StrategyDrawdown {
	return s.strategies[id]
}

// StrategyCount reports how many strategies have been observed so far.
func (s *SnapshotStore) StrategyCount() int {
	return len(s.strategies)
}

// SetAccount installs the account drawdown state, seeded at startup.
func (s *SnapshotStore) SetAccount(a *domain.AccountDrawdown) {
	s.account = a
}

// Account returns the account drawdown state, or nil before initialization.
func (s *SnapshotStore) Account() *domain.AccountDrawdown {
	return s.account
}
