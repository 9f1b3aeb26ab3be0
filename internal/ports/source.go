package ports

import (
	"context"
	"time"

	"tradesentry/internal/domain"
)

// PositionSource is the upstream source of truth for the live position book
// and the historical record of closed positions. The engine never mutates it
// and cannot lock it; every read observes a single point in time.
type PositionSource interface {
	// OpenPositionIDs returns the identifiers of all currently-open positions.
	// The result reflects exactly one read of the upstream source.
	OpenPositionIDs(ctx context.Context) (map[domain.PositionID]struct{}, error)

	// ClosedPositions returns the historical closed-position records not older
	// than since. A zero since means the full available history.
	ClosedPositions(ctx context.Context, since time.Time) ([]*domain.ClosedTrade, error)

	// ClosedPosition looks up a single historical record by position id.
	// Returns ErrNotFound while the record is not yet visible in history;
	// closed positions are guaranteed to appear there eventually.
	ClosedPosition(ctx context.Context, id domain.PositionID) (*domain.ClosedTrade, error)

	// AccountBalance returns the account's current balance.
	AccountBalance(ctx context.Context) (float64, error)

	// AccountEquity returns the account's current equity (balance plus
	// floating PNL of open positions).
	AccountEquity(ctx context.Context) (float64, error)
}

// TransitionSource is the optional push model: an upstream source that emits
// discrete transition notifications as positions change.
type TransitionSource interface {
	// Subscribe starts delivering transition notifications to handler.
	// Returns channels to observe and stop the stream, mirroring the
	// lifecycle of a reconnecting feed: doneCh closes when the stream ends,
	// a send on stopCh requests shutdown.
	Subscribe(ctx context.Context, handler func(tx *domain.Transition), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error)

	// PositionOpenTime returns the time of the earliest entry notification
	// sharing the given position id. Returns ErrNotFound when history has
	// been truncated past the position's opening.
	PositionOpenTime(ctx context.Context, id domain.PositionID) (time.Time, error)
}
