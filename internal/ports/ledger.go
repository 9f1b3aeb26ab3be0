package ports

import (
	"context"

	"tradesentry/internal/domain"
)

// LedgerClient talks to the remote trade ledger. All calls are synchronous,
// fire-and-forget: a failure is reported to the caller and never retried by
// the transport.
type LedgerClient interface {
	// PostTrade reports one closed trade. Any non-2xx response or transport
	// error is returned wrapped in ErrTransport.
	PostTrade(ctx context.Context, trade *domain.ClosedTrade) error

	// PostDrawdown reports one drawdown snapshot.
	PostDrawdown(ctx context.Context, report *domain.DrawdownReport) error

	// KnownTickets fetches the set of position ids the ledger already holds
	// for this account. A malformed or absent response yields an empty set,
	// not an error; only transport failures are returned.
	KnownTickets(ctx context.Context) (map[domain.PositionID]struct{}, error)
}
