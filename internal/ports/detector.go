package ports

import (
	"context"

	"tradesentry/internal/domain"
)

// ClosureDetector produces the closure events of one observation cycle.
// Two interchangeable strategies satisfy this contract: a polling diff over
// full open-position snapshots, and a filter over pushed transition
// notifications. Downstream components are written once against this
// interface and selected at construction time.
type ClosureDetector interface {
	// DetectClosures returns every position observed to have transitioned
	// from open to closed since the previous call. Each closure is returned
	// exactly once across the detector's lifetime. No ordering guarantee
	// among closures detected in the same cycle.
	DetectClosures(ctx context.Context) ([]*domain.ClosedTrade, error)
}
