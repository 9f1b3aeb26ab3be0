package engine

import (
	"context"
	"errors"
	"fmt"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

// pendingLookupLimit caps how many cycles a disappeared id waits for its
// historical record before being dropped. Records normally become visible
// within a cycle or two; an id that never resolves (e.g. the reconstructed
// lifecycle id changed under it) would otherwise be retried forever.
const pendingLookupLimit = 12

// PollDetector detects closures by diffing successive full snapshots of the
// open-position set. Used when the upstream source offers only a snapshot
// query, no transition feed.
type PollDetector struct {
	source ports.PositionSource
	store  *SnapshotStore
	logger ports.Logger

	// Positions observed to have left the open set whose historical record
	// was not yet visible, with the number of failed lookups so far. Retried
	// every cycle up to pendingLookupLimit; a record is never fabricated
	// from incomplete data.
	pending map[domain.PositionID]int
}

// NewPollDetector creates a polling-diff detector over the given store.
func NewPollDetector(source ports.PositionSource, store *SnapshotStore, logger ports.Logger) (*PollDetector, error) {
	if source == nil || store == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for PollDetector")
	}
	return &PollDetector{
		source:  source,
		store:   store,
		logger:  logger,
		pending: make(map[domain.PositionID]int),
	}, nil
}

// Prime takes the startup snapshot without emitting closures. Positions that
// were already closed before the engine started are the history
// synchronizer's business, not the detector's.
func (d *PollDetector) Prime(ctx context.Context) error {
	ids, err := d.source.OpenPositionIDs(ctx)
	if err != nil {
		return fmt.Errorf("%w: taking startup snapshot: %v", ports.ErrSourceUnavailable, err)
	}
	d.store.ReplaceOpenSnapshot(ids)
	d.logger.Info(ctx, "Startup snapshot taken", map[string]interface{}{"openPositions": len(ids)})
	return nil
}

// DetectClosures reads the current open-position set, diffs it against the
// previous snapshot, and resolves each disappeared id through the historical
// record store. The snapshot is replaced regardless of whether any closures
// were found. On a source error the cycle's state is left unchanged.
func (d *PollDetector) DetectClosures(ctx context.Context) ([]*domain.ClosedTrade, error) {
	current, err := d.source.OpenPositionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading open positions: %v", ports.ErrSourceUnavailable, err)
	}

	attempts := d.pending
	d.pending = make(map[domain.PositionID]int)
	candidates := DiffClosed(d.store.OpenSnapshot(), current)
	for id := range attempts {
		candidates = append(candidates, id)
	}

	var closures []*domain.ClosedTrade
	for _, id := range candidates {
		record, err := d.source.ClosedPosition(ctx, id)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			// Queried between closure and the record becoming available.
			// Defer to the next cycle.
			d.logger.Debug(ctx, "Historical record not yet visible, deferring closure", map[string]interface{}{"positionID": id})
			d.deferLookup(ctx, id, attempts[id]+1)
		case err != nil:
			d.logger.Warn(ctx, "Historical record lookup failed, deferring closure", map[string]interface{}{"positionID": id, "error": err})
			d.deferLookup(ctx, id, attempts[id]+1)
		default:
			closures = append(closures, record)
			metricClosuresDetected.WithLabelValues("poll").Inc()
		}
	}

	d.store.ReplaceOpenSnapshot(current)
	return closures, nil
}

// deferLookup keeps a candidate for the next cycle, or drops it once its
// record has failed to appear pendingLookupLimit times. A dropped candidate
// is degraded data: the closure is lost to live detection and only a later
// history synchronizer pass can recover it.
func (d *PollDetector) deferLookup(ctx context.Context, id domain.PositionID, failures int) {
	if failures >= pendingLookupLimit {
		metricPendingExpired.Inc()
		d.logger.Warn(ctx, "Historical record never appeared, dropping closure candidate", map[string]interface{}{"positionID": id, "failures": failures})
		return
	}
	d.pending[id] = failures
	metricPendingLookups.Inc()
}
