package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

// FeedDetector detects closures from discrete transition notifications pushed
// by the upstream source. Notifications are buffered as they arrive and
// drained once per observation cycle, so downstream processing stays on the
// single driving thread.
type FeedDetector struct {
	source ports.TransitionSource
	logger ports.Logger
	nowFn  func() time.Time

	// The subscription goroutine pushes while the driver drains.
	mu    sync.Mutex
	queue []*domain.Transition
}

// NewFeedDetector creates a transition-feed detector.
func NewFeedDetector(source ports.TransitionSource, logger ports.Logger) (*FeedDetector, error) {
	if source == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for FeedDetector")
	}
	return &FeedDetector{
		source: source,
		logger: logger,
		nowFn:  time.Now,
	}, nil
}

// Start subscribes to the transition stream. The returned channels follow
// the subscription's lifecycle: doneCh closes when the stream ends, a send on
// stopCh requests shutdown.
func (d *FeedDetector) Start(ctx context.Context) (doneCh chan struct{}, stopCh chan struct{}, err error) {
	return d.source.Subscribe(ctx, d.enqueue, func(err error) {
		d.logger.Error(ctx, err, "Transition stream error reported")
	})
}

func (d *FeedDetector) enqueue(tx *domain.Transition) {
	d.mu.Lock()
	d.queue = append(d.queue, tx)
	d.mu.Unlock()
}

// DetectClosures drains the buffered notifications and yields a closure for
// each one classified as closing. Opens, partial increases and pending-order
// lifecycle events are ignored. The emitted record's direction is the
// position's original side, the opposite of the closing fill's own side.
func (d *FeedDetector) DetectClosures(ctx context.Context) ([]*domain.ClosedTrade, error) {
	d.mu.Lock()
	drained := d.queue
	d.queue = nil
	d.mu.Unlock()

	var closures []*domain.ClosedTrade
	for _, tx := range drained {
		if !tx.IsClosing() {
			continue
		}

		openTime, err := d.source.PositionOpenTime(ctx, tx.PositionID)
		if err != nil {
			// Truncated history is degraded data, not fatal: fall back to
			// the current time and count the condition.
			openTime = d.nowFn()
			metricDegradedOpenTimes.Inc()
			if errors.Is(err, ports.ErrNotFound) {
				d.logger.Warn(ctx, "No entry notification found for position, using current time as open time", map[string]interface{}{"positionID": tx.PositionID})
			} else {
				d.logger.Warn(ctx, "Open-time lookup failed, using current time as open time", map[string]interface{}{"positionID": tx.PositionID, "error": err})
			}
		}

		closures = append(closures, &domain.ClosedTrade{
			PositionID: tx.PositionID,
			StrategyID: tx.StrategyID,
			Symbol:     tx.Symbol,
			Direction:  tx.PositionDirection(),
			Volume:     tx.Volume,
			PNL:        tx.NetPNL(),
			OpenTime:   openTime,
			CloseTime:  tx.Time,
			Comment:    tx.Comment,
			Balance:    tx.Balance,
		})
		metricClosuresDetected.WithLabelValues("feed").Inc()
	}
	return closures, nil
}
