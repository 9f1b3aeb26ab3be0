// Package engine implements the trade-closure reconciliation and drawdown
// tracking core: an explicitly constructed instance owning the snapshot
// store and all drawdown state, driven by a periodic trigger. Lifecycle is
// create → Initialize → Run cycles → Close.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesentry/config"
	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

// Engine observes the externally-mutated position book, reports each closure
// at most once, and maintains the per-strategy and per-account drawdown
// figures. Single-threaded and cooperative: all work happens inside RunCycle,
// invoked by one driver; a cycle always completes before the next starts.
type Engine struct {
	cfg        *config.Config
	logger     ports.Logger
	source     ports.PositionSource
	detector   ports.ClosureDetector
	poll       *PollDetector // non-nil in poll mode, for priming
	feed       *FeedDetector // non-nil in feed mode, for the subscription
	store      *SnapshotStore
	tracker    *DrawdownTracker
	dispatcher *Dispatcher
	history    *HistorySynchronizer
	journal    ports.Journal
	nowFn      func() time.Time

	// initialized gates all detection: until the startup snapshot and
	// drawdown seeding are complete, every RunCycle call is a no-op.
	initialized bool

	cyclesRun       uint64
	cyclesAbandoned uint64
	feedDone        chan struct{}
	feedStop        chan struct{}
}

// New creates an engine instance. feedSource may be nil unless the configured
// detector mode is "feed".
func New(
	cfg *config.Config,
	log ports.Logger,
	source ports.PositionSource,
	feedSource ports.TransitionSource,
	ledger ports.LedgerClient,
	journal ports.Journal,
) (*Engine, error) {
	if cfg == nil || log == nil || source == nil || ledger == nil || journal == nil {
		return nil, fmt.Errorf("missing required dependencies for Engine")
	}
	if cfg.AccountID == "" || cfg.ServerURL == "" {
		return nil, fmt.Errorf("%w: account identifier and server URL must be set", ports.ErrConfiguration)
	}

	store := NewSnapshotStore()
	tracker, err := NewDrawdownTracker(source, store, log)
	if err != nil {
		return nil, err
	}
	dispatcher, err := NewDispatcher(ledger, journal, log)
	if err != nil {
		return nil, err
	}
	history, err := NewHistorySynchronizer(source, ledger, dispatcher, log, cfg.HistoryDays)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		logger:     log,
		source:     source,
		store:      store,
		tracker:    tracker,
		dispatcher: dispatcher,
		history:    history,
		journal:    journal,
		nowFn:      time.Now,
	}

	switch cfg.Detector {
	case config.DetectFeed:
		if feedSource == nil {
			return nil, fmt.Errorf("%w: detector mode %q requires a transition source", ports.ErrConfiguration, cfg.Detector)
		}
		feed, err := NewFeedDetector(feedSource, log)
		if err != nil {
			return nil, err
		}
		e.feed = feed
		e.detector = feed
	default:
		poll, err := NewPollDetector(source, store, log)
		if err != nil {
			return nil, err
		}
		e.poll = poll
		e.detector = poll
	}
	return e, nil
}

// Initialize seeds all state from the upstream source and the journal, runs
// the one-time history synchronization, and opens the detection gate. Must
// complete before any RunCycle does real work. Failures here are fatal: the
// engine refuses to run half-seeded.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	op := "Initialize"

	// 1. Seed account drawdown state from the current balance, restoring the
	// persisted peak from previous runs.
	balance, err := e.source.AccountBalance(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading account balance: %v", ports.ErrSourceUnavailable, err)
	}
	account := domain.NewAccountDrawdown(balance)
	if peak, err := e.journal.LoadAccountPeak(ctx); err != nil {
		e.logger.Warn(ctx, op+": Could not load persisted account peak", map[string]interface{}{"error": err})
	} else {
		account.RestorePeak(peak)
	}
	e.store.SetAccount(account)
	e.logger.Info(ctx, op+": Account state seeded", map[string]interface{}{"balance": balance, "peakBalance": account.PeakBalance})

	// 2. Seed strategy drawdown states from aggregate realized history plus
	// persisted peaks.
	persisted, err := e.journal.LoadStrategyPeaks(ctx)
	if err != nil {
		e.logger.Warn(ctx, op+": Could not load persisted strategy peaks", map[string]interface{}{"error": err})
		persisted = nil
	}
	if err := e.tracker.SeedFromHistory(ctx, persisted); err != nil {
		return err
	}

	// 3. Startup snapshot (poll mode) or stream subscription (feed mode).
	if e.poll != nil {
		if err := e.poll.Prime(ctx); err != nil {
			return err
		}
	}
	if e.feed != nil {
		done, stop, err := e.feed.Start(ctx)
		if err != nil {
			return fmt.Errorf("%w: subscribing to transition stream: %v", ports.ErrSourceUnavailable, err)
		}
		e.feedDone, e.feedStop = done, stop
		e.logger.Info(ctx, op+": Transition stream subscribed")
	}

	// 4. One-time history back-fill, before steady-state detection begins.
	if e.cfg.EnableHistorySync {
		if _, err := e.history.Run(ctx); err != nil {
			// Sync trouble is not fatal: the engine still reports live
			// closures, and a later run can back-fill.
			e.logger.Warn(ctx, op+": History synchronization failed", map[string]interface{}{"error": err})
		}
	} else {
		e.logger.Info(ctx, op+": History synchronization disabled")
	}

	e.initialized = true
	e.logger.Info(ctx, op+": Engine initialized", map[string]interface{}{
		"detector":   string(e.cfg.Detector),
		"strategies": e.store.StrategyCount(),
	})
	return nil
}

// RunCycle performs one observation cycle: detect closures, fold them into
// drawdown state, dispatch records. A no-op before Initialize completes.
// Never returns an error for steady-state trouble: a failed cycle leaves
// state unchanged and the next cycle retries naturally.
func (e *Engine) RunCycle(ctx context.Context) {
	if !e.initialized {
		return
	}
	e.cyclesRun++

	// Read the account figures first: if the source is unavailable the whole
	// cycle is abandoned with state untouched.
	balance, err := e.source.AccountBalance(ctx)
	if err != nil {
		e.abandonCycle(ctx, "account balance read failed", err)
		return
	}
	equity, err := e.source.AccountEquity(ctx)
	if err != nil {
		e.abandonCycle(ctx, "account equity read failed", err)
		return
	}

	closures, err := e.detector.DetectClosures(ctx)
	if err != nil {
		e.abandonCycle(ctx, "closure detection failed", err)
		return
	}

	// Account peak moves on every cycle, not only on closures.
	account := e.tracker.ObserveAccount(balance)
	now := e.nowFn()

	for _, trade := range closures {
		st, err := e.tracker.OnClosure(ctx, trade)
		if err != nil {
			// Trade reporting is the primary duty; drawdown for this
			// strategy degrades until the next closure recomputes it.
			e.logger.Warn(ctx, "Drawdown recompute failed for closure", map[string]interface{}{"positionID": trade.PositionID, "error": err})
		}
		e.dispatcher.DispatchTrade(ctx, trade)
		if st != nil {
			e.dispatcher.DispatchDrawdown(ctx, e.dispatcher.BuildReport(st, account, balance, equity, now))
		}
	}

	if len(closures) == 0 && e.cfg.DrawdownEveryCycle {
		// Account-only snapshot; carries the configured strategy's standing
		// figures when that strategy has been observed.
		st := e.store.Strategy(e.cfg.StrategyID)
		e.dispatcher.DispatchDrawdown(ctx, e.dispatcher.BuildReport(st, account, balance, equity, now))
	}
}

func (e *Engine) abandonCycle(ctx context.Context, reason string, err error) {
	e.cyclesAbandoned++
	metricCyclesAbandoned.Inc()
	e.logger.Warn(ctx, "Cycle abandoned, state unchanged", map[string]interface{}{"reason": reason, "error": err})
}

// Run drives observation cycles on the configured interval until the context
// is cancelled or a termination signal arrives. Initialize must have
// succeeded first.
func (e *Engine) Run(ctx context.Context) error {
	if !e.initialized {
		return fmt.Errorf("engine not initialized")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		e.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	e.logger.Info(ctx, "Engine running", map[string]interface{}{"interval": e.cfg.PollInterval.String()})
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logSummary(context.Background())
			return nil
		case <-e.feedDoneCh():
			e.logSummary(context.Background())
			return fmt.Errorf("transition stream stopped unexpectedly")
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// feedDoneCh returns the feed stream's done channel, or a nil channel that
// never fires when running in poll mode.
func (e *Engine) feedDoneCh() <-chan struct{} {
	if e.feedDone == nil {
		return nil
	}
	return e.feedDone
}

// Close stops the transition stream if one is running.
func (e *Engine) Close() {
	if e.feedStop != nil {
		select {
		case e.feedStop <- struct{}{}:
		default:
		}
		select {
		case <-e.feedDone:
		case <-time.After(5 * time.Second):
			e.logger.Warn(context.Background(), "Timeout waiting for transition stream to shut down")
		}
	}
}

func (e *Engine) logSummary(ctx context.Context) {
	tradesSent, tradeFailures, reportsSent, reportFailures := e.dispatcher.Totals()
	e.logger.Info(ctx, "Engine stopped", map[string]interface{}{
		"cyclesRun":       e.cyclesRun,
		"cyclesAbandoned": e.cyclesAbandoned,
		"tradesSent":      tradesSent,
		"tradeFailures":   tradeFailures,
		"reportsSent":     reportsSent,
		"reportFailures":  reportFailures,
		"strategies":      e.store.StrategyCount(),
	})
}
