package engine

import (
	"context"
	"fmt"
	"time"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

// Dispatcher builds canonical records and hands them to the ledger transport.
// Dispatch is synchronous and fire-and-forget: a failure is counted and
// surfaced, never retried or re-queued. A later history synchronizer pass is
// the only recovery path for a lost trade event.
type Dispatcher struct {
	ledger  ports.LedgerClient
	journal ports.Journal
	logger  ports.Logger

	tradesSent     uint64
	tradeFailures  uint64
	reportsSent    uint64
	reportFailures uint64
}

// NewDispatcher creates a dispatcher. The journal records what was actually
// sent; journal trouble degrades to a warning and never fails a dispatch.
func NewDispatcher(ledger ports.LedgerClient, journal ports.Journal, logger ports.Logger) (*Dispatcher, error) {
	if ledger == nil || journal == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Dispatcher")
	}
	return &Dispatcher{ledger: ledger, journal: journal, logger: logger}, nil
}

// DispatchTrade posts one closed trade. Returns whether the ledger accepted it.
func (d *Dispatcher) DispatchTrade(ctx context.Context, trade *domain.ClosedTrade) bool {
	if err := d.ledger.PostTrade(ctx, trade); err != nil {
		d.tradeFailures++
		metricDispatchFailures.WithLabelValues("trade").Inc()
		d.logger.Error(ctx, err, "Trade dispatch failed, event will not be retried", map[string]interface{}{
			"positionID": trade.PositionID,
			"strategyID": trade.StrategyID,
		})
		return false
	}
	d.tradesSent++
	metricTradesDispatched.Inc()
	d.logger.Info(ctx, "Trade reported", map[string]interface{}{
		"positionID": trade.PositionID,
		"strategyID": trade.StrategyID,
		"symbol":     trade.Symbol,
		"pnl":        trade.PNL,
		"result":     string(trade.Result()),
	})
	if err := d.journal.RecordTrade(ctx, trade); err != nil {
		d.logger.Warn(ctx, "Journal write failed for dispatched trade", map[string]interface{}{"positionID": trade.PositionID, "error": err})
	}
	return true
}

// BuildReport assembles the canonical drawdown snapshot for one strategy
// (nil for an account-only report) and the account.
func (d *Dispatcher) BuildReport(strategy *domain.StrategyDrawdown, account *domain.AccountDrawdown, balance, equity float64, now time.Time) *domain.DrawdownReport {
	report := &domain.DrawdownReport{
		Balance:            balance,
		Equity:             equity,
		PeakBalance:        account.PeakBalance,
		AccountDrawdown:    account.CurrentDrawdown,
		AccountDrawdownPct: account.PercentOfPeak(),
		Timestamp:          now,
	}
	if strategy != nil {
		report.StrategyID = strategy.StrategyID
		report.StrategyDrawdown = strategy.CurrentDrawdown
		report.MaxStrategyDrawdown = strategy.MaxDrawdown
		report.PeakStrategyEquity = strategy.PeakEquity
	}
	return report
}

// DispatchDrawdown posts one drawdown snapshot.
func (d *Dispatcher) DispatchDrawdown(ctx context.Context, report *domain.DrawdownReport) bool {
	if err := d.ledger.PostDrawdown(ctx, report); err != nil {
		d.reportFailures++
		metricDispatchFailures.WithLabelValues("drawdown").Inc()
		d.logger.Error(ctx, err, "Drawdown dispatch failed, snapshot will not be retried", map[string]interface{}{"strategyID": report.StrategyID})
		// A ledger outage is exactly when drawdowns deepen; the peaks still
		// move locally so a restart cannot regress them.
		if jerr := d.journal.PersistPeaks(ctx, report); jerr != nil {
			d.logger.Warn(ctx, "Peak persistence failed for undispatched report", map[string]interface{}{"strategyID": report.StrategyID, "error": jerr})
		}
		return false
	}
	d.reportsSent++
	metricDrawdownsDispatched.Inc()
	if err := d.journal.RecordDrawdown(ctx, report); err != nil {
		d.logger.Warn(ctx, "Journal write failed for dispatched drawdown report", map[string]interface{}{"strategyID": report.StrategyID, "error": err})
	}
	return true
}

// Totals reports lifetime dispatch counts: trades sent, trade failures,
// drawdown reports sent, report failures.
func (d *Dispatcher) Totals() (uint64, uint64, uint64, uint64) {
	return d.tradesSent, d.tradeFailures, d.reportsSent, d.reportFailures
}
