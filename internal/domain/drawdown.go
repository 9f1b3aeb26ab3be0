package domain

import "time"

// StrategyDrawdown tracks the running peak and drawdown of one strategy's
// aggregate realized equity. PeakEquity and MaxDrawdown are monotonically
// non-decreasing for the lifetime of the state; CurrentDrawdown is always
// max(0, PeakEquity-equity) for the last observed equity.
type StrategyDrawdown struct {
	StrategyID      int64
	PeakEquity      float64
	CurrentDrawdown float64
	MaxDrawdown     float64
}

// NewStrategyDrawdown creates a zeroed state and applies the seed equity
// (the strategy's aggregate realized PNL over all known history).
func NewStrategyDrawdown(strategyID int64, seedEquity float64) *StrategyDrawdown {
	s := &StrategyDrawdown{StrategyID: strategyID}
	s.ObserveEquity(seedEquity)
	return s
}

// ObserveEquity folds a new aggregate equity value into the state.
func (s *StrategyDrawdown) ObserveEquity(equity float64) {
	if equity > s.PeakEquity {
		s.PeakEquity = equity
		s.CurrentDrawdown = 0
		return
	}
	s.CurrentDrawdown = s.PeakEquity - equity
	if s.CurrentDrawdown > s.MaxDrawdown {
		s.MaxDrawdown = s.CurrentDrawdown
	}
}

// RestorePeaks raises PeakEquity and MaxDrawdown to persisted values from a
// previous run. Values below the current figures are ignored so the monotonic
// invariants survive stale journal data.
func (s *StrategyDrawdown) RestorePeaks(peakEquity, maxDrawdown float64) {
	if peakEquity > s.PeakEquity {
		s.PeakEquity = peakEquity
	}
	if maxDrawdown > s.MaxDrawdown {
		s.MaxDrawdown = maxDrawdown
	}
}

// AccountDrawdown tracks the running peak of the whole account's balance.
type AccountDrawdown struct {
	PeakBalance     float64
	CurrentDrawdown float64
	MaxDrawdown     float64
}

// NewAccountDrawdown seeds the peak from the balance observed at startup.
func NewAccountDrawdown(balance float64) *AccountDrawdown {
	a := &AccountDrawdown{}
	a.ObserveBalance(balance)
	return a
}

// ObserveBalance folds the current account balance into the state.
func (a *AccountDrawdown) ObserveBalance(balance float64) {
	if balance > a.PeakBalance {
		a.PeakBalance = balance
		a.CurrentDrawdown = 0
		return
	}
	a.CurrentDrawdown = a.PeakBalance - balance
	if a.CurrentDrawdown > a.MaxDrawdown {
		a.MaxDrawdown = a.CurrentDrawdown
	}
}

// RestorePeak raises PeakBalance to a persisted value from a previous run.
func (a *AccountDrawdown) RestorePeak(peakBalance float64) {
	if peakBalance > a.PeakBalance {
		a.PeakBalance = peakBalance
	}
}

// PercentOfPeak expresses the current account drawdown as a percentage of the
// peak balance, guarded against a zero peak.
func (a *AccountDrawdown) PercentOfPeak() float64 {
	if a.PeakBalance == 0 {
		return 0
	}
	return a.CurrentDrawdown / a.PeakBalance * 100
}

// DrawdownReport is the canonical drawdown snapshot handed to the dispatcher.
type DrawdownReport struct {
	StrategyID          int64
	Balance             float64
	Equity              float64
	PeakBalance         float64
	AccountDrawdown     float64
	AccountDrawdownPct  float64
	StrategyDrawdown    float64
	MaxStrategyDrawdown float64
	PeakStrategyEquity  float64
	Timestamp           time.Time
}
