package engine

import (
	"context"
	"fmt"
	"time"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

// Mock implementations

type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockSource struct {
	open       map[domain.PositionID]struct{}
	openErr    error
	closed     []*domain.ClosedTrade
	closedErr  error
	balance    float64
	balanceErr error
	equity     float64
	equityErr  error

	openCalls   int
	closedCalls int
}

func (m *mockSource) OpenPositionIDs(ctx context.Context) (map[domain.PositionID]struct{}, error) {
	m.openCalls++
	if m.openErr != nil {
		return nil, m.openErr
	}
	ids := make(map[domain.PositionID]struct{}, len(m.open))
	for id := range m.open {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *mockSource) ClosedPositions(ctx context.Context, since time.Time) ([]*domain.ClosedTrade, error) {
	m.closedCalls++
	if m.closedErr != nil {
		return nil, m.closedErr
	}
	var out []*domain.ClosedTrade
	for _, t := range m.closed {
		if since.IsZero() || !t.CloseTime.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockSource) ClosedPosition(ctx context.Context, id domain.PositionID) (*domain.ClosedTrade, error) {
	if m.closedErr != nil {
		return nil, m.closedErr
	}
	for _, t := range m.closed {
		if t.PositionID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: position %d", ports.ErrNotFound, id)
}

func (m *mockSource) AccountBalance(ctx context.Context) (float64, error) {
	return m.balance, m.balanceErr
}

func (m *mockSource) AccountEquity(ctx context.Context) (float64, error) {
	return m.equity, m.equityErr
}

type mockFeedSource struct {
	openTimes   map[domain.PositionID]time.Time
	openTimeErr error
	handler     func(tx *domain.Transition)
	doneCh      chan struct{}
	stopCh      chan struct{}
}

func (m *mockFeedSource) Subscribe(ctx context.Context, handler func(tx *domain.Transition), errHandler func(err error)) (chan struct{}, chan struct{}, error) {
	m.handler = handler
	m.doneCh = make(chan struct{})
	m.stopCh = make(chan struct{})
	return m.doneCh, m.stopCh, nil
}

func (m *mockFeedSource) PositionOpenTime(ctx context.Context, id domain.PositionID) (time.Time, error) {
	if m.openTimeErr != nil {
		return time.Time{}, m.openTimeErr
	}
	t, ok := m.openTimes[id]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no entry for position %d", ports.ErrNotFound, id)
	}
	return t, nil
}

type mockLedger struct {
	trades       []*domain.ClosedTrade
	tradeErr     error
	drawdowns    []*domain.DrawdownReport
	drawdownErr  error
	known        map[domain.PositionID]struct{}
	knownErr     error
	knownCalls   int
}

func (m *mockLedger) PostTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	if m.tradeErr != nil {
		return m.tradeErr
	}
	m.trades = append(m.trades, trade)
	return nil
}

func (m *mockLedger) PostDrawdown(ctx context.Context, report *domain.DrawdownReport) error {
	if m.drawdownErr != nil {
		return m.drawdownErr
	}
	m.drawdowns = append(m.drawdowns, report)
	return nil
}

func (m *mockLedger) KnownTickets(ctx context.Context) (map[domain.PositionID]struct{}, error) {
	m.knownCalls++
	if m.knownErr != nil {
		return nil, m.knownErr
	}
	ids := make(map[domain.PositionID]struct{}, len(m.known))
	for id := range m.known {
		ids[id] = struct{}{}
	}
	return ids, nil
}

type mockJournal struct {
	trades      []*domain.ClosedTrade
	drawdowns   []*domain.DrawdownReport
	peaks       map[int64]ports.StrategyPeaks
	accountPeak float64
	writeErr    error
}

func (m *mockJournal) RecordTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.trades = append(m.trades, trade)
	return nil
}

func (m *mockJournal) RecordDrawdown(ctx context.Context, report *domain.DrawdownReport) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.drawdowns = append(m.drawdowns, report)
	return nil
}

func (m *mockJournal) PersistPeaks(ctx context.Context, report *domain.DrawdownReport) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.peaks == nil {
		m.peaks = make(map[int64]ports.StrategyPeaks)
	}
	p := m.peaks[report.StrategyID]
	if report.PeakStrategyEquity > p.PeakEquity {
		p.PeakEquity = report.PeakStrategyEquity
	}
	if report.MaxStrategyDrawdown > p.MaxDrawdown {
		p.MaxDrawdown = report.MaxStrategyDrawdown
	}
	m.peaks[report.StrategyID] = p
	if report.PeakBalance > m.accountPeak {
		m.accountPeak = report.PeakBalance
	}
	return nil
}

func (m *mockJournal) LoadStrategyPeaks(ctx context.Context) (map[int64]ports.StrategyPeaks, error) {
	return m.peaks, nil
}

func (m *mockJournal) LoadAccountPeak(ctx context.Context) (float64, error) {
	return m.accountPeak, nil
}

func (m *mockJournal) Close() error { return nil }
