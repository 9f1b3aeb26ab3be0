package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesentry/config"
	"tradesentry/internal/domain"
	"tradesentry/internal/ports"
)

func testConfig() *config.Config {
	return &config.Config{
		AccountID:         "100234",
		ServerURL:         "http://localhost:8000",
		Detector:          config.DetectPoll,
		PollInterval:      time.Second,
		StrategyID:        1111,
		HistoryDays:       30,
		EnableHistorySync: false,
	}
}

func TestNew(t *testing.T) {
	source := &mockSource{}
	ledger := &mockLedger{}
	journal := &mockJournal{}
	log := &mockLogger{}

	t.Run("Missing dependencies are rejected", func(t *testing.T) {
		_, err := New(testConfig(), log, nil, nil, ledger, journal)
		assert.Error(t, err)
	})

	t.Run("Missing account identifier is a configuration error", func(t *testing.T) {
		cfg := testConfig()
		cfg.AccountID = ""
		_, err := New(cfg, log, source, nil, ledger, journal)
		assert.ErrorIs(t, err, ports.ErrConfiguration)
	})

	t.Run("Feed mode requires a transition source", func(t *testing.T) {
		cfg := testConfig()
		cfg.Detector = config.DetectFeed
		_, err := New(cfg, log, source, nil, ledger, journal)
		assert.ErrorIs(t, err, ports.ErrConfiguration)

		_, err = New(cfg, log, source, &mockFeedSource{}, ledger, journal)
		assert.NoError(t, err)
	})
}

func TestEngine_RunCycle(t *testing.T) {
	closeTime := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	t.Run("No-op before initialization", func(t *testing.T) {
		source := &mockSource{open: ids(1), balance: 10000, equity: 10000}
		eng, err := New(testConfig(), &mockLogger{}, source, nil, &mockLedger{}, &mockJournal{})
		require.NoError(t, err)

		eng.RunCycle(context.Background())
		assert.Equal(t, 0, source.openCalls, "detection must not run before Initialize")
	})

	t.Run("Closure flows through to trade and drawdown dispatch", func(t *testing.T) {
		source := &mockSource{open: ids(1, 2), balance: 10000, equity: 10000}
		ledger := &mockLedger{}
		eng, err := New(testConfig(), &mockLogger{}, source, nil, ledger, &mockJournal{})
		require.NoError(t, err)
		require.NoError(t, eng.Initialize(context.Background()))

		// Position 1 closes with a loss between cycles.
		source.open = ids(2)
		source.closed = []*domain.ClosedTrade{
			{PositionID: 1, StrategyID: 1111, Symbol: "ETHUSDT", PNL: -50, CloseTime: closeTime},
		}
		source.balance = 9950
		eng.RunCycle(context.Background())

		require.Len(t, ledger.trades, 1)
		assert.Equal(t, domain.PositionID(1), ledger.trades[0].PositionID)
		require.Len(t, ledger.drawdowns, 1)
		report := ledger.drawdowns[0]
		assert.Equal(t, int64(1111), report.StrategyID)
		assert.Equal(t, 50.0, report.StrategyDrawdown)
		assert.Equal(t, 10000.0, report.PeakBalance)
		assert.Equal(t, 50.0, report.AccountDrawdown)

		// The same closure is never reported again.
		eng.RunCycle(context.Background())
		assert.Len(t, ledger.trades, 1)
	})

	t.Run("Unavailable source abandons the cycle whole", func(t *testing.T) {
		source := &mockSource{open: ids(1), balance: 10000, equity: 10000}
		ledger := &mockLedger{}
		eng, err := New(testConfig(), &mockLogger{}, source, nil, ledger, &mockJournal{})
		require.NoError(t, err)
		require.NoError(t, eng.Initialize(context.Background()))

		source.balanceErr = errors.New("timeout")
		eng.RunCycle(context.Background())
		assert.Empty(t, ledger.trades)
		assert.Empty(t, ledger.drawdowns)
		assert.Equal(t, uint64(1), eng.cyclesAbandoned)

		// Recovery: the next cycle proceeds normally.
		source.balanceErr = nil
		source.open = ids()
		source.closed = []*domain.ClosedTrade{
			{PositionID: 1, StrategyID: 1111, PNL: 5, CloseTime: closeTime},
		}
		eng.RunCycle(context.Background())
		assert.Len(t, ledger.trades, 1)
	})

	t.Run("Closure-free cycle emits an account report when configured", func(t *testing.T) {
		cfg := testConfig()
		cfg.DrawdownEveryCycle = true
		source := &mockSource{open: ids(), balance: 10000, equity: 10000}
		ledger := &mockLedger{}
		eng, err := New(cfg, &mockLogger{}, source, nil, ledger, &mockJournal{})
		require.NoError(t, err)
		require.NoError(t, eng.Initialize(context.Background()))

		source.balance = 9800
		eng.RunCycle(context.Background())
		require.Len(t, ledger.drawdowns, 1)
		assert.Equal(t, 200.0, ledger.drawdowns[0].AccountDrawdown)
		assert.Empty(t, ledger.trades)
	})
}

func TestEngine_Initialize(t *testing.T) {
	t.Run("Seeds account and strategy state", func(t *testing.T) {
		source := &mockSource{
			open:    ids(1),
			balance: 9800,
			equity:  9800,
			closed: []*domain.ClosedTrade{
				{PositionID: 5, StrategyID: 1111, PNL: 70, CloseTime: time.Now()},
			},
		}
		journal := &mockJournal{
			accountPeak: 10500,
			peaks:       map[int64]ports.StrategyPeaks{2222: {PeakEquity: 40, MaxDrawdown: 15}},
		}
		eng, err := New(testConfig(), &mockLogger{}, source, nil, &mockLedger{}, journal)
		require.NoError(t, err)
		require.NoError(t, eng.Initialize(context.Background()))

		account := eng.store.Account()
		require.NotNil(t, account)
		assert.Equal(t, 10500.0, account.PeakBalance, "persisted peak restored over current balance")

		assert.Equal(t, 2, eng.store.StrategyCount())
		assert.Equal(t, 70.0, eng.store.Strategy(1111).PeakEquity)
		assert.Equal(t, 40.0, eng.store.Strategy(2222).PeakEquity)
	})

	t.Run("History sync runs before the gate opens", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableHistorySync = true
		source := &mockSource{
			open:    ids(),
			balance: 10000,
			equity:  10000,
			closed: []*domain.ClosedTrade{
				{PositionID: 10, StrategyID: 1111, PNL: 5, CloseTime: time.Now().Add(-time.Hour)},
				{PositionID: 11, StrategyID: 1111, PNL: 5, CloseTime: time.Now().Add(-time.Hour)},
			},
		}
		ledger := &mockLedger{known: ids(11)}
		eng, err := New(cfg, &mockLogger{}, source, nil, ledger, &mockJournal{})
		require.NoError(t, err)
		require.NoError(t, eng.Initialize(context.Background()))

		require.Len(t, ledger.trades, 1)
		assert.Equal(t, domain.PositionID(10), ledger.trades[0].PositionID)
		assert.Equal(t, 1, ledger.knownCalls)
	})

	t.Run("Sync trouble does not block initialization", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableHistorySync = true
		source := &mockSource{open: ids(), balance: 10000, equity: 10000}
		ledger := &mockLedger{knownErr: errors.New("504")}
		log := &mockLogger{}
		eng, err := New(cfg, log, source, nil, ledger, &mockJournal{})
		require.NoError(t, err)
		require.NoError(t, eng.Initialize(context.Background()))
		assert.True(t, eng.initialized)
	})

	t.Run("Unreachable source at startup is fatal", func(t *testing.T) {
		source := &mockSource{balanceErr: errors.New("dial tcp: refused")}
		eng, err := New(testConfig(), &mockLogger{}, source, nil, &mockLedger{}, &mockJournal{})
		require.NoError(t, err)
		err = eng.Initialize(context.Background())
		assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
		assert.False(t, eng.initialized)
	})
}
