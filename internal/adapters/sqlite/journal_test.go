package sqlite

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesentry/internal/adapters/logger"
	"tradesentry/internal/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(Config{
		Path:   filepath.Join(t.TempDir(), "journal.db"),
		Logger: logger.NewStdLoggerTo(io.Discard, logger.LevelError),
	})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordTrade(t *testing.T) {
	j := newTestJournal(t)

	err := j.RecordTrade(context.Background(), &domain.ClosedTrade{
		PositionID: 1001,
		StrategyID: 1111,
		Symbol:     "ETHUSDT",
		Direction:  domain.Buy,
		Volume:     0.5,
		PNL:        -50,
		OpenTime:   time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		CloseTime:  time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC),
		Balance:    9950,
	})
	assert.NoError(t, err)
}

func TestJournal_Peaks(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty journal yields zero peaks", func(t *testing.T) {
		j := newTestJournal(t)

		peaks, err := j.LoadStrategyPeaks(ctx)
		require.NoError(t, err)
		assert.Empty(t, peaks)

		accountPeak, err := j.LoadAccountPeak(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.0, accountPeak)
	})

	t.Run("Recorded peaks round-trip", func(t *testing.T) {
		j := newTestJournal(t)

		err := j.RecordDrawdown(ctx, &domain.DrawdownReport{
			StrategyID:          1111,
			Balance:             9800,
			PeakBalance:         10500,
			MaxStrategyDrawdown: 50,
			PeakStrategyEquity:  120,
			Timestamp:           time.Now(),
		})
		require.NoError(t, err)

		peaks, err := j.LoadStrategyPeaks(ctx)
		require.NoError(t, err)
		require.Contains(t, peaks, int64(1111))
		assert.Equal(t, 120.0, peaks[1111].PeakEquity)
		assert.Equal(t, 50.0, peaks[1111].MaxDrawdown)

		accountPeak, err := j.LoadAccountPeak(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10500.0, accountPeak)
	})

	t.Run("Peaks only ever move up", func(t *testing.T) {
		j := newTestJournal(t)

		first := &domain.DrawdownReport{
			StrategyID:          1111,
			PeakBalance:         10500,
			MaxStrategyDrawdown: 80,
			PeakStrategyEquity:  200,
			Timestamp:           time.Now(),
		}
		require.NoError(t, j.RecordDrawdown(ctx, first))

		// A later report with lower figures must not regress the stored peaks.
		second := &domain.DrawdownReport{
			StrategyID:          1111,
			PeakBalance:         9000,
			MaxStrategyDrawdown: 10,
			PeakStrategyEquity:  150,
			Timestamp:           time.Now(),
		}
		require.NoError(t, j.RecordDrawdown(ctx, second))

		peaks, err := j.LoadStrategyPeaks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 200.0, peaks[1111].PeakEquity)
		assert.Equal(t, 80.0, peaks[1111].MaxDrawdown)

		accountPeak, err := j.LoadAccountPeak(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10500.0, accountPeak)
	})

	t.Run("PersistPeaks raises peaks without an audit row", func(t *testing.T) {
		j := newTestJournal(t)

		err := j.PersistPeaks(ctx, &domain.DrawdownReport{
			StrategyID:          1111,
			PeakBalance:         10500,
			MaxStrategyDrawdown: 90,
			PeakStrategyEquity:  160,
			Timestamp:           time.Now(),
		})
		require.NoError(t, err)

		peaks, err := j.LoadStrategyPeaks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 160.0, peaks[1111].PeakEquity)
		assert.Equal(t, 90.0, peaks[1111].MaxDrawdown)

		accountPeak, err := j.LoadAccountPeak(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10500.0, accountPeak)

		var reports int
		require.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM dispatched_drawdowns`).Scan(&reports))
		assert.Equal(t, 0, reports, "no audit row for a report that never reached the ledger")
	})

	t.Run("Peaks persist across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.db")
		log := logger.NewStdLoggerTo(io.Discard, logger.LevelError)

		j, err := NewJournal(Config{Path: path, Logger: log})
		require.NoError(t, err)
		require.NoError(t, j.RecordDrawdown(ctx, &domain.DrawdownReport{
			StrategyID:         2222,
			PeakBalance:        5000,
			PeakStrategyEquity: 75,
			Timestamp:          time.Now(),
		}))
		require.NoError(t, j.Close())

		j, err = NewJournal(Config{Path: path, Logger: log})
		require.NoError(t, err)
		defer j.Close()

		peaks, err := j.LoadStrategyPeaks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 75.0, peaks[2222].PeakEquity)
	})
}
