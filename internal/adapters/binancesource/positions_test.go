package binancesource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesentry/internal/domain"
)

func at(minute int) time.Time {
	return time.Date(2026, 8, 20, 10, minute, 0, 0, time.UTC)
}

func TestReconstruct(t *testing.T) {
	t.Run("Open then full close", func(t *testing.T) {
		fills := []fill{
			{ID: 100, Side: domain.Buy, Qty: 1, Commission: 0.5, Time: at(0)},
			{ID: 101, Side: domain.Sell, Qty: 1, RealizedPnl: 50, Commission: 0.5, Time: at(10)},
		}
		open, closed := reconstruct("ETHUSDT", 1111, fills)

		assert.Nil(t, open)
		require.Len(t, closed, 1)
		trade := closed[0]
		assert.Equal(t, domain.PositionID(100), trade.PositionID)
		assert.Equal(t, domain.Buy, trade.Direction)
		assert.Equal(t, 1.0, trade.Volume)
		assert.Equal(t, 49.0, trade.PNL, "pnl net of both commissions")
		assert.Equal(t, at(0), trade.OpenTime)
		assert.Equal(t, at(10), trade.CloseTime)
	})

	t.Run("Still open position", func(t *testing.T) {
		fills := []fill{
			{ID: 200, Side: domain.Sell, Qty: 2, Time: at(0)},
		}
		open, closed := reconstruct("ETHUSDT", 1111, fills)

		assert.Empty(t, closed)
		require.NotNil(t, open)
		assert.Equal(t, domain.PositionID(200), open.ID)
		assert.Equal(t, domain.Sell, open.Direction)
		assert.Equal(t, 2.0, open.Volume)
	})

	t.Run("Increase then partial closes", func(t *testing.T) {
		fills := []fill{
			{ID: 1, Side: domain.Buy, Qty: 1, Time: at(0)},
			{ID: 2, Side: domain.Buy, Qty: 1, Time: at(1)},
			{ID: 3, Side: domain.Sell, Qty: 1.5, RealizedPnl: 30, Time: at(2)},
			{ID: 4, Side: domain.Sell, Qty: 0.5, RealizedPnl: 10, Time: at(3)},
		}
		open, closed := reconstruct("ETHUSDT", 7, fills)

		assert.Nil(t, open)
		require.Len(t, closed, 1)
		trade := closed[0]
		assert.Equal(t, domain.PositionID(1), trade.PositionID, "entry fill id survives partial exits")
		assert.Equal(t, 2.0, trade.Volume, "total opened volume, not remaining")
		assert.Equal(t, 40.0, trade.PNL)
		assert.Equal(t, at(3), trade.CloseTime)
	})

	t.Run("Reversal closes and reopens", func(t *testing.T) {
		fills := []fill{
			{ID: 10, Side: domain.Buy, Qty: 1, Time: at(0)},
			{ID: 11, Side: domain.Sell, Qty: 3, RealizedPnl: -20, Time: at(5)},
		}
		open, closed := reconstruct("BTCUSDT", 7, fills)

		require.Len(t, closed, 1)
		assert.Equal(t, domain.PositionID(10), closed[0].PositionID)
		assert.Equal(t, domain.Buy, closed[0].Direction)
		assert.Equal(t, -20.0, closed[0].PNL)

		require.NotNil(t, open)
		assert.Equal(t, domain.PositionID(11), open.ID, "reversing fill opens the next lifecycle")
		assert.Equal(t, domain.Sell, open.Direction)
		assert.Equal(t, 2.0, open.Volume)
		assert.Equal(t, at(5), open.OpenTime)
	})

	t.Run("Out-of-order fills are replayed chronologically", func(t *testing.T) {
		fills := []fill{
			{ID: 21, Side: domain.Sell, Qty: 1, RealizedPnl: 5, Time: at(9)},
			{ID: 20, Side: domain.Buy, Qty: 1, Time: at(0)},
		}
		open, closed := reconstruct("ETHUSDT", 7, fills)

		assert.Nil(t, open)
		require.Len(t, closed, 1)
		assert.Equal(t, domain.PositionID(20), closed[0].PositionID)
	})

	t.Run("No fills yields nothing", func(t *testing.T) {
		open, closed := reconstruct("ETHUSDT", 7, nil)
		assert.Nil(t, open)
		assert.Empty(t, closed)
	})
}
