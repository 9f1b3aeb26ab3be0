package binancesource

import (
	"sort"
	"time"

	"tradesentry/internal/domain"
)

// fill is one executed trade normalized from the exchange's account trade
// list. Qty is always positive; Side carries the direction.
type fill struct {
	ID          int64
	Symbol      string
	Side        domain.OrderSide
	Qty         float64
	RealizedPnl float64
	Commission  float64
	Time        time.Time
}

// openPosition is a reconstructed position that has not returned to flat.
type openPosition struct {
	ID        domain.PositionID
	Symbol    string
	Direction domain.OrderSide
	Volume    float64
	OpenTime  time.Time
}

// reconstruct replays a symbol's fills chronologically and nets them into
// position lifecycles. The exchange aggregates positions per symbol and has
// no ticket concept, so the id of the fill that took the book from flat to
// non-flat serves as the stable position id: it is unique, never reused, and
// present in both the open view and the eventual closed record.
func reconstruct(symbol string, strategyID int64, fills []fill) (open *openPosition, closed []*domain.ClosedTrade) {
	sort.Slice(fills, func(i, j int) bool {
		if fills[i].Time.Equal(fills[j].Time) {
			return fills[i].ID < fills[j].ID
		}
		return fills[i].Time.Before(fills[j].Time)
	})

	var (
		net    float64 // signed position quantity, + long / - short
		cur    *openPosition
		pnl    float64 // accumulated realized pnl net of commissions
		volume float64 // total opened volume of the current lifecycle
	)

	for _, f := range fills {
		signed := f.Qty
		if f.Side == domain.Sell {
			signed = -signed
		}
		prev := net
		net += signed

		if cur == nil {
			if net == 0 {
				continue // e.g. history window starts mid-lifecycle
			}
			cur = &openPosition{
				ID:       domain.PositionID(f.ID),
				Symbol:   symbol,
				OpenTime: f.Time,
				Direction: func() domain.OrderSide {
					if net > 0 {
						return domain.Buy
					}
					return domain.Sell
				}(),
			}
			pnl = f.RealizedPnl - f.Commission
			volume = f.Qty
			continue
		}

		pnl += f.RealizedPnl - f.Commission
		if sameSign(prev, net) && abs(net) > abs(prev) {
			volume += f.Qty // position increased
		}

		if net == 0 || !sameSign(prev, net) {
			// Back to flat, or reversed through flat: the lifecycle ends here.
			cur.Volume = volume
			closed = append(closed, &domain.ClosedTrade{
				PositionID: cur.ID,
				StrategyID: strategyID,
				Symbol:     symbol,
				Direction:  cur.Direction,
				Volume:     volume,
				PNL:        pnl,
				OpenTime:   cur.OpenTime,
				CloseTime:  f.Time,
			})
			cur = nil
			if net != 0 {
				// The reversing fill also opens the next lifecycle.
				cur = &openPosition{
					ID:       domain.PositionID(f.ID),
					Symbol:   symbol,
					OpenTime: f.Time,
					Direction: func() domain.OrderSide {
						if net > 0 {
							return domain.Buy
						}
						return domain.Sell
					}(),
				}
				pnl = 0
				volume = abs(net)
			}
		}
	}

	if cur != nil {
		cur.Volume = volume
	}
	return cur, closed
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
