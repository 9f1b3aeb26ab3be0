package domain

import "time"

// ClosedTrade is the record of a position that transitioned from open to
// closed. Immutable once built; PNL already includes swap and commission.
// Direction is the position's original side, not the side of the closing fill.
type ClosedTrade struct {
	PositionID PositionID
	StrategyID int64 // stable numeric strategy identifier (magic number)
	Symbol     string
	Direction  OrderSide
	Volume     float64
	PNL        float64
	OpenTime   time.Time
	CloseTime  time.Time
	Comment    string
	Balance    float64 // account balance after the close
}

// Result classifies the trade by the sign of its PNL. Break-even counts as a win.
func (t *ClosedTrade) Result() TradeResult {
	if t.PNL < 0 {
		return ResultLoss
	}
	return ResultWin
}
