package domain

// PositionID is the opaque, stable identifier the upstream source assigns to a
// position (ticket or position-group id). Never reused across open and
// historical positions.
type PositionID int64

// OrderSide represents the side of a position or fill (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the other side. A BUY position is closed by a SELL fill
// and vice versa.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TradeResult classifies a closed trade by the sign of its PNL.
type TradeResult string

const (
	ResultWin  TradeResult = "WIN"
	ResultLoss TradeResult = "LOSS"
)

// EntryKind classifies what a transition notification did to its position.
type EntryKind string

const (
	EntryOpen    EntryKind = "OPEN"     // opened or increased a position
	EntryClose   EntryKind = "CLOSE"    // closed the last remaining volume
	EntryReverse EntryKind = "REVERSE"  // closed and re-opened on the other side
	EntryCloseBy EntryKind = "CLOSE_BY" // closed against an opposite position
	EntryPending EntryKind = "PENDING"  // pending-order lifecycle, never a closure
)
