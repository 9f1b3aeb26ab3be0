package domain

import "time"

// Transition is a discrete notification from an upstream source that pushes
// position state changes instead of offering only snapshot queries.
// Side is the side of the executed fill itself.
type Transition struct {
	PositionID PositionID
	Entry      EntryKind
	Side       OrderSide
	StrategyID int64
	Symbol     string
	Volume     float64
	Profit     float64
	Swap       float64
	Commission float64
	Balance    float64 // account balance after the fill, if the source reports it
	Time       time.Time
	Comment    string
}

// IsClosing reports whether the transition ended a position's life: a plain
// close of the last remaining volume, or a close against an opposite position.
// Opens, partial increases and pending-order events never yield a closure.
func (t *Transition) IsClosing() bool {
	return t.Entry == EntryClose || t.Entry == EntryCloseBy
}

// PositionDirection recovers the original side of the position a closing fill
// belongs to. The closing fill executes on the opposite side of the position.
func (t *Transition) PositionDirection() OrderSide {
	return t.Side.Opposite()
}

// NetPNL is the full realized result of the fill including swap and commission.
func (t *Transition) NetPNL() float64 {
	return t.Profit + t.Swap + t.Commission
}
