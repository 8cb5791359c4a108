package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a bet.
type Direction string

const (
	Bull Direction = "Bull" // price goes up
	Bear Direction = "Bear" // price goes down
)

// ParseDirection accepts "bull"/"bear" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "bull", "Bull", "BULL", "up":
		return Bull, true
	case "bear", "Bear", "BEAR", "down":
		return Bear, true
	}
	return "", false
}

// Outcome is the settlement result of a position.
type Outcome string

const (
	OutcomePending Outcome = "Pending"
	OutcomeWin     Outcome = "Win"
	OutcomeLose    Outcome = "Lose"
)

// Position is one identity's bet on one round.
type Position struct {
	Epoch     int64
	Direction Direction
	Amount    decimal.Decimal
	Outcome   Outcome
	Claimed   bool // only ever true when Outcome == OutcomeWin
	PlacedAt  time.Time
}

// IsClaimable reports whether the position is a won, unclaimed bet.
func (p Position) IsClaimable() bool {
	return p.Outcome == OutcomeWin && !p.Claimed
}

// PositionRecord is a position as reported by an external source (on-chain
// ledger). Claimed may be true before the local outcome is known.
type PositionRecord struct {
	Epoch     int64
	Direction Direction
	Amount    decimal.Decimal
	Claimed   bool
}
