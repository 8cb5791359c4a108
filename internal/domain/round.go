package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundStatus is the lifecycle stage of a round. Values are ordered: a round
// only ever moves forward (Upcoming → Live → Locked → Closed).
type RoundStatus int

const (
	RoundUpcoming RoundStatus = iota
	RoundLive
	RoundLocked // superseded as live, close price not fixed yet
	RoundClosed
)

// String devuelve el nombre legible del estado.
func (s RoundStatus) String() string {
	switch s {
	case RoundUpcoming:
		return "Upcoming"
	case RoundLive:
		return "Live"
	case RoundLocked:
		return "Locked"
	case RoundClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// RoundData is what the price/round feed reports for one epoch.
type RoundData struct {
	Epoch      int64
	LockPrice  Price
	ClosePrice *Price // nil while the round is in progress

	StartAt time.Time
	LockAt  time.Time
	CloseAt time.Time

	// Pool totals, zero when the feed does not provide them.
	TotalAmount         decimal.Decimal
	BullAmount          decimal.Decimal
	BearAmount          decimal.Decimal
	RewardBaseCalAmount decimal.Decimal
	RewardAmount        decimal.Decimal
}

// Round is one epoch of the game as tracked by the registry.
type Round struct {
	RoundData
	Status RoundStatus
}

// HasClosePrice reports whether the close price has been fixed.
func (r Round) HasClosePrice() bool {
	return r.ClosePrice != nil
}

// IsLive reports whether bets can be placed on the round.
func (r Round) IsLive() bool {
	return r.Status == RoundLive
}

// StatusFor derives the status a round should have given the live epoch.
// A fixed close price always means Closed.
func StatusFor(data RoundData, currentEpoch int64) RoundStatus {
	switch {
	case data.ClosePrice != nil:
		return RoundClosed
	case data.Epoch > currentEpoch:
		return RoundUpcoming
	case data.Epoch == currentEpoch:
		return RoundLive
	default:
		return RoundLocked
	}
}

// Advance returns the later of the current and the proposed status, so the
// lifecycle never regresses.
func (s RoundStatus) Advance(next RoundStatus) RoundStatus {
	if next > s {
		return next
	}
	return s
}

// TimeLeft returns how long until the round locks (Upcoming) or closes
// (Live). Zero when unknown or already past.
func (r Round) TimeLeft(now time.Time) time.Duration {
	var target time.Time
	switch r.Status {
	case RoundUpcoming:
		target = r.LockAt
	case RoundLive:
		target = r.CloseAt
	default:
		return 0
	}
	if target.IsZero() || !target.After(now) {
		return 0
	}
	return target.Sub(now)
}
