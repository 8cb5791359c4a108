package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Resolve decides a position's outcome from the round prices.
//
// Bull wins when close > lock, Bear wins when close < lock. A tie loses for
// both sides (house edge). The result depends only on direction, lock and
// close price.
func Resolve(round Round, direction Direction) (Outcome, error) {
	if round.ClosePrice == nil {
		return OutcomePending, fmt.Errorf("domain.Resolve: epoch %d: %w", round.Epoch, ErrRoundNotClosed)
	}
	return ResolvePrices(direction, round.LockPrice, *round.ClosePrice), nil
}

// ResolvePrices is the pure comparison behind Resolve.
func ResolvePrices(direction Direction, lock, close Price) Outcome {
	switch {
	case direction == Bull && close > lock:
		return OutcomeWin
	case direction == Bear && close < lock:
		return OutcomeWin
	default:
		return OutcomeLose
	}
}

// EstimatePayout returns the expected reward for a won position using the
// round's pool totals: amount × rewardAmount / rewardBaseCalAmount.
// ok is false when the round carries no pool totals.
func EstimatePayout(round Round, pos Position) (payout decimal.Decimal, ok bool) {
	if round.RewardBaseCalAmount.IsZero() || round.RewardAmount.IsZero() {
		return decimal.Zero, false
	}
	return pos.Amount.Mul(round.RewardAmount).Div(round.RewardBaseCalAmount), true
}
