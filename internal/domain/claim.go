package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetReceipt is what the stake collaborator returns for an accepted bet.
type BetReceipt struct {
	ID     string // local correlation ID or tx hash
	Epoch  int64
	TxHash string
}

// ClaimReceipt is what the settlement collaborator returns for a claim.
type ClaimReceipt struct {
	TxHash string
}

// ClaimReport summarizes one ClaimAll call.
type ClaimReport struct {
	ID          string // uuid correlation ID, empty when nothing was claimed
	Epochs      []int64
	Claimed     int
	TotalStake  decimal.Decimal
	TxHash      string
	SubmittedAt time.Time
	Err         string // set on failed claims written to the audit log
}

// RewardSummary is the count and totals of unclaimed wins.
type RewardSummary struct {
	Count           int
	TotalStake      decimal.Decimal
	EstimatedPayout decimal.Decimal // sum over positions whose round has pool totals
}

// GameStatus is the global state reported by the contract or feed.
type GameStatus struct {
	Paused bool
	MinBet decimal.Decimal // zero when unknown
}

// View is the read model handed to the presentation layer.
type View struct {
	Owner       string
	Epoch       int64
	Paused      bool
	MinBet      decimal.Decimal
	Window      []Round
	Positions   []Position // most recent first
	LiveEpoch   int64      // epoch of the position surfaced as live, 0 if none
	Unclaimed   RewardSummary
	RefreshedAt time.Time
}
