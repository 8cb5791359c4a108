package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// BetSubmitter places a stake with the external game contract.
type BetSubmitter interface {
	SubmitBet(ctx context.Context, epoch int64, direction domain.Direction, amount decimal.Decimal) (domain.BetReceipt, error)
}

// ClaimSubmitter claims rewards for a set of epochs in one atomic call.
// Either every epoch is claimed or none is.
type ClaimSubmitter interface {
	SubmitClaim(ctx context.Context, epochs []int64) (domain.ClaimReceipt, error)
}

// PositionSource lists the positions an identity holds according to the
// external ledger (on-chain), used to reconcile the local ledger.
type PositionSource interface {
	FetchUserPositions(ctx context.Context, owner string) ([]domain.PositionRecord, error)
}
