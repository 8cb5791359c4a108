package ports

import (
	"context"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// RoundFeed reports the live epoch and per-epoch round prices.
// Failures are transient: the core treats them as "no update this tick".
type RoundFeed interface {
	// FetchCurrentEpoch returns the epoch currently open for bets.
	FetchCurrentEpoch(ctx context.Context) (int64, error)

	// FetchRound returns lock/close prices for an epoch. ClosePrice is nil
	// while the round is still running.
	FetchRound(ctx context.Context, epoch int64) (domain.RoundData, error)
}

// GameStatusProvider reports global game flags (paused, minimum bet).
// Optional: feeds that cannot report it are simply not asked.
type GameStatusProvider interface {
	FetchGameStatus(ctx context.Context) (domain.GameStatus, error)
}
