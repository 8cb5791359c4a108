package ports

import (
	"context"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// LedgerStorage persists rounds, positions and the claim audit log so a
// restart keeps claimed flags and resolved outcomes.
type LedgerStorage interface {
	SaveRounds(ctx context.Context, rounds []domain.Round) error
	LoadRounds(ctx context.Context, fromEpoch int64) ([]domain.Round, error)

	SavePositions(ctx context.Context, owner string, positions []domain.Position) error
	LoadPositions(ctx context.Context, owner string) ([]domain.Position, error)

	SaveClaim(ctx context.Context, owner string, report domain.ClaimReport) error
	GetClaims(ctx context.Context, owner string) ([]domain.ClaimReport, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
