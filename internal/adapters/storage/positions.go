package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// SavePositions hace upsert de todas las posiciones de owner.
// Un claimed=1 ya guardado nunca vuelve a 0.
func (s *SQLiteStorage) SavePositions(ctx context.Context, owner string, positions []domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SavePositions: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (owner, epoch, direction, amount, outcome, claimed, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, epoch) DO UPDATE SET
			outcome = excluded.outcome,
			claimed = MAX(positions.claimed, excluded.claimed)
	`)
	if err != nil {
		return fmt.Errorf("storage.SavePositions: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx,
			owner,
			p.Epoch,
			string(p.Direction),
			p.Amount.String(),
			string(p.Outcome),
			boolToInt(p.Claimed),
			unixMilli(p.PlacedAt),
		); err != nil {
			return fmt.Errorf("storage.SavePositions: upsert %d: %w", p.Epoch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SavePositions: commit: %w", err)
	}
	return nil
}

// LoadPositions devuelve las posiciones de owner, epoch descendente.
func (s *SQLiteStorage) LoadPositions(ctx context.Context, owner string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, direction, amount, outcome, claimed, placed_at
		FROM positions
		WHERE owner = ?
		ORDER BY epoch DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadPositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var (
			p                          domain.Position
			direction, amount, outcome string
			claimed                    int
			placedAt                   int64
		)
		if err := rows.Scan(&p.Epoch, &direction, &amount, &outcome, &claimed, &placedAt); err != nil {
			return nil, fmt.Errorf("storage.LoadPositions: scan row: %w", err)
		}
		p.Direction = domain.Direction(direction)
		p.Amount = parseDecimal(amount)
		p.Outcome = domain.Outcome(outcome)
		p.Claimed = claimed == 1
		p.PlacedAt = fromUnixMilli(placedAt)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
