package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// SaveClaim registra un intento de reclamación en el log de auditoría.
func (s *SQLiteStorage) SaveClaim(ctx context.Context, owner string, r domain.ClaimReport) error {
	epochs, err := json.Marshal(r.Epochs)
	if err != nil {
		return fmt.Errorf("storage.SaveClaim: encode epochs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO claims (id, owner, epochs, claimed, total_stake, tx_hash, submitted_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, owner, string(epochs), r.Claimed, r.TotalStake.String(),
		nullString(r.TxHash), unixMilli(r.SubmittedAt), nullString(r.Err))
	if err != nil {
		return fmt.Errorf("storage.SaveClaim: %w", err)
	}
	return nil
}

// GetClaims devuelve el historial de reclamaciones de owner, más recientes primero.
func (s *SQLiteStorage) GetClaims(ctx context.Context, owner string) ([]domain.ClaimReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, epochs, claimed, total_stake, tx_hash, submitted_at, error
		FROM claims
		WHERE owner = ?
		ORDER BY submitted_at DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("storage.GetClaims: query: %w", err)
	}
	defer rows.Close()

	var reports []domain.ClaimReport
	for rows.Next() {
		var (
			r              domain.ClaimReport
			epochs, stake  string
			txHash, errMsg sql.NullString
			submittedAt    int64
		)
		if err := rows.Scan(&r.ID, &epochs, &r.Claimed, &stake, &txHash, &submittedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("storage.GetClaims: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(epochs), &r.Epochs); err != nil {
			return nil, fmt.Errorf("storage.GetClaims: decode epochs of %s: %w", r.ID, err)
		}
		r.TotalStake = parseDecimal(stake)
		r.TxHash = txHash.String
		r.Err = errMsg.String
		r.SubmittedAt = fromUnixMilli(submittedAt)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
