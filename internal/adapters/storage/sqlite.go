package storage

// sqlite.go: persistencia del juego.
//
// Estrategia:
//   - `rounds`: UNA fila por epoch (UPSERT). Una ronda cerrada no se reescribe.
//   - `positions`: UNA fila por (owner, epoch). Guarda outcome y claimed para
//     que un reinicio no vuelva a reclamar ni a resolver.
//   - `claims`: log de auditoría, una fila por intento de ClaimAll (éxito o fallo).
//   - Cache en memoria: evita writes si la ronda no cambió de estado. Cada tick
//     reenvía toda la ventana y casi nunca cambia nada.
//   - Prune automático al arrancar: rondas > 30d sin posiciones asociadas.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

const schema = `
-- Una fila por ronda, sin duplicados
CREATE TABLE IF NOT EXISTS rounds (
    epoch          INTEGER PRIMARY KEY,
    status         TEXT    NOT NULL,
    lock_price     INTEGER NOT NULL DEFAULT 0,
    close_price    INTEGER,
    start_at       INTEGER NOT NULL DEFAULT 0,
    lock_at        INTEGER NOT NULL DEFAULT 0,
    close_at       INTEGER NOT NULL DEFAULT 0,
    total_amount   TEXT    NOT NULL DEFAULT '0',
    bull_amount    TEXT    NOT NULL DEFAULT '0',
    bear_amount    TEXT    NOT NULL DEFAULT '0',
    reward_base    TEXT    NOT NULL DEFAULT '0',
    reward_amount  TEXT    NOT NULL DEFAULT '0',
    updated_at     INTEGER NOT NULL
);

-- Una fila por apuesta de cada identidad
CREATE TABLE IF NOT EXISTS positions (
    owner      TEXT    NOT NULL,
    epoch      INTEGER NOT NULL,
    direction  TEXT    NOT NULL,
    amount     TEXT    NOT NULL,
    outcome    TEXT    NOT NULL DEFAULT 'Pending',
    claimed    INTEGER NOT NULL DEFAULT 0,
    placed_at  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (owner, epoch)
);

-- Auditoría de reclamaciones
CREATE TABLE IF NOT EXISTS claims (
    id           TEXT PRIMARY KEY,
    owner        TEXT    NOT NULL,
    epochs       TEXT    NOT NULL,
    claimed      INTEGER NOT NULL DEFAULT 0,
    total_stake  TEXT    NOT NULL DEFAULT '0',
    tx_hash      TEXT,
    submitted_at INTEGER NOT NULL,
    error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_rounds_updated  ON rounds(updated_at);
CREATE INDEX IF NOT EXISTS idx_claims_owner_at ON claims(owner, submitted_at DESC);
`

const retentionRounds = 30 * 24 * time.Hour // rondas sin posiciones: 30 días

// cachedRound es el snapshot del último estado guardado de una ronda.
type cachedRound struct {
	status   domain.RoundStatus
	hasClose bool
}

// SQLiteStorage implementa ports.LedgerStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[int64]cachedRound // epoch → estado guardado
	mu    sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[int64]cachedRound),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SaveRounds hace upsert de las rondas que cambiaron respecto a la última
// escritura. Una ronda cerrada ya guardada nunca se modifica.
func (s *SQLiteStorage) SaveRounds(ctx context.Context, rounds []domain.Round) error {
	toWrite := s.filterChanged(rounds)
	if len(toWrite) == 0 {
		return nil // nada nuevo, la gran mayoría de ticks terminan aquí
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRounds: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rounds
			(epoch, status, lock_price, close_price, start_at, lock_at, close_at,
			 total_amount, bull_amount, bear_amount, reward_base, reward_amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(epoch) DO UPDATE SET
			status        = excluded.status,
			lock_price    = excluded.lock_price,
			close_price   = excluded.close_price,
			start_at      = excluded.start_at,
			lock_at       = excluded.lock_at,
			close_at      = excluded.close_at,
			total_amount  = excluded.total_amount,
			bull_amount   = excluded.bull_amount,
			bear_amount   = excluded.bear_amount,
			reward_base   = excluded.reward_base,
			reward_amount = excluded.reward_amount,
			updated_at    = excluded.updated_at
		WHERE rounds.status != 'Closed'
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRounds: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	for _, r := range toWrite {
		var closePrice any
		if r.ClosePrice != nil {
			closePrice = int64(*r.ClosePrice)
		}
		if _, err := stmt.ExecContext(ctx,
			r.Epoch,
			r.Status.String(),
			int64(r.LockPrice),
			closePrice,
			unixMilli(r.StartAt),
			unixMilli(r.LockAt),
			unixMilli(r.CloseAt),
			r.TotalAmount.String(),
			r.BullAmount.String(),
			r.BearAmount.String(),
			r.RewardBaseCalAmount.String(),
			r.RewardAmount.String(),
			now,
		); err != nil {
			return fmt.Errorf("storage.SaveRounds: upsert %d: %w", r.Epoch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRounds: commit: %w", err)
	}

	s.mu.Lock()
	for _, r := range toWrite {
		s.cache[r.Epoch] = cachedRound{status: r.Status, hasClose: r.HasClosePrice()}
	}
	s.mu.Unlock()
	return nil
}

// LoadRounds devuelve las rondas con epoch >= fromEpoch, ascendentes.
func (s *SQLiteStorage) LoadRounds(ctx context.Context, fromEpoch int64) ([]domain.Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, status, lock_price, close_price, start_at, lock_at, close_at,
		       total_amount, bull_amount, bear_amount, reward_base, reward_amount
		FROM rounds
		WHERE epoch >= ?
		ORDER BY epoch ASC
	`, fromEpoch)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadRounds: query: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var (
			r                            domain.Round
			status                       string
			lockPrice                    int64
			closePrice                   sql.NullInt64
			startAt, lockAt, closeAt     int64
			total, bull, bear, base, rwd string
		)
		if err := rows.Scan(&r.Epoch, &status, &lockPrice, &closePrice,
			&startAt, &lockAt, &closeAt,
			&total, &bull, &bear, &base, &rwd,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadRounds: scan row: %w", err)
		}

		r.Status = parseStatus(status)
		r.LockPrice = domain.Price(lockPrice)
		if closePrice.Valid {
			p := domain.Price(closePrice.Int64)
			r.ClosePrice = &p
		}
		r.StartAt = fromUnixMilli(startAt)
		r.LockAt = fromUnixMilli(lockAt)
		r.CloseAt = fromUnixMilli(closeAt)
		r.TotalAmount = parseDecimal(total)
		r.BullAmount = parseDecimal(bull)
		r.BearAmount = parseDecimal(bear)
		r.RewardBaseCalAmount = parseDecimal(base)
		r.RewardAmount = parseDecimal(rwd)
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// filterChanged devuelve las rondas cuyo estado difiere del que está en caché.
func (s *SQLiteStorage) filterChanged(rounds []domain.Round) []domain.Round {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toWrite []domain.Round
	for _, r := range rounds {
		if prev, ok := s.cache[r.Epoch]; ok {
			if prev.status == domain.RoundClosed {
				continue
			}
			if prev.status == r.Status && prev.hasClose == r.HasClosePrice() {
				continue
			}
		}
		toWrite = append(toWrite, r)
	}
	return toWrite
}

// pruneOld elimina rondas antiguas que ninguna posición referencia.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRounds).UnixMilli()
	s.db.ExecContext(ctx, `
		DELETE FROM rounds
		WHERE updated_at < ? AND epoch NOT IN (SELECT epoch FROM positions)
	`, cutoff)
}

// warmCache precarga la caché desde la DB al arrancar, evitando escrituras
// redundantes en el primer tick tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `SELECT epoch, status, close_price IS NOT NULL FROM rounds`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var epoch int64
		var status string
		var hasClose int
		if rows.Scan(&epoch, &status, &hasClose) == nil {
			s.cache[epoch] = cachedRound{status: parseStatus(status), hasClose: hasClose == 1}
		}
	}
}

func parseStatus(s string) domain.RoundStatus {
	switch s {
	case "Live":
		return domain.RoundLive
	case "Locked":
		return domain.RoundLocked
	case "Closed":
		return domain.RoundClosed
	default:
		return domain.RoundUpcoming
	}
}

// parseDecimal devuelve cero ante un valor corrupto en lugar de fallar la carga.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
