// Package ledger keeps the positions of one connected identity and their
// settlement state.
package ledger

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// RoundLookup resolves an epoch to a round of the visible window.
type RoundLookup interface {
	Get(epoch int64) (domain.Round, error)
}

// Ledger is the exclusive owner of one identity's positions.
// It is not safe for concurrent use; the game facade serializes access.
type Ledger struct {
	owner     string
	minBet    decimal.Decimal
	rounds    RoundLookup
	positions map[int64]domain.Position

	// remoteClaimed holds epochs the external ledger reports as claimed
	// while the local outcome is still Pending.
	remoteClaimed map[int64]bool

	now func() time.Time
}

// New creates an empty ledger for owner.
func New(owner string, rounds RoundLookup, minBet decimal.Decimal) *Ledger {
	return &Ledger{
		owner:         owner,
		minBet:        minBet,
		rounds:        rounds,
		positions:     make(map[int64]domain.Position),
		remoteClaimed: make(map[int64]bool),
		now:           time.Now,
	}
}

// Owner returns the identity this ledger belongs to.
func (l *Ledger) Owner() string { return l.owner }

// MinBet returns the configured minimum stake.
func (l *Ledger) MinBet() decimal.Decimal { return l.minBet }

// SetMinBet updates the minimum stake (e.g. from the contract's minBetAmount).
func (l *Ledger) SetMinBet(d decimal.Decimal) {
	if d.IsPositive() {
		l.minBet = d
	}
}

// CheckPlace runs every validation of Place without mutating anything.
func (l *Ledger) CheckPlace(epoch int64, direction domain.Direction, amount decimal.Decimal) error {
	if direction != domain.Bull && direction != domain.Bear {
		return fmt.Errorf("ledger.Place: %q: %w", direction, domain.ErrInvalidDirection)
	}
	round, err := l.rounds.Get(epoch)
	if err != nil {
		return fmt.Errorf("ledger.Place: epoch %d: %w", epoch, domain.ErrInvalidRound)
	}
	if !round.IsLive() {
		return fmt.Errorf("ledger.Place: epoch %d is %s: %w", epoch, round.Status, domain.ErrInvalidRound)
	}
	if !amount.IsPositive() || amount.LessThan(l.minBet) {
		return fmt.Errorf("ledger.Place: amount %s < min %s: %w", amount, l.minBet, domain.ErrBelowMinimum)
	}
	if _, ok := l.positions[epoch]; ok {
		return fmt.Errorf("ledger.Place: epoch %d: %w", epoch, domain.ErrDuplicatePosition)
	}
	return nil
}

// Place records a new Pending, unclaimed position on a Live round.
func (l *Ledger) Place(epoch int64, direction domain.Direction, amount decimal.Decimal) (domain.Position, error) {
	if err := l.CheckPlace(epoch, direction, amount); err != nil {
		return domain.Position{}, err
	}
	return l.Record(epoch, direction, amount), nil
}

// Record stores a position the external stake collaborator already
// accepted, skipping the live-round check: the round may have moved on
// while the bet was in flight. An existing position is returned unchanged.
func (l *Ledger) Record(epoch int64, direction domain.Direction, amount decimal.Decimal) domain.Position {
	if p, ok := l.positions[epoch]; ok {
		return p
	}
	pos := domain.Position{
		Epoch:     epoch,
		Direction: direction,
		Amount:    amount,
		Outcome:   domain.OutcomePending,
		PlacedAt:  l.now().UTC(),
	}
	l.positions[epoch] = pos
	return pos
}

// ListForUser returns every position, most recent epoch first.
func (l *Ledger) ListForUser() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Position) int {
		switch {
		case a.Epoch > b.Epoch:
			return -1
		case a.Epoch < b.Epoch:
			return 1
		}
		return 0
	})
	return out
}

// Get returns the position for epoch.
func (l *Ledger) Get(epoch int64) (domain.Position, error) {
	p, ok := l.positions[epoch]
	if !ok {
		return domain.Position{}, fmt.Errorf("ledger.Get: epoch %d: %w", epoch, domain.ErrNotFound)
	}
	return p, nil
}

// Pending returns the epochs whose outcome is not known yet, ascending.
func (l *Ledger) Pending() []int64 {
	var out []int64
	for epoch, p := range l.positions {
		if p.Outcome == domain.OutcomePending {
			out = append(out, epoch)
		}
	}
	slices.Sort(out)
	return out
}

// ApplyOutcome sets the outcome of the position at epoch. Applying the same
// outcome again is a no-op (changed == false). Overwriting a settled
// outcome with a different one fails with ErrSettlementConflict.
func (l *Ledger) ApplyOutcome(epoch int64, outcome domain.Outcome) (changed bool, err error) {
	p, ok := l.positions[epoch]
	if !ok {
		return false, fmt.Errorf("ledger.ApplyOutcome: epoch %d: %w", epoch, domain.ErrNotFound)
	}
	if p.Outcome == outcome {
		return false, nil
	}
	if p.Outcome != domain.OutcomePending {
		return false, fmt.Errorf("ledger.ApplyOutcome: epoch %d is %s, got %s: %w",
			epoch, p.Outcome, outcome, domain.ErrSettlementConflict)
	}

	p.Outcome = outcome
	if l.remoteClaimed[epoch] {
		delete(l.remoteClaimed, epoch)
		if outcome == domain.OutcomeWin {
			p.Claimed = true
		} else {
			slog.Warn("ledger: external ledger reports a claim on a lost position",
				"owner", l.owner, "epoch", epoch, "outcome", outcome)
		}
	}
	l.positions[epoch] = p
	return true, nil
}

// MarkClaimed flags every given epoch as claimed, or none of them: if any
// epoch is missing or not a won position nothing changes. A win already
// flagged claimed stays as is.
func (l *Ledger) MarkClaimed(epochs []int64) error {
	for _, epoch := range epochs {
		p, ok := l.positions[epoch]
		if !ok {
			return fmt.Errorf("ledger.MarkClaimed: epoch %d: %w", epoch, domain.ErrNotFound)
		}
		if p.Outcome != domain.OutcomeWin {
			return fmt.Errorf("ledger.MarkClaimed: epoch %d outcome=%s claimed=%t: %w",
				epoch, p.Outcome, p.Claimed, domain.ErrSettlementConflict)
		}
	}
	for _, epoch := range epochs {
		p := l.positions[epoch]
		p.Claimed = true
		l.positions[epoch] = p
	}
	return nil
}

// Restore loads persisted positions. Records violating the claimed ⇒ win
// invariant are repaired (claimed dropped) and logged.
func (l *Ledger) Restore(positions []domain.Position) {
	for _, p := range positions {
		if p.Claimed && p.Outcome != domain.OutcomeWin {
			slog.Warn("ledger: dropping claimed flag on non-winning position",
				"owner", l.owner, "epoch", p.Epoch, "outcome", p.Outcome)
			p.Claimed = false
		}
		if p.Outcome == "" {
			p.Outcome = domain.OutcomePending
		}
		l.positions[p.Epoch] = p
	}
}

// Import reconciles the ledger with positions reported by the external
// ledger. Unknown positions are added as Pending. A remote claimed flag is
// honoured only once the local outcome is Win. Records for which skip
// returns true are left alone. Returns the number of new positions.
func (l *Ledger) Import(records []domain.PositionRecord, skip func(epoch int64) bool) int {
	added := 0
	for _, rec := range records {
		if skip != nil && skip(rec.Epoch) {
			continue
		}
		p, ok := l.positions[rec.Epoch]
		if !ok {
			p = domain.Position{
				Epoch:     rec.Epoch,
				Direction: rec.Direction,
				Amount:    rec.Amount,
				Outcome:   domain.OutcomePending,
				PlacedAt:  l.now().UTC(),
			}
			added++
		}
		if rec.Claimed && !p.Claimed {
			if p.Outcome == domain.OutcomeWin {
				p.Claimed = true
			} else if p.Outcome == domain.OutcomePending {
				l.remoteClaimed[rec.Epoch] = true
			}
		}
		l.positions[rec.Epoch] = p
	}
	return added
}

// UnclaimedWins returns won, unclaimed positions in ListForUser order.
func (l *Ledger) UnclaimedWins() []domain.Position {
	var out []domain.Position
	for _, p := range l.ListForUser() {
		if p.IsClaimable() {
			out = append(out, p)
		}
	}
	return out
}

// LivePosition returns the most recent position when it is still Pending
// and sits on the live round. Older unresolved positions are never
// surfaced as live; they just stay Pending.
func (l *Ledger) LivePosition(liveEpoch int64) (domain.Position, bool) {
	list := l.ListForUser()
	if len(list) == 0 {
		return domain.Position{}, false
	}
	latest := list[0]
	if latest.Outcome != domain.OutcomePending || latest.Epoch != liveEpoch {
		return domain.Position{}, false
	}
	return latest, true
}
