// Package rewards computes claimable positions and claims them in one
// external transaction.
package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/application/ledger"
	"github.com/alejandrodnm/profitflip/internal/domain"
	"github.com/alejandrodnm/profitflip/internal/ports"
)

// RoundSource resolves epochs to rounds for payout estimates.
type RoundSource interface {
	Lookup(epoch int64) (domain.Round, bool)
}

// Aggregator reads the ledger and issues aggregate claims.
type Aggregator struct {
	ledger    *ledger.Ledger
	submitter ports.ClaimSubmitter
	rounds    RoundSource
	mu        sync.Locker // serializes ledger access with the rest of the game

	inflight map[int64]string // epoch → claim ID
	now      func() time.Time
}

// New creates an Aggregator. mu must be the lock guarding the ledger; nil
// gives the aggregator its own.
func New(l *ledger.Ledger, submitter ports.ClaimSubmitter, rounds RoundSource, mu sync.Locker) *Aggregator {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Aggregator{
		ledger:    l,
		submitter: submitter,
		rounds:    rounds,
		mu:        mu,
		inflight:  make(map[int64]string),
		now:       time.Now,
	}
}

// UnclaimedWins returns won, unclaimed positions, most recent first.
// Callers must hold the game lock.
func (a *Aggregator) UnclaimedWins() []domain.Position {
	return a.ledger.UnclaimedWins()
}

// Summary returns the count, total stake and estimated payout of the
// unclaimed wins. Callers must hold the game lock.
func (a *Aggregator) Summary() domain.RewardSummary {
	s := domain.RewardSummary{TotalStake: decimal.Zero, EstimatedPayout: decimal.Zero}
	for _, p := range a.ledger.UnclaimedWins() {
		s.Count++
		s.TotalStake = s.TotalStake.Add(p.Amount)
		if a.rounds == nil {
			continue
		}
		if round, ok := a.rounds.Lookup(p.Epoch); ok {
			if payout, ok := domain.EstimatePayout(round, p); ok {
				s.EstimatedPayout = s.EstimatedPayout.Add(payout)
			}
		}
	}
	return s
}

// InFlight reports whether epoch is part of an outstanding claim.
// Callers must hold the game lock.
func (a *Aggregator) InFlight(epoch int64) bool {
	_, ok := a.inflight[epoch]
	return ok
}

// ClaimAll claims every unclaimed win in a single external call.
//
// With nothing to claim it returns a zero report and no error. On success
// every included position becomes claimed; on failure none does. While a
// claim is outstanding, another ClaimAll touching the same epochs fails
// with ErrClaimInProgress and makes no external call. Once submitted the
// claim is not cancelled by ctx.
func (a *Aggregator) ClaimAll(ctx context.Context) (domain.ClaimReport, error) {
	a.mu.Lock()
	wins := a.ledger.UnclaimedWins()
	if len(wins) == 0 {
		a.mu.Unlock()
		return domain.ClaimReport{TotalStake: decimal.Zero}, nil
	}

	report := domain.ClaimReport{
		ID:          uuid.New().String(),
		Epochs:      make([]int64, 0, len(wins)),
		TotalStake:  decimal.Zero,
		SubmittedAt: a.now().UTC(),
	}
	for _, p := range wins {
		if owner, busy := a.inflight[p.Epoch]; busy {
			a.mu.Unlock()
			return domain.ClaimReport{TotalStake: decimal.Zero}, fmt.Errorf("rewards.ClaimAll: epoch %d held by claim %s: %w",
				p.Epoch, owner, domain.ErrClaimInProgress)
		}
		report.Epochs = append(report.Epochs, p.Epoch)
		report.TotalStake = report.TotalStake.Add(p.Amount)
	}
	for _, epoch := range report.Epochs {
		a.inflight[epoch] = report.ID
	}
	a.mu.Unlock()

	slog.Info("claim submitted", "claim_id", report.ID, "epochs", report.Epochs, "stake", report.TotalStake.String())

	receipt, err := a.submitter.SubmitClaim(context.WithoutCancel(ctx), report.Epochs)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, epoch := range report.Epochs {
		delete(a.inflight, epoch)
	}

	if err != nil {
		report.Err = err.Error()
		slog.Warn("claim failed", "claim_id", report.ID, "epochs", report.Epochs, "err", err)
		return report, fmt.Errorf("rewards.ClaimAll: submit %v: %w", report.Epochs, domain.NewExternalError("SubmitClaim", err))
	}

	if err := a.ledger.MarkClaimed(report.Epochs); err != nil {
		// The external claim succeeded; the ledger changed underneath us.
		report.TxHash = receipt.TxHash
		report.Err = err.Error()
		return report, fmt.Errorf("rewards.ClaimAll: mark claimed: %w", err)
	}

	report.TxHash = receipt.TxHash
	report.Claimed = len(report.Epochs)
	slog.Info("claim confirmed", "claim_id", report.ID, "claimed", report.Claimed, "tx", receipt.TxHash)
	return report, nil
}
