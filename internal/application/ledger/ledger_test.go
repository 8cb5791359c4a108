package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/profitflip/internal/application/ledger"
	"github.com/alejandrodnm/profitflip/internal/application/registry"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

var minBet = decimal.RequireFromString("0.01")

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newLedger returns a ledger whose registry has rounds 120..125 with 124 live.
func newLedger(t *testing.T) (*ledger.Ledger, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.DefaultCapacity)
	for e := int64(120); e <= 125; e++ {
		reg.Supply(domain.RoundData{Epoch: e, LockPrice: 30000_00000000})
	}
	reg.Advance(124)
	return ledger.New("0xuser", reg, minBet), reg
}

func TestPlace_CreatesPendingPosition(t *testing.T) {
	l, _ := newLedger(t)

	pos, err := l.Place(124, domain.Bull, amt("0.1"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePending, pos.Outcome)
	assert.False(t, pos.Claimed)
	assert.False(t, pos.PlacedAt.IsZero())
	assert.Equal(t, []int64{124}, l.Pending())
}

func TestPlace_Validation(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Place(123, domain.Bull, amt("0.1"))
	assert.True(t, errors.Is(err, domain.ErrInvalidRound), "locked round")

	_, err = l.Place(125, domain.Bear, amt("0.1"))
	assert.True(t, errors.Is(err, domain.ErrInvalidRound), "upcoming round")

	_, err = l.Place(200, domain.Bear, amt("0.1"))
	assert.True(t, errors.Is(err, domain.ErrInvalidRound), "unknown round")

	_, err = l.Place(124, domain.Bull, amt("0.001"))
	assert.True(t, errors.Is(err, domain.ErrBelowMinimum))

	_, err = l.Place(124, domain.Bull, decimal.Zero)
	assert.True(t, errors.Is(err, domain.ErrBelowMinimum))

	_, err = l.Place(124, domain.Bull, amt("0.01"))
	require.NoError(t, err, "minimum itself is accepted")

	_, err = l.Place(124, domain.Bear, amt("1"))
	assert.True(t, errors.Is(err, domain.ErrDuplicatePosition))

	assert.Len(t, l.ListForUser(), 1, "failed placements leave no trace")
}

func TestListForUser_DescendingEpoch(t *testing.T) {
	l, _ := newLedger(t)
	l.Restore([]domain.Position{
		{Epoch: 121, Direction: domain.Bull, Amount: amt("0.15"), Outcome: domain.OutcomeWin},
		{Epoch: 123, Direction: domain.Bull, Amount: amt("0.1"), Outcome: domain.OutcomeWin},
		{Epoch: 120, Direction: domain.Bear, Amount: amt("0.05"), Outcome: domain.OutcomePending},
		{Epoch: 122, Direction: domain.Bear, Amount: amt("0.2"), Outcome: domain.OutcomeWin, Claimed: true},
	})

	var epochs []int64
	for _, p := range l.ListForUser() {
		epochs = append(epochs, p.Epoch)
	}
	assert.Equal(t, []int64{123, 122, 121, 120}, epochs)
}

func TestApplyOutcome_Idempotent(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Place(124, domain.Bull, amt("0.1"))
	require.NoError(t, err)

	changed, err := l.ApplyOutcome(124, domain.OutcomeWin)
	require.NoError(t, err)
	assert.True(t, changed)
	once := l.ListForUser()

	changed, err = l.ApplyOutcome(124, domain.OutcomeWin)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, once, l.ListForUser())
}

func TestApplyOutcome_Conflict(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Place(124, domain.Bull, amt("0.1"))
	require.NoError(t, err)
	_, err = l.ApplyOutcome(124, domain.OutcomeLose)
	require.NoError(t, err)

	_, err = l.ApplyOutcome(124, domain.OutcomeWin)
	assert.True(t, errors.Is(err, domain.ErrSettlementConflict))
	p, _ := l.Get(124)
	assert.Equal(t, domain.OutcomeLose, p.Outcome)

	_, err = l.ApplyOutcome(1, domain.OutcomeWin)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMarkClaimed_AllOrNothing(t *testing.T) {
	l, _ := newLedger(t)
	l.Restore([]domain.Position{
		{Epoch: 5, Direction: domain.Bull, Amount: amt("1"), Outcome: domain.OutcomeWin},
		{Epoch: 6, Direction: domain.Bull, Amount: amt("1"), Outcome: domain.OutcomeLose},
		{Epoch: 7, Direction: domain.Bear, Amount: amt("1"), Outcome: domain.OutcomeWin},
	})

	err := l.MarkClaimed([]int64{5, 6, 7})
	assert.True(t, errors.Is(err, domain.ErrSettlementConflict))
	for _, p := range l.ListForUser() {
		assert.False(t, p.Claimed, p.Epoch)
	}

	require.NoError(t, l.MarkClaimed([]int64{5, 7}))
	assert.Empty(t, l.UnclaimedWins())

	// Marking an already claimed win again changes nothing.
	require.NoError(t, l.MarkClaimed([]int64{5}))
	p, err := l.Get(5)
	require.NoError(t, err)
	assert.True(t, p.Claimed)

	// A lost position is never claimable.
	err = l.MarkClaimed([]int64{6})
	assert.True(t, errors.Is(err, domain.ErrSettlementConflict))
}

func TestPlace_InvalidDirection(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Place(124, domain.Direction("sideways"), amt("0.1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidDirection))
	assert.Contains(t, err.Error(), "invalid direction")
	assert.Empty(t, l.ListForUser())
}

func TestImport_SkipsHeldEpochs(t *testing.T) {
	l, _ := newLedger(t)
	l.Restore([]domain.Position{
		{Epoch: 10, Direction: domain.Bull, Amount: amt("1"), Outcome: domain.OutcomeWin},
	})

	held := func(epoch int64) bool { return epoch == 10 }
	added := l.Import([]domain.PositionRecord{
		{Epoch: 10, Direction: domain.Bull, Amount: amt("1"), Claimed: true},
		{Epoch: 11, Direction: domain.Bear, Amount: amt("1")},
	}, held)

	assert.Equal(t, 1, added)
	p, err := l.Get(10)
	require.NoError(t, err)
	assert.False(t, p.Claimed)
	_, err = l.Get(11)
	assert.NoError(t, err)
}

func TestClaimedImpliesWin(t *testing.T) {
	l, _ := newLedger(t)
	l.Restore([]domain.Position{
		{Epoch: 9, Direction: domain.Bull, Amount: amt("1"), Outcome: domain.OutcomeLose, Claimed: true},
	})
	p, err := l.Get(9)
	require.NoError(t, err)
	assert.False(t, p.Claimed)
}

func TestImport_RemoteClaimAppliedAfterWin(t *testing.T) {
	l, _ := newLedger(t)
	added := l.Import([]domain.PositionRecord{
		{Epoch: 110, Direction: domain.Bull, Amount: amt("0.5"), Claimed: true},
		{Epoch: 111, Direction: domain.Bear, Amount: amt("0.5")},
	}, nil)
	assert.Equal(t, 2, added)

	p, _ := l.Get(110)
	assert.False(t, p.Claimed, "outcome unknown yet")

	_, err := l.ApplyOutcome(110, domain.OutcomeWin)
	require.NoError(t, err)
	p, _ = l.Get(110)
	assert.True(t, p.Claimed)

	assert.Equal(t, 0, l.Import([]domain.PositionRecord{{Epoch: 111, Direction: domain.Bear, Amount: amt("0.5")}}, nil))
}

func TestLivePosition(t *testing.T) {
	l, _ := newLedger(t)
	l.Restore([]domain.Position{
		{Epoch: 120, Direction: domain.Bear, Amount: amt("0.05"), Outcome: domain.OutcomePending},
	})
	_, ok := l.LivePosition(124)
	assert.False(t, ok, "older pending position is not live")

	_, err := l.Place(124, domain.Bull, amt("0.1"))
	require.NoError(t, err)
	p, ok := l.LivePosition(124)
	require.True(t, ok)
	assert.Equal(t, int64(124), p.Epoch)

	old, _ := l.Get(120)
	assert.Equal(t, domain.OutcomePending, old.Outcome)
}

func TestSetMinBet(t *testing.T) {
	l, _ := newLedger(t)
	l.SetMinBet(amt("0.5"))
	assert.True(t, l.MinBet().Equal(amt("0.5")))
	l.SetMinBet(decimal.Zero)
	assert.True(t, l.MinBet().Equal(amt("0.5")))

	_, err := l.Place(124, domain.Bull, amt("0.1"))
	assert.True(t, errors.Is(err, domain.ErrBelowMinimum))
}
