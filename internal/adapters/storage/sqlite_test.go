package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/profitflip/internal/adapters/storage"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeRound(epoch int64, status domain.RoundStatus, lock int64, close *int64) domain.Round {
	r := domain.Round{
		RoundData: domain.RoundData{
			Epoch:               epoch,
			LockPrice:           domain.Price(lock),
			StartAt:             time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			TotalAmount:         decimal.RequireFromString("12.5"),
			RewardBaseCalAmount: decimal.RequireFromString("6"),
			RewardAmount:        decimal.RequireFromString("12.125"),
		},
		Status: status,
	}
	if close != nil {
		p := domain.Price(*close)
		r.ClosePrice = &p
	}
	return r
}

func ptr(v int64) *int64 { return &v }

func TestSQLiteStorage_SaveAndLoadRounds(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	rounds := []domain.Round{
		makeRound(11, domain.RoundLive, 3_000_000_000_000, nil),
		makeRound(10, domain.RoundClosed, 3_000_000_000_000, ptr(3_001_000_000_000)),
	}
	require.NoError(t, db.SaveRounds(ctx, rounds))

	loaded, err := db.LoadRounds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Ascendentes por epoch
	assert.Equal(t, int64(10), loaded[0].Epoch)
	assert.Equal(t, domain.RoundClosed, loaded[0].Status)
	require.NotNil(t, loaded[0].ClosePrice)
	assert.Equal(t, domain.Price(3_001_000_000_000), *loaded[0].ClosePrice)
	assert.Equal(t, "12.125", loaded[0].RewardAmount.String())
	assert.True(t, loaded[0].StartAt.Equal(rounds[1].StartAt))

	assert.Nil(t, loaded[1].ClosePrice)
	assert.Equal(t, domain.RoundLive, loaded[1].Status)
	assert.True(t, loaded[1].LockAt.IsZero())

	from, err := db.LoadRounds(ctx, 11)
	require.NoError(t, err)
	assert.Len(t, from, 1)
}

func TestSQLiteStorage_ClosedRoundNeverRewritten(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveRounds(ctx, []domain.Round{makeRound(7, domain.RoundClosed, 100, ptr(200))}))
	require.NoError(t, db.SaveRounds(ctx, []domain.Round{makeRound(7, domain.RoundLocked, 100, nil)}))

	loaded, err := db.LoadRounds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, domain.RoundClosed, loaded[0].Status)
	require.NotNil(t, loaded[0].ClosePrice)
}

func TestSQLiteStorage_SaveRoundsEmptySlice(t *testing.T) {
	db := newDB(t)
	assert.NoError(t, db.SaveRounds(context.Background(), nil))
}

func TestSQLiteStorage_Positions(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	placed := time.Date(2024, 5, 1, 12, 3, 0, 0, time.UTC)
	positions := []domain.Position{
		{Epoch: 5, Direction: domain.Bull, Amount: decimal.RequireFromString("0.1"), Outcome: domain.OutcomeWin, Claimed: true, PlacedAt: placed},
		{Epoch: 6, Direction: domain.Bear, Amount: decimal.RequireFromString("0.25"), Outcome: domain.OutcomePending, PlacedAt: placed},
	}
	require.NoError(t, db.SavePositions(ctx, "0xuser", positions))
	require.NoError(t, db.SavePositions(ctx, "0xother", positions[:1]))

	loaded, err := db.LoadPositions(ctx, "0xuser")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(6), loaded[0].Epoch, "most recent first")
	assert.Equal(t, domain.Bear, loaded[0].Direction)
	assert.Equal(t, "0.25", loaded[0].Amount.String())
	assert.True(t, loaded[1].Claimed)
	assert.True(t, loaded[1].PlacedAt.Equal(placed))

	// El flag claimed no retrocede aunque llegue un snapshot viejo
	stale := positions[0]
	stale.Claimed = false
	require.NoError(t, db.SavePositions(ctx, "0xuser", []domain.Position{stale}))
	loaded, err = db.LoadPositions(ctx, "0xuser")
	require.NoError(t, err)
	assert.True(t, loaded[1].Claimed)

	other, err := db.LoadPositions(ctx, "0xother")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSQLiteStorage_ClaimAudit(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	first := domain.ClaimReport{
		ID:          "claim-1",
		Epochs:      []int64{7, 5},
		TotalStake:  decimal.RequireFromString("0.3"),
		SubmittedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Err:         "execution reverted",
	}
	second := domain.ClaimReport{
		ID:          "claim-2",
		Epochs:      []int64{7, 5},
		Claimed:     2,
		TotalStake:  decimal.RequireFromString("0.3"),
		TxHash:      "0xfeed",
		SubmittedAt: first.SubmittedAt.Add(time.Minute),
	}
	require.NoError(t, db.SaveClaim(ctx, "0xuser", first))
	require.NoError(t, db.SaveClaim(ctx, "0xuser", second))

	claims, err := db.GetClaims(ctx, "0xuser")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "claim-2", claims[0].ID)
	assert.Equal(t, 2, claims[0].Claimed)
	assert.Equal(t, "0xfeed", claims[0].TxHash)
	assert.Empty(t, claims[0].Err)
	assert.Equal(t, []int64{7, 5}, claims[1].Epochs)
	assert.Equal(t, "execution reverted", claims[1].Err)
	assert.Equal(t, "0.3", claims[1].TotalStake.String())

	none, err := db.GetClaims(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
