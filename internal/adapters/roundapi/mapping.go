package roundapi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// mapRound convierte un roundResponse DTO a domain.RoundData.
func mapRound(r roundResponse) (domain.RoundData, error) {
	lock, err := domain.ParsePrice(r.LockPrice)
	if err != nil {
		return domain.RoundData{}, fmt.Errorf("lock_price %q: %w", r.LockPrice, err)
	}
	d := domain.RoundData{
		Epoch:               r.Epoch,
		LockPrice:           lock,
		StartAt:             unixTime(r.StartTimestamp),
		LockAt:              unixTime(r.LockTimestamp),
		CloseAt:             unixTime(r.CloseTimestamp),
		TotalAmount:         parseAmount(r.TotalAmount),
		BullAmount:          parseAmount(r.BullAmount),
		BearAmount:          parseAmount(r.BearAmount),
		RewardBaseCalAmount: parseAmount(r.RewardBaseCalAmount),
		RewardAmount:        parseAmount(r.RewardAmount),
	}
	if r.ClosePrice != nil && *r.ClosePrice != "" {
		closePrice, err := domain.ParsePrice(*r.ClosePrice)
		if err != nil {
			return domain.RoundData{}, fmt.Errorf("close_price %q: %w", *r.ClosePrice, err)
		}
		d.ClosePrice = &closePrice
	}
	return d, nil
}

func mapStatus(r epochResponse) domain.GameStatus {
	return domain.GameStatus{Paused: r.Paused, MinBet: parseAmount(r.MinBet)}
}

// parseAmount devuelve cero para campos ausentes o no numéricos.
func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
