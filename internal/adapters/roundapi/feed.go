package roundapi

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

const (
	epochPath  = "/epoch"
	roundsPath = "/rounds"
)

// FetchCurrentEpoch implementa ports.RoundFeed.
func (c *Client) FetchCurrentEpoch(ctx context.Context) (int64, error) {
	var resp epochResponse
	if err := c.get(ctx, c.base+epochPath, &resp); err != nil {
		return 0, fmt.Errorf("roundapi.FetchCurrentEpoch: %w", err)
	}
	if resp.Epoch <= 0 {
		return 0, fmt.Errorf("roundapi.FetchCurrentEpoch: invalid epoch %d", resp.Epoch)
	}
	return resp.Epoch, nil
}

// FetchGameStatus implementa ports.GameStatusProvider.
func (c *Client) FetchGameStatus(ctx context.Context) (domain.GameStatus, error) {
	var resp epochResponse
	if err := c.get(ctx, c.base+epochPath, &resp); err != nil {
		return domain.GameStatus{}, fmt.Errorf("roundapi.FetchGameStatus: %w", err)
	}
	return mapStatus(resp), nil
}

// FetchRound implementa ports.RoundFeed. Devuelve domain.ErrNotFound si el
// feed todavía no conoce la ronda.
func (c *Client) FetchRound(ctx context.Context, epoch int64) (domain.RoundData, error) {
	var resp roundResponse
	url := fmt.Sprintf("%s%s/%d", c.base, roundsPath, epoch)
	if err := c.get(ctx, url, &resp); err != nil {
		return domain.RoundData{}, fmt.Errorf("roundapi.FetchRound %d: %w", epoch, err)
	}
	if resp.Epoch != epoch {
		return domain.RoundData{}, fmt.Errorf("roundapi.FetchRound %d: feed answered epoch %d", epoch, resp.Epoch)
	}
	data, err := mapRound(resp)
	if err != nil {
		return domain.RoundData{}, fmt.Errorf("roundapi.FetchRound %d: %w", epoch, err)
	}
	return data, nil
}
