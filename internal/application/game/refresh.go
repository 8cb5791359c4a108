package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// ErrStaleRefresh is returned when a refresh result was discarded because a
// newer one had already been applied.
var ErrStaleRefresh = errors.New("refresh superseded by a newer result")

// refreshResult is everything fetched during one refresh, applied atomically.
type refreshResult struct {
	seq       uint64
	epoch     int64
	rounds    []domain.RoundData
	status    *domain.GameStatus
	positions []domain.PositionRecord
	missing   int
}

// Refresh polls the feed once: current epoch, window rounds, rounds backing
// pending positions, game status and external positions. A feed failure
// leaves the state untouched and is returned wrapped in ErrExternal. Results
// older than an already applied refresh are discarded with ErrStaleRefresh.
func (g *Game) Refresh(ctx context.Context) error {
	start := g.now()

	g.mu.Lock()
	g.refreshSeq++
	seq := g.refreshSeq
	g.mu.Unlock()

	res, err := g.fetch(ctx, seq)
	if err != nil {
		return err
	}

	settleErr, err := g.apply(res)
	if err != nil {
		return err
	}

	g.persist(ctx)

	slog.Info("refresh complete",
		"epoch", res.epoch,
		"rounds", len(res.rounds),
		"missing", res.missing,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return settleErr
}

// fetch runs every external read of a refresh without holding the lock.
func (g *Game) fetch(ctx context.Context, seq uint64) (refreshResult, error) {
	res := refreshResult{seq: seq}

	epoch, err := g.deps.Feed.FetchCurrentEpoch(ctx)
	if err != nil {
		return res, fmt.Errorf("game.Refresh: current epoch: %w", domain.NewExternalError("FetchCurrentEpoch", err))
	}
	res.epoch = epoch

	wanted := g.wantedEpochs(epoch)

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(g.cfg.FetchWorkers)
	for _, e := range wanted {
		eg.Go(func() error {
			data, err := g.deps.Feed.FetchRound(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Not supplied yet (upcoming) or a transient failure: the
				// epoch is filtered out of this tick.
				slog.Debug("round fetch failed", "epoch", e, "err", err)
				res.missing++
				return nil
			}
			res.rounds = append(res.rounds, data)
			return nil
		})
	}

	if g.deps.Status != nil {
		eg.Go(func() error {
			st, err := g.deps.Status.FetchGameStatus(ctx)
			if err != nil {
				slog.Debug("game status fetch failed", "err", err)
				return nil
			}
			mu.Lock()
			res.status = &st
			mu.Unlock()
			return nil
		})
	}

	if g.deps.Positions != nil {
		eg.Go(func() error {
			recs, err := g.deps.Positions.FetchUserPositions(ctx, g.cfg.Owner)
			if err != nil {
				return fmt.Errorf("game.Refresh: user positions: %w", domain.NewExternalError("FetchUserPositions", err))
			}
			mu.Lock()
			res.positions = recs
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("game.Refresh: %w", err)
	}
	return res, nil
}

// wantedEpochs lists the window around epoch plus epochs of pending
// positions whose round is not known to be closed.
func (g *Game) wantedEpochs(epoch int64) []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[int64]bool)
	var out []int64
	add := func(e int64) {
		if e <= 0 || seen[e] {
			return
		}
		seen[e] = true
		if r, ok := g.index.Lookup(e); ok && r.Status == domain.RoundClosed {
			return
		}
		out = append(out, e)
	}
	for _, e := range g.registry.WantedEpochs(epoch) {
		add(e)
	}
	for _, e := range g.ledger.Pending() {
		add(e)
	}
	return out
}

// apply installs a refresh result under the lock unless it is stale.
func (g *Game) apply(res refreshResult) (settleErr error, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if res.seq < g.appliedSeq || res.epoch < g.registry.Current() {
		slog.Debug("stale refresh discarded", "seq", res.seq, "applied", g.appliedSeq, "epoch", res.epoch)
		return nil, fmt.Errorf("game.Refresh: seq %d epoch %d: %w", res.seq, res.epoch, ErrStaleRefresh)
	}
	g.appliedSeq = res.seq

	if res.status != nil {
		minBet := g.cfg.MinBet
		if res.status.MinBet.GreaterThan(minBet) {
			minBet = res.status.MinBet
		}
		g.ledger.SetMinBet(minBet)
		g.status = domain.GameStatus{Paused: res.status.Paused, MinBet: g.ledger.MinBet()}
	}

	g.registry.Advance(res.epoch)
	for _, d := range res.rounds {
		g.index.remember(g.registry.Supply(d))
	}

	// Epochs held by an outstanding claim are read-only until it resolves.
	if len(res.positions) > 0 {
		if added := g.ledger.Import(res.positions, g.rewards.InFlight); added > 0 {
			slog.Info("positions imported", "owner", g.cfg.Owner, "count", added)
		}
	}

	settleErr = g.settleLocked()

	epochs := make(map[int64]bool)
	for _, p := range g.ledger.ListForUser() {
		epochs[p.Epoch] = true
	}
	g.index.retain(epochs)
	g.refreshedAt = g.now().UTC()
	return settleErr, nil
}
