// Package game is the single entry point the host process talks to. It
// serializes every ledger mutation behind one lock (the event queue) and
// runs external calls outside it.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/application/ledger"
	"github.com/alejandrodnm/profitflip/internal/application/registry"
	"github.com/alejandrodnm/profitflip/internal/application/rewards"
	"github.com/alejandrodnm/profitflip/internal/domain"
	"github.com/alejandrodnm/profitflip/internal/ports"
)

// Config contiene la configuración del juego.
type Config struct {
	Owner          string          // connected identity (wallet address)
	MinBet         decimal.Decimal // local minimum, raised by the contract's minBetAmount
	WindowCapacity int             // rounds retained by the registry (0 = registry.DefaultCapacity)
	FetchWorkers   int             // concurrent round fetches per refresh (0 = 4)
}

// Deps are the collaborators of the game. Feed, Bets and Claims are
// required; the rest may be nil.
type Deps struct {
	Feed      ports.RoundFeed
	Status    ports.GameStatusProvider
	Bets      ports.BetSubmitter
	Claims    ports.ClaimSubmitter
	Positions ports.PositionSource
	Store     ports.LedgerStorage
}

// Game wires registry, ledger and reward aggregator for one identity.
type Game struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex // the event queue: guards everything below
	registry *registry.Registry
	ledger   *ledger.Ledger
	rewards  *rewards.Aggregator
	index    *roundIndex

	status       domain.GameStatus
	betsInFlight map[int64]bool
	refreshSeq   uint64
	appliedSeq   uint64
	refreshedAt  time.Time

	persistMu sync.Mutex // orders snapshot writes
	now       func() time.Time
}

// New creates a Game. Call Load to restore persisted state.
func New(cfg Config, deps Deps) *Game {
	if cfg.WindowCapacity <= 0 {
		cfg.WindowCapacity = registry.DefaultCapacity
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 4
	}

	reg := registry.New(cfg.WindowCapacity)
	g := &Game{
		cfg:          cfg,
		deps:         deps,
		registry:     reg,
		ledger:       ledger.New(cfg.Owner, reg, cfg.MinBet),
		betsInFlight: make(map[int64]bool),
		now:          time.Now,
	}
	g.index = newRoundIndex(reg)
	g.rewards = rewards.New(g.ledger, deps.Claims, g.index, &g.mu)
	g.status.MinBet = cfg.MinBet
	return g
}

// Load restores positions and known rounds from storage.
func (g *Game) Load(ctx context.Context) error {
	if g.deps.Store == nil {
		return nil
	}
	positions, err := g.deps.Store.LoadPositions(ctx, g.cfg.Owner)
	if err != nil {
		return fmt.Errorf("game.Load: positions: %w", err)
	}
	rounds, err := g.deps.Store.LoadRounds(ctx, 0)
	if err != nil {
		return fmt.Errorf("game.Load: rounds: %w", err)
	}

	g.mu.Lock()
	g.ledger.Restore(positions)
	for _, r := range rounds {
		g.index.remember(r)
	}
	settleErr := g.settleLocked()
	g.mu.Unlock()

	slog.Info("game state restored", "owner", g.cfg.Owner, "positions", len(positions), "rounds", len(rounds))
	return settleErr
}

// Advance moves the visible window to currentEpoch, applies outcomes for
// positions whose round is now closed and returns the window.
func (g *Game) Advance(currentEpoch int64) ([]domain.Round, error) {
	g.mu.Lock()
	g.registry.Advance(currentEpoch)
	err := g.settleLocked()
	window := g.registry.Window()
	g.mu.Unlock()
	return window, err
}

// Supply feeds round data into the registry, as the refresh loop does.
func (g *Game) Supply(data ...domain.RoundData) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, d := range data {
		g.index.remember(g.registry.Supply(d))
	}
}

// Place submits a bet on epoch and records it once the stake collaborator
// accepts it. Validation errors are returned before any external call;
// external failures leave the ledger untouched.
func (g *Game) Place(ctx context.Context, epoch int64, direction domain.Direction, amount decimal.Decimal) (domain.Position, error) {
	g.mu.Lock()
	if g.status.Paused {
		g.mu.Unlock()
		return domain.Position{}, fmt.Errorf("game.Place: epoch %d: %w", epoch, domain.ErrGamePaused)
	}
	if g.betsInFlight[epoch] {
		g.mu.Unlock()
		return domain.Position{}, fmt.Errorf("game.Place: epoch %d: %w", epoch, domain.ErrBetInProgress)
	}
	if err := g.ledger.CheckPlace(epoch, direction, amount); err != nil {
		g.mu.Unlock()
		return domain.Position{}, err
	}
	g.betsInFlight[epoch] = true
	g.mu.Unlock()

	receipt, err := g.deps.Bets.SubmitBet(ctx, epoch, direction, amount)

	g.mu.Lock()
	delete(g.betsInFlight, epoch)
	if err != nil {
		g.mu.Unlock()
		slog.Warn("bet rejected", "epoch", epoch, "direction", direction, "amount", amount.String(), "err", err)
		return domain.Position{}, fmt.Errorf("game.Place: epoch %d: %w", epoch, domain.NewExternalError("SubmitBet", err))
	}
	pos := g.ledger.Record(epoch, direction, amount)
	g.mu.Unlock()

	slog.Info("bet placed", "epoch", epoch, "direction", direction, "amount", amount.String(), "receipt", receipt.ID)
	g.persist(ctx)
	return pos, nil
}

// PlaceLive bets on whatever round is live right now.
func (g *Game) PlaceLive(ctx context.Context, direction domain.Direction, amount decimal.Decimal) (domain.Position, error) {
	g.mu.Lock()
	live, ok := g.registry.Live()
	g.mu.Unlock()
	if !ok {
		return domain.Position{}, fmt.Errorf("game.PlaceLive: no live round: %w", domain.ErrInvalidRound)
	}
	return g.Place(ctx, live.Epoch, direction, amount)
}

// ClaimAll claims every unclaimed win in one external transaction and
// records the attempt in the claim audit log.
func (g *Game) ClaimAll(ctx context.Context) (domain.ClaimReport, error) {
	report, err := g.rewards.ClaimAll(ctx)
	if report.ID == "" {
		return report, err
	}
	if g.deps.Store != nil {
		if serr := g.deps.Store.SaveClaim(ctx, g.cfg.Owner, report); serr != nil {
			slog.Warn("storage error", "op", "SaveClaim", "err", serr)
		}
	}
	if err == nil {
		g.persist(ctx)
	}
	return report, err
}

// UnclaimedWins returns the claimable positions, most recent first.
func (g *Game) UnclaimedWins() []domain.Position {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rewards.UnclaimedWins()
}

// Positions returns the identity's positions, most recent first.
func (g *Game) Positions() []domain.Position {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.ListForUser()
}

// View builds the read model for the presentation layer.
func (g *Game) View() domain.View {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := domain.View{
		Owner:       g.cfg.Owner,
		Epoch:       g.registry.Current(),
		Paused:      g.status.Paused,
		MinBet:      g.ledger.MinBet(),
		Window:      g.registry.Window(),
		Positions:   g.ledger.ListForUser(),
		Unclaimed:   g.rewards.Summary(),
		RefreshedAt: g.refreshedAt,
	}
	if live, ok := g.registry.Live(); ok {
		if p, ok := g.ledger.LivePosition(live.Epoch); ok {
			v.LiveEpoch = p.Epoch
		}
	}
	return v
}

// settleLocked resolves every Pending position whose round is closed.
// Callers must hold g.mu.
func (g *Game) settleLocked() error {
	var errs []error
	for _, epoch := range g.ledger.Pending() {
		if g.rewards.InFlight(epoch) {
			continue
		}
		round, ok := g.index.Lookup(epoch)
		if !ok || !round.HasClosePrice() {
			continue
		}
		pos, err := g.ledger.Get(epoch)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		outcome, err := domain.Resolve(round, pos.Direction)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		changed, err := g.ledger.ApplyOutcome(epoch, outcome)
		if err != nil {
			slog.Error("settlement conflict", "epoch", epoch, "outcome", outcome, "err", err)
			errs = append(errs, err)
			continue
		}
		if changed {
			slog.Info("position settled",
				"epoch", epoch,
				"direction", pos.Direction,
				"lock", round.LockPrice.String(),
				"close", round.ClosePrice.String(),
				"outcome", outcome,
			)
		}
	}
	return errors.Join(errs...)
}

// persist writes a snapshot of rounds and positions. Storage failures are
// logged and do not fail the command that triggered them.
func (g *Game) persist(ctx context.Context) {
	if g.deps.Store == nil {
		return
	}
	g.persistMu.Lock()
	defer g.persistMu.Unlock()

	g.mu.Lock()
	positions := g.ledger.ListForUser()
	rounds := g.index.all()
	g.mu.Unlock()

	if err := g.deps.Store.SaveRounds(ctx, rounds); err != nil {
		slog.Warn("storage error", "op", "SaveRounds", "err", err)
	}
	if err := g.deps.Store.SavePositions(ctx, g.cfg.Owner, positions); err != nil {
		slog.Warn("storage error", "op", "SavePositions", "err", err)
	}
}
