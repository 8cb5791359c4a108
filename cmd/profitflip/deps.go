package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/config"
	"github.com/alejandrodnm/profitflip/internal/adapters/onchain"
	"github.com/alejandrodnm/profitflip/internal/adapters/paper"
	"github.com/alejandrodnm/profitflip/internal/adapters/roundapi"
	"github.com/alejandrodnm/profitflip/internal/application/game"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

const paperOwner = "paper"

// buildDeps conecta el feed y el wallet según feed.source. La función de
// cierre devuelta libera la conexión RPC, si la hay.
func buildDeps(cfg *config.Config) (game.Deps, string, func(), error) {
	noop := func() {}

	switch cfg.Feed.Source {
	case config.SourcePaper:
		sim := paper.New(paper.Config{MinBet: cfg.Game.MinBetAmount()}, nil)
		return game.Deps{
			Feed:      sim,
			Status:    sim,
			Bets:      sim,
			Claims:    sim,
			Positions: sim,
		}, paperOwner, noop, nil

	case config.SourceChain:
		pc, err := onchain.Dial(cfg.Chain.RPCURL, cfg.Chain.ContractAddress, cfg.Chain.ChainID, cfg.Chain.PrivateKey)
		if err != nil {
			return game.Deps{}, "", noop, err
		}
		owner := ownerFor(cfg, pc)
		deps := game.Deps{Feed: pc, Status: pc, Bets: pc, Claims: pc}
		if owner != "" {
			deps.Positions = pc
		}
		return deps, owner, pc.Close, nil

	case config.SourceHTTP:
		feed := roundapi.NewClient(cfg.Feed.BaseURL)
		deps := game.Deps{Feed: feed, Status: feed, Bets: noWallet{}, Claims: noWallet{}}
		if cfg.Chain.RPCURL == "" || cfg.Chain.ContractAddress == "" {
			slog.Warn("no chain configured: betting and claiming disabled")
			return deps, cfg.Game.Owner, noop, nil
		}
		pc, err := onchain.Dial(cfg.Chain.RPCURL, cfg.Chain.ContractAddress, cfg.Chain.ChainID, cfg.Chain.PrivateKey)
		if err != nil {
			return game.Deps{}, "", noop, err
		}
		owner := ownerFor(cfg, pc)
		deps.Bets, deps.Claims = pc, pc
		if owner != "" {
			deps.Positions = pc
		}
		return deps, owner, pc.Close, nil
	}
	return game.Deps{}, "", noop, fmt.Errorf("unknown feed source %q", cfg.Feed.Source)
}

func ownerFor(cfg *config.Config, pc *onchain.PredictionClient) string {
	if cfg.Game.Owner != "" {
		return cfg.Game.Owner
	}
	return pc.Address()
}

var errNoWallet = errors.New("no wallet configured")

// noWallet rechaza apuestas y claims cuando no hay contrato configurado.
type noWallet struct{}

func (noWallet) SubmitBet(context.Context, int64, domain.Direction, decimal.Decimal) (domain.BetReceipt, error) {
	return domain.BetReceipt{}, errNoWallet
}

func (noWallet) SubmitClaim(context.Context, []int64) (domain.ClaimReceipt, error) {
	return domain.ClaimReceipt{}, errNoWallet
}
