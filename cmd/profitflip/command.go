package main

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/adapters/notify"
	"github.com/alejandrodnm/profitflip/internal/adapters/storage"
	"github.com/alejandrodnm/profitflip/internal/application/game"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

// command ejecuta las acciones one-shot pedidas por flags.
type command struct {
	game    *game.Game
	console *notify.Console
	store   *storage.SQLiteStorage // nil en dry-run
	owner   string
}

// run devuelve false si alguna acción falló.
func (c command) run(ctx context.Context, history bool, betDir, amount string, claim bool) bool {
	ok := true

	if history {
		if c.store == nil {
			slog.Warn("claim history unavailable in dry-run")
		} else if reports, err := c.store.GetClaims(ctx, c.owner); err != nil {
			slog.Error("failed to read claim history", "err", err)
			ok = false
		} else {
			c.console.PrintClaims(reports)
		}
	}

	if betDir != "" {
		ok = c.bet(ctx, betDir, amount) && ok
	}

	if claim {
		report, err := c.game.ClaimAll(ctx)
		c.console.PrintClaimResult(report, err)
		if err != nil {
			slog.Error("claim failed", "err", err)
			ok = false
		}
	}
	return ok
}

func (c command) bet(ctx context.Context, betDir, amount string) bool {
	dir, valid := domain.ParseDirection(betDir)
	if !valid {
		slog.Error("invalid -bet, want bull or bear", "bet", betDir)
		return false
	}

	stake := c.game.View().MinBet
	if amount != "" {
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			slog.Error("invalid -amount", "amount", amount, "err", err)
			return false
		}
		stake = parsed
	}

	pos, err := c.game.PlaceLive(ctx, dir, stake)
	if err != nil {
		slog.Error("bet failed", "err", err, "direction", dir, "amount", stake.String())
		return false
	}
	c.console.PrintBet(pos)
	return true
}
