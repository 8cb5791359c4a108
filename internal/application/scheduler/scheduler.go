// Package scheduler drives the periodic refresh of the game. It owns the
// ticker and the cancellation of in-flight refreshes: a new tick cancels
// the previous one if it is still running.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/profitflip/internal/domain"
	"github.com/alejandrodnm/profitflip/internal/ports"
)

// Refresher is the part of the game the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) error
	View() domain.View
}

// Config contiene la configuración del scheduler.
type Config struct {
	Interval time.Duration
}

// Scheduler runs Refresh every Interval and renders the resulting view.
type Scheduler struct {
	cfg       Config
	game      Refresher
	presenter ports.Presenter // nil = no render

	mu     sync.Mutex
	cancel context.CancelFunc // cancels the tick in flight
	wg     sync.WaitGroup
}

// New crea un Scheduler. presenter puede ser nil.
func New(cfg Config, game Refresher, presenter ports.Presenter) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Scheduler{cfg: cfg, game: game, presenter: presenter}
}

// Run ejecuta el loop hasta que el contexto se cancele. Cada tick corre en
// su propia goroutine; Run retorna solo cuando el último ha terminado.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting", "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	defer s.wg.Wait()
	defer s.supersede()

	s.startTick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.startTick(ctx)
		}
	}
}

// Tick runs exactly one refresh and render, synchronously.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	err := s.game.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		slog.Debug("refresh superseded", "err", err)
		return err
	default:
		slog.Error("refresh failed", "err", err, "duration", time.Since(start).Round(time.Millisecond))
	}

	if s.presenter != nil {
		if rerr := s.presenter.Render(ctx, s.game.View()); rerr != nil {
			slog.Warn("presenter error", "err", rerr)
		}
	}
	return err
}

// startTick cancels the tick in flight, if any, and starts a new one bounded
// by the interval.
func (s *Scheduler) startTick(parent context.Context) {
	s.supersede()

	tickCtx, cancel := context.WithTimeout(parent, s.cfg.Interval)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.Tick(tickCtx)
	}()
}

func (s *Scheduler) supersede() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
