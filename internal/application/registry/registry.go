// Package registry tracks the sliding window of rounds visible to the user:
// two previous rounds, the live round and the next upcoming round.
package registry

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

const (
	windowBefore = 2 // rounds shown before the live one
	windowAfter  = 1 // rounds shown after the live one

	// WindowSize is the number of epochs in a full window.
	WindowSize = windowBefore + 1 + windowAfter

	// DefaultCapacity keeps a few rounds beyond the window so late close
	// prices can still be applied after the window moves.
	DefaultCapacity = 8
)

// Registry is a fixed-capacity ordered map of rounds keyed by epoch.
// It is not safe for concurrent use; the game facade serializes access.
type Registry struct {
	capacity int
	current  int64
	rounds   map[int64]domain.Round
	epochs   []int64 // ascending
}

// New creates a Registry holding at most capacity rounds.
// Capacities below WindowSize are raised to WindowSize.
func New(capacity int) *Registry {
	if capacity < WindowSize {
		capacity = WindowSize
	}
	return &Registry{
		capacity: capacity,
		rounds:   make(map[int64]domain.Round, capacity),
		epochs:   make([]int64, 0, capacity+1),
	}
}

// Current returns the live epoch last passed to Advance (0 before the first call).
func (r *Registry) Current() int64 {
	return r.current
}

// Supply stores round data reported by the feed. Rounds may arrive in any
// order. A Closed round is never modified again. Returns the stored round.
func (r *Registry) Supply(data domain.RoundData) domain.Round {
	next := domain.StatusFor(data, r.current)

	prev, ok := r.rounds[data.Epoch]
	if ok {
		if prev.Status == domain.RoundClosed {
			return prev
		}
		next = prev.Status.Advance(next)
	} else {
		idx, _ := slices.BinarySearch(r.epochs, data.Epoch)
		r.epochs = slices.Insert(r.epochs, idx, data.Epoch)
	}

	round := domain.Round{RoundData: data, Status: next}
	r.rounds[data.Epoch] = round
	r.evict()
	return round
}

// Advance moves the window to currentEpoch and returns the visible rounds:
// [current-2, current-1, current, current+1], ascending, skipping epochs the
// feed has not supplied yet. Calling it twice with the same epoch is a
// no-op. An epoch behind the current one is stale and ignored.
func (r *Registry) Advance(currentEpoch int64) iter.Seq[domain.Round] {
	switch {
	case currentEpoch < r.current:
		slog.Debug("registry: stale epoch ignored", "epoch", currentEpoch, "current", r.current)
		return r.Visible()
	case currentEpoch == r.current:
		return r.Visible()
	}

	r.current = currentEpoch
	for _, epoch := range r.epochs {
		round := r.rounds[epoch]
		if round.Status == domain.RoundClosed {
			continue
		}
		round.Status = round.Status.Advance(domain.StatusFor(round.RoundData, currentEpoch))
		r.rounds[epoch] = round
	}
	r.evict()
	return r.Visible()
}

// Visible lazily yields the rounds in the current window in ascending epoch
// order. Nothing is yielded before the first Advance.
func (r *Registry) Visible() iter.Seq[domain.Round] {
	return func(yield func(domain.Round) bool) {
		if r.current == 0 {
			return
		}
		for epoch := r.current - windowBefore; epoch <= r.current+windowAfter; epoch++ {
			round, ok := r.rounds[epoch]
			if !ok {
				continue
			}
			if !yield(round) {
				return
			}
		}
	}
}

// Window collects Visible into a slice.
func (r *Registry) Window() []domain.Round {
	return slices.Collect(r.Visible())
}

// Get returns a round inside the visible window.
func (r *Registry) Get(epoch int64) (domain.Round, error) {
	if r.current == 0 || epoch < r.current-windowBefore || epoch > r.current+windowAfter {
		return domain.Round{}, fmt.Errorf("registry.Get: epoch %d outside window: %w", epoch, domain.ErrNotFound)
	}
	round, ok := r.rounds[epoch]
	if !ok {
		return domain.Round{}, fmt.Errorf("registry.Get: epoch %d not fetched: %w", epoch, domain.ErrNotFound)
	}
	return round, nil
}

// Lookup returns any retained round, inside the window or not.
func (r *Registry) Lookup(epoch int64) (domain.Round, bool) {
	round, ok := r.rounds[epoch]
	return round, ok
}

// Live returns the round currently open for bets.
func (r *Registry) Live() (domain.Round, bool) {
	round, ok := r.rounds[r.current]
	if !ok || round.Status != domain.RoundLive {
		return domain.Round{}, false
	}
	return round, true
}

// WantedEpochs returns the window epochs around current the feed should be
// asked for. A zero current means the registry's own current epoch.
func (r *Registry) WantedEpochs(current int64) []int64 {
	if current == 0 {
		current = r.current
	}
	if current == 0 {
		return nil
	}
	out := make([]int64, 0, WindowSize)
	for epoch := current - windowBefore; epoch <= current+windowAfter; epoch++ {
		if epoch <= 0 {
			continue
		}
		if round, ok := r.rounds[epoch]; ok && round.Status == domain.RoundClosed {
			continue // closed rounds never change
		}
		out = append(out, epoch)
	}
	return out
}

// Rounds returns every retained round, ascending.
func (r *Registry) Rounds() []domain.Round {
	out := make([]domain.Round, 0, len(r.epochs))
	for _, epoch := range r.epochs {
		out = append(out, r.rounds[epoch])
	}
	return out
}

// evict drops rounds until the capacity holds: oldest epochs below the
// window first, then the furthest future epochs.
func (r *Registry) evict() {
	for len(r.epochs) > r.capacity {
		lowest := r.epochs[0]
		if r.current == 0 || lowest < r.current-windowBefore {
			delete(r.rounds, lowest)
			r.epochs = r.epochs[1:]
			continue
		}
		highest := r.epochs[len(r.epochs)-1]
		delete(r.rounds, highest)
		r.epochs = r.epochs[:len(r.epochs)-1]
	}
}
