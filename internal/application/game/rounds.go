package game

import (
	"slices"

	"github.com/alejandrodnm/profitflip/internal/application/registry"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

// roundIndex answers epoch lookups from the registry window first and then
// from rounds kept for positions that fell out of the window.
type roundIndex struct {
	registry *registry.Registry
	kept     map[int64]domain.Round
}

func newRoundIndex(reg *registry.Registry) *roundIndex {
	return &roundIndex{registry: reg, kept: make(map[int64]domain.Round)}
}

// Lookup implements rewards.RoundSource.
func (ri *roundIndex) Lookup(epoch int64) (domain.Round, bool) {
	if r, ok := ri.registry.Lookup(epoch); ok {
		if kept, ok := ri.kept[epoch]; ok && kept.Status > r.Status {
			return kept, true
		}
		return r, true
	}
	r, ok := ri.kept[epoch]
	return r, ok
}

// remember keeps a round, never replacing a closed one.
func (ri *roundIndex) remember(r domain.Round) {
	if prev, ok := ri.kept[r.Epoch]; ok && prev.Status == domain.RoundClosed {
		return
	}
	ri.kept[r.Epoch] = r
}

// retain syncs kept rounds with the registry and drops those that neither
// back a position nor sit in the registry.
func (ri *roundIndex) retain(positionEpochs map[int64]bool) {
	for epoch, kept := range ri.kept {
		if r, ok := ri.registry.Lookup(epoch); ok {
			if r.Status >= kept.Status {
				ri.kept[epoch] = r
			}
			continue
		}
		if !positionEpochs[epoch] {
			delete(ri.kept, epoch)
		}
	}
}

// all returns every known round, ascending.
func (ri *roundIndex) all() []domain.Round {
	byEpoch := make(map[int64]domain.Round, len(ri.kept))
	for epoch, r := range ri.kept {
		byEpoch[epoch] = r
	}
	for _, r := range ri.registry.Rounds() {
		if prev, ok := byEpoch[r.Epoch]; !ok || r.Status >= prev.Status {
			byEpoch[r.Epoch] = r
		}
	}
	out := make([]domain.Round, 0, len(byEpoch))
	for _, r := range byEpoch {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Round) int {
		switch {
		case a.Epoch < b.Epoch:
			return -1
		case a.Epoch > b.Epoch:
			return 1
		}
		return 0
	})
	return out
}
