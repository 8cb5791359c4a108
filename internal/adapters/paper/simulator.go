// Package paper is an in-memory prediction game used for dry runs. It plays
// the role of both the round feed and the contract: rounds start every
// RoundDuration, prices follow a deterministic walk, bets and claims move a
// virtual balance.
package paper

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

const (
	defaultRoundDuration = 5 * time.Minute
	defaultBasePrice     = "30000"
	defaultBalance       = "10"
	defaultMinBet        = "0.001"
	defaultFeeRate       = "0.03" // 3% treasury fee sobre el pool
)

var (
	ErrRoundNotBettable  = errors.New("paper: round not open for bets")
	ErrInsufficientFunds = errors.New("paper: insufficient balance")
	ErrNotClaimable      = errors.New("paper: epoch not claimable")
)

// Config holds simulation settings. Zero values fall back to defaults.
type Config struct {
	Genesis       time.Time // start of epoch 1
	RoundDuration time.Duration
	BasePrice     decimal.Decimal
	Balance       decimal.Decimal
	MinBet        decimal.Decimal
	FeeRate       decimal.Decimal
}

type bet struct {
	direction domain.Direction
	amount    decimal.Decimal
	claimed   bool
}

type pool struct {
	bull decimal.Decimal
	bear decimal.Decimal
}

// Simulator implements every port of the game against in-memory state.
type Simulator struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	balance decimal.Decimal
	bets    map[int64]bet
	pools   map[int64]pool
}

// New creates a Simulator. now may be nil (time.Now).
func New(cfg Config, now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = defaultRoundDuration
	}
	if cfg.Genesis.IsZero() {
		cfg.Genesis = now().Add(-cfg.RoundDuration * 100).Truncate(cfg.RoundDuration)
	}
	if !cfg.BasePrice.IsPositive() {
		cfg.BasePrice = decimal.RequireFromString(defaultBasePrice)
	}
	if !cfg.Balance.IsPositive() {
		cfg.Balance = decimal.RequireFromString(defaultBalance)
	}
	if !cfg.MinBet.IsPositive() {
		cfg.MinBet = decimal.RequireFromString(defaultMinBet)
	}
	if cfg.FeeRate.IsZero() {
		cfg.FeeRate = decimal.RequireFromString(defaultFeeRate)
	}
	return &Simulator{
		cfg:     cfg,
		now:     now,
		balance: cfg.Balance,
		bets:    make(map[int64]bet),
		pools:   make(map[int64]pool),
	}
}

// Balance returns the virtual balance.
func (s *Simulator) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// FetchCurrentEpoch implementa ports.RoundFeed.
func (s *Simulator) FetchCurrentEpoch(_ context.Context) (int64, error) {
	return s.epochAt(s.now()), nil
}

// FetchGameStatus implementa ports.GameStatusProvider.
func (s *Simulator) FetchGameStatus(_ context.Context) (domain.GameStatus, error) {
	return domain.GameStatus{MinBet: s.cfg.MinBet}, nil
}

// FetchRound implementa ports.RoundFeed. Rounds that have not started are
// reported as domain.ErrNotFound.
func (s *Simulator) FetchRound(_ context.Context, epoch int64) (domain.RoundData, error) {
	now := s.now()
	if epoch < 1 || epoch > s.epochAt(now) {
		return domain.RoundData{}, fmt.Errorf("paper.FetchRound %d: %w", epoch, domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundLocked(epoch, now), nil
}

// SubmitBet implementa ports.BetSubmitter.
func (s *Simulator) SubmitBet(_ context.Context, epoch int64, direction domain.Direction, amount decimal.Decimal) (domain.BetReceipt, error) {
	now := s.now()
	if epoch != s.epochAt(now) {
		return domain.BetReceipt{}, fmt.Errorf("paper.SubmitBet %d: %w", epoch, ErrRoundNotBettable)
	}
	if amount.LessThan(s.cfg.MinBet) {
		return domain.BetReceipt{}, fmt.Errorf("paper.SubmitBet %d: amount %s below %s", epoch, amount, s.cfg.MinBet)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bets[epoch]; ok {
		return domain.BetReceipt{}, fmt.Errorf("paper.SubmitBet %d: already bet", epoch)
	}
	if amount.GreaterThan(s.balance) {
		return domain.BetReceipt{}, fmt.Errorf("paper.SubmitBet %d: %w", epoch, ErrInsufficientFunds)
	}

	s.balance = s.balance.Sub(amount)
	s.bets[epoch] = bet{direction: direction, amount: amount}
	p := s.pools[epoch]
	if direction == domain.Bull {
		p.bull = p.bull.Add(amount)
	} else {
		p.bear = p.bear.Add(amount)
	}
	s.pools[epoch] = p

	id := "paper-" + uuid.New().String()
	slog.Debug("paper: bet accepted", "epoch", epoch, "direction", direction, "amount", amount.String(), "balance", s.balance.String())
	return domain.BetReceipt{ID: id, Epoch: epoch, TxHash: id}, nil
}

// SubmitClaim implementa ports.ClaimSubmitter. All epochs are claimed or
// none is.
func (s *Simulator) SubmitClaim(_ context.Context, epochs []int64) (domain.ClaimReceipt, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, epoch := range epochs {
		payout, ok := s.payoutLocked(epoch, now)
		if !ok {
			return domain.ClaimReceipt{}, fmt.Errorf("paper.SubmitClaim %d: %w", epoch, ErrNotClaimable)
		}
		total = total.Add(payout)
	}

	for _, epoch := range epochs {
		b := s.bets[epoch]
		b.claimed = true
		s.bets[epoch] = b
	}
	s.balance = s.balance.Add(total)

	slog.Debug("paper: claim accepted", "epochs", epochs, "payout", total.String(), "balance", s.balance.String())
	return domain.ClaimReceipt{TxHash: "paper-" + uuid.New().String()}, nil
}

// FetchUserPositions implementa ports.PositionSource. The simulator has a
// single player: owner is ignored.
func (s *Simulator) FetchUserPositions(_ context.Context, _ string) ([]domain.PositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]domain.PositionRecord, 0, len(s.bets))
	for epoch, b := range s.bets {
		recs = append(recs, domain.PositionRecord{
			Epoch:     epoch,
			Direction: b.direction,
			Amount:    b.amount,
			Claimed:   b.claimed,
		})
	}
	return recs, nil
}

// --- helpers internos ---

// epochAt devuelve la ronda abierta para apuestas en t.
func (s *Simulator) epochAt(t time.Time) int64 {
	if t.Before(s.cfg.Genesis) {
		return 0
	}
	return int64(t.Sub(s.cfg.Genesis)/s.cfg.RoundDuration) + 1
}

// roundLocked builds round epoch as seen at now. A round is live for one
// duration, locked for the next and closes after that.
func (s *Simulator) roundLocked(epoch int64, now time.Time) domain.RoundData {
	start := s.cfg.Genesis.Add(time.Duration(epoch-1) * s.cfg.RoundDuration)
	lockAt := start.Add(s.cfg.RoundDuration)
	closeAt := lockAt.Add(s.cfg.RoundDuration)

	lockRef := lockAt
	if now.Before(lockAt) {
		lockRef = now
	}
	d := domain.RoundData{
		Epoch:     epoch,
		LockPrice: s.priceAt(lockRef),
		StartAt:   start,
		LockAt:    lockAt,
		CloseAt:   closeAt,
	}

	p := s.pools[epoch]
	d.BullAmount = p.bull
	d.BearAmount = p.bear
	d.TotalAmount = p.bull.Add(p.bear)

	if !now.Before(closeAt) {
		closePrice := s.priceAt(closeAt)
		d.ClosePrice = &closePrice
		d.RewardBaseCalAmount, d.RewardAmount = s.rewardsFor(d)
	}
	return d
}

// rewardsFor calcula el pool repartible de una ronda cerrada. En empate la
// casa se queda el pool.
func (s *Simulator) rewardsFor(d domain.RoundData) (base, reward decimal.Decimal) {
	reward = d.TotalAmount.Sub(d.TotalAmount.Mul(s.cfg.FeeRate))
	switch {
	case *d.ClosePrice > d.LockPrice:
		base = d.BullAmount
	case *d.ClosePrice < d.LockPrice:
		base = d.BearAmount
	default:
		return decimal.Zero, decimal.Zero
	}
	if base.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return base, reward
}

// payoutLocked devuelve lo que cobra el jugador por epoch si es reclamable.
func (s *Simulator) payoutLocked(epoch int64, now time.Time) (decimal.Decimal, bool) {
	b, ok := s.bets[epoch]
	if !ok || b.claimed {
		return decimal.Zero, false
	}
	d := s.roundLocked(epoch, now)
	if d.ClosePrice == nil {
		return decimal.Zero, false
	}
	outcome := domain.ResolvePrices(b.direction, d.LockPrice, *d.ClosePrice)
	if outcome != domain.OutcomeWin || d.RewardBaseCalAmount.IsZero() {
		return decimal.Zero, false
	}
	return b.amount.Mul(d.RewardAmount).Div(d.RewardBaseCalAmount), true
}

// priceAt es un paseo determinista alrededor de BasePrice: una onda lenta
// más ruido derivado del segundo, ±0.3% como mucho.
func (s *Simulator) priceAt(t time.Time) domain.Price {
	sec := t.Unix()
	wave := 0.002 * math.Sin(float64(sec)/437.0)

	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(sec >> (8 * i))
	}
	h.Write(buf[:])
	noise := (float64(h.Sum64()%2001)/1000.0 - 1.0) * 0.001

	factor := decimal.NewFromFloat(1 + wave + noise)
	return domain.NewPrice(s.cfg.BasePrice.Mul(factor))
}
