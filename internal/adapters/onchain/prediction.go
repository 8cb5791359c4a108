package onchain

// prediction.go: cliente del contrato de predicción up/down.
//
// Lecturas (view): currentEpoch, paused, minBetAmount, rounds(epoch) y el
// historial de apuestas del usuario (userRounds + ledger).
// Escrituras: betBull/betBear (payable) y claim(epochs[]) en una sola tx.
// Sin clave privada el cliente es de solo lectura.

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

const (
	nativeDecimals = 18 // stakes in wei

	// Historial de apuestas leído en cada refresh (las más recientes).
	userRoundsScanLimit = 50
	ledgerReadWorkers   = 4
)

// ErrReadOnly is returned by write calls on a client built without a key.
var ErrReadOnly = errors.New("onchain: no signing key configured")

// Backend is the subset of ethclient.Client the prediction client needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PredictionClient implements ports.RoundFeed, ports.GameStatusProvider,
// ports.BetSubmitter, ports.ClaimSubmitter and ports.PositionSource.
type PredictionClient struct {
	backend  Backend
	contract common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey // nil = solo lectura
	address  common.Address

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// Dial connects to rpcURL and returns a client for the contract at
// contractHex. privateKeyHex may be empty for a read-only client.
func Dial(rpcURL, contractHex string, chainID int64, privateKeyHex string) (*PredictionClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc %s: %w", rpcURL, err)
	}
	pc, err := NewPredictionClient(client, contractHex, chainID, privateKeyHex)
	if err != nil {
		client.Close()
		return nil, err
	}
	return pc, nil
}

// NewPredictionClient wraps an existing backend.
func NewPredictionClient(backend Backend, contractHex string, chainID int64, privateKeyHex string) (*PredictionClient, error) {
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("onchain: invalid contract address %q", contractHex)
	}
	pc := &PredictionClient{
		backend:  backend,
		contract: common.HexToAddress(contractHex),
		chainID:  big.NewInt(chainID),
	}
	if privateKeyHex != "" {
		pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("onchain: decode private key: %w", err)
		}
		key, err := crypto.ToECDSA(pkBytes)
		if err != nil {
			return nil, fmt.Errorf("onchain: invalid private key: %w", err)
		}
		pc.key = key
		pc.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	return pc, nil
}

// Address returns the signing address, or "" for a read-only client.
func (pc *PredictionClient) Address() string {
	if pc.key == nil {
		return ""
	}
	return pc.address.Hex()
}

// Close releases the RPC connection when the backend owns one.
func (pc *PredictionClient) Close() {
	if c, ok := pc.backend.(interface{ Close() }); ok {
		c.Close()
	}
}

// FetchCurrentEpoch implementa ports.RoundFeed.
func (pc *PredictionClient) FetchCurrentEpoch(ctx context.Context) (int64, error) {
	vals, err := pc.call(ctx, "currentEpoch")
	if err != nil {
		return 0, fmt.Errorf("onchain.FetchCurrentEpoch: %w", err)
	}
	return vals[0].(*big.Int).Int64(), nil
}

// FetchGameStatus implementa ports.GameStatusProvider.
func (pc *PredictionClient) FetchGameStatus(ctx context.Context) (domain.GameStatus, error) {
	paused, err := pc.call(ctx, "paused")
	if err != nil {
		return domain.GameStatus{}, fmt.Errorf("onchain.FetchGameStatus: paused: %w", err)
	}
	minBet, err := pc.call(ctx, "minBetAmount")
	if err != nil {
		return domain.GameStatus{}, fmt.Errorf("onchain.FetchGameStatus: minBetAmount: %w", err)
	}
	return domain.GameStatus{
		Paused: paused[0].(bool),
		MinBet: fromWei(minBet[0].(*big.Int)),
	}, nil
}

// FetchRound implementa ports.RoundFeed. A round the contract has not
// started yet (epoch field zero) is reported as domain.ErrNotFound.
func (pc *PredictionClient) FetchRound(ctx context.Context, epoch int64) (domain.RoundData, error) {
	vals, err := pc.call(ctx, "rounds", big.NewInt(epoch))
	if err != nil {
		return domain.RoundData{}, fmt.Errorf("onchain.FetchRound %d: %w", epoch, err)
	}
	if vals[0].(*big.Int).Sign() == 0 {
		return domain.RoundData{}, fmt.Errorf("onchain.FetchRound %d: %w", epoch, domain.ErrNotFound)
	}

	d := domain.RoundData{
		Epoch:               epoch,
		StartAt:             unixTime(vals[1].(*big.Int)),
		LockAt:              unixTime(vals[2].(*big.Int)),
		CloseAt:             unixTime(vals[3].(*big.Int)),
		LockPrice:           domain.Price(vals[4].(*big.Int).Int64()),
		TotalAmount:         fromWei(vals[8].(*big.Int)),
		BullAmount:          fromWei(vals[9].(*big.Int)),
		BearAmount:          fromWei(vals[10].(*big.Int)),
		RewardBaseCalAmount: fromWei(vals[11].(*big.Int)),
		RewardAmount:        fromWei(vals[12].(*big.Int)),
	}
	if vals[13].(bool) { // oracleCalled: close price fixed
		closePrice := domain.Price(vals[5].(*big.Int).Int64())
		d.ClosePrice = &closePrice
	}
	return d, nil
}

// FetchUserPositions implementa ports.PositionSource. Reads the most recent
// userRoundsScanLimit bets of owner.
func (pc *PredictionClient) FetchUserPositions(ctx context.Context, owner string) ([]domain.PositionRecord, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("onchain.FetchUserPositions: invalid address %q", owner)
	}
	user := common.HexToAddress(owner)

	vals, err := pc.call(ctx, "getUserRoundsLength", user)
	if err != nil {
		return nil, fmt.Errorf("onchain.FetchUserPositions: length: %w", err)
	}
	length := vals[0].(*big.Int).Int64()
	start := max(length-userRoundsScanLimit, 0)

	records := make([]domain.PositionRecord, length-start)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ledgerReadWorkers)
	for i := start; i < length; i++ {
		g.Go(func() error {
			rec, err := pc.userRound(gctx, user, i)
			if err != nil {
				return err
			}
			records[i-start] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("onchain.FetchUserPositions: %w", err)
	}
	return records, nil
}

// userRound reads the epoch at index i of user's bets and its ledger entry.
func (pc *PredictionClient) userRound(ctx context.Context, user common.Address, i int64) (domain.PositionRecord, error) {
	vals, err := pc.call(ctx, "userRounds", user, big.NewInt(i))
	if err != nil {
		return domain.PositionRecord{}, fmt.Errorf("userRounds[%d]: %w", i, err)
	}
	epoch := vals[0].(*big.Int)

	entry, err := pc.call(ctx, "ledger", epoch, user)
	if err != nil {
		return domain.PositionRecord{}, fmt.Errorf("ledger(%s): %w", epoch, err)
	}
	dir := domain.Bull
	if entry[0].(uint8) == 1 {
		dir = domain.Bear
	}
	return domain.PositionRecord{
		Epoch:     epoch.Int64(),
		Direction: dir,
		Amount:    fromWei(entry[1].(*big.Int)),
		Claimed:   entry[2].(bool),
	}, nil
}

// SubmitBet implementa ports.BetSubmitter: betBull/betBear with the stake
// as transaction value. Returns once the transaction is mined.
func (pc *PredictionClient) SubmitBet(ctx context.Context, epoch int64, direction domain.Direction, amount decimal.Decimal) (domain.BetReceipt, error) {
	method := "betBull"
	if direction == domain.Bear {
		method = "betBear"
	}
	callData, err := predictionABI.Pack(method, big.NewInt(epoch))
	if err != nil {
		return domain.BetReceipt{}, fmt.Errorf("onchain.SubmitBet: pack: %w", err)
	}

	txHash, err := pc.transact(ctx, callData, toWei(amount), betGasLimit)
	if err != nil {
		return domain.BetReceipt{}, fmt.Errorf("onchain.SubmitBet %d %s: %w", epoch, direction, err)
	}
	slog.Info("onchain: bet confirmed", "epoch", epoch, "direction", direction, "amount", amount.String(), "tx", txHash)
	return domain.BetReceipt{ID: txHash, Epoch: epoch, TxHash: txHash}, nil
}

// SubmitClaim implementa ports.ClaimSubmitter: one claim(epochs[]) call,
// so the contract claims every epoch or reverts as a whole.
func (pc *PredictionClient) SubmitClaim(ctx context.Context, epochs []int64) (domain.ClaimReceipt, error) {
	args := make([]*big.Int, len(epochs))
	for i, e := range epochs {
		args[i] = big.NewInt(e)
	}
	callData, err := predictionABI.Pack("claim", args)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("onchain.SubmitClaim: pack: %w", err)
	}

	gasLimit := claimBaseGas + claimGasPerEpoch*uint64(len(epochs))
	txHash, err := pc.transact(ctx, callData, big.NewInt(0), gasLimit)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("onchain.SubmitClaim %v: %w", epochs, err)
	}
	slog.Info("onchain: claim confirmed", "epochs", epochs, "tx", txHash)
	return domain.ClaimReceipt{TxHash: txHash}, nil
}

// call ejecuta un método view y desempaqueta su resultado.
func (pc *PredictionClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	callData, err := predictionABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := pc.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &pc.contract,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := predictionABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return vals, nil
}

func toWei(d decimal.Decimal) *big.Int {
	return d.Shift(nativeDecimals).BigInt()
}

func fromWei(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -nativeDecimals)
}

func unixTime(v *big.Int) time.Time {
	if v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}
