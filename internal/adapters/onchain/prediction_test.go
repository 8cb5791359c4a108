package onchain_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/profitflip/internal/adapters/onchain"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

const contractAddr = "0x0000000000000000000000000000000000C0FFEE"

// testABI mirrors the contract methods the fake backend answers.
var testABI = mustABI(`[
	{"name": "currentEpoch", "type": "function", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "paused", "type": "function", "inputs": [], "outputs": [{"name": "", "type": "bool"}]},
	{"name": "minBetAmount", "type": "function", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "rounds", "type": "function", "inputs": [{"name": "epoch", "type": "uint256"}], "outputs": [
		{"name": "epoch", "type": "uint256"},
		{"name": "startTimestamp", "type": "uint256"},
		{"name": "lockTimestamp", "type": "uint256"},
		{"name": "closeTimestamp", "type": "uint256"},
		{"name": "lockPrice", "type": "int256"},
		{"name": "closePrice", "type": "int256"},
		{"name": "lockOracleId", "type": "uint256"},
		{"name": "closeOracleId", "type": "uint256"},
		{"name": "totalAmount", "type": "uint256"},
		{"name": "bullAmount", "type": "uint256"},
		{"name": "bearAmount", "type": "uint256"},
		{"name": "rewardBaseCalAmount", "type": "uint256"},
		{"name": "rewardAmount", "type": "uint256"},
		{"name": "oracleCalled", "type": "bool"}
	]},
	{"name": "ledger", "type": "function", "inputs": [{"name": "epoch", "type": "uint256"}, {"name": "user", "type": "address"}], "outputs": [
		{"name": "position", "type": "uint8"},
		{"name": "amount", "type": "uint256"},
		{"name": "claimed", "type": "bool"}
	]},
	{"name": "userRounds", "type": "function", "inputs": [{"name": "user", "type": "address"}, {"name": "index", "type": "uint256"}], "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "getUserRoundsLength", "type": "function", "inputs": [{"name": "user", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "betBull", "type": "function", "stateMutability": "payable", "inputs": [{"name": "epoch", "type": "uint256"}], "outputs": []},
	{"name": "betBear", "type": "function", "stateMutability": "payable", "inputs": [{"name": "epoch", "type": "uint256"}], "outputs": []},
	{"name": "claim", "type": "function", "inputs": [{"name": "epochs", "type": "uint256[]"}], "outputs": []}
]`)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

type ledgerEntry struct {
	position uint8
	amount   *big.Int
	claimed  bool
}

type sentTx struct {
	method string
	args   []any
	value  *big.Int
}

// fakeBackend answers contract calls from in-memory state, packing results
// with the contract ABI.
type fakeBackend struct {
	mu       sync.Mutex
	epoch    int64
	paused   bool
	minBet   *big.Int
	rounds   map[int64][]any
	bets     []int64
	ledger   map[int64]ledgerEntry
	sent     []sentTx
	revert   bool
	callErr  error
	estimate error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		minBet: big.NewInt(1e15), // 0.001
		rounds: make(map[int64][]any),
		ledger: make(map[int64]ledgerEntry),
	}
}

func wei(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

func (f *fakeBackend) addRound(epoch, lock, close int64, oracleCalled bool) {
	f.rounds[epoch] = []any{
		big.NewInt(epoch),
		big.NewInt(1714564800), big.NewInt(1714565100), big.NewInt(1714565400),
		big.NewInt(lock), big.NewInt(close),
		big.NewInt(0), big.NewInt(0),
		wei("12.5"), wei("6"), wei("6.5"), wei("6"), wei("12.125"),
		oracleCalled,
	}
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := testABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	var out []any
	switch method.Name {
	case "currentEpoch":
		out = []any{big.NewInt(f.epoch)}
	case "paused":
		out = []any{f.paused}
	case "minBetAmount":
		out = []any{f.minBet}
	case "rounds":
		epoch := args[0].(*big.Int).Int64()
		r, ok := f.rounds[epoch]
		if !ok {
			zero := big.NewInt(0)
			r = []any{zero, zero, zero, zero, zero, zero, zero, zero, zero, zero, zero, zero, zero, false}
		}
		out = r
	case "getUserRoundsLength":
		out = []any{big.NewInt(int64(len(f.bets)))}
	case "userRounds":
		out = []any{big.NewInt(f.bets[args[1].(*big.Int).Int64()])}
	case "ledger":
		e := f.ledger[args[0].(*big.Int).Int64()]
		if e.amount == nil {
			e.amount = big.NewInt(0)
		}
		out = []any{e.position, e.amount, e.claimed}
	default:
		return nil, fmt.Errorf("unexpected call %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estimate != nil {
		return 0, f.estimate
	}
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	method, err := testABI.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentTx{method: method.Name, args: args, value: tx.Value()})
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := types.ReceiptStatusSuccessful
	if f.revert {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status}, nil
}

func newClient(t *testing.T, backend *fakeBackend, withKey bool) *onchain.PredictionClient {
	t.Helper()
	keyHex := ""
	if withKey {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keyHex = fmt.Sprintf("%x", crypto.FromECDSA(key))
	}
	pc, err := onchain.NewPredictionClient(backend, contractAddr, 137, keyHex)
	require.NoError(t, err)
	return pc
}

func TestFetchCurrentEpochAndStatus(t *testing.T) {
	backend := newFakeBackend()
	backend.epoch = 124
	backend.paused = true
	pc := newClient(t, backend, false)

	epoch, err := pc.FetchCurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(124), epoch)

	st, err := pc.FetchGameStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Paused)
	assert.Equal(t, "0.001", st.MinBet.String())
}

func TestFetchRound(t *testing.T) {
	backend := newFakeBackend()
	backend.addRound(121, 3_000_000_000_000, 3_001_250_000_000, true)
	backend.addRound(123, 3_000_000_000_000, 0, false)
	pc := newClient(t, backend, false)

	closed, err := pc.FetchRound(context.Background(), 121)
	require.NoError(t, err)
	assert.Equal(t, domain.Price(3_000_000_000_000), closed.LockPrice)
	require.NotNil(t, closed.ClosePrice)
	assert.Equal(t, "30012.50", closed.ClosePrice.String())
	assert.Equal(t, "12.125", closed.RewardAmount.String())
	assert.Equal(t, int64(1714565100), closed.LockAt.Unix())

	live, err := pc.FetchRound(context.Background(), 123)
	require.NoError(t, err)
	assert.Nil(t, live.ClosePrice, "close price ignored until the oracle is called")

	_, err = pc.FetchRound(context.Background(), 200)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchRound_RPCError(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = errors.New("rpc unavailable")
	pc := newClient(t, backend, false)

	_, err := pc.FetchRound(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
}

func TestFetchUserPositions(t *testing.T) {
	backend := newFakeBackend()
	backend.bets = []int64{120, 121, 123}
	backend.ledger[120] = ledgerEntry{position: 0, amount: wei("0.1"), claimed: true}
	backend.ledger[121] = ledgerEntry{position: 1, amount: wei("0.25")}
	backend.ledger[123] = ledgerEntry{position: 0, amount: wei("1")}
	pc := newClient(t, backend, false)

	recs, err := pc.FetchUserPositions(context.Background(), "0x00000000000000000000000000000000000000AA")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(120), recs[0].Epoch)
	assert.Equal(t, domain.Bull, recs[0].Direction)
	assert.True(t, recs[0].Claimed)
	assert.Equal(t, domain.Bear, recs[1].Direction)
	assert.Equal(t, "0.25", recs[1].Amount.String())
	assert.Equal(t, int64(123), recs[2].Epoch)

	_, err = pc.FetchUserPositions(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestSubmitBet(t *testing.T) {
	backend := newFakeBackend()
	pc := newClient(t, backend, true)
	assert.NotEmpty(t, pc.Address())

	receipt, err := pc.SubmitBet(context.Background(), 124, domain.Bear, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(124), receipt.Epoch)
	assert.NotEmpty(t, receipt.TxHash)

	require.Len(t, backend.sent, 1)
	assert.Equal(t, "betBear", backend.sent[0].method)
	assert.Equal(t, big.NewInt(124), backend.sent[0].args[0])
	assert.Equal(t, wei("0.5"), backend.sent[0].value)
}

func TestSubmitClaim_OneTransactionForAllEpochs(t *testing.T) {
	backend := newFakeBackend()
	backend.estimate = errors.New("estimate unavailable")
	pc := newClient(t, backend, true)

	_, err := pc.SubmitClaim(context.Background(), []int64{123, 121})
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	assert.Equal(t, "claim", backend.sent[0].method)
	assert.Equal(t, []*big.Int{big.NewInt(123), big.NewInt(121)}, backend.sent[0].args[0])
	assert.Equal(t, 0, backend.sent[0].value.Sign())
}

func TestSubmitClaim_Reverted(t *testing.T) {
	backend := newFakeBackend()
	backend.revert = true
	pc := newClient(t, backend, true)

	_, err := pc.SubmitClaim(context.Background(), []int64{5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
}

func TestReadOnlyClientCannotWrite(t *testing.T) {
	pc := newClient(t, newFakeBackend(), false)
	assert.Empty(t, pc.Address())

	_, err := pc.SubmitBet(context.Background(), 1, domain.Bull, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, onchain.ErrReadOnly)
	_, err = pc.SubmitClaim(context.Background(), []int64{1})
	assert.ErrorIs(t, err, onchain.ErrReadOnly)
}

func TestNewPredictionClient_InvalidInput(t *testing.T) {
	_, err := onchain.NewPredictionClient(newFakeBackend(), "nope", 137, "")
	assert.Error(t, err)
	_, err = onchain.NewPredictionClient(newFakeBackend(), contractAddr, 137, "zz")
	assert.Error(t, err)
}
