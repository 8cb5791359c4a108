package onchain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// Gas limits (conservative upper bounds) used when estimation fails.
	betGasLimit      = uint64(150_000)
	claimBaseGas     = uint64(80_000)
	claimGasPerEpoch = uint64(60_000)

	gasPriceUpdateInterval = 5 * time.Minute
	receiptTimeout         = 90 * time.Second
	receiptPollInterval    = 3 * time.Second
)

// transact signs and sends a transaction to the contract and waits for it
// to be mined. A reverted transaction is an error.
func (pc *PredictionClient) transact(ctx context.Context, callData []byte, value *big.Int, fallbackGas uint64) (string, error) {
	if pc.key == nil {
		return "", ErrReadOnly
	}

	nonce, err := pc.backend.PendingNonceAt(ctx, pc.address)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := pc.getGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	gasLimit, err := pc.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     pc.address,
		To:       &pc.contract,
		GasPrice: gasPrice,
		Value:    value,
		Data:     callData,
	})
	if err != nil {
		// Fall back to conservative limit
		gasLimit = fallbackGas
		slog.Warn("onchain: gas estimate failed, using default", "err", err, "limit", fallbackGas)
	}
	// Add 20% buffer
	gasLimit = gasLimit * 12 / 10

	tx := types.NewTransaction(nonce, pc.contract, value, gasLimit, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(pc.chainID), pc.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := pc.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}
	txHash := signed.Hash().Hex()
	slog.Debug("onchain: transaction sent", "tx", txHash, "nonce", nonce, "gas", gasLimit)

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := pc.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return txHash, fmt.Errorf("wait receipt %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, fmt.Errorf("tx reverted: %s", txHash)
	}
	return txHash, nil
}

// getGasPrice returns the current gas price, with caching to avoid excessive RPC calls.
func (pc *PredictionClient) getGasPrice(ctx context.Context) (*big.Int, error) {
	pc.mu.RLock()
	cached := pc.cachedGasWei
	updatedAt := pc.gasUpdatedAt
	pc.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := pc.backend.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	// Add 10% buffer for faster inclusion (copy to avoid mutating SuggestGasPrice return)
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	pc.mu.Lock()
	pc.cachedGasWei = buffered
	pc.gasUpdatedAt = time.Now()
	pc.mu.Unlock()

	return buffered, nil
}

// waitForReceipt polls for a transaction receipt until mined or ctx ends.
func (pc *PredictionClient) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if receipt, err := pc.backend.TransactionReceipt(ctx, txHash); err == nil {
		return receipt, nil
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := pc.backend.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}
