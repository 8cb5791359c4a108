package onchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// predictionABI covers the subset of the prediction contract the game uses.
var predictionABI abi.ABI

func init() {
	var err error
	predictionABI, err = abi.JSON(strings.NewReader(`[
		{"name": "currentEpoch", "type": "function", "stateMutability": "view",
		 "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
		{"name": "paused", "type": "function", "stateMutability": "view",
		 "inputs": [], "outputs": [{"name": "", "type": "bool"}]},
		{"name": "minBetAmount", "type": "function", "stateMutability": "view",
		 "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
		{"name": "rounds", "type": "function", "stateMutability": "view",
		 "inputs": [{"name": "epoch", "type": "uint256"}],
		 "outputs": [
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
		{"name": "ledger", "type": "function", "stateMutability": "view",
		 "inputs": [{"name": "epoch", "type": "uint256"}, {"name": "user", "type": "address"}],
		 "outputs": [
			{"name": "position", "type": "uint8"},
			{"name": "amount", "type": "uint256"},
			{"name": "claimed", "type": "bool"}
		 ]},
		{"name": "userRounds", "type": "function", "stateMutability": "view",
		 "inputs": [{"name": "user", "type": "address"}, {"name": "index", "type": "uint256"}],
		 "outputs": [{"name": "", "type": "uint256"}]},
		{"name": "getUserRoundsLength", "type": "function", "stateMutability": "view",
		 "inputs": [{"name": "user", "type": "address"}],
		 "outputs": [{"name": "", "type": "uint256"}]},
		{"name": "betBull", "type": "function", "stateMutability": "payable",
		 "inputs": [{"name": "epoch", "type": "uint256"}], "outputs": []},
		{"name": "betBear", "type": "function", "stateMutability": "payable",
		 "inputs": [{"name": "epoch", "type": "uint256"}], "outputs": []},
		{"name": "claim", "type": "function", "stateMutability": "nonpayable",
		 "inputs": [{"name": "epochs", "type": "uint256[]"}], "outputs": []}
	]`))
	if err != nil {
		panic("prediction abi parse: " + err.Error())
	}
}
