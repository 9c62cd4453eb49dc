package client

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainClient is the read/broadcast surface of the chain node.
//
// The SDK treats the node as an opaque oracle: get a nonce, get fee
// parameters, simulate a call, broadcast raw bytes, fetch a receipt.
// Everything is plain Ethereum JSON-RPC.
type ChainClient interface {
	// Call invokes a raw JSON-RPC method.
	Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)

	// ChainID returns the chain id of the connected node.
	ChainID(ctx context.Context) (uint64, error)

	// NonceAt returns the next nonce for the account, counting pending
	// transactions so two quick submissions do not collide.
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)

	// BaseFee returns the base fee of the latest block.
	BaseFee(ctx context.Context) (*big.Int, error)

	// EstimateGas runs eth_estimateGas for the message.
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)

	// CallContract runs eth_call against the latest block.
	CallContract(ctx context.Context, msg CallMsg) ([]byte, error)

	// SendRawTransaction broadcasts a signed, encoded transaction.
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)

	// TransactionReceipt fetches a receipt. Returns (nil, nil) while the
	// transaction is still pending.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// BalanceAt returns the latest balance of the account in wei.
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)

	// Close releases the underlying connection.
	Close() error
}

// CallMsg describes a contract call or gas estimation request.
type CallMsg struct {
	From  common.Address
	To    *common.Address
	Gas   uint64
	Value *big.Int
	Data  []byte
}

// Receipt is the subset of the transaction receipt the SDK consumes.
type Receipt struct {
	TxHash            common.Hash
	Status            uint64
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Success reports whether the transaction executed without reverting.
func (r *Receipt) Success() bool {
	return r != nil && r.Status == 1
}

// NewClient creates a chain client for the configured endpoint.
func NewClient(config *Config) (ChainClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return newHTTPClient(config)
}
