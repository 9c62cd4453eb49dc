package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyansociety/anchor-sdk-go/client"
)

// Default fee and gas policy, matching the anchor deployment.
var DefaultPriorityFee = big.NewInt(1_000_000_000) // 1 gwei

// DefaultGasCeiling bounds estimated gas for an anchor transaction.
const DefaultGasCeiling uint64 = 200_000

// BuilderConfig tunes the fee and gas policy.
type BuilderConfig struct {
	// ChainID of the target chain. Zero queries the node once and caches.
	ChainID uint64

	// PriorityFee is the configured minimum tip. Nil uses DefaultPriorityFee.
	PriorityFee *big.Int

	// GasCeiling caps estimated gas. Zero uses DefaultGasCeiling.
	GasCeiling uint64
}

// Builder assembles unsigned anchor transactions from live chain state.
//
// Fee policy: maxFee = 2 x current base fee + priority fee, leaving headroom
// for two base fee increases before a resubmission would be needed.
type Builder struct {
	client client.ChainClient
	cfg    BuilderConfig

	mu      sync.Mutex
	chainID uint64
}

// NewBuilder creates a Builder. cfg may be nil for defaults.
func NewBuilder(c client.ChainClient, cfg *BuilderConfig) *Builder {
	b := &Builder{client: c}
	if cfg != nil {
		b.cfg = *cfg
	}
	if b.cfg.PriorityFee == nil {
		b.cfg.PriorityFee = DefaultPriorityFee
	}
	if b.cfg.GasCeiling == 0 {
		b.cfg.GasCeiling = DefaultGasCeiling
	}
	b.chainID = b.cfg.ChainID
	return b
}

// BuildRequest describes one anchor transaction.
type BuildRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int

	// GasLimit, when non-zero, skips estimation.
	GasLimit uint64
}

// Build simulates, prices and sequences the transaction.
//
// The simulation runs first: a transaction that would revert fails with
// WouldRevertError before any nonce is consumed or signature requested.
// The nonce is fetched last so it is as fresh as possible at signing time.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*UnsignedTx, error) {
	msg := client.CallMsg{
		From:  req.From,
		To:    &req.To,
		Value: req.Value,
		Data:  req.Data,
	}

	if _, err := b.client.CallContract(ctx, msg); err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &WouldRevertError{Reason: reason, Err: err}
		}
		return nil, fmt.Errorf("simulate transaction: %w", err)
	}

	gas := req.GasLimit
	if gas == 0 {
		estimated, err := b.client.EstimateGas(ctx, msg)
		if err != nil {
			if reason, ok := revertReason(err); ok {
				return nil, &WouldRevertError{Reason: reason, Err: err}
			}
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		if estimated > b.cfg.GasCeiling {
			return nil, fmt.Errorf("gas estimate %d exceeds ceiling %d", estimated, b.cfg.GasCeiling)
		}
		gas = estimated
	}

	baseFee, err := b.client.BaseFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch base fee: %w", err)
	}
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, b.cfg.PriorityFee)

	chainID, err := b.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := b.client.NonceAt(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	return &UnsignedTx{
		ChainID:        chainID,
		Nonce:          nonce,
		MaxPriorityFee: new(big.Int).Set(b.cfg.PriorityFee),
		MaxFee:         maxFee,
		Gas:            gas,
		To:             req.To,
		Value:          value,
		Data:           req.Data,
	}, nil
}

func (b *Builder) resolveChainID(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chainID != 0 {
		return b.chainID, nil
	}
	id, err := b.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch chain id: %w", err)
	}
	b.chainID = id
	return id, nil
}

// revertReason extracts a human-readable reason when the node rejected a
// simulated call. Transport errors are not reverts.
func revertReason(err error) (string, bool) {
	var rpcErr *client.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Message, true
	}
	return "", false
}
