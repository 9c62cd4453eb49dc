package tx

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyansociety/anchor-sdk-go/client"
)

// fakeChain is an in-memory ChainClient for builder tests.
type fakeChain struct {
	chainID   uint64
	nonce     uint64
	baseFee   *big.Int
	gas       uint64
	callErr   error
	gasErr    error
	nonceErr  error
	callCount int
}

func (f *fakeChain) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChain) ChainID(ctx context.Context) (uint64, error) { return f.chainID, nil }

func (f *fakeChain) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return f.nonce, f.nonceErr
}

func (f *fakeChain) BaseFee(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.baseFee), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg client.CallMsg) (uint64, error) {
	return f.gas, f.gasErr
}

func (f *fakeChain) CallContract(ctx context.Context, msg client.CallMsg) ([]byte, error) {
	f.callCount++
	return nil, f.callErr
}

func (f *fakeChain) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	return common.Hash{}, errors.New("not implemented")
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, h common.Hash) (*client.Receipt, error) {
	return nil, nil
}

func (f *fakeChain) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeChain) Close() error { return nil }

func TestBuildFeePolicy(t *testing.T) {
	chain := &fakeChain{
		chainID: 84532,
		nonce:   11,
		baseFee: big.NewInt(500_000_000),
		gas:     90_000,
	}
	b := NewBuilder(chain, nil)

	built, err := b.Build(context.Background(), BuildRequest{
		From: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		To:   common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Data: []byte{0x01},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(84532), built.ChainID)
	assert.Equal(t, uint64(11), built.Nonce)
	assert.Equal(t, uint64(90_000), built.Gas)
	assert.Equal(t, DefaultPriorityFee, built.MaxPriorityFee)
	// maxFee = 2 x baseFee + priority fee
	assert.Equal(t, big.NewInt(2_000_000_000), built.MaxFee)
}

func TestBuildCallerSuppliedGas(t *testing.T) {
	chain := &fakeChain{
		chainID: 84532,
		baseFee: big.NewInt(1),
		gasErr:  errors.New("estimate should not be called"),
	}
	b := NewBuilder(chain, nil)

	built, err := b.Build(context.Background(), BuildRequest{
		To:       common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		GasLimit: 150_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000), built.Gas)
}

func TestBuildWouldRevert(t *testing.T) {
	chain := &fakeChain{
		chainID: 84532,
		baseFee: big.NewInt(1),
		callErr: &client.RPCError{Code: 3, Message: "execution reverted: not authorized"},
	}
	b := NewBuilder(chain, nil)

	_, err := b.Build(context.Background(), BuildRequest{
		To: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
	})
	require.Error(t, err)

	var revert *WouldRevertError
	require.ErrorAs(t, err, &revert)
	assert.Contains(t, revert.Reason, "not authorized")
	// Fail fast: nothing beyond the simulation ran.
	assert.Equal(t, 1, chain.callCount)
}

func TestBuildTransportErrorIsNotRevert(t *testing.T) {
	chain := &fakeChain{
		chainID: 84532,
		baseFee: big.NewInt(1),
		callErr: errors.New("connection refused"),
	}
	b := NewBuilder(chain, nil)

	_, err := b.Build(context.Background(), BuildRequest{
		To: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
	})
	require.Error(t, err)
	var revert *WouldRevertError
	assert.False(t, errors.As(err, &revert))
}

func TestBuildGasCeiling(t *testing.T) {
	chain := &fakeChain{
		chainID: 84532,
		baseFee: big.NewInt(1),
		gas:     DefaultGasCeiling + 1,
	}
	b := NewBuilder(chain, nil)

	_, err := b.Build(context.Background(), BuildRequest{
		To: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ceiling")
}

func TestBuilderChainIDConfigured(t *testing.T) {
	chain := &fakeChain{baseFee: big.NewInt(1), gas: 1000}
	b := NewBuilder(chain, &BuilderConfig{ChainID: 8453})

	built, err := b.Build(context.Background(), BuildRequest{
		To: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(8453), built.ChainID)
}
