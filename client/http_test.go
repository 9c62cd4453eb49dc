package client

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcStub serves canned JSON-RPC responses keyed by method.
func rpcStub(t *testing.T, handlers map[string]func(params []json.RawMessage) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     uint64            `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %q", req.Method)
			handler = func([]json.RawMessage) (interface{}, *RPCError) {
				return nil, &RPCError{Code: -32601, Message: "method not found"}
			}
		}

		result, rpcErr := handler(req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(t *testing.T, srv *httptest.Server) ChainClient {
	t.Helper()
	c, err := NewClient(&Config{Endpoint: srv.URL, Timeout: 5})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestReadMethods(t *testing.T) {
	srv := rpcStub(t, map[string]func([]json.RawMessage) (interface{}, *RPCError){
		"eth_chainId": func([]json.RawMessage) (interface{}, *RPCError) {
			return "0x14a34", nil // 84532
		},
		"eth_getTransactionCount": func(params []json.RawMessage) (interface{}, *RPCError) {
			require.Len(t, params, 2)
			assert.Equal(t, `"pending"`, string(params[1]))
			return "0x2a", nil
		},
		"eth_getBlockByNumber": func([]json.RawMessage) (interface{}, *RPCError) {
			return map[string]interface{}{"baseFeePerGas": "0x3b9aca00"}, nil
		},
		"eth_getBalance": func([]json.RawMessage) (interface{}, *RPCError) {
			return "0xde0b6b3a7640000", nil
		},
	})
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	chainID, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(84532), chainID)

	nonce, err := c.NonceAt(ctx, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), nonce)

	baseFee, err := c.BaseFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), baseFee)

	balance, err := c.BalanceAt(ctx, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
}

func TestRPCErrorSurfaced(t *testing.T) {
	srv := rpcStub(t, map[string]func([]json.RawMessage) (interface{}, *RPCError){
		"eth_sendRawTransaction": func([]json.RawMessage) (interface{}, *RPCError) {
			return nil, &RPCError{Code: -32000, Message: "nonce too low"}
		},
	})
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.SendRawTransaction(context.Background(), []byte{0x02, 0x01})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, "nonce too low", rpcErr.Message)
}

func TestTransactionReceiptPending(t *testing.T) {
	sent := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	pending := true
	srv := rpcStub(t, map[string]func([]json.RawMessage) (interface{}, *RPCError){
		"eth_getTransactionReceipt": func([]json.RawMessage) (interface{}, *RPCError) {
			if pending {
				return nil, nil
			}
			return map[string]interface{}{
				"transactionHash":   sent,
				"status":            "0x1",
				"blockNumber":       "0x10",
				"gasUsed":           "0x5208",
				"effectiveGasPrice": "0x3b9aca00",
			}, nil
		},
	})
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	receipt, err := c.TransactionReceipt(ctx, sent)
	require.NoError(t, err)
	assert.Nil(t, receipt)

	pending = false
	receipt, err = c.TransactionReceipt(ctx, sent)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Success())
	assert.Equal(t, uint64(16), receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req struct {
			ID uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": "0x1",
		})
	}))
	defer srv.Close()

	c, err := NewClient(&Config{
		Endpoint: srv.URL,
		Timeout:  5,
		Retry: &RetryConfig{
			MaxRetries:        3,
			InitialDelay:      1,
			MaxDelay:          5,
			BackoffMultiplier: 2.0,
			Retryable:         func(error) bool { return true },
		},
	})
	require.NoError(t, err)
	defer c.Close()

	chainID, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), chainID)
	assert.Equal(t, 3, attempts)
}
