package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// httpClient is the JSON-RPC-over-HTTP chain client.
type httpClient struct {
	endpoint string
	client   *http.Client
	logger   Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

func newHTTPClient(config *Config) (ChainClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Debug && config.Logger != nil {
			retryConfig.OnRetry = func(attempt int, err error) {
				config.Logger.Warn("retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	return &httpClient{
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		logger:   config.Logger,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// Call invokes a JSON-RPC method and returns the raw result.
func (c *httpClient) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "marshal request", Err: err}
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("json-rpc request", "method", method, "body", string(reqBody))
	}

	var resp *http.Response
	err = withRetry(ctx, func() error {
		// The body can only be read once, so each attempt builds a fresh
		// request from the buffered bytes.
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}
		if isRetryableHTTPStatus(httpResp.StatusCode) {
			httpResp.Body.Close()
			return fmt.Errorf("HTTP error: %d", httpResp.StatusCode)
		}
		resp = httpResp
		return nil
	}, c.retry)
	if err != nil {
		return nil, &Error{Code: ErrCodeNetwork, Message: "send request", Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn("close response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: ErrCodeNetwork, Message: "read response", Err: err}
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("json-rpc response", "status", resp.StatusCode, "body", string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code:    ErrCodeNetwork,
			Message: fmt.Sprintf("HTTP error: %d, body: %s", resp.StatusCode, string(respBody)),
		}
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "unmarshal response", Err: err}
	}
	if jsonResp.Error != nil {
		return nil, &Error{Code: ErrCodeRPC, Message: jsonResp.Error.Message, Err: jsonResp.Error}
	}

	return jsonResp.Result, nil
}

// ChainID returns the chain id reported by eth_chainId.
func (c *httpClient) ChainID(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_chainId")
}

// NonceAt returns the pending-inclusive transaction count for the account.
func (c *httpClient) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return c.callUint64(ctx, "eth_getTransactionCount", addr, "pending")
}

// BaseFee returns baseFeePerGas of the latest block.
func (c *httpClient) BaseFee(ctx context.Context) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_getBlockByNumber", "latest", false)
	if err != nil {
		return nil, err
	}
	var block struct {
		BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "decode block", Err: err}
	}
	if block.BaseFeePerGas == nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "latest block has no base fee"}
	}
	return (*big.Int)(block.BaseFeePerGas), nil
}

// EstimateGas returns the node's gas estimate for the message.
func (c *httpClient) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	return c.callUint64(ctx, "eth_estimateGas", msg.toRPC())
}

// CallContract simulates the message against the latest block.
func (c *httpClient) CallContract(ctx context.Context, msg CallMsg) ([]byte, error) {
	result, err := c.Call(ctx, "eth_call", msg.toRPC(), "latest")
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "decode call result", Err: err}
	}
	return out, nil
}

// SendRawTransaction broadcasts signed transaction bytes.
func (c *httpClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	result, err := c.Call(ctx, "eth_sendRawTransaction", hexutil.Encode(raw))
	if err != nil {
		return common.Hash{}, err
	}
	var h common.Hash
	if err := json.Unmarshal(result, &h); err != nil {
		return common.Hash{}, &Error{Code: ErrCodeInvalidResponse, Message: "decode tx hash", Err: err}
	}
	return h, nil
}

// TransactionReceipt fetches a receipt; (nil, nil) means still pending.
func (c *httpClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", txHash)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	var raw struct {
		TransactionHash   common.Hash     `json:"transactionHash"`
		Status            hexutil.Uint64  `json:"status"`
		BlockNumber       hexutil.Uint64  `json:"blockNumber"`
		GasUsed           hexutil.Uint64  `json:"gasUsed"`
		EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "decode receipt", Err: err}
	}
	receipt := &Receipt{
		TxHash:      raw.TransactionHash,
		Status:      uint64(raw.Status),
		BlockNumber: uint64(raw.BlockNumber),
		GasUsed:     uint64(raw.GasUsed),
	}
	if raw.EffectiveGasPrice != nil {
		receipt.EffectiveGasPrice = (*big.Int)(raw.EffectiveGasPrice)
	}
	return receipt, nil
}

// BalanceAt returns the account balance in wei.
func (c *httpClient) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_getBalance", addr, "latest")
	if err != nil {
		return nil, err
	}
	var out hexutil.Big
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, &Error{Code: ErrCodeInvalidResponse, Message: "decode balance", Err: err}
	}
	return (*big.Int)(&out), nil
}

// Close releases idle connections.
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *httpClient) callUint64(ctx context.Context, method string, params ...interface{}) (uint64, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return 0, err
	}
	var out hexutil.Uint64
	if err := json.Unmarshal(result, &out); err != nil {
		return 0, &Error{Code: ErrCodeInvalidResponse, Message: "decode quantity", Err: err}
	}
	return uint64(out), nil
}

// toRPC renders the message as the JSON object eth_call and eth_estimateGas
// expect, omitting unset fields.
func (m CallMsg) toRPC() map[string]interface{} {
	out := map[string]interface{}{
		"from": m.From,
	}
	if m.To != nil {
		out["to"] = *m.To
	}
	if m.Gas > 0 {
		out["gas"] = hexutil.Uint64(m.Gas)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		out["value"] = (*hexutil.Big)(m.Value)
	}
	if len(m.Data) > 0 {
		out["data"] = hexutil.Bytes(m.Data)
	}
	return out
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}
