package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
	"github.com/cyansociety/anchor-sdk-go/signer"
	"github.com/cyansociety/anchor-sdk-go/tx"
	"github.com/cyansociety/anchor-sdk-go/wallet"
)

const (
	testKey    = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testAPIKey = "test-api-key"
)

var registryABI = func() gethabi.ABI {
	parsed, err := gethabi.JSON(strings.NewReader(`[
		{"inputs":[{"name":"tokenId","type":"uint256"},{"name":"stateHash","type":"bytes32"},{"name":"stateUri","type":"string"}],"name":"anchorState","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"getStateAnchor","outputs":[{"name":"stateHash","type":"bytes32"},{"name":"stateUri","type":"string"},{"name":"timestamp","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`))
	if err != nil {
		panic(err)
	}
	return parsed
}()

type anchorEntry struct {
	hash    [32]byte
	locator string
}

// fakeChain executes anchorState writes against a map and serves reads out
// of it, decoding broadcast bytes as real typed transactions.
type fakeChain struct {
	mu      sync.Mutex
	nonce   uint64
	records map[uint64]anchorEntry
}

func newFakeChain() *fakeChain {
	return &fakeChain{records: map[uint64]anchorEntry{}}
}

func (f *fakeChain) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeChain) ChainID(ctx context.Context) (uint64, error) { return 84532, nil }
func (f *fakeChain) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}
func (f *fakeChain) BaseFee(ctx context.Context) (*big.Int, error) {
	return big.NewInt(50_000_000), nil
}
func (f *fakeChain) EstimateGas(ctx context.Context, msg client.CallMsg) (uint64, error) {
	return 96_000, nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg client.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	getter := registryABI.Methods["getStateAnchor"]
	if len(msg.Data) >= 4 && [4]byte(msg.Data[:4]) == [4]byte(getter.ID) {
		args, err := getter.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		entry := f.records[args[0].(*big.Int).Uint64()]
		return getter.Outputs.Pack(entry.hash, entry.locator, big.NewInt(1700000000))
	}
	return []byte{}, nil
}

func (f *fakeChain) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var decoded types.Transaction
	if err := decoded.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	data := decoded.Data()
	method := registryABI.Methods["anchorState"]
	if len(data) >= 4 && [4]byte(data[:4]) == [4]byte(method.ID) {
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return common.Hash{}, err
		}
		f.records[args[0].(*big.Int).Uint64()] = anchorEntry{
			hash:    args[1].([32]byte),
			locator: args[2].(string),
		}
	}
	f.nonce++
	return decoded.Hash(), nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*client.Receipt, error) {
	return &client.Receipt{TxHash: txHash, Status: 1, BlockNumber: 777, GasUsed: 90_000}, nil
}
func (f *fakeChain) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return big.NewInt(42_000_000_000_000_000), nil
}
func (f *fakeChain) Close() error { return nil }

func newTestHandlers(t *testing.T) (*Handlers, *fakeChain) {
	t.Helper()
	chain := newFakeChain()
	w, err := wallet.NewWalletFromHex(testKey)
	require.NoError(t, err)

	session := signer.NewSession(signer.NewLocalOracle(w), nil)
	svc := pipeline.NewService(chain, tx.NewBuilder(chain, nil), session, pipeline.ServiceConfig{
		Contract:       common.HexToAddress("0x4200000000000000000000000000000000000abc"),
		Signer:         w.Address(),
		KeyID:          w.PublicKeyHex(),
		ConfirmTimeout: 5 * time.Second,
	})
	t.Cleanup(func() { svc.Close() })

	cfg := Config{APIKey: testAPIKey, Signer: w.Address(), Version: "test"}
	return &Handlers{service: svc, chain: chain, cfg: cfg}, chain
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestAnchorStateTool(t *testing.T) {
	h, chain := newTestHandlers(t)

	commitment := canonical.HashText("agent state snapshot")
	res, err := h.HandleAnchorState(context.Background(), makeRequest(map[string]any{
		"token_id":   float64(7),
		"state_hash": commitment.Hex(),
		"state_uri":  "letta://agent-7/state/" + commitment.Hex()[2:18],
		"api_key":    testAPIKey,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	payload := resultText(t, res)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, true, payload["verified"])
	assert.Equal(t, commitment.Hex(), payload["state_hash"])

	entry := chain.records[7]
	assert.Equal(t, [32]byte(commitment), entry.hash)
}

func TestAnchorStateRejectsBadKey(t *testing.T) {
	h, chain := newTestHandlers(t)

	for _, key := range []string{"", "wrong-key"} {
		res, err := h.HandleAnchorState(context.Background(), makeRequest(map[string]any{
			"token_id":   float64(7),
			"state_hash": canonical.HashText("x").Hex(),
			"state_uri":  "letta://agent-7/state/abc",
			"api_key":    key,
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	}
	assert.Empty(t, chain.records)
}

func TestAnchorStateRejectsAllWhenUnconfigured(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.cfg.APIKey = ""

	res, err := h.HandleAnchorState(context.Background(), makeRequest(map[string]any{
		"token_id":   float64(7),
		"state_hash": canonical.HashText("x").Hex(),
		"state_uri":  "letta://agent-7/state/abc",
		"api_key":    "anything",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAnchorActionTool(t *testing.T) {
	h, chain := newTestHandlers(t)

	res, err := h.HandleAnchorAction(context.Background(), makeRequest(map[string]any{
		"token_id":             float64(7),
		"work_product_content": "the final report",
		"content_type":         "text/markdown",
		"description":          "quarterly report",
		"creator_agent_id":     "agent-7",
		"creator_name":         "scribe",
		"collaborators":        []any{"human-editor"},
		"api_key":              testAPIKey,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	payload := resultText(t, res)
	assert.Equal(t, true, payload["verified"])
	assert.Equal(t, canonical.HashText("the final report").Hex(), payload["content_hash"])
	assert.Contains(t, payload["state_uri"], "letta://agent/agent-7/action/")
	assert.NotEmpty(t, chain.records[7].locator)
}

func TestVerifyStateAnchorTool(t *testing.T) {
	h, _ := newTestHandlers(t)

	commitment := canonical.HashText("known state")
	_, err := h.HandleAnchorState(context.Background(), makeRequest(map[string]any{
		"token_id":   float64(3),
		"state_hash": commitment.Hex(),
		"state_uri":  "letta://agent-3/state/abc",
		"api_key":    testAPIKey,
	}))
	require.NoError(t, err)

	// Read-only: no api_key needed.
	res, err := h.HandleVerifyStateAnchor(context.Background(), makeRequest(map[string]any{
		"token_id":      float64(3),
		"expected_hash": commitment.Hex(),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	payload := resultText(t, res)
	assert.Equal(t, true, payload["matches"])
	assert.Equal(t, commitment.Hex(), payload["state_hash"])

	res, err = h.HandleVerifyStateAnchor(context.Background(), makeRequest(map[string]any{
		"token_id":      float64(3),
		"expected_hash": canonical.HashText("other state").Hex(),
	}))
	require.NoError(t, err)
	payload = resultText(t, res)
	assert.Equal(t, false, payload["matches"])
}

func TestSignerBalanceTool(t *testing.T) {
	h, _ := newTestHandlers(t)

	res, err := h.HandleSignerBalance(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	payload := resultText(t, res)
	assert.Equal(t, h.cfg.Signer.Hex(), payload["address"])
	assert.Equal(t, "42000000000000000", payload["balance_wei"])
	assert.Equal(t, false, payload["low_balance_warning"])
}

func TestServerRegistersAllTools(t *testing.T) {
	h, chain := newTestHandlers(t)
	s := NewServer(h.service, chain, h.cfg)
	require.NotNil(t, s)
}
