package tx

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/cyansociety/anchor-sdk-go/canonical"
)

// anchorRegistryJSON is the fragment of the registry contract the SDK
// invokes. anchorState is a generic commit-32-bytes primitive: both state
// anchors and action anchors go through it, distinguished only by the
// locator convention.
const anchorRegistryJSON = `[
	{"inputs":[{"name":"tokenId","type":"uint256"},{"name":"stateHash","type":"bytes32"},{"name":"stateUri","type":"string"}],"name":"anchorState","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"getStateAnchor","outputs":[{"name":"stateHash","type":"bytes32"},{"name":"stateUri","type":"string"},{"name":"timestamp","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var anchorRegistryABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(anchorRegistryJSON))
	if err != nil {
		panic(fmt.Sprintf("parse anchor registry ABI: %v", err))
	}
	return parsed
}()

// AnchorRecord is the on-chain anchor record for a token.
type AnchorRecord struct {
	Commitment canonical.Commitment
	Locator    string
	Timestamp  uint64
}

// EncodeAnchorState encodes the calldata for
// anchorState(tokenId, commitment, locator).
func EncodeAnchorState(tokenID uint64, commitment canonical.Commitment, locator string) ([]byte, error) {
	data, err := anchorRegistryABI.Pack("anchorState", new(big.Int).SetUint64(tokenID), [32]byte(commitment), locator)
	if err != nil {
		return nil, fmt.Errorf("encode anchorState: %w", err)
	}
	return data, nil
}

// EncodeGetStateAnchor encodes the calldata for getStateAnchor(tokenId).
func EncodeGetStateAnchor(tokenID uint64) ([]byte, error) {
	data, err := anchorRegistryABI.Pack("getStateAnchor", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("encode getStateAnchor: %w", err)
	}
	return data, nil
}

// DecodeAnchorRecord decodes the return data of getStateAnchor.
func DecodeAnchorRecord(data []byte) (*AnchorRecord, error) {
	values, err := anchorRegistryABI.Unpack("getStateAnchor", data)
	if err != nil {
		return nil, fmt.Errorf("decode getStateAnchor result: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("getStateAnchor returned %d values, want 3", len(values))
	}

	hash, ok := values[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected stateHash type %T", values[0])
	}
	locator, ok := values[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected stateUri type %T", values[1])
	}
	ts, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected timestamp type %T", values[2])
	}

	return &AnchorRecord{
		Commitment: canonical.Commitment(hash),
		Locator:    locator,
		Timestamp:  ts.Uint64(),
	}, nil
}
