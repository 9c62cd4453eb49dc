// Package tx builds, digests and assembles the EIP-1559 (type-2) anchor
// transactions.
//
// One canonical RLP field list is shared by the signing digest and the final
// signed encoding, so the two can never drift apart.
package tx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UnsignedTx is a type-2 transaction before signing. Value semantics: copy
// freely, the builder never mutates one after returning it.
type UnsignedTx struct {
	ChainID        uint64
	Nonce          uint64
	MaxPriorityFee *big.Int
	MaxFee         *big.Int
	Gas            uint64
	To             common.Address
	Value          *big.Int
	Data           []byte
}

// Signature is a raw secp256k1 signature with its recovery id (0 or 1).
// It is bound to exactly one digest and never reused.
type Signature struct {
	R          *big.Int
	S          *big.Int
	RecoveryID byte
}

// ParseSignature builds a Signature from 0x-prefixed hex components, as
// returned by remote signing oracles.
func ParseSignature(rHex, sHex string, recid int) (Signature, error) {
	r, err := hexutil.DecodeBig(normalizeQuantity(rHex))
	if err != nil {
		return Signature{}, fmt.Errorf("decode signature r: %w", err)
	}
	s, err := hexutil.DecodeBig(normalizeQuantity(sHex))
	if err != nil {
		return Signature{}, fmt.Errorf("decode signature s: %w", err)
	}
	if recid != 0 && recid != 1 {
		return Signature{}, fmt.Errorf("recovery id must be 0 or 1, got %d", recid)
	}
	return Signature{R: r, S: s, RecoveryID: byte(recid)}, nil
}

// normalizeQuantity strips leading zeros from a hex quantity so fixed-width
// oracle output ("0x00ab...") decodes like a canonical quantity.
func normalizeQuantity(h string) string {
	if len(h) >= 2 && h[:2] == "0x" {
		h = h[2:]
	}
	i := 0
	for i < len(h)-1 && h[i] == '0' {
		i++
	}
	return "0x" + h[i:]
}
