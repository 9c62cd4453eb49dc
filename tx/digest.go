package tx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// txType is the EIP-2718 type tag for dynamic-fee transactions.
const txType = 0x02

// accessTuple mirrors the wire shape of an access list entry. Anchor
// transactions always carry an empty access list, but the slot stays in the
// encoding because its position is part of the signed payload.
type accessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// unsignedFields is the ordered RLP field list of an unsigned type-2
// transaction.
type unsignedFields struct {
	ChainID        uint64
	Nonce          uint64
	MaxPriorityFee *big.Int
	MaxFee         *big.Int
	Gas            uint64
	To             common.Address
	Value          *big.Int
	Data           []byte
	AccessList     []accessTuple
}

// signedFields appends the signature to the unsigned field list.
type signedFields struct {
	ChainID        uint64
	Nonce          uint64
	MaxPriorityFee *big.Int
	MaxFee         *big.Int
	Gas            uint64
	To             common.Address
	Value          *big.Int
	Data           []byte
	AccessList     []accessTuple
	YParity        uint64
	R              *big.Int
	S              *big.Int
}

func (t *UnsignedTx) fields() unsignedFields {
	value := t.Value
	if value == nil {
		value = new(big.Int)
	}
	return unsignedFields{
		ChainID:        t.ChainID,
		Nonce:          t.Nonce,
		MaxPriorityFee: t.MaxPriorityFee,
		MaxFee:         t.MaxFee,
		Gas:            t.Gas,
		To:             t.To,
		Value:          value,
		Data:           t.Data,
		AccessList:     []accessTuple{},
	}
}

// SigningDigest computes the 32-byte digest the signer must sign:
// keccak256(0x02 || rlp(field list)). Pure function of the transaction; two
// field-identical transactions always produce the same digest.
func SigningDigest(t *UnsignedTx) ([32]byte, error) {
	var digest [32]byte
	encoded, err := rlp.EncodeToBytes(t.fields())
	if err != nil {
		return digest, fmt.Errorf("rlp encode transaction: %w", err)
	}
	copy(digest[:], ethcrypto.Keccak256(append([]byte{txType}, encoded...)))
	return digest, nil
}
