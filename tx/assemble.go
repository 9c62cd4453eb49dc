package tx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	curveOrder     = ethcrypto.S256().Params().N
	halfCurveOrder = new(big.Int).Rsh(new(big.Int).Set(ethcrypto.S256().Params().N), 1)
)

// Normalize returns the low-s form of the signature. Oracles may return
// either form; the chain expects low-s, so a high-s value is flipped
// (s = order - s) and the recovery id complemented. The original is not
// modified.
func (sig Signature) Normalize() Signature {
	if sig.S.Cmp(halfCurveOrder) <= 0 {
		return sig
	}
	return Signature{
		R:          new(big.Int).Set(sig.R),
		S:          new(big.Int).Sub(curveOrder, sig.S),
		RecoveryID: sig.RecoveryID ^ 1,
	}
}

// RecoverSigner recovers the address that produced the signature over the
// digest.
func RecoverSigner(digest [32]byte, sig Signature) (common.Address, error) {
	raw := make([]byte, 65)
	sig.R.FillBytes(raw[:32])
	sig.S.FillBytes(raw[32:64])
	raw[64] = sig.RecoveryID

	pub, err := ethcrypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Assemble combines an unsigned transaction and its signature into the
// broadcastable encoding: 0x02 || rlp(fields..., yParity, r, s).
//
// The signature is normalized to low-s first, then the signer is recovered
// from the digest and checked against expectedSigner. A transaction whose
// signature does not verify is never encoded, so a mismatch can never reach
// the network.
func Assemble(t *UnsignedTx, sig Signature, expectedSigner common.Address) ([]byte, error) {
	if sig.R == nil || sig.S == nil {
		return nil, fmt.Errorf("signature is incomplete")
	}
	sig = sig.Normalize()

	digest, err := SigningDigest(t)
	if err != nil {
		return nil, err
	}
	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		return nil, err
	}
	if recovered != expectedSigner {
		return nil, &SignatureMismatchError{
			Expected:  expectedSigner.Hex(),
			Recovered: recovered.Hex(),
		}
	}

	fields := t.fields()
	signed := signedFields{
		ChainID:        fields.ChainID,
		Nonce:          fields.Nonce,
		MaxPriorityFee: fields.MaxPriorityFee,
		MaxFee:         fields.MaxFee,
		Gas:            fields.Gas,
		To:             fields.To,
		Value:          fields.Value,
		Data:           fields.Data,
		AccessList:     fields.AccessList,
		YParity:        uint64(sig.RecoveryID),
		R:              sig.R,
		S:              sig.S,
	}

	encoded, err := rlp.EncodeToBytes(signed)
	if err != nil {
		return nil, fmt.Errorf("rlp encode signed transaction: %w", err)
	}
	return append([]byte{txType}, encoded...), nil
}
