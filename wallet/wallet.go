// Package wallet provides a local secp256k1 signer, used by tests and as an
// in-process fallback when no remote signing oracle is configured.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cyansociety/anchor-sdk-go/tx"
)

// Wallet signs 32-byte digests with a locally held key.
type Wallet interface {
	// Address is the signing identity derived from the key.
	Address() common.Address

	// PublicKeyHex is the uncompressed public key, usable as a key id with
	// signing oracles.
	PublicKeyHex() string

	// SignDigest signs a digest and returns the raw signature components.
	SignDigest(digest [32]byte) (tx.Signature, error)
}

// localWallet is a simple in-memory wallet for development and tests.
type localWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWallet generates a fresh secp256k1 key.
func NewWallet() (Wallet, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return &localWallet{
		privateKey: key,
		address:    ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// NewWalletFromHex loads a wallet from a 32-byte hex private key, with or
// without 0x prefix.
func NewWalletFromHex(privateKeyHex string) (Wallet, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(raw))
	}

	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key: %w", err)
	}

	return &localWallet{
		privateKey: key,
		address:    ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (w *localWallet) Address() common.Address {
	return w.address
}

func (w *localWallet) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(ethcrypto.FromECDSAPub(&w.privateKey.PublicKey))
}

// SignDigest signs with the recoverable ECDSA scheme the chain expects.
func (w *localWallet) SignDigest(digest [32]byte) (tx.Signature, error) {
	raw, err := ethcrypto.Sign(digest[:], w.privateKey)
	if err != nil {
		return tx.Signature{}, fmt.Errorf("ecdsa sign: %w", err)
	}
	return tx.Signature{
		R:          new(big.Int).SetBytes(raw[:32]),
		S:          new(big.Int).SetBytes(raw[32:64]),
		RecoveryID: raw[64],
	}, nil
}
